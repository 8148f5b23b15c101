package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk.io/app/internal/platform/database/dbtest"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := dbtest.New(t, &User{}, &Session{})
	return NewService(db, time.Hour)
}

func TestSignupAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	u, err := s.Signup(ctx, SignupInput{Email: "  Ada@Example.COM ", Password: "secret1", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, RoleCustomer, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = s.Signup(ctx, SignupInput{Email: "ada@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = s.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	got, err := s.Authenticate(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "ada@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	u, err := s.Signup(ctx, SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	token, sess, err := s.StartSession(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, sess.TokenHash)

	got, _, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, _, err = s.Resolve(ctx, "bogus")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.EndSession(ctx, token))
	_, _, err = s.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	u, err := s.Signup(ctx, SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	token, _, err := s.StartSession(ctx, u.ID)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = s.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := s.Repo().PurgeExpiredSessions(ctx, s.now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	u, err := s.Signup(ctx, SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.UpdateAccount(ctx, u.ID, UpdateAccountInput{Name: "Ada L", CurrentPassword: "wrong", NewPassword: "secret2"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	got, err := s.UpdateAccount(ctx, u.ID, UpdateAccountInput{Name: " Ada L ", CurrentPassword: "secret1", NewPassword: "secret2"})
	require.NoError(t, err)
	assert.Equal(t, "Ada L", got.Name)

	_, err = s.Authenticate(ctx, "ada@example.com", "secret2")
	assert.NoError(t, err)
}
