package users

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/internal/platform/database/dbtest"
	"shopdesk.io/app/internal/platform/logging"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	models := []any{&auth.User{}, &auth.Session{}, &customers.Customer{}}
	models = append(models, Models()...)
	models = append(models, email.Models()...)
	return dbtest.New(t, models...)
}

func TestAdminCreateListGet(t *testing.T) {
	ctx := context.Background()
	s := NewAdminService(newDB(t))

	admin, err := s.Create(ctx, CreateInput{Email: "Boss@Example.com", Name: "Boss", Password: "secret1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", admin.Email)

	_, err = s.Create(ctx, CreateInput{Email: "ada@example.com", Name: "Ada Lovelace", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Create(ctx, CreateInput{Email: "ada@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	_, err = s.Create(ctx, CreateInput{Email: "x@example.com", Password: "secret1", Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = s.Create(ctx, CreateInput{Email: "y@example.com", Password: "123"})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	all, err := s.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	byName, err := s.List(ctx, ListParams{Q: "lovelace"})
	require.NoError(t, err)
	require.Len(t, byName.Items, 1)
	assert.Equal(t, "ada@example.com", byName.Items[0].Email)

	admins, err := s.List(ctx, ListParams{Role: auth.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins.Items, 1)

	got, err := s.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boss", got.Name)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestAdminUpdateGuardsAndSessions(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	s := NewAdminService(db)
	sessions := auth.NewService(db, time.Hour)

	admin, err := s.Create(ctx, CreateInput{Email: "boss@example.com", Password: "secret1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	user, err := s.Create(ctx, CreateInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Update(ctx, admin.ID, admin.ID, UpdateInput{Role: auth.RoleCustomer})
	assert.ErrorIs(t, err, ErrSelfDemote)

	token, _, err := sessions.StartSession(ctx, user.ID)
	require.NoError(t, err)

	updated, err := s.Update(ctx, admin.ID, user.ID, UpdateInput{
		Email: "ADA@lovelace.dev", Name: " Ada ", Role: auth.RoleAdmin, Password: "newsecret",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@lovelace.dev", updated.Email)
	assert.Equal(t, "Ada", updated.Name)
	assert.Equal(t, auth.RoleAdmin, updated.Role)

	_, _, err = sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound, "password change ends sessions")

	_, err = sessions.Authenticate(ctx, "ada@lovelace.dev", "newsecret")
	assert.NoError(t, err)

	_, err = s.Update(ctx, admin.ID, user.ID, UpdateInput{Email: "boss@example.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestAdminDelete(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	s := NewAdminService(db)
	sessions := auth.NewService(db, time.Hour)

	admin, err := s.Create(ctx, CreateInput{Email: "boss@example.com", Password: "secret1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	user, err := s.Create(ctx, CreateInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&customers.Customer{ID: "c1", UserID: &user.ID, Email: user.Email}).Error)
	_, _, err = sessions.StartSession(ctx, user.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, admin.ID, admin.ID), ErrSelfDelete)
	require.NoError(t, s.Delete(ctx, admin.ID, user.ID))
	assert.ErrorIs(t, s.Delete(ctx, admin.ID, user.ID), auth.ErrUserNotFound)

	var n int64
	require.NoError(t, db.Model(&auth.Session{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.Zero(t, n)

	var c customers.Customer
	require.NoError(t, db.First(&c, "id = ?", "c1").Error)
	assert.Nil(t, c.UserID)
}

var tokenRe = regexp.MustCompile(`reset-password\?token=([0-9a-f]+)`)

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	outbox := email.NewOutboxService(db)
	resets := NewPasswordResetService(db, outbox, "https://shop.example.com/", "Shopdesk", logging.Discard())
	sessions := auth.NewService(db, time.Hour)

	u, err := sessions.Signup(ctx, auth.SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	oldToken, _, err := sessions.StartSession(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, resets.Request(ctx, "nobody@example.com"))
	require.NoError(t, resets.Request(ctx, "ADA@example.com"))
	require.NoError(t, resets.Request(ctx, "ada@example.com"))

	var live int64
	require.NoError(t, db.Model(&PasswordReset{}).Where("used_at IS NULL").Count(&live).Error)
	assert.EqualValues(t, 1, live, "a new request replaces the old token")

	var pending PasswordReset
	require.NoError(t, db.Where("used_at IS NULL").First(&pending).Error)

	var mails []email.Outbox
	require.NoError(t, db.Find(&mails).Error)
	require.Len(t, mails, 2)
	raw := ""
	for _, mail := range mails {
		assert.Equal(t, "ada@example.com", mail.To)
		assert.Equal(t, email.TemplatePasswordReset, mail.Template)
		assert.Contains(t, mail.TextBody, "https://shop.example.com/reset-password?token=")
		m := tokenRe.FindStringSubmatch(mail.TextBody)
		require.Len(t, m, 2)
		if hashToken(m[1]) == pending.TokenHash {
			raw = m[1]
		}
	}
	require.NotEmpty(t, raw, "one mail carries the live token")

	assert.ErrorIs(t, resets.Reset(ctx, "bogus", "another1"), ErrInvalidToken)
	assert.ErrorIs(t, resets.Reset(ctx, raw, "123"), auth.ErrWeakPassword)

	require.NoError(t, resets.Reset(ctx, raw, "another1"))
	assert.ErrorIs(t, resets.Reset(ctx, raw, "another2"), ErrInvalidToken, "tokens are single use")

	_, err = sessions.Authenticate(ctx, "ada@example.com", "another1")
	assert.NoError(t, err)
	_, _, err = sessions.Resolve(ctx, oldToken)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestPasswordResetExpires(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	resets := NewPasswordResetService(db, email.NewOutboxService(db), "http://x", "Shop", logging.Discard())
	sessions := auth.NewService(db, time.Hour)
	_, err := sessions.Signup(ctx, auth.SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, resets.Request(ctx, "ada@example.com"))
	var mail email.Outbox
	require.NoError(t, db.First(&mail).Error)
	raw := tokenRe.FindStringSubmatch(mail.TextBody)[1]

	resets.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, resets.Reset(ctx, raw, "another1"), ErrInvalidToken)
}

var verifyRe = regexp.MustCompile(`verify-email\?token=([0-9a-f]+)`)

func TestEmailVerification(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	verify := NewVerifyService(db, email.NewOutboxService(db), "https://shop.example.com", "Shopdesk", logging.Discard())
	sessions := auth.NewService(db, time.Hour)

	u, err := sessions.Signup(ctx, auth.SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.False(t, u.EmailVerified())

	require.NoError(t, verify.Start(ctx, u.ID))
	require.NoError(t, verify.Start(ctx, u.ID))

	var mails []email.Outbox
	require.NoError(t, db.Order("created_at ASC").Order("id ASC").Find(&mails).Error)
	require.Len(t, mails, 2)
	for _, mail := range mails {
		assert.Equal(t, email.TemplateVerifyEmail, mail.Template)
		assert.Equal(t, "ada@example.com", mail.To)
	}

	var live EmailVerification
	require.NoError(t, db.Where("used_at IS NULL").First(&live).Error)
	raw := ""
	for _, mail := range mails {
		m := verifyRe.FindStringSubmatch(mail.TextBody)
		require.Len(t, m, 2)
		if hashToken(m[1]) == live.TokenHash {
			raw = m[1]
		} else {
			_, err := verify.Confirm(ctx, m[1])
			assert.ErrorIs(t, err, ErrInvalidToken, "a newer link replaces the old one")
		}
	}
	require.NotEmpty(t, raw)

	_, err = verify.Confirm(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	got, err := verify.Confirm(ctx, raw)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified())

	_, err = verify.Confirm(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens are single use")
	assert.ErrorIs(t, verify.Start(ctx, u.ID), ErrAlreadyVerified)
}

func TestEmailVerificationExpires(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	verify := NewVerifyService(db, email.NewOutboxService(db), "http://x", "Shop", logging.Discard())
	u, err := auth.NewService(db, time.Hour).Signup(ctx, auth.SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, verify.Start(ctx, u.ID))
	var mail email.Outbox
	require.NoError(t, db.First(&mail).Error)
	raw := verifyRe.FindStringSubmatch(mail.TextBody)[1]

	verify.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	_, err = verify.Confirm(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetVerifiesEmail(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	resets := NewPasswordResetService(db, email.NewOutboxService(db), "http://x", "Shop", logging.Discard())
	u, err := auth.NewService(db, time.Hour).Signup(ctx, auth.SignupInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, resets.Request(ctx, "ada@example.com"))
	var mail email.Outbox
	require.NoError(t, db.First(&mail).Error)
	require.NoError(t, resets.Reset(ctx, tokenRe.FindStringSubmatch(mail.TextBody)[1], "another1"))

	got, err := auth.NewRepo(db).GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified())
}
