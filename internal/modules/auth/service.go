package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLen = 6

// lastSeenGranularity throttles session touch writes.
const lastSeenGranularity = 5 * time.Minute

type Service struct {
	repo *Repo
	ttl  time.Duration
	now  func() time.Time
}

func NewService(db *gorm.DB, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 14 * 24 * time.Hour
	}
	return &Service{repo: NewRepo(db), ttl: sessionTTL, now: time.Now}
}

func (s *Service) Repo() *Repo { return s.repo }

func (s *Service) SessionTTL() time.Duration { return s.ttl }

func HashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLen {
		return "", ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         RoleCustomer,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// StartSession creates a session row and returns the raw cookie token.
func (s *Service) StartSession(ctx context.Context, userID string) (string, *Session, error) {
	token, err := newToken()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	sess := &Session{
		UserID:     userID,
		TokenHash:  hashToken(token),
		ExpiresAt:  now.Add(s.ttl),
		LastSeenAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Resolve maps a cookie token to its live session and user.
func (s *Service) Resolve(ctx context.Context, token string) (*User, *Session, error) {
	if token == "" {
		return nil, nil, ErrSessionNotFound
	}
	now := s.now()
	sess, err := s.repo.FindSession(ctx, hashToken(token), now)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.repo.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}
	if now.Sub(sess.LastSeenAt) > lastSeenGranularity {
		_ = s.repo.TouchSession(ctx, sess.ID, now)
	}
	return u, sess, nil
}

func (s *Service) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSessionByHash(ctx, hashToken(token))
}

type UpdateAccountInput struct {
	Name            string
	CurrentPassword string
	NewPassword     string
}

// UpdateAccount changes the display name and, when NewPassword is set,
// the password after checking the current one.
func (s *Service) UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(in.Name)
	if in.NewPassword != "" {
		if !CheckPassword(u.PasswordHash, in.CurrentPassword) {
			return nil, ErrWrongPassword
		}
		hash, err := HashPassword(in.NewPassword)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
