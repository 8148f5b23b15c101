package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/email"
)

const resetTokenTTL = time.Hour

// PasswordReset is a pending reset. Only the sha256 of the emailed token is
// stored.
type PasswordReset struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    string    `gorm:"size:36;not null;index:ix_password_resets_user_id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex:ux_password_resets_token_hash"`
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (PasswordReset) TableName() string { return "password_resets" }

func Models() []any { return []any{&PasswordReset{}, &EmailVerification{}} }

type PasswordResetService struct {
	db            *gorm.DB
	outbox        *email.OutboxService
	storefrontURL string
	fromName      string
	log           *slog.Logger
	now           func() time.Time
}

func NewPasswordResetService(db *gorm.DB, outbox *email.OutboxService, storefrontURL, fromName string, l *slog.Logger) *PasswordResetService {
	if l == nil {
		l = slog.Default()
	}
	return &PasswordResetService{
		db:            db,
		outbox:        outbox,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
		fromName:      fromName,
		log:           l,
		now:           time.Now,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Request queues a reset email when addr belongs to a user. Unknown
// addresses succeed silently so the endpoint does not reveal accounts.
func (s *PasswordResetService) Request(ctx context.Context, addr string) error {
	u, err := auth.NewRepo(s.db).GetByEmail(ctx, addr)
	if errors.Is(err, auth.ErrUserNotFound) {
		s.log.Info("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := randomToken(32)
	if err != nil {
		return err
	}
	now := s.now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// one live token per user
		if err := tx.Where("user_id = ? AND used_at IS NULL", u.ID).Delete(&PasswordReset{}).Error; err != nil {
			return err
		}
		pr := PasswordReset{
			UserID:    u.ID,
			TokenHash: hashToken(raw),
			ExpiresAt: now.Add(resetTokenTTL),
			CreatedAt: now,
		}
		if err := tx.Create(&pr).Error; err != nil {
			return err
		}
		return s.outbox.EnqueueTx(ctx, tx, email.Job{
			To:       u.Email,
			Template: email.TemplatePasswordReset,
			Payload: map[string]any{
				"ResetURL":  s.storefrontURL + "/reset-password?token=" + raw,
				"ExpiresIn": "1 hour",
				"FromName":  s.fromName,
			},
		})
	})
}

// Reset sets a new password for the token's user, burns the token and ends
// every session of that user.
func (s *PasswordResetService) Reset(ctx context.Context, rawToken, newPassword string) error {
	if strings.TrimSpace(rawToken) == "" {
		return ErrInvalidToken
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := s.now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pr PasswordReset
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hashToken(rawToken), now).
			First(&pr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}

		res := tx.Model(&PasswordReset{}).
			Where("id = ? AND used_at IS NULL", pr.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}
		if err := tx.Model(&auth.User{}).Where("id = ?", pr.UserID).
			Updates(map[string]any{
				"password_hash": hash,
				"updated_at":    now,
				// the reset link reached the inbox, which proves the address
				"email_verified_at": gorm.Expr("COALESCE(email_verified_at, ?)", now),
			}).Error; err != nil {
			return err
		}
		return auth.NewRepo(tx).DeleteUserSessions(ctx, pr.UserID)
	})
}
