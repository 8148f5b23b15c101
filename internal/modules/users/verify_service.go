package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/email"
)

const verifyTokenTTL = 48 * time.Hour

// EmailVerification is a pending address confirmation. As with resets only
// the sha256 of the mailed token is kept.
type EmailVerification struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    string    `gorm:"size:36;not null;index:ix_email_verifications_user_id"`
	Email     string    `gorm:"size:255;not null"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex:ux_email_verifications_token_hash"`
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (EmailVerification) TableName() string { return "email_verifications" }

type VerifyService struct {
	db            *gorm.DB
	outbox        *email.OutboxService
	storefrontURL string
	fromName      string
	log           *slog.Logger
	now           func() time.Time
}

func NewVerifyService(db *gorm.DB, outbox *email.OutboxService, storefrontURL, fromName string, l *slog.Logger) *VerifyService {
	if l == nil {
		l = slog.Default()
	}
	return &VerifyService{
		db:            db,
		outbox:        outbox,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
		fromName:      fromName,
		log:           l,
		now:           time.Now,
	}
}

// Start mails a confirmation link for the user's current address. Earlier
// links stop working. Already verified users get nothing.
func (s *VerifyService) Start(ctx context.Context, userID string) error {
	u, err := auth.NewRepo(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified() {
		return ErrAlreadyVerified
	}

	raw, err := randomToken(32)
	if err != nil {
		return err
	}
	now := s.now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND used_at IS NULL", u.ID).Delete(&EmailVerification{}).Error; err != nil {
			return err
		}
		ev := EmailVerification{
			UserID:    u.ID,
			Email:     u.Email,
			TokenHash: hashToken(raw),
			ExpiresAt: now.Add(verifyTokenTTL),
			CreatedAt: now,
		}
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
		s.log.Info("email verification queued", "user_id", u.ID)
		return s.outbox.EnqueueTx(ctx, tx, email.Job{
			To:       u.Email,
			Template: email.TemplateVerifyEmail,
			Payload: map[string]any{
				"VerifyURL": s.storefrontURL + "/verify-email?token=" + raw,
				"ExpiresIn": "48 hours",
				"FromName":  s.fromName,
			},
		})
	})
}

// Confirm burns the token and marks the address verified. A token minted for
// an address the user no longer has is rejected.
func (s *VerifyService) Confirm(ctx context.Context, rawToken string) (*auth.User, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}
	now := s.now()

	var userID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev EmailVerification
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hashToken(rawToken), now).
			First(&ev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}

		res := tx.Model(&EmailVerification{}).
			Where("id = ? AND used_at IS NULL", ev.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}

		res = tx.Model(&auth.User{}).
			Where("id = ? AND email = ?", ev.UserID, ev.Email).
			Updates(map[string]any{"email_verified_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}
		userID = ev.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return auth.NewRepo(s.db).GetByID(ctx, userID)
}
