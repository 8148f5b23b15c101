package email

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNoRecipient = errors.New("email: recipient required")

// Job is a templated message. Payload is the template data.
type Job struct {
	To       string
	Template string
	Payload  any
}

type OutboxService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOutboxService(db *gorm.DB) *OutboxService {
	return &OutboxService{db: db, now: time.Now}
}

// Enqueue stores a ready-made message.
func (s *OutboxService) Enqueue(ctx context.Context, to, subject, textBody, htmlBody string) error {
	return s.insert(ctx, s.db, Outbox{To: to, Subject: subject, TextBody: textBody, HTMLBody: htmlBody})
}

// EnqueueTx renders j and stores it inside tx, so the message only exists
// if the surrounding change commits.
func (s *OutboxService) EnqueueTx(ctx context.Context, tx *gorm.DB, j Job) error {
	r, err := render(j.Template, j.Payload)
	if err != nil {
		return err
	}
	return s.insert(ctx, tx, Outbox{
		To:       j.To,
		Template: j.Template,
		Subject:  r.Subject,
		TextBody: r.Text,
		HTMLBody: r.HTML,
	})
}

func (s *OutboxService) EnqueueJob(ctx context.Context, j Job) error {
	return s.EnqueueTx(ctx, s.db, j)
}

func (s *OutboxService) insert(ctx context.Context, db *gorm.DB, m Outbox) error {
	m.To = strings.TrimSpace(m.To)
	if m.To == "" {
		return ErrNoRecipient
	}
	now := s.now()
	m.ID = uuid.NewString()
	m.Status = StatusPending
	m.NextAttemptAt = now
	m.CreatedAt = now
	m.UpdatedAt = now
	return db.WithContext(ctx).Create(&m).Error
}

type ListParams struct {
	Status   string
	Page     int
	PageSize int
}

// List returns outbox rows newest first, for the admin mail log.
func (s *OutboxService) List(ctx context.Context, p ListParams) ([]Outbox, int64, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
	q := s.db.WithContext(ctx).Model(&Outbox{})
	if p.Status != "" {
		q = q.Where("status = ?", p.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []Outbox
	err := q.Order("created_at DESC").
		Offset((p.Page - 1) * p.PageSize).
		Limit(p.PageSize).
		Find(&rows).Error
	return rows, total, err
}

// Retry puts a failed message back in the queue.
func (s *OutboxService) Retry(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Outbox{}).
		Where("id = ? AND status = ?", id, StatusFailed).
		Updates(map[string]any{
			"status":          StatusPending,
			"attempts":        0,
			"next_attempt_at": s.now(),
			"updated_at":      s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
