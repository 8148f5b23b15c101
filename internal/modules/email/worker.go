package email

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/config"
	"shopdesk.io/app/internal/mailer"
	"shopdesk.io/app/internal/platform/metrics"
)

const (
	baseBackoff = time.Minute
	maxBackoff  = 6 * time.Hour
)

// Backoff is the delay after a failed attempt, attempts being the number of
// failures so far: 1m, 2m, 4m ... capped at six hours.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		return baseBackoff
	}
	d := baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Worker drains the outbox through a mailer.Service.
type Worker struct {
	db          *gorm.DB
	mailer      mailer.Service
	from        string
	fromName    string
	interval    time.Duration
	batchSize   int
	maxAttempts int
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

func NewWorker(db *gorm.DB, m mailer.Service, cfg config.EmailConfig, mt *metrics.Metrics, l *slog.Logger) *Worker {
	w := &Worker{
		db:          db,
		mailer:      m,
		from:        cfg.From,
		fromName:    cfg.FromName,
		interval:    cfg.WorkerInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		metrics:     mt,
		log:         l,
		now:         time.Now,
	}
	if w.interval <= 0 {
		w.interval = 10 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 20
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 5
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("email worker started", "interval", w.interval.String(), "batch", w.batchSize)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("email worker batch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			w.log.Info("email worker stopped")
			return nil
		case <-t.C:
		}
	}
}

// ProcessBatch sends due messages and returns how many were delivered.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	var due []Outbox
	err := w.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", StatusPending, w.now()).
		Order("next_attempt_at ASC").
		Limit(w.batchSize).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := w.deliver(ctx, m)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) deliver(ctx context.Context, m Outbox) (bool, error) {
	sendErr := w.mailer.Send(ctx, mailer.Email{
		From:     w.from,
		FromName: w.fromName,
		To:       []string{m.To},
		Subject:  m.Subject,
		TextBody: m.TextBody,
		HTMLBody: m.HTMLBody,
		Headers:  map[string]string{"X-Outbox-ID": m.ID},
	})
	now := w.now()

	// attempts guards against a second worker that picked the same row
	q := w.db.WithContext(ctx).Model(&Outbox{}).
		Where("id = ? AND status = ? AND attempts = ?", m.ID, StatusPending, m.Attempts)

	if sendErr == nil {
		err := q.Updates(map[string]any{
			"status":     StatusSent,
			"attempts":   m.Attempts + 1,
			"sent_at":    now,
			"last_error": nil,
			"updated_at": now,
		}).Error
		if err != nil {
			return false, err
		}
		w.metrics.EmailSent(StatusSent)
		w.log.Info("email sent", "outbox_id", m.ID, "template", m.Template)
		return true, nil
	}

	attempts := m.Attempts + 1
	msg := sendErr.Error()
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	updates := map[string]any{
		"attempts":   attempts,
		"last_error": msg,
		"updated_at": now,
	}
	if attempts >= w.maxAttempts {
		updates["status"] = StatusFailed
		w.metrics.EmailSent(StatusFailed)
		w.log.Error("email failed permanently", "outbox_id", m.ID, "attempts", attempts, "err", sendErr)
	} else {
		updates["next_attempt_at"] = now.Add(Backoff(attempts))
		w.metrics.EmailSent("retry")
		w.log.Warn("email send failed, will retry", "outbox_id", m.ID, "attempts", attempts, "err", sendErr)
	}
	return false, q.Updates(updates).Error
}
