package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/platform/database"
)

type WebhookService struct {
	db   *gorm.DB
	deps Deps
	now  func() time.Time
}

func NewWebhookService(db *gorm.DB, d Deps) *WebhookService {
	d.defaults()
	return &WebhookService{db: db, deps: d, now: time.Now}
}

// Handle stores the event once per (provider, event id) and applies it.
// A delivery whose earlier attempt failed is applied again; one that was
// processed is acknowledged without side effects. An apply error is
// recorded on the event and returned so the provider retries.
func (s *WebhookService) Handle(ctx context.Context, providerName string, ev WebhookEvent, rawBody []byte) error {
	log := s.deps.Log.With("provider", providerName, "event_id", ev.EventID, "type", ev.Type)

	payload := datatypes.JSON(rawBody)
	if !json.Valid(rawBody) {
		payload = datatypes.JSON(`{}`)
	}
	pe := ProviderEvent{
		ID:          uuid.NewString(),
		Provider:    providerName,
		EventID:     ev.EventID,
		EventType:   ev.Type,
		PayloadJSON: payload,
		ReceivedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&pe).Error; err != nil {
		if !database.IsDuplicateKey(err) {
			log.Error("failed to persist provider event", "err", err)
			return err
		}
		var prev ProviderEvent
		if err := s.db.WithContext(ctx).First(&prev, "provider = ? AND event_id = ?", providerName, ev.EventID).Error; err != nil {
			return err
		}
		if prev.ProcessedAt != nil {
			log.Info("webhook event deduplicated")
			return nil
		}
		pe = prev
	}

	var fx effects
	applyErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		fx, err = s.apply(ctx, tx, providerName, ev)
		if err != nil {
			return err
		}
		processed := s.now()
		return tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error
	})
	if applyErr != nil {
		msg := truncate(applyErr.Error(), 250)
		if err := s.db.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Update("process_error", msg).Error; err != nil {
			log.Error("failed to record webhook error", "err", err)
		}
		log.Error("webhook event apply failed", "err", msg)
		return applyErr
	}

	if fx.paid != nil {
		s.deps.Metrics.PaymentCaptured(providerName, StatusSucceeded)
		if err := s.deps.Notifier.PaymentReceived(ctx, *fx.paid); err != nil {
			log.Warn("payment received notification failed", "err", err)
		}
	}
	if fx.orderID != "" {
		syncMirror(ctx, s.deps, fx.orderID)
	}
	log.Info("webhook event processed")
	return nil
}

// effects are the post-commit side effects of an applied event.
type effects struct {
	orderID string
	paid    *orders.Order
}

func (s *WebhookService) apply(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) (effects, error) {
	now := s.now()
	switch ev.Type {
	case EventIgnored:
		return effects{}, nil

	case EventPaymentSucceeded:
		p, err := s.findPayment(ctx, tx, provider, ev)
		if err != nil {
			return effects{}, err
		}
		captured := CaptureResponse{CaptureRef: ev.CaptureRef, Status: StatusSucceeded}
		o, err := orders.LockTx(ctx, tx, p.OrderID)
		if err != nil {
			return effects{}, err
		}
		if o.Status != orders.StatusCreated && p.Status != StatusSucceeded {
			s.deps.Log.Error("payment captured for an order that is no longer payable; refund it at the provider",
				"order_id", o.ID, "payment_id", p.ID, "capture_ref", ev.CaptureRef)
			return effects{orderID: p.OrderID}, recordStrayCaptureTx(ctx, tx, p, captured, now)
		}
		done, err := markSucceededTx(ctx, tx, p, captured, now)
		if err != nil {
			return effects{}, err
		}
		fx := effects{orderID: p.OrderID}
		if done.Changed {
			fx.paid = &done.Order
		}
		return fx, nil

	case EventPaymentFailed:
		p, err := s.findPayment(ctx, tx, provider, ev)
		if err != nil {
			return effects{}, err
		}
		return effects{orderID: p.OrderID}, markFailedTx(ctx, tx, p, "provider webhook: failed", now)

	case EventRefundSucceeded, EventRefundFailed:
		if ev.RefundRef == "" {
			return effects{}, errors.New("missing refund_ref")
		}
		var r Refund
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&r, "provider = ? AND provider_ref = ?", provider, ev.RefundRef).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// issued outside the storefront, e.g. from the provider dashboard
			s.deps.Log.Warn("webhook refund not found, ignoring", "refund_ref", ev.RefundRef, "payment_ref", ev.PaymentRef)
			return effects{}, nil
		}
		if err != nil {
			return effects{}, err
		}
		if ev.Type == EventRefundSucceeded {
			_, _, err := finishRefundTx(ctx, tx, r, "", now)
			return effects{orderID: r.OrderID}, err
		}
		if r.Status == StatusSucceeded || r.Status == StatusFailed {
			return effects{}, nil
		}
		return effects{orderID: r.OrderID}, tx.WithContext(ctx).Model(&Refund{}).Where("id = ?", r.ID).Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": "provider webhook: failed",
			"updated_at":    now,
		}).Error

	default:
		return effects{}, ErrUnknownEventType
	}
}

// findPayment matches on the checkout id, then on the capture id.
func (s *WebhookService) findPayment(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) (Payment, error) {
	if ev.PaymentRef != "" {
		p, err := lockPaymentByRef(ctx, tx, provider, ev.PaymentRef)
		if !errors.Is(err, ErrPaymentNotFound) {
			return p, err
		}
	}
	if ev.CaptureRef != "" {
		var p Payment
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "provider = ? AND capture_ref = ?", provider, ev.CaptureRef).Error
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, err
		}
	}
	return Payment{}, ErrPaymentNotFound
}
