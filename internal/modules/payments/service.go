package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/metrics"
)

type Deps struct {
	Mirror   orders.Mirror
	Notifier orders.Notifier
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

func (d *Deps) defaults() {
	if d.Mirror == nil {
		d.Mirror = nopMirror{}
	}
	if d.Notifier == nil {
		d.Notifier = orders.NopNotifier{}
	}
	if d.Log == nil {
		d.Log = logging.Discard()
	}
}

type nopMirror struct{}

func (nopMirror) Sync(context.Context, string) error   { return nil }
func (nopMirror) Remove(context.Context, string) error { return nil }

type Service struct {
	db       *gorm.DB
	provider Provider
	deps     Deps
	now      func() time.Time
}

func NewService(db *gorm.DB, p Provider, d Deps) *Service {
	d.defaults()
	return &Service{db: db, provider: p, deps: d, now: time.Now}
}

func (s *Service) Provider() Provider { return s.provider }

type StartInput struct {
	OrderID        string
	ActorUserID    string // empty for guests
	IdempotencyKey string // generated when empty
	Flow           string // redirect|popup
	ReturnURL      string
	CancelURL      string
}

type StartResult struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref,omitempty"`
	ApproveURL  string `json:"approve_url,omitempty"`
	Idempotent  bool   `json:"idempotent"`
}

// StartPayment opens a provider checkout for a created order. The provider
// is called outside any transaction; the payment row brackets the call.
func (s *Service) StartPayment(ctx context.Context, in StartInput) (StartResult, error) {
	if in.OrderID == "" {
		return StartResult{}, ErrOrderNotPayable
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = uuid.NewString()
	}
	if in.Flow != FlowPopup {
		in.Flow = FlowRedirect
	}

	// Phase-1: order lock + idempotency check + payment initiated create
	var pay Payment
	var ord orders.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ord, err = orders.LockTx(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		if ord.UserID != nil && *ord.UserID != in.ActorUserID {
			return ErrForbidden
		}
		if ord.Status != orders.StatusCreated {
			return ErrOrderNotPayable
		}

		e := tx.WithContext(ctx).First(&pay, "order_id = ? AND idempotency_key = ?", ord.ID, in.IdempotencyKey).Error
		if e == nil {
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		now := s.now()
		pay = Payment{
			ID:             uuid.NewString(),
			OrderID:        ord.ID,
			Provider:       s.provider.Name(),
			Status:         StatusInitiated,
			Flow:           in.Flow,
			AmountCents:    ord.TotalCents,
			Currency:       ord.Currency,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.WithContext(ctx).Create(&pay).Error
	})
	if err != nil {
		return StartResult{}, err
	}

	// a replay of a started attempt needs no second provider order
	if pay.Status != StatusInitiated || pay.ProviderRef != nil {
		res := StartResult{OrderID: ord.ID, PaymentID: pay.ID, Status: pay.Status, Idempotent: true}
		if pay.ProviderRef != nil {
			res.ProviderRef = *pay.ProviderRef
		}
		return res, nil
	}

	// Phase-2: provider call outside the transaction
	resp, perr := s.provider.CreatePayment(ctx, CreatePaymentRequest{
		OrderID:        ord.ID,
		AmountCents:    ord.TotalCents,
		SubtotalCents:  ord.SubtotalCents,
		ShippingCents:  ord.ShippingCents,
		TaxCents:       ord.TaxCents - ord.DiscountCents,
		Currency:       ord.Currency,
		IdempotencyKey: in.IdempotencyKey,
		ReturnURL:      in.ReturnURL,
		CancelURL:      in.CancelURL,
	})

	// Phase-3: persist the outcome
	now := s.now()
	updates := map[string]any{"updated_at": now}
	if resp.ProviderRef != "" {
		updates["provider_ref"] = resp.ProviderRef
	}
	status := StatusRequiresAction
	if perr != nil {
		status = StatusFailed
		updates["error_message"] = truncate(perr.Error(), 250)
	}
	updates["status"] = status
	if err := s.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", pay.ID).Updates(updates).Error; err != nil {
		return StartResult{}, err
	}

	res := StartResult{
		OrderID:     ord.ID,
		PaymentID:   pay.ID,
		Status:      status,
		ProviderRef: resp.ProviderRef,
		ApproveURL:  resp.ApproveURL,
	}
	if perr != nil {
		s.deps.Log.Error("payment start failed", "order_id", ord.ID, "payment_id", pay.ID, "provider", s.provider.Name(), "err", perr)
		return res, fmt.Errorf("%w: %v", ErrProvider, perr)
	}
	s.deps.Log.Info("payment started", "order_id", ord.ID, "payment_id", pay.ID, "provider_ref", resp.ProviderRef, "flow", in.Flow)
	syncMirror(ctx, s.deps, ord.ID)
	return res, nil
}

type CaptureInput struct {
	ProviderRef string
	// OrderID and ActorUserID are checked on the popup flow, where the
	// browser posts to an order URL. The redirect flow only has the token.
	OrderID     string
	ActorUserID string
	CheckActor  bool
}

type CaptureResult struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	OrderStatus string `json:"order_status"`
	Idempotent  bool   `json:"idempotent"`
}

// Capture settles an approved checkout. A payment that already succeeded,
// through the other flow or a webhook, is returned unchanged. The provider
// is only asked to capture while the order is still created.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (CaptureResult, error) {
	if in.ProviderRef == "" {
		return CaptureResult{}, ErrPaymentNotFound
	}

	var pay Payment
	var ord orders.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pay, err = lockPaymentByRef(ctx, tx, s.provider.Name(), in.ProviderRef)
		if err != nil {
			return err
		}
		if in.OrderID != "" && pay.OrderID != in.OrderID {
			return ErrPaymentNotFound
		}
		ord, err = orders.LockTx(ctx, tx, pay.OrderID)
		if err != nil {
			return err
		}
		if in.CheckActor && ord.UserID != nil && *ord.UserID != in.ActorUserID {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		return CaptureResult{}, err
	}

	current := CaptureResult{OrderID: ord.ID, PaymentID: pay.ID, Status: pay.Status, OrderStatus: ord.Status}
	switch pay.Status {
	case StatusSucceeded, StatusPending:
		current.Idempotent = true
		return current, nil
	case StatusRequiresAction:
		if ord.Status != orders.StatusCreated {
			return current, ErrNotCapturable
		}
	default:
		return current, ErrNotCapturable
	}

	captured, perr := s.provider.CapturePayment(ctx, CaptureRequest{ProviderRef: in.ProviderRef, IdempotencyKey: pay.ID})
	if perr != nil {
		// transport or API failure: the buyer may retry, the row stays open
		s.deps.Log.Error("payment capture failed", "order_id", ord.ID, "payment_id", pay.ID, "err", perr)
		s.deps.Metrics.PaymentCaptured(s.provider.Name(), "error")
		return current, fmt.Errorf("%w: %v", ErrProvider, perr)
	}

	var done capturedPayment
	stray := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		cur, err := lockPaymentByRef(ctx, tx, s.provider.Name(), in.ProviderRef)
		if err != nil {
			return err
		}
		o, err := orders.LockTx(ctx, tx, cur.OrderID)
		if err != nil {
			return err
		}
		switch {
		case captured.Status == StatusFailed:
			if err := markFailedTx(ctx, tx, cur, "capture declined", now); err != nil {
				return err
			}
			cur.Status = StatusFailed
			done = capturedPayment{Payment: cur, Order: o}
			return nil
		case o.Status != orders.StatusCreated && cur.Status != StatusSucceeded:
			// the order was cancelled while the buyer was approving
			stray = true
			return recordStrayCaptureTx(ctx, tx, cur, captured, now)
		case captured.Status == StatusPending:
			done, err = markPendingTx(ctx, tx, cur, captured, o, now)
			return err
		}
		if captured.AmountCents != 0 && captured.AmountCents != cur.AmountCents {
			s.deps.Log.Warn("captured amount differs from payment", "payment_id", cur.ID, "captured", captured.AmountCents, "expected", cur.AmountCents)
		}
		done, err = markSucceededTx(ctx, tx, cur, captured, now)
		return err
	})
	if err == nil && stray {
		s.deps.Log.Error("payment captured for an order that is no longer payable; refund it at the provider",
			"order_id", ord.ID, "payment_id", pay.ID, "capture_ref", captured.CaptureRef)
		syncMirror(ctx, s.deps, ord.ID)
		return current, ErrNotCapturable
	}
	if err != nil {
		return CaptureResult{}, err
	}

	s.afterCapture(ctx, done)
	return CaptureResult{
		OrderID:     done.Order.ID,
		PaymentID:   done.Payment.ID,
		Status:      done.Payment.Status,
		OrderStatus: done.Order.Status,
		Idempotent:  done.Payment.Status == StatusSucceeded && !done.Changed,
	}, nil
}

func (s *Service) afterCapture(ctx context.Context, done capturedPayment) {
	s.deps.Metrics.PaymentCaptured(s.provider.Name(), done.Payment.Status)
	if !done.Changed {
		if done.Payment.Status == StatusFailed || done.Payment.Status == StatusPending {
			syncMirror(ctx, s.deps, done.Order.ID)
		}
		return
	}
	s.deps.Log.Info("payment captured", "order_id", done.Order.ID, "payment_id", done.Payment.ID)
	if err := s.deps.Notifier.PaymentReceived(ctx, done.Order); err != nil {
		s.deps.Log.Warn("payment received notification failed", "order_id", done.Order.ID, "err", err)
	}
	syncMirror(ctx, s.deps, done.Order.ID)
}

// Cancel records that the buyer backed out of the provider checkout and
// returns the order id so the caller can send them back to it.
func (s *Service) Cancel(ctx context.Context, providerRef string) (string, error) {
	var orderID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockPaymentByRef(ctx, tx, s.provider.Name(), providerRef)
		if err != nil {
			return err
		}
		orderID = p.OrderID
		if p.Status != StatusInitiated && p.Status != StatusRequiresAction {
			return nil
		}
		return tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
			"status":     StatusCancelled,
			"updated_at": s.now(),
		}).Error
	})
	if err == nil {
		syncMirror(ctx, s.deps, orderID)
	}
	return orderID, err
}

// ListForOrder returns the payments and refunds of an order, newest first.
func (s *Service) ListForOrder(ctx context.Context, orderID string) ([]Payment, []Refund, error) {
	var pays []Payment
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&pays, "order_id = ?", orderID).Error; err != nil {
		return nil, nil, err
	}
	var refs []Refund
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&refs, "order_id = ?", orderID).Error; err != nil {
		return nil, nil, err
	}
	return pays, refs, nil
}

func syncMirror(ctx context.Context, d Deps, orderID string) {
	if err := d.Mirror.Sync(ctx, orderID); err != nil {
		d.Log.Warn("order document sync failed", "order_id", orderID, "err", err)
	}
}
