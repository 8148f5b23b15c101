package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/orders"
)

type RefundService struct {
	db       *gorm.DB
	provider Provider
	deps     Deps
	now      func() time.Time
}

func NewRefundService(db *gorm.DB, p Provider, d Deps) *RefundService {
	d.defaults()
	return &RefundService{db: db, provider: p, deps: d, now: time.Now}
}

type RefundOrderInput struct {
	OrderID        string
	ActorUserID    string // admin
	IdempotencyKey string
	AmountCents    int // 0 => full remaining
	Reason         string
}

type RefundOrderResult struct {
	RefundID    string `json:"refund_id"`
	Status      string `json:"status"`
	AmountCents int    `json:"amount_cents"`
	OrderStatus string `json:"order_status"`
	Idempotent  bool   `json:"idempotent"`
}

// RefundOrder refunds part or all of what is left on an order, against its
// captured payment. Pending provider refunds are finished by webhook.
func (s *RefundService) RefundOrder(ctx context.Context, in RefundOrderInput) (RefundOrderResult, error) {
	if in.OrderID == "" || in.ActorUserID == "" || in.IdempotencyKey == "" {
		return RefundOrderResult{}, ErrNotRefundable
	}
	if in.AmountCents < 0 {
		return RefundOrderResult{}, orders.ErrRefundExceedsTotal
	}

	// Phase-1: lock order + find payment + idempotency + create refund(initiated)
	var ord orders.Order
	var pay Payment
	var ref Refund

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ord, err = orders.LockTx(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		if !orders.Refundable(ord.Status) {
			return ErrNotRefundable
		}

		if err := tx.WithContext(ctx).
			Order("updated_at DESC").
			First(&pay, "order_id = ? AND status = ?", ord.ID, StatusSucceeded).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoSucceededPayment
			}
			return err
		}

		var existing Refund
		e := tx.WithContext(ctx).First(&existing, "payment_id = ? AND idempotency_key = ?", pay.ID, in.IdempotencyKey).Error
		if e == nil {
			ref = existing
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		// refunds still in flight count against what is left
		var pending struct{ N int }
		if err := tx.WithContext(ctx).Model(&Refund{}).
			Select("COALESCE(SUM(amount_cents), 0) AS n").
			Where("order_id = ? AND status = ?", ord.ID, StatusInitiated).
			Scan(&pending).Error; err != nil {
			return err
		}
		remaining := ord.Refundable() - pending.N
		if remaining <= 0 {
			return ErrNotRefundable
		}
		amount := in.AmountCents
		if amount == 0 {
			amount = remaining
		}
		if amount > remaining {
			return orders.ErrRefundExceedsTotal
		}

		now := s.now()
		var reasonPtr *string
		if r := strings.TrimSpace(in.Reason); r != "" {
			reasonPtr = &r
		}
		ref = Refund{
			ID:             uuid.NewString(),
			OrderID:        ord.ID,
			PaymentID:      pay.ID,
			Provider:       s.provider.Name(),
			Status:         StatusInitiated,
			AmountCents:    amount,
			Currency:       ord.Currency,
			IdempotencyKey: in.IdempotencyKey,
			ActorUserID:    in.ActorUserID,
			Reason:         reasonPtr,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.WithContext(ctx).Create(&ref).Error
	})
	if err != nil {
		return RefundOrderResult{}, err
	}

	if ref.Status != StatusInitiated || ref.ProviderRef != nil {
		return RefundOrderResult{RefundID: ref.ID, Status: ref.Status, AmountCents: ref.AmountCents, OrderStatus: ord.Status, Idempotent: true}, nil
	}

	// Phase-2: provider refund (outside tx)
	captureRef := ""
	if pay.CaptureRef != nil {
		captureRef = *pay.CaptureRef
	}
	resp, perr := s.provider.RefundPayment(ctx, RefundRequest{
		OrderID:        ord.ID,
		PaymentID:      pay.ID,
		CaptureRef:     captureRef,
		AmountCents:    ref.AmountCents,
		Currency:       ref.Currency,
		IdempotencyKey: ref.ID,
		Reason:         in.Reason,
	})

	// Phase-3: finalize (tx)
	status := resp.Status
	if perr != nil {
		status = StatusFailed
	}
	orderStatus := ord.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		switch status {
		case StatusSucceeded:
			o, _, err := finishRefundTx(ctx, tx, ref, resp.ProviderRef, now)
			orderStatus = o.Status
			return err
		case StatusInitiated:
			upd := map[string]any{"updated_at": now}
			if resp.ProviderRef != "" {
				upd["provider_ref"] = resp.ProviderRef
			}
			return tx.WithContext(ctx).Model(&Refund{}).Where("id = ?", ref.ID).Updates(upd).Error
		default:
			msg := "refund failed"
			if perr != nil {
				msg = perr.Error()
			}
			upd := map[string]any{"status": StatusFailed, "error_message": truncate(msg, 250), "updated_at": now}
			if resp.ProviderRef != "" {
				upd["provider_ref"] = resp.ProviderRef
			}
			return tx.WithContext(ctx).Model(&Refund{}).Where("id = ?", ref.ID).Updates(upd).Error
		}
	})
	if err != nil {
		return RefundOrderResult{}, err
	}

	syncMirror(ctx, s.deps, ord.ID)
	res := RefundOrderResult{RefundID: ref.ID, Status: status, AmountCents: ref.AmountCents, OrderStatus: orderStatus}
	if perr != nil {
		s.deps.Log.Error("refund failed", "order_id", ord.ID, "refund_id", ref.ID, "err", perr)
		return res, fmt.Errorf("%w: %v", ErrProvider, perr)
	}
	s.deps.Log.Info("refund recorded", "order_id", ord.ID, "refund_id", ref.ID, "status", status, "amount_cents", ref.AmountCents)
	return res, nil
}
