package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/modules/orders"
)

func lockPaymentByRef(ctx context.Context, tx *gorm.DB, provider, ref string) (Payment, error) {
	var p Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("created_at DESC").
		First(&p, "provider = ? AND provider_ref = ?", provider, ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

type capturedPayment struct {
	Payment Payment
	Order   orders.Order
	// Changed is false when the payment had already been recorded.
	Changed bool
}

// markSucceededTx records a capture and moves the order to paid. Used by
// both checkout flows and by the capture webhook, whichever arrives first.
func markSucceededTx(ctx context.Context, tx *gorm.DB, p Payment, captured CaptureResponse, now time.Time) (capturedPayment, error) {
	if p.Status == StatusSucceeded {
		o, err := orders.LockTx(ctx, tx, p.OrderID)
		return capturedPayment{Payment: p, Order: o}, err
	}

	updates := captureUpdates(&p, captured, now)
	updates["status"] = StatusSucceeded
	if err := tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return capturedPayment{}, err
	}
	p.Status = StatusSucceeded

	o, _, err := orders.ApplyPaymentTx(ctx, tx, orders.PaymentApplied{
		OrderID:     p.OrderID,
		PaymentID:   p.ID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		At:          now,
	})
	if err != nil {
		return capturedPayment{}, err
	}
	return capturedPayment{Payment: p, Order: o, Changed: true}, nil
}

// markPendingTx stores a capture the provider has yet to settle. The order
// stays created until the capture webhook completes or denies it.
func markPendingTx(ctx context.Context, tx *gorm.DB, p Payment, captured CaptureResponse, o orders.Order, now time.Time) (capturedPayment, error) {
	if p.Status == StatusSucceeded || p.Status == StatusPending {
		return capturedPayment{Payment: p, Order: o}, nil
	}
	updates := captureUpdates(&p, captured, now)
	updates["status"] = StatusPending
	if err := tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return capturedPayment{}, err
	}
	p.Status = StatusPending
	return capturedPayment{Payment: p, Order: o}, nil
}

// recordStrayCaptureTx keeps the trace of money taken for an order that can
// no longer be paid, so it can be refunded at the provider.
func recordStrayCaptureTx(ctx context.Context, tx *gorm.DB, p Payment, captured CaptureResponse, now time.Time) error {
	updates := captureUpdates(&p, captured, now)
	updates["status"] = StatusSucceeded
	updates["error_message"] = "captured after the order left created"
	return tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error
}

func captureUpdates(p *Payment, captured CaptureResponse, now time.Time) map[string]any {
	updates := map[string]any{"error_message": nil, "updated_at": now}
	if captured.CaptureRef != "" {
		updates["capture_ref"] = captured.CaptureRef
		p.CaptureRef = &captured.CaptureRef
	}
	if captured.PayerEmail != "" {
		updates["payer_email"] = captured.PayerEmail
		p.PayerEmail = &captured.PayerEmail
	}
	if captured.PayerID != "" {
		updates["payer_id"] = captured.PayerID
		p.PayerID = &captured.PayerID
	}
	return updates
}

func markFailedTx(ctx context.Context, tx *gorm.DB, p Payment, msg string, now time.Time) error {
	if p.Status == StatusSucceeded || p.Status == StatusFailed {
		return nil
	}
	return tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
		"status":        StatusFailed,
		"error_message": truncate(msg, 250),
		"updated_at":    now,
	}).Error
}

// finishRefundTx marks a refund succeeded and books it on the order.
func finishRefundTx(ctx context.Context, tx *gorm.DB, r Refund, providerRef string, now time.Time) (orders.Order, bool, error) {
	var cur Refund
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cur, "id = ?", r.ID).Error; err != nil {
		return orders.Order{}, false, err
	}
	if cur.Status == StatusSucceeded {
		o, err := orders.LockTx(ctx, tx, cur.OrderID)
		return o, false, err
	}

	upd := map[string]any{"status": StatusSucceeded, "error_message": nil, "updated_at": now}
	if providerRef != "" {
		upd["provider_ref"] = providerRef
	}
	if err := tx.WithContext(ctx).Model(&Refund{}).Where("id = ?", cur.ID).Updates(upd).Error; err != nil {
		return orders.Order{}, false, err
	}

	note := ""
	if cur.Reason != nil {
		note = *cur.Reason
	}
	o, err := orders.ApplyRefundTx(ctx, tx, orders.RefundApplied{
		OrderID:     cur.OrderID,
		RefundID:    cur.ID,
		ActorUserID: cur.ActorUserID,
		AmountCents: cur.AmountCents,
		Currency:    cur.Currency,
		Note:        note,
		At:          now,
	})
	if err != nil {
		return orders.Order{}, false, err
	}
	return o, true, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func strPtr(s string) *string { return &s }
