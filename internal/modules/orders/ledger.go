package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockTx loads an order with a row lock inside the caller's transaction.
func LockTx(ctx context.Context, tx *gorm.DB, orderID string) (Order, error) {
	var o Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

type PaymentApplied struct {
	OrderID     string
	PaymentID   string
	AmountCents int
	Currency    string
	At          time.Time
}

// ApplyPaymentTx moves a created order to paid and books the ledger entry.
// Replays for an order that is already past created are no-ops and report
// changed=false.
func ApplyPaymentTx(ctx context.Context, tx *gorm.DB, in PaymentApplied) (o Order, changed bool, err error) {
	o, err = LockTx(ctx, tx, in.OrderID)
	if err != nil {
		return Order{}, false, err
	}
	switch o.Status {
	case StatusCreated:
	case StatusCancelled:
		return o, false, ErrInvalidTransition
	default:
		return o, false, nil
	}

	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	res := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", o.ID, StatusCreated).
		Updates(map[string]any{"status": StatusPaid, "paid_at": at, "updated_at": at})
	if res.Error != nil {
		return Order{}, false, res.Error
	}
	if err := addEventTx(ctx, tx, o.ID, "", ActionPay, StatusCreated, StatusPaid, "", at); err != nil {
		return Order{}, false, err
	}
	if err := addEntryTx(ctx, tx, FinancialEntry{
		OrderID:     o.ID,
		Event:       EntryPaymentSucceeded,
		RefType:     "payment",
		RefID:       in.PaymentID,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		CreatedAt:   at,
	}); err != nil {
		return Order{}, false, err
	}
	o.Status, o.PaidAt, o.UpdatedAt = StatusPaid, &at, at
	return o, true, nil
}

// Refundable reports whether an order in this state may be refunded.
func Refundable(status string) bool {
	switch status {
	case StatusPaid, StatusShipped, StatusDelivered, StatusPartiallyRefunded:
		return true
	}
	return false
}

type RefundApplied struct {
	OrderID     string
	RefundID    string
	ActorUserID string
	AmountCents int
	Currency    string
	Note        string
	At          time.Time
}

// ApplyRefundTx adds a succeeded refund to the order totals. The order ends
// refunded once the whole total is returned, partially_refunded before.
func ApplyRefundTx(ctx context.Context, tx *gorm.DB, in RefundApplied) (Order, error) {
	o, err := LockTx(ctx, tx, in.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !Refundable(o.Status) {
		return Order{}, ErrInvalidTransition
	}
	if in.AmountCents <= 0 || in.AmountCents > o.Refundable() {
		return Order{}, ErrRefundExceedsTotal
	}

	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	refunded := o.RefundedCents + in.AmountCents
	to := StatusPartiallyRefunded
	if refunded >= o.TotalCents {
		to = StatusRefunded
	}
	if err := tx.WithContext(ctx).Model(&Order{}).Where("id = ?", o.ID).Updates(map[string]any{
		"status":         to,
		"refunded_cents": refunded,
		"refunded_at":    at,
		"updated_at":     at,
	}).Error; err != nil {
		return Order{}, err
	}
	if err := addEventTx(ctx, tx, o.ID, in.ActorUserID, ActionRefund, o.Status, to, in.Note, at); err != nil {
		return Order{}, err
	}
	if err := addEntryTx(ctx, tx, FinancialEntry{
		OrderID:     o.ID,
		Event:       EntryRefundSucceeded,
		RefType:     "refund",
		RefID:       in.RefundID,
		AmountCents: -in.AmountCents,
		Currency:    in.Currency,
		CreatedAt:   at,
	}); err != nil {
		return Order{}, err
	}
	o.Status, o.RefundedCents, o.RefundedAt, o.UpdatedAt = to, refunded, &at, at
	return o, nil
}

func addEntryTx(ctx context.Context, tx *gorm.DB, e FinancialEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&e).Error
}
