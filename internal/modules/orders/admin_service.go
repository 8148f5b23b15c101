package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/platform/logging"
)

type AdminService struct {
	db       *gorm.DB
	repo     *Repo
	mirror   Mirror
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewAdminService(db *gorm.DB, mirror Mirror, notifier Notifier, l *slog.Logger) *AdminService {
	if mirror == nil {
		mirror = nopMirror{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if l == nil {
		l = logging.Discard()
	}
	return &AdminService{db: db, repo: NewRepo(db), mirror: mirror, notifier: notifier, log: l, now: time.Now}
}

func (s *AdminService) Repo() *Repo { return s.repo }

type TransitionInput struct {
	OrderID     string
	ActorUserID string // admin user id
	Action      string // ship|deliver|cancel
	Note        string
}

// Transition applies an admin action. Cancelling puts the reserved stock
// back and closes unfinished payment attempts in the same transaction.
func (s *AdminService) Transition(ctx context.Context, in TransitionInput) (Order, error) {
	if in.OrderID == "" || in.ActorUserID == "" || in.Action == "" {
		return Order{}, ErrNotActionable
	}

	var out Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order

		// row lock
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "id = ?", in.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		from := o.Status
		to, err := NextStatus(from, in.Action)
		if err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{
			"status":     to,
			"updated_at": now,
		}
		switch to {
		case StatusShipped:
			updates["shipped_at"] = now
		case StatusDelivered:
			updates["delivered_at"] = now
		case StatusCancelled:
			updates["cancelled_at"] = now
			if err := closeOpenPayments(ctx, tx, o.ID, now); err != nil {
				return err
			}
			if err := restoreStock(ctx, tx, o.ID); err != nil {
				return err
			}
		}

		res := tx.WithContext(ctx).
			Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, from). // optimistic guard
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidTransition
		}

		if err := addEventTx(ctx, tx, o.ID, in.ActorUserID, in.Action, from, to, in.Note, now); err != nil {
			return err
		}
		return tx.WithContext(ctx).First(&out, "id = ?", o.ID).Error
	})
	if err != nil {
		return Order{}, err
	}

	syncMirror(ctx, s.mirror, s.log, out.ID)
	if out.Status == StatusShipped {
		if err := s.notifier.OrderShipped(ctx, out); err != nil {
			s.log.Warn("order shipped notification failed", "order_id", out.ID, "err", err)
		}
	}
	return out, nil
}

// NextStatus is the admin part of the order state machine. Payment and
// refund transitions are driven by the payments module.
func NextStatus(from, action string) (string, error) {
	switch action {
	case ActionCancel:
		if from == StatusCreated {
			return StatusCancelled, nil
		}
	case ActionShip:
		if from == StatusPaid {
			return StatusShipped, nil
		}
	case ActionDeliver:
		if from == StatusShipped {
			return StatusDelivered, nil
		}
	}
	return "", ErrInvalidTransition
}

// closeOpenPayments cancels checkouts the buyer has not approved yet, so a
// late approval cannot be captured. A settling capture blocks the cancel.
func closeOpenPayments(ctx context.Context, tx *gorm.DB, orderID string, now time.Time) error {
	var pending int64
	if err := tx.WithContext(ctx).Table("payments").
		Where("order_id = ? AND status = ?", orderID, "pending").
		Count(&pending).Error; err != nil {
		return err
	}
	if pending > 0 {
		return ErrPaymentPending
	}
	return tx.WithContext(ctx).Table("payments").
		Where("order_id = ? AND status IN ?", orderID, []string{"initiated", "requires_action"}).
		Updates(map[string]any{"status": "cancelled", "updated_at": now}).Error
}

func restoreStock(ctx context.Context, tx *gorm.DB, orderID string) error {
	var items []OrderItem
	if err := tx.WithContext(ctx).Find(&items, "order_id = ?", orderID).Error; err != nil {
		return err
	}
	lines := make([]checkout.StockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, checkout.StockLine{VariantID: it.VariantID, Qty: it.Quantity})
	}
	return checkout.RestoreStockInTx(ctx, tx, lines)
}

func addEventTx(ctx context.Context, tx *gorm.DB, orderID, actor, action, from, to, note string, at time.Time) error {
	var notePtr *string
	if n := strings.TrimSpace(note); n != "" {
		notePtr = &n
	}
	ev := OrderEvent{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		ActorUserID: actor,
		Action:      action,
		FromStatus:  from,
		ToStatus:    to,
		Note:        notePtr,
		CreatedAt:   at,
	}
	return tx.WithContext(ctx).Create(&ev).Error
}

// Delete removes an order that never took money. Unpaid created orders give
// their stock back first.
func (s *AdminService) Delete(ctx context.Context, orderID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		switch o.Status {
		case StatusCreated:
			if err := restoreStock(ctx, tx, o.ID); err != nil {
				return err
			}
		case StatusCancelled:
		default:
			return ErrNotDeletable
		}

		for _, table := range []string{"refunds", "payments"} {
			if err := tx.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE order_id = ?", o.ID).Error; err != nil {
				return err
			}
		}
		for _, m := range []any{&FinancialEntry{}, &OrderEvent{}, &OrderItem{}} {
			if err := tx.WithContext(ctx).Where("order_id = ?", o.ID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Delete(&Order{}, "id = ?", o.ID).Error
	})
	if err != nil {
		return err
	}
	if err := s.mirror.Remove(ctx, orderID); err != nil {
		s.log.Warn("order document delete failed", "order_id", orderID, "err", err)
	}
	return nil
}
