package orders

import "context"

// Notifier sends customer emails for order milestones.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order, items []OrderItem) error
	PaymentReceived(ctx context.Context, o Order) error
	OrderShipped(ctx context.Context, o Order) error
}

type NopNotifier struct{}

func (NopNotifier) OrderPlaced(context.Context, Order, []OrderItem) error { return nil }
func (NopNotifier) PaymentReceived(context.Context, Order) error          { return nil }
func (NopNotifier) OrderShipped(context.Context, Order) error             { return nil }
