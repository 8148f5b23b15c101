package orders

import "errors"

var (
	ErrNotFound                 = errors.New("order not found")
	ErrCartEmpty                = errors.New("cart is empty")
	ErrCurrencyMismatch         = errors.New("currency mismatch in cart")
	ErrProductUnavailable       = errors.New("product unavailable")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrEmailRequired            = errors.New("email is required")
	ErrIdempotencyConflict      = errors.New("idempotency key already used")
	ErrInvalidTransition        = errors.New("invalid order status transition")
	ErrNotActionable            = errors.New("order not actionable")
	ErrNotDeletable             = errors.New("only created or cancelled orders can be deleted")
	ErrRefundExceedsTotal       = errors.New("refund exceeds the refundable amount")
	ErrPaymentPending           = errors.New("a payment for this order is settling")
)
