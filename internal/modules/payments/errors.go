package payments

import "errors"

var (
	ErrOrderNotPayable     = errors.New("order not payable")
	ErrForbidden           = errors.New("forbidden")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrNotCapturable       = errors.New("payment cannot be captured")
	ErrProvider            = errors.New("payment provider error")
	ErrNoSucceededPayment  = errors.New("no succeeded payment found")
	ErrNotRefundable       = errors.New("order not refundable")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
	ErrUnknownEventType    = errors.New("unknown webhook event type")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
)
