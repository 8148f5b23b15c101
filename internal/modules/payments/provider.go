package payments

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"shopdesk.io/app/internal/config"
)

type CreatePaymentRequest struct {
	OrderID        string
	AmountCents    int
	SubtotalCents  int
	ShippingCents  int
	TaxCents       int
	Currency       string
	IdempotencyKey string
	ReturnURL      string
	CancelURL      string
}

type CreatePaymentResponse struct {
	ProviderRef string
	Status      string // requires_action|succeeded|failed
	ApproveURL  string
}

type CaptureRequest struct {
	ProviderRef    string
	IdempotencyKey string
}

type CaptureResponse struct {
	CaptureRef  string
	Status      string // succeeded|pending|failed
	AmountCents int
	Currency    string
	PayerEmail  string
	PayerID     string
}

type RefundRequest struct {
	OrderID        string
	PaymentID      string
	CaptureRef     string
	AmountCents    int
	Currency       string
	IdempotencyKey string
	Reason         string
}

type RefundResponse struct {
	ProviderRef string
	Status      string // initiated|succeeded|failed
}

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventRefundSucceeded  = "refund.succeeded"
	EventRefundFailed     = "refund.failed"
	EventIgnored          = "ignored"
)

type WebhookEvent struct {
	EventID string
	Type    string

	PaymentRef string // provider checkout id
	CaptureRef string
	RefundRef  string

	AmountCents int
	Currency    string
}

type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResponse, error)
	CapturePayment(ctx context.Context, req CaptureRequest) (CaptureResponse, error)
	RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error)

	// VerifyAndParseWebhook checks the delivery signature and maps the
	// payload onto a WebhookEvent.
	VerifyAndParseWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error)
}

// NewProvider builds the configured provider.
func NewProvider(cfg config.PaymentsConfig) (Provider, error) {
	switch cfg.Provider {
	case "paypal":
		return NewPayPal(cfg.PayPal)
	case "mock":
		return NewMock(cfg.Mock.WebhookSecret), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// FormatAmount renders cents as a decimal string ("12.34"). Only two-decimal
// currencies reach it; config validation refuses the others.
func FormatAmount(cents int) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmount is the inverse of FormatAmount; one decimal digit is accepted.
func ParseAmount(s string) (int, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.Atoi(whole)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	f, err := strconv.Atoi(frac)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return v, nil
}
