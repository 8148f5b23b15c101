package payments

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusInitiated      = "initiated"
	StatusRequiresAction = "requires_action"
	StatusPending        = "pending" // capture accepted, not yet settled
	StatusSucceeded      = "succeeded"
	StatusFailed         = "failed"
	StatusCancelled      = "cancelled"
)

const (
	FlowRedirect = "redirect"
	FlowPopup    = "popup"
)

// Payment is one attempt to collect an order total. ProviderRef is the
// provider's checkout id (the PayPal order id), CaptureRef the settled capture.
type Payment struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID        string    `gorm:"size:36;not null;index:ix_payments_order_id;uniqueIndex:ux_payments_order_key,priority:1" json:"order_id"`
	Provider       string    `gorm:"size:64;not null;index:ix_payments_provider_ref,priority:1" json:"provider"`
	ProviderRef    *string   `gorm:"size:128;index:ix_payments_provider_ref,priority:2" json:"provider_ref,omitempty"`
	CaptureRef     *string   `gorm:"size:128" json:"capture_ref,omitempty"`
	Status         string    `gorm:"size:32;not null" json:"status"`
	Flow           string    `gorm:"size:16;not null;default:redirect" json:"flow"`
	AmountCents    int       `gorm:"not null" json:"amount_cents"`
	Currency       string    `gorm:"size:3;not null" json:"currency"`
	IdempotencyKey string    `gorm:"size:64;not null;uniqueIndex:ux_payments_order_key,priority:2" json:"-"`
	PayerEmail     *string   `gorm:"size:255" json:"payer_email,omitempty"`
	PayerID        *string   `gorm:"size:64" json:"payer_id,omitempty"`
	ErrorMessage   *string   `gorm:"size:255" json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

type Refund struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string `gorm:"size:36;not null;index:ix_refunds_order_id" json:"order_id"`
	PaymentID string `gorm:"size:36;not null;uniqueIndex:ux_refunds_payment_key,priority:1" json:"payment_id"`

	Provider    string  `gorm:"size:64;not null;index:ix_refunds_provider_ref,priority:1" json:"provider"`
	ProviderRef *string `gorm:"size:128;index:ix_refunds_provider_ref,priority:2" json:"provider_ref,omitempty"`

	Status         string `gorm:"size:32;not null" json:"status"`
	AmountCents    int    `gorm:"not null" json:"amount_cents"`
	Currency       string `gorm:"size:3;not null" json:"currency"`
	IdempotencyKey string `gorm:"size:64;not null;uniqueIndex:ux_refunds_payment_key,priority:2" json:"-"`
	ActorUserID    string `gorm:"size:36" json:"actor_user_id,omitempty"`

	Reason       *string `gorm:"size:255" json:"reason,omitempty"`
	ErrorMessage *string `gorm:"size:255" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Refund) TableName() string { return "refunds" }

// ProviderEvent stores every webhook delivery once per (provider, event id).
type ProviderEvent struct {
	ID          string         `gorm:"primaryKey;size:36"`
	Provider    string         `gorm:"size:64;not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"size:128;not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"size:64;not null"`
	PayloadJSON datatypes.JSON `gorm:"not null"`

	ReceivedAt   time.Time
	ProcessedAt  *time.Time
	ProcessError *string `gorm:"size:255"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

func Models() []any {
	return []any{&Payment{}, &Refund{}, &ProviderEvent{}}
}
