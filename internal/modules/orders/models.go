package orders

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"shopdesk.io/app/internal/modules/checkout"
)

const (
	StatusCreated           = "created"
	StatusPaid              = "paid"
	StatusShipped           = "shipped"
	StatusDelivered         = "delivered"
	StatusCancelled         = "cancelled"
	StatusPartiallyRefunded = "partially_refunded"
	StatusRefunded          = "refunded"
)

// ValidStatus reports whether s is one of the order states.
func ValidStatus(s string) bool {
	switch s {
	case StatusCreated, StatusPaid, StatusShipped, StatusDelivered,
		StatusCancelled, StatusPartiallyRefunded, StatusRefunded:
		return true
	}
	return false
}

const (
	ActionCreate  = "create"
	ActionPay     = "pay"
	ActionShip    = "ship"
	ActionDeliver = "deliver"
	ActionCancel  = "cancel"
	ActionRefund  = "refund"
)

const PaymentMethodPayPal = "paypal"

type Order struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	UserID     *string `gorm:"size:36;index:ix_orders_user_id" json:"user_id,omitempty"`
	GuestEmail *string `gorm:"size:255;index:ix_orders_guest_email" json:"guest_email,omitempty"`
	Email      string  `gorm:"size:255;not null" json:"email"`
	CustomerID *string `gorm:"size:36;index:ix_orders_customer_id" json:"customer_id,omitempty"`
	CartID     string  `gorm:"size:36" json:"-"`

	Status   string `gorm:"size:32;not null;index:ix_orders_status" json:"status"`
	Currency string `gorm:"size:3;not null" json:"currency"`

	SubtotalCents int `gorm:"not null" json:"subtotal_cents"`
	TaxCents      int `gorm:"not null" json:"tax_cents"`
	ShippingCents int `gorm:"not null" json:"shipping_cents"`
	DiscountCents int `gorm:"not null;default:0" json:"discount_cents"`
	TotalCents    int `gorm:"not null" json:"total_cents"`
	RefundedCents int `gorm:"not null;default:0" json:"refunded_cents"`

	ShippingMethod      string         `gorm:"size:32;not null" json:"shipping_method"`
	PaymentMethod       string         `gorm:"size:32;not null" json:"payment_method"`
	ShippingAddressJSON datatypes.JSON `gorm:"column:shipping_address_json" json:"shipping_address"`
	BillingAddressJSON  datatypes.JSON `gorm:"column:billing_address_json" json:"billing_address"`

	IdempotencyKey *string `gorm:"size:64;uniqueIndex:ux_orders_idempotency_key" json:"-"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`

	CreatedAt time.Time `gorm:"index:ix_orders_created_at" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o Order) IsGuest() bool { return o.UserID == nil }

// Refundable is what is left to refund.
func (o Order) Refundable() int { return o.TotalCents - o.RefundedCents }

func (o Order) ShippingAddress() checkout.Address { return decodeAddress(o.ShippingAddressJSON) }
func (o Order) BillingAddress() checkout.Address  { return decodeAddress(o.BillingAddressJSON) }

func decodeAddress(raw datatypes.JSON) checkout.Address {
	var a checkout.Address
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &a)
	}
	return a
}

// OrderItem is a snapshot of the variant at purchase time.
type OrderItem struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	OrderID        string            `gorm:"size:36;not null;index:ix_order_items_order_id" json:"order_id"`
	VariantID      string            `gorm:"size:36;not null" json:"variant_id"`
	ProductID      string            `gorm:"size:36;not null" json:"product_id"`
	ProductName    string            `gorm:"size:255;not null" json:"product_name"`
	ProductSlug    string            `gorm:"size:255;not null" json:"product_slug"`
	SKU            string            `gorm:"column:sku;size:64;not null" json:"sku"`
	Options        datatypes.JSONMap `gorm:"column:options_json" json:"options"`
	ImageURL       string            `gorm:"size:1024" json:"image_url,omitempty"`
	UnitPriceCents int               `gorm:"not null" json:"unit_price_cents"`
	Quantity       int               `gorm:"not null" json:"quantity"`
	LineTotalCents int               `gorm:"not null" json:"line_total_cents"`
	Currency       string            `gorm:"size:3;not null" json:"currency"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderEvent is the audit trail of status changes. ActorUserID is empty for
// system events such as a webhook capture.
type OrderEvent struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID     string    `gorm:"size:36;not null;index:ix_order_events_order_id" json:"order_id"`
	ActorUserID string    `gorm:"size:36" json:"actor_user_id,omitempty"`
	Action      string    `gorm:"size:32;not null" json:"action"`
	FromStatus  string    `gorm:"size:32" json:"from_status"`
	ToStatus    string    `gorm:"size:32;not null" json:"to_status"`
	Note        *string   `gorm:"size:500" json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (OrderEvent) TableName() string { return "order_events" }

const (
	EntryPaymentSucceeded = "payment_succeeded"
	EntryRefundSucceeded  = "refund_succeeded"
)

// FinancialEntry is the money ledger. Refunds are negative. One entry per
// (event, ref) so replayed webhooks cannot book twice.
type FinancialEntry struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID     string    `gorm:"size:36;not null;index:ix_financial_entries_order_id" json:"order_id"`
	Event       string    `gorm:"size:32;not null;uniqueIndex:ux_financial_entries_ref" json:"event"`
	RefType     string    `gorm:"size:16;not null;uniqueIndex:ux_financial_entries_ref" json:"ref_type"`
	RefID       string    `gorm:"size:36;not null;uniqueIndex:ux_financial_entries_ref" json:"ref_id"`
	AmountCents int       `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"size:3;not null" json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

func (FinancialEntry) TableName() string { return "financial_entries" }

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Order{}, &OrderItem{}, &OrderEvent{}, &FinancialEntry{}}
}
