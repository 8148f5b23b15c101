package view

import (
	"encoding/json"
	"time"
)

type OrderItem struct {
	ProductID   string         `json:"product_id"`
	ProductName string         `json:"product_name"`
	ProductSlug string         `json:"product_slug"`
	VariantID   string         `json:"variant_id"`
	SKU         string         `json:"sku"`
	Options     map[string]any `json:"options"`
	ImageURL    string         `json:"image_url,omitempty"`
	Qty         int            `json:"qty"`
	PriceEach   string         `json:"price_each"`
	LineTotal   string         `json:"line_total"`
	UnitCents   int            `json:"unit_price_cents"`
	LineCents   int            `json:"line_total_cents"`
}

type OrderDetail struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Email           string          `json:"email"`
	Guest           bool            `json:"guest"`
	ShippingMethod  string          `json:"shipping_method"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	BillingAddress  json.RawMessage `json:"billing_address"`
	Totals          Totals          `json:"totals"`
	RefundedCents   int             `json:"refunded_cents"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}
