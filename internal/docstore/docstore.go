// Package docstore mirrors each order, as one self-contained document, into
// a document database for reporting and support tooling. The relational
// database stays the system of record.
package docstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	ErrDisabled = errors.New("docstore: not configured")
)

type Address struct {
	FullName   string `bson:"full_name" json:"full_name"`
	Address1   string `bson:"address1" json:"address1"`
	Address2   string `bson:"address2,omitempty" json:"address2,omitempty"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type Item struct {
	VariantID      string         `bson:"variant_id" json:"variant_id"`
	ProductName    string         `bson:"product_name" json:"product_name"`
	ProductSlug    string         `bson:"product_slug" json:"product_slug"`
	SKU            string         `bson:"sku" json:"sku"`
	Options        map[string]any `bson:"options,omitempty" json:"options,omitempty"`
	ImageURL       string         `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Qty            int            `bson:"qty" json:"qty"`
	UnitPriceCents int            `bson:"unit_price_cents" json:"unit_price_cents"`
	LineTotalCents int            `bson:"line_total_cents" json:"line_total_cents"`
}

type Totals struct {
	SubtotalCents int `bson:"subtotal_cents" json:"subtotal_cents"`
	ShippingCents int `bson:"shipping_cents" json:"shipping_cents"`
	TaxCents      int `bson:"tax_cents" json:"tax_cents"`
	DiscountCents int `bson:"discount_cents" json:"discount_cents"`
	TotalCents    int `bson:"total_cents" json:"total_cents"`
	RefundedCents int `bson:"refunded_cents" json:"refunded_cents"`
}

type Payment struct {
	ID          string    `bson:"id" json:"id"`
	Provider    string    `bson:"provider" json:"provider"`
	ProviderRef string    `bson:"provider_ref,omitempty" json:"provider_ref,omitempty"`
	CaptureRef  string    `bson:"capture_ref,omitempty" json:"capture_ref,omitempty"`
	Status      string    `bson:"status" json:"status"`
	AmountCents int       `bson:"amount_cents" json:"amount_cents"`
	Currency    string    `bson:"currency" json:"currency"`
	PayerEmail  string    `bson:"payer_email,omitempty" json:"payer_email,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type Event struct {
	Action string    `bson:"action" json:"action"`
	From   string    `bson:"from" json:"from"`
	To     string    `bson:"to" json:"to"`
	Note   string    `bson:"note,omitempty" json:"note,omitempty"`
	At     time.Time `bson:"at" json:"at"`
}

// OrderDocument is the denormalized order: header, lines, addresses,
// payments and totals in one record keyed by the order id.
type OrderDocument struct {
	ID              string    `bson:"_id" json:"id"`
	Status          string    `bson:"status" json:"status"`
	Currency        string    `bson:"currency" json:"currency"`
	UserID          string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CustomerID      string    `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	Email           string    `bson:"email" json:"email"`
	ShippingMethod  string    `bson:"shipping_method" json:"shipping_method"`
	PaymentMethod   string    `bson:"payment_method" json:"payment_method"`
	ShippingAddress Address   `bson:"shipping_address" json:"shipping_address"`
	BillingAddress  Address   `bson:"billing_address" json:"billing_address"`
	Items           []Item    `bson:"items" json:"items"`
	Totals          Totals    `bson:"totals" json:"totals"`
	Payments        []Payment `bson:"payments" json:"payments"`
	Events          []Event   `bson:"events" json:"events"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
	SyncedAt        time.Time `bson:"synced_at" json:"synced_at"`
}

type OrderDocuments interface {
	Put(ctx context.Context, doc OrderDocument) error
	Get(ctx context.Context, id string) (OrderDocument, error)
	Delete(ctx context.Context, id string) error
}

// Nop is used when no document database is configured.
type Nop struct{}

func (Nop) Put(context.Context, OrderDocument) error { return nil }
func (Nop) Get(context.Context, string) (OrderDocument, error) {
	return OrderDocument{}, ErrDisabled
}
func (Nop) Delete(context.Context, string) error { return nil }

// Memory keeps documents in process; used by tests and single-node dev runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]OrderDocument
}

func NewMemory() *Memory { return &Memory{docs: map[string]OrderDocument{}} }

func (m *Memory) Put(_ context.Context, doc OrderDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (OrderDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return OrderDocument{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
