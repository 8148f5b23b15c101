package orders

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/docstore"
	"shopdesk.io/app/internal/modules/checkout"
)

// Mirror keeps the document store copy of an order current. Failures are
// logged by callers and never fail the request.
type Mirror interface {
	Sync(ctx context.Context, orderID string) error
	Remove(ctx context.Context, orderID string) error
}

type nopMirror struct{}

func (nopMirror) Sync(context.Context, string) error   { return nil }
func (nopMirror) Remove(context.Context, string) error { return nil }

func syncMirror(ctx context.Context, m Mirror, l *slog.Logger, orderID string) {
	if err := m.Sync(ctx, orderID); err != nil && l != nil {
		l.Warn("order document sync failed", "order_id", orderID, "err", err)
	}
}

// DocumentSyncer rebuilds the order document from the relational rows.
type DocumentSyncer struct {
	db    *gorm.DB
	repo  *Repo
	store docstore.OrderDocuments
	now   func() time.Time
}

func NewDocumentSyncer(db *gorm.DB, store docstore.OrderDocuments) *DocumentSyncer {
	return &DocumentSyncer{db: db, repo: NewRepo(db), store: store, now: time.Now}
}

func (s *DocumentSyncer) Store() docstore.OrderDocuments { return s.store }

func (s *DocumentSyncer) Sync(ctx context.Context, orderID string) error {
	doc, err := s.Build(ctx, orderID)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, doc)
}

func (s *DocumentSyncer) Remove(ctx context.Context, orderID string) error {
	return s.store.Delete(ctx, orderID)
}

// Get reads the stored copy of an order.
func (s *DocumentSyncer) Get(ctx context.Context, orderID string) (docstore.OrderDocument, error) {
	return s.store.Get(ctx, orderID)
}

// paymentRow reads the payments table without importing the payments module.
type paymentRow struct {
	ID          string
	Provider    string
	ProviderRef *string
	CaptureRef  *string
	Status      string
	AmountCents int
	Currency    string
	PayerEmail  *string
	CreatedAt   time.Time
}

func (s *DocumentSyncer) Build(ctx context.Context, orderID string) (docstore.OrderDocument, error) {
	o, items, err := s.repo.GetWithItems(ctx, orderID)
	if err != nil {
		return docstore.OrderDocument{}, err
	}
	events, err := s.repo.Events(ctx, orderID)
	if err != nil {
		return docstore.OrderDocument{}, err
	}
	var rows []paymentRow
	if err := s.db.WithContext(ctx).Table("payments").
		Select("id, provider, provider_ref, capture_ref, status, amount_cents, currency, payer_email, created_at").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(&rows).Error; err != nil {
		return docstore.OrderDocument{}, err
	}
	pays := make([]docstore.Payment, 0, len(rows))
	for _, r := range rows {
		pays = append(pays, docstore.Payment{
			ID:          r.ID,
			Provider:    r.Provider,
			ProviderRef: deref(r.ProviderRef),
			CaptureRef:  deref(r.CaptureRef),
			Status:      r.Status,
			AmountCents: r.AmountCents,
			Currency:    r.Currency,
			PayerEmail:  deref(r.PayerEmail),
			CreatedAt:   r.CreatedAt,
		})
	}
	doc := BuildDocument(o, items, events, pays)
	doc.SyncedAt = s.now().UTC()
	return doc, nil
}

// BuildDocument denormalizes an order into its document form.
func BuildDocument(o Order, items []OrderItem, events []OrderEvent, payments []docstore.Payment) docstore.OrderDocument {
	doc := docstore.OrderDocument{
		ID:              o.ID,
		Status:          o.Status,
		Currency:        o.Currency,
		UserID:          deref(o.UserID),
		CustomerID:      deref(o.CustomerID),
		Email:           o.Email,
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: docAddress(o.ShippingAddress()),
		BillingAddress:  docAddress(o.BillingAddress()),
		Items:           make([]docstore.Item, 0, len(items)),
		Totals: docstore.Totals{
			SubtotalCents: o.SubtotalCents,
			ShippingCents: o.ShippingCents,
			TaxCents:      o.TaxCents,
			DiscountCents: o.DiscountCents,
			TotalCents:    o.TotalCents,
			RefundedCents: o.RefundedCents,
		},
		Payments:  payments,
		Events:    make([]docstore.Event, 0, len(events)),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if doc.Payments == nil {
		doc.Payments = []docstore.Payment{}
	}
	for _, it := range items {
		doc.Items = append(doc.Items, docstore.Item{
			VariantID:      it.VariantID,
			ProductName:    it.ProductName,
			ProductSlug:    it.ProductSlug,
			SKU:            it.SKU,
			Options:        map[string]any(it.Options),
			ImageURL:       it.ImageURL,
			Qty:            it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: it.LineTotalCents,
		})
	}
	for _, ev := range events {
		doc.Events = append(doc.Events, docstore.Event{
			Action: ev.Action,
			From:   ev.FromStatus,
			To:     ev.ToStatus,
			Note:   deref(ev.Note),
			At:     ev.CreatedAt,
		})
	}
	return doc
}

func docAddress(a checkout.Address) docstore.Address {
	return docstore.Address{
		FullName:   a.FullName,
		Address1:   a.Address1,
		Address2:   a.Address2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
