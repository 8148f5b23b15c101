package email

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"shopdesk.io/app/internal/modules/orders"
)

// OrderNotifier queues the customer emails for order milestones.
type OrderNotifier struct {
	outbox        *OutboxService
	storefrontURL string
	fromName      string
}

var _ orders.Notifier = (*OrderNotifier)(nil)

func NewOrderNotifier(outbox *OutboxService, storefrontURL, fromName string) *OrderNotifier {
	return &OrderNotifier{
		outbox:        outbox,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
		fromName:      fromName,
	}
}

type itemData struct {
	Name           string
	Options        string
	Quantity       int
	LineTotalCents int
}

type orderData struct {
	OrderID        string
	Name           string
	FromName       string
	Currency       string
	SubtotalCents  int
	ShippingCents  int
	TaxCents       int
	TotalCents     int
	ShippingMethod string
	Address        string
	OrderURL       string
	Items          []itemData
}

func (n *OrderNotifier) data(o orders.Order) orderData {
	addr := o.ShippingAddress()
	name := addr.FullName
	if name == "" {
		name = o.Email
	}
	d := orderData{
		OrderID:        o.ID,
		Name:           name,
		FromName:       n.fromName,
		Currency:       o.Currency,
		SubtotalCents:  o.SubtotalCents,
		ShippingCents:  o.ShippingCents,
		TaxCents:       o.TaxCents,
		TotalCents:     o.TotalCents,
		ShippingMethod: o.ShippingMethod,
		Address:        formatAddress(addr.Address1, addr.Address2, addr.PostalCode+" "+addr.City, addr.Country),
	}
	if n.storefrontURL != "" {
		d.OrderURL = fmt.Sprintf("%s/orders/%s", n.storefrontURL, o.ID)
	}
	return d
}

func formatAddress(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func optionsLabel(opts map[string]any) string {
	if len(opts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, opts[k]))
	}
	return strings.Join(parts, ", ")
}

func (n *OrderNotifier) OrderPlaced(ctx context.Context, o orders.Order, items []orders.OrderItem) error {
	d := n.data(o)
	for _, it := range items {
		d.Items = append(d.Items, itemData{
			Name:           it.ProductName,
			Options:        optionsLabel(it.Options),
			Quantity:       it.Quantity,
			LineTotalCents: it.LineTotalCents,
		})
	}
	return n.outbox.EnqueueJob(ctx, Job{To: o.Email, Template: TemplateOrderConfirmation, Payload: d})
}

func (n *OrderNotifier) PaymentReceived(ctx context.Context, o orders.Order) error {
	return n.outbox.EnqueueJob(ctx, Job{To: o.Email, Template: TemplatePaymentReceived, Payload: n.data(o)})
}

func (n *OrderNotifier) OrderShipped(ctx context.Context, o orders.Order) error {
	return n.outbox.EnqueueJob(ctx, Job{To: o.Email, Template: TemplateOrderShipped, Payload: n.data(o)})
}
