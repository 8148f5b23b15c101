package handlers

import (
	"encoding/json"

	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/pkg/view"
)

func ProductCardView(p products.Product) view.ProductCard {
	card := view.ProductCard{
		ID:         p.ID,
		Name:       p.Name,
		Slug:       p.Slug,
		Brand:      p.Brand,
		ImageURL:   p.PrimaryImageURL(),
		InStock:    p.InStock(),
		Featured:   p.Featured,
		Rating:     p.Rating,
		NumReviews: p.NumReviews,
	}
	if price, cur, ok := p.MinPrice(); ok {
		card.PriceCents = price
		card.Currency = cur
		card.Price = view.MoneyFromCents(price, cur)
		for _, v := range p.Variants {
			if v.PriceCents == price && v.CompareAtCents != nil {
				card.CompareAtCents = v.CompareAtCents
				break
			}
		}
	}
	return card
}

func ProductCardsView(ps []products.Product) []view.ProductCard {
	out := make([]view.ProductCard, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProductCardView(p))
	}
	return out
}

// ProductDetailView renders a product with every variant and image. Status
// is only filled for admin responses.
func ProductDetailView(p products.Product, withStatus bool) view.ProductDetail {
	d := view.ProductDetail{
		ProductCard: ProductCardView(p),
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Variants:    make([]view.ProductVariant, 0, len(p.Variants)),
		Images:      make([]view.ProductImage, 0, len(p.Images)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if withStatus {
		d.Status = p.Status
	}
	for _, v := range p.Variants {
		d.Variants = append(d.Variants, VariantView(v))
	}
	for _, im := range p.Images {
		d.Images = append(d.Images, view.ProductImage{ID: im.ID, URL: im.URL, Position: im.Position})
	}
	return d
}

func VariantView(v products.Variant) view.ProductVariant {
	opts := map[string]any(v.Options)
	if opts == nil {
		opts = map[string]any{}
	}
	return view.ProductVariant{
		ID:             v.ID,
		SKU:            v.SKU,
		Options:        opts,
		PriceCents:     v.PriceCents,
		Price:          view.MoneyFromCents(v.PriceCents, v.Currency),
		CompareAtCents: v.CompareAtCents,
		Currency:       v.Currency,
		Stock:          v.Stock,
		InStock:        v.Stock > 0,
	}
}

func TotalsView(currency string, t checkout.Totals) view.Totals {
	return view.NewTotals(currency, t.Subtotal, t.Shipping, t.Tax, t.Discount, t.Total)
}

func ShippingOptionsView(currency string, opts []checkout.ShippingOption) []view.ShippingOption {
	out := make([]view.ShippingOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, view.ShippingOption{
			Code:       o.Code,
			Label:      o.Label,
			PriceCents: o.PriceCents,
			Price:      view.MoneyFromCents(o.PriceCents, currency),
		})
	}
	return out
}

func OrderDetailView(o orders.Order, items []orders.OrderItem) view.OrderDetail {
	d := view.OrderDetail{
		ID:              o.ID,
		Status:          o.Status,
		Email:           o.Email,
		Guest:           o.IsGuest(),
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: rawJSON(o.ShippingAddressJSON),
		BillingAddress:  rawJSON(o.BillingAddressJSON),
		Totals:          view.NewTotals(o.Currency, o.SubtotalCents, o.ShippingCents, o.TaxCents, o.DiscountCents, o.TotalCents),
		RefundedCents:   o.RefundedCents,
		Items:           make([]view.OrderItem, 0, len(items)),
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
	for _, it := range items {
		opts := map[string]any(it.Options)
		if opts == nil {
			opts = map[string]any{}
		}
		d.Items = append(d.Items, view.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSlug: it.ProductSlug,
			VariantID:   it.VariantID,
			SKU:         it.SKU,
			Options:     opts,
			ImageURL:    it.ImageURL,
			Qty:         it.Quantity,
			PriceEach:   view.MoneyFromCents(it.UnitPriceCents, it.Currency),
			LineTotal:   view.MoneyFromCents(it.LineTotalCents, it.Currency),
			UnitCents:   it.UnitPriceCents,
			LineCents:   it.LineTotalCents,
		})
	}
	return d
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

// PageParams reads page and page_size from the query string.
type PageParams struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (p PageParams) Normalize(def int) (int, int) {
	page, size := p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = def
	}
	return page, size
}
