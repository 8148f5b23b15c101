package view

type ShippingOption struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	PriceCents int    `json:"price_cents"`
	Price      string `json:"price"`
}

type Totals struct {
	Currency      string `json:"currency"`
	SubtotalCents int    `json:"subtotal_cents"`
	ShippingCents int    `json:"shipping_cents"`
	TaxCents      int    `json:"tax_cents"`
	DiscountCents int    `json:"discount_cents"`
	TotalCents    int    `json:"total_cents"`
	Subtotal      string `json:"subtotal"`
	Shipping      string `json:"shipping"`
	Tax           string `json:"tax"`
	Discount      string `json:"discount"`
	Total         string `json:"total"`
}

func NewTotals(currency string, subtotal, shipping, tax, discount, total int) Totals {
	return Totals{
		Currency:      currency,
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		TaxCents:      tax,
		DiscountCents: discount,
		TotalCents:    total,
		Subtotal:      MoneyFromCents(subtotal, currency),
		Shipping:      MoneyFromCents(shipping, currency),
		Tax:           MoneyFromCents(tax, currency),
		Discount:      MoneyFromCents(discount, currency),
		Total:         MoneyFromCents(total, currency),
	}
}

// CheckoutQuote is the wizard's review step: the cart, the selected
// shipping method and what the order would cost.
type CheckoutQuote struct {
	Cart            CartPage         `json:"cart"`
	ShippingMethod  string           `json:"shipping_method"`
	ShippingOptions []ShippingOption `json:"shipping_options"`
	Totals          Totals           `json:"totals"`
}
