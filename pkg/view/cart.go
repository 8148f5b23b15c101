package view

type CartItem struct {
	VariantID   string         `json:"variant_id"`
	ProductID   string         `json:"product_id"`
	ProductName string         `json:"product_name"`
	ProductSlug string         `json:"product_slug"`
	ImageURL    string         `json:"image_url"`
	SKU         string         `json:"sku"`
	Options     map[string]any `json:"options"`
	Qty         int            `json:"qty"`
	Stock       int            `json:"stock"`
	Available   bool           `json:"available"`

	UnitPriceCents int    `json:"unit_price_cents"`
	LineTotalCents int    `json:"line_total_cents"`
	UnitPrice      string `json:"unit_price"`
	LineTotal      string `json:"line_total"`
}

type CartPage struct {
	Items         []CartItem `json:"items"`
	Count         int        `json:"count"`
	Currency      string     `json:"currency"`
	SubtotalCents int        `json:"subtotal_cents"`
	Subtotal      string     `json:"subtotal"`
	// AllAvailable is false when any line exceeds stock or its product
	// is no longer sold.
	AllAvailable bool `json:"all_available"`
}
