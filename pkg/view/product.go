package view

import "time"

// ProductCard is a catalog tile.
type ProductCard struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	Brand          string  `json:"brand"`
	ImageURL       string  `json:"image_url"`
	PriceCents     int     `json:"price_cents"`
	Price          string  `json:"price"`
	CompareAtCents *int    `json:"compare_at_cents,omitempty"`
	Currency       string  `json:"currency"`
	InStock        bool    `json:"in_stock"`
	Featured       bool    `json:"featured"`
	Rating         float64 `json:"rating"`
	NumReviews     int     `json:"num_reviews"`
}

type ProductVariant struct {
	ID             string         `json:"id"`
	SKU            string         `json:"sku"`
	Options        map[string]any `json:"options"`
	PriceCents     int            `json:"price_cents"`
	Price          string         `json:"price"`
	CompareAtCents *int           `json:"compare_at_cents,omitempty"`
	Currency       string         `json:"currency"`
	Stock          int            `json:"stock"`
	InStock        bool           `json:"in_stock"`
}

type ProductImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type ProductDetail struct {
	ProductCard
	Description string           `json:"description"`
	CategoryID  *string          `json:"category_id,omitempty"`
	Status      string           `json:"status,omitempty"`
	Variants    []ProductVariant `json:"variants"`
	Images      []ProductImage   `json:"images"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Page is the paging envelope shared by list endpoints.
type Page struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

func NewPage(total int64, page, pageSize int) Page {
	return Page{Total: total, Page: page, PageSize: pageSize, Pages: Pages(total, pageSize)}
}
