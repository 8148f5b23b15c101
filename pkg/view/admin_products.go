package view

import "time"

type AdminProductListItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Brand        string    `json:"brand"`
	Status       string    `json:"status"`
	Featured     bool      `json:"featured"`
	CategoryID   *string   `json:"category_id,omitempty"`
	VariantCount int       `json:"variant_count"`
	TotalStock   int       `json:"total_stock"`
	Price        string    `json:"price"`
	ImageURL     string    `json:"image_url"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AdminProductsPage struct {
	Items []AdminProductListItem `json:"items"`
	Page
}
