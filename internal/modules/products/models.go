package products

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusActive, StatusArchived:
		return true
	}
	return false
}

type Category struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Slug        string    `gorm:"size:140;not null;uniqueIndex:ux_categories_slug" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	ParentID    *string   `gorm:"size:36;index:ix_categories_parent_id" json:"parent_id"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:220;not null;uniqueIndex:ux_products_slug" json:"slug"`
	Brand       string    `gorm:"size:120;not null;default:''" json:"brand"`
	Description string    `gorm:"type:text" json:"description"`
	CategoryID  *string   `gorm:"size:36;index:ix_products_category_id" json:"category_id"`
	Status      string    `gorm:"size:20;not null;default:draft;index:ix_products_status" json:"status"`
	Featured    bool      `gorm:"not null;default:false" json:"featured"`
	Rating      float64   `gorm:"not null;default:0" json:"rating"`
	NumReviews  int       `gorm:"not null;default:0" json:"num_reviews"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Variants []Variant `gorm:"foreignKey:ProductID" json:"variants"`
	Images   []Image   `gorm:"foreignKey:ProductID" json:"images"`
}

func (Product) TableName() string { return "products" }

// MinPrice returns the cheapest variant price and its currency.
func (p Product) MinPrice() (int, string, bool) {
	if len(p.Variants) == 0 {
		return 0, "", false
	}
	best := p.Variants[0]
	for _, v := range p.Variants[1:] {
		if v.PriceCents < best.PriceCents {
			best = v
		}
	}
	return best.PriceCents, best.Currency, true
}

func (p Product) InStock() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

func (p Product) PrimaryImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

type Variant struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	ProductID      string            `gorm:"size:36;not null;index:ix_product_variants_product_id" json:"product_id"`
	SKU            string            `gorm:"column:sku;size:80;not null;uniqueIndex:ux_product_variants_sku" json:"sku"`
	Options        datatypes.JSONMap `gorm:"column:options_json" json:"options"`
	PriceCents     int               `gorm:"not null" json:"price_cents"`
	CompareAtCents *int              `json:"compare_at_cents"`
	Currency       string            `gorm:"size:3;not null" json:"currency"`
	Stock          int               `gorm:"not null;default:0" json:"stock"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (Variant) TableName() string { return "product_variants" }

type Image struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ProductID  string    `gorm:"size:36;not null;index:ix_product_images_product_id" json:"product_id"`
	StorageKey string    `gorm:"size:255;not null" json:"-"`
	URL        string    `gorm:"size:500;not null" json:"url"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Image) TableName() string { return "product_images" }
