package cart

import "time"

const (
	StatusOpen      = "open"
	StatusConverted = "converted"
)

type Cart struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    *string    `gorm:"size:36;index:ix_carts_user_status"`
	Status    string     `gorm:"size:20;not null;default:open;index:ix_carts_user_status"`
	Items     []CartItem `gorm:"foreignKey:CartID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID        string `gorm:"primaryKey;size:36"`
	CartID    string `gorm:"size:36;not null;uniqueIndex:ux_cart_items_cart_variant"`
	VariantID string `gorm:"size:36;not null;uniqueIndex:ux_cart_items_cart_variant"`
	Quantity  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CartItem) TableName() string { return "cart_items" }
