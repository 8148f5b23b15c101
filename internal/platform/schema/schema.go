// Package schema lists every persisted model. It sits above the modules so
// that the database package stays import-free of them.
package schema

import (
	"context"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/modules/users"
	"shopdesk.io/app/internal/modules/wishlist"
)

func Models() []any {
	out := []any{
		&auth.User{}, &auth.Session{},
		&products.Category{}, &products.Product{}, &products.Variant{}, &products.Image{},
		&cart.Cart{}, &cart.CartItem{},
		&wishlist.Item{},
		&customers.Customer{},
	}
	out = append(out, orders.Models()...)
	out = append(out, payments.Models()...)
	out = append(out, email.Models()...)
	out = append(out, users.Models()...)
	return out
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}
