package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/http/cartcookie"
)

const MaxQty = cartcookie.MaxQty

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func clamp(qty int) int {
	if qty < 1 {
		return 1
	}
	if qty > MaxQty {
		return MaxQty
	}
	return qty
}

// OpenCartID returns the user's newest open cart id, or "" when none exists.
func (r *Repo) OpenCartID(ctx context.Context, userID string) (string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Cart{}).
		Where("user_id = ? AND status = ?", userID, StatusOpen).
		Order("updated_at DESC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

func (r *Repo) GetOrCreateUserCart(ctx context.Context, userID string) (Cart, error) {
	id, err := r.OpenCartID(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if id != "" {
		return r.GetCart(ctx, id)
	}
	c := Cart{ID: uuid.NewString(), UserID: &userID, Status: StatusOpen}
	if err := r.db.WithContext(ctx).Omit("Items").Create(&c).Error; err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (r *Repo) GetCart(ctx context.Context, cartID string) (Cart, error) {
	var c Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		First(&c, "id = ?", cartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, ErrCartNotFound
	}
	return c, err
}

// AddItem increments the existing line for the variant or inserts a new one.
func (r *Repo) AddItem(ctx context.Context, cartID string, variantID string, qty int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return addItemTx(tx, cartID, variantID, qty)
	})
}

func addItemTx(tx *gorm.DB, cartID, variantID string, qty int) error {
	var existing CartItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		First(&existing).Error
	switch {
	case err == nil:
		if err := tx.Model(&CartItem{}).Where("id = ?", existing.ID).
			Update("quantity", clamp(existing.Quantity+qty)).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := CartItem{
			ID:        uuid.NewString(),
			CartID:    cartID,
			VariantID: variantID,
			Quantity:  clamp(qty),
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
	default:
		return err
	}
	return tx.Model(&Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now()).Error
}

// UpdateItemQty sets a line quantity; qty <= 0 removes it.
func (r *Repo) UpdateItemQty(ctx context.Context, cartID string, variantID string, qty int) error {
	if qty <= 0 {
		return r.RemoveItem(ctx, cartID, variantID)
	}
	res := r.db.WithContext(ctx).Model(&CartItem{}).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		Update("quantity", clamp(qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repo) RemoveItem(ctx context.Context, cartID string, variantID string) error {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		Delete(&CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repo) ClearCart(ctx context.Context, cartID string) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&CartItem{}).Error
}

// MergeItems folds guest cookie lines into the cart, summing quantities.
func (r *Repo) MergeItems(ctx context.Context, cartID string, items []cartcookie.Item) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range items {
			if it.VariantID == "" || it.Qty <= 0 {
				continue
			}
			// silently skip variants that no longer exist
			var n int64
			if err := tx.Table("product_variants").Where("id = ?", it.VariantID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			if err := addItemTx(tx, cartID, it.VariantID, it.Qty); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateTempCart copies guest lines into an ownerless cart so checkout can
// work from a database snapshot.
func (r *Repo) CreateTempCart(ctx context.Context, items []cartcookie.Item) (string, error) {
	id := uuid.NewString()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(&Cart{ID: id, Status: StatusOpen}).Error; err != nil {
			return err
		}
		for _, it := range items {
			if it.VariantID == "" || it.Qty <= 0 {
				continue
			}
			if err := addItemTx(tx, id, it.VariantID, it.Qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repo) DeleteCart(ctx context.Context, cartID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cartID).Delete(&CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Cart{}, "id = ?", cartID).Error
	})
}

// MarkConvertedTx closes a cart inside the order transaction.
func MarkConvertedTx(tx *gorm.DB, cartID string) error {
	return tx.Model(&Cart{}).Where("id = ?", cartID).Update("status", StatusConverted).Error
}

func (r *Repo) CountForUser(ctx context.Context, userID string) (int, error) {
	var total struct{ N int64 }
	err := r.db.WithContext(ctx).
		Table("cart_items ci").
		Select("COALESCE(SUM(ci.quantity), 0) AS n").
		Joins("JOIN carts c ON c.id = ci.cart_id").
		Where("c.user_id = ? AND c.status = ?", userID, StatusOpen).
		Scan(&total).Error
	return int(total.N), err
}
