// Package wishlist stores saved products for signed-in users; guests keep
// theirs in a signed cookie until login.
package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/modules/products"
)

var ErrProductNotFound = errors.New("wishlist: product not found")

type Item struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:ux_wishlist_user_product"`
	ProductID string    `gorm:"size:36;not null;uniqueIndex:ux_wishlist_user_product"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Item) TableName() string { return "wishlist_items" }

type Service struct {
	db       *gorm.DB
	products *products.GormRepo
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, products: products.NewGormRepo(db)}
}

func (s *Service) ProductIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Item{}).
		Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Pluck("product_id", &ids).Error
	return ids, err
}

// Products resolves ids to active products, keeping the given order.
func (s *Service) Products(ctx context.Context, ids []string) ([]products.Product, error) {
	byID, err := s.products.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]products.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]products.Product, error) {
	ids, err := s.ProductIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Products(ctx, ids)
}

// CheckProduct reports ErrProductNotFound unless the product is active.
func (s *Service) CheckProduct(ctx context.Context, productID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&products.Product{}).
		Where("id = ? AND status = ?", productID, products.StatusActive).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Add is idempotent.
func (s *Service) Add(ctx context.Context, userID, productID string) error {
	if err := s.CheckProduct(ctx, productID); err != nil {
		return err
	}
	return s.insert(s.db.WithContext(ctx), userID, productID)
}

func (s *Service) insert(tx *gorm.DB, userID, productID string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Item{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now(),
	}).Error
}

func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&Item{}).Error
}

// Merge copies guest wishlist ids into the user's list, skipping products
// that are gone.
func (s *Service) Merge(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	byID, err := s.products.GetActiveByIDs(ctx, productIDs)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range productIDs {
			if _, ok := byID[id]; !ok {
				continue
			}
			if err := s.insert(tx, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
}
