package products

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/platform/database"
)

// Repo is the admin-side product store; it sees every status.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

type AdminQuery struct {
	Q          string
	Status     string
	CategoryID string
	Sort       string // newest|oldest|name|updated
	Page       int
	PageSize   int
}

func (r *Repo) List(ctx context.Context, q AdminQuery) ([]Product, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > MaxPageSize {
		q.PageSize = 20
	}

	tx := r.db.WithContext(ctx).Model(&Product{})
	if s := strings.TrimSpace(q.Q); s != "" {
		like := database.LikeContains(s)
		tx = tx.Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(slug) LIKE ? ESCAPE '!' OR LOWER(brand) LIKE ? ESCAPE '!' OR id IN (SELECT product_id FROM product_variants WHERE LOWER(sku) LIKE ? ESCAPE '!'))", like, like, like, like)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.CategoryID != "" {
		tx = tx.Where("category_id = ?", q.CategoryID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch q.Sort {
	case "oldest":
		tx = tx.Order("created_at ASC")
	case "name":
		tx = tx.Order("name ASC")
	case "updated":
		tx = tx.Order("updated_at DESC")
	default:
		tx = tx.Order("created_at DESC")
	}

	var items []Product
	err := tx.Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Order("id ASC").
		Limit(q.PageSize).Offset((q.Page - 1) * q.PageSize).
		Find(&items).Error
	return items, total, err
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	return p, err
}

func (r *Repo) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Omit("Category", "Variants", "Images").Create(p).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (r *Repo) UpdateProduct(ctx context.Context, p *Product) error {
	res := r.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":        p.Name,
			"slug":        p.Slug,
			"brand":       p.Brand,
			"description": p.Description,
			"category_id": p.CategoryID,
			"status":      p.Status,
			"featured":    p.Featured,
			"rating":      p.Rating,
			"num_reviews": p.NumReviews,
		})
	if res.Error != nil {
		if database.IsDuplicateKey(res.Error) {
			return ErrSlugTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes the product with its variants and images and returns
// the storage keys of the removed images.
func (r *Repo) DeleteProduct(ctx context.Context, id string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Image{}).Where("product_id = ?", id).Pluck("storage_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&Image{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&Variant{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return keys, err
}

func (r *Repo) exists(ctx context.Context, productID string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type VariantInput struct {
	SKU            string
	Options        map[string]any
	PriceCents     int
	CompareAtCents *int
	Currency       string
	Stock          int
}

func (r *Repo) AddVariant(ctx context.Context, productID string, in VariantInput) (Variant, error) {
	if err := r.exists(ctx, productID); err != nil {
		return Variant{}, err
	}
	v := Variant{
		ID:             uuid.NewString(),
		ProductID:      productID,
		SKU:            strings.TrimSpace(in.SKU),
		Options:        datatypes.JSONMap(in.Options),
		PriceCents:     in.PriceCents,
		CompareAtCents: in.CompareAtCents,
		Currency:       strings.ToUpper(in.Currency),
		Stock:          in.Stock,
	}
	if err := r.db.WithContext(ctx).Create(&v).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return Variant{}, ErrSKUTaken
		}
		return Variant{}, err
	}
	return v, nil
}

func (r *Repo) UpdateVariant(ctx context.Context, productID, variantID string, in VariantInput) (Variant, error) {
	res := r.db.WithContext(ctx).Model(&Variant{}).
		Where("id = ? AND product_id = ?", variantID, productID).
		Updates(map[string]any{
			"sku":              strings.TrimSpace(in.SKU),
			"options_json":     datatypes.JSONMap(in.Options),
			"price_cents":      in.PriceCents,
			"compare_at_cents": in.CompareAtCents,
			"currency":         strings.ToUpper(in.Currency),
			"stock":            in.Stock,
		})
	if res.Error != nil {
		if database.IsDuplicateKey(res.Error) {
			return Variant{}, ErrSKUTaken
		}
		return Variant{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Variant{}, ErrVariantNotFound
	}
	var v Variant
	err := r.db.WithContext(ctx).First(&v, "id = ?", variantID).Error
	return v, err
}

func (r *Repo) DeleteVariant(ctx context.Context, productID, variantID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variantID, productID).
		Delete(&Variant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func (r *Repo) AddImageWithKey(ctx context.Context, productID, storageKey, url string) (Image, error) {
	var maxPos sql.NullInt64
	if err := r.db.WithContext(ctx).Model(&Image{}).
		Where("product_id = ?", productID).
		Select("MAX(position)").Scan(&maxPos).Error; err != nil {
		return Image{}, err
	}
	pos := 0
	if maxPos.Valid {
		pos = int(maxPos.Int64) + 1
	}
	im := Image{
		ID:         uuid.NewString(),
		ProductID:  productID,
		StorageKey: storageKey,
		URL:        url,
		Position:   pos,
	}
	if err := r.db.WithContext(ctx).Create(&im).Error; err != nil {
		return Image{}, err
	}
	return im, nil
}

func (r *Repo) GetImage(ctx context.Context, productID, imageID string) (Image, error) {
	var im Image
	err := r.db.WithContext(ctx).First(&im, "id = ? AND product_id = ?", imageID, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return im, ErrImageNotFound
	}
	return im, err
}

func (r *Repo) DeleteImage(ctx context.Context, productID, imageID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", imageID, productID).
		Delete(&Image{}).Error
}

// LowStockVariants lists variants at or below threshold, lowest first.
func (r *Repo) LowStockVariants(ctx context.Context, threshold, limit int) ([]LowStock, error) {
	var out []LowStock
	err := r.db.WithContext(ctx).Table("product_variants AS v").
		Select("v.id AS variant_id, v.sku, v.stock, p.id AS product_id, p.name AS product_name").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.stock <= ?", threshold).
		Order("v.stock ASC, v.sku ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

type LowStock struct {
	VariantID   string `json:"variant_id"`
	SKU         string `json:"sku"`
	Stock       int    `json:"stock"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}
