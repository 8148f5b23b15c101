package cart

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/pkg/view"
)

type Service struct {
	db       *gorm.DB
	repo     *Repo
	currency string
}

// NewService builds the cart view service; currency labels empty carts.
func NewService(db *gorm.DB, currency string) *Service {
	return &Service{db: db, repo: NewRepo(db), currency: strings.ToUpper(currency)}
}

func (s *Service) Repo() *Repo { return s.repo }

type cartRow struct {
	VariantID     string            `gorm:"column:variant_id"`
	Qty           int               `gorm:"column:qty"`
	PriceCents    int               `gorm:"column:price_cents"`
	Currency      string            `gorm:"column:currency"`
	SKU           string            `gorm:"column:sku"`
	Options       datatypes.JSONMap `gorm:"column:options_json"`
	Stock         int               `gorm:"column:stock"`
	ProductID     string            `gorm:"column:product_id"`
	ProductName   string            `gorm:"column:product_name"`
	ProductSlug   string            `gorm:"column:product_slug"`
	ProductStatus string            `gorm:"column:product_status"`
	ImageURL      *string           `gorm:"column:image_url"`
}

const variantColumns = `v.id AS variant_id,
	v.price_cents AS price_cents,
	v.currency AS currency,
	v.sku AS sku,
	v.options_json AS options_json,
	v.stock AS stock,
	p.id AS product_id,
	p.name AS product_name,
	p.slug AS product_slug,
	p.status AS product_status,
	(SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.position ASC, pi.id ASC LIMIT 1) AS image_url`

// CheckVariant verifies a variant exists and its product is for sale.
func (s *Service) CheckVariant(ctx context.Context, variantID string) error {
	var n int64
	err := s.db.WithContext(ctx).
		Table("product_variants AS v").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.id = ? AND p.status = ?", variantID, "active").
		Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func (s *Service) BuildCartPageForUser(ctx context.Context, userID string) (view.CartPage, error) {
	if userID == "" {
		return view.CartPage{}, errors.New("missing userID")
	}
	cartID, err := s.repo.OpenCartID(ctx, userID)
	if err != nil {
		return view.CartPage{}, err
	}
	if cartID == "" {
		return s.empty(), nil
	}
	return s.BuildCartPageForCart(ctx, cartID)
}

func (s *Service) BuildCartPageForCart(ctx context.Context, cartID string) (view.CartPage, error) {
	var rows []cartRow
	err := s.db.WithContext(ctx).
		Table("cart_items AS ci").
		Select("ci.quantity AS qty, "+variantColumns).
		Joins("JOIN product_variants v ON v.id = ci.variant_id").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("ci.cart_id = ?", cartID).
		Order("ci.created_at ASC, ci.id ASC").
		Scan(&rows).Error
	if err != nil {
		return view.CartPage{}, err
	}
	return s.buildCartVMFromRows(rows)
}

func (s *Service) BuildCartPageFromCookie(ctx context.Context, c cartcookie.Cart) (view.CartPage, error) {
	if len(c.Items) == 0 {
		return s.empty(), nil
	}

	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		if it.VariantID != "" && it.Qty > 0 {
			ids = append(ids, it.VariantID)
		}
	}
	if len(ids) == 0 {
		return s.empty(), nil
	}

	var rows []cartRow
	if err := s.db.WithContext(ctx).
		Table("product_variants AS v").
		Select("0 AS qty, "+variantColumns).
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return view.CartPage{}, err
	}

	infoByID := make(map[string]cartRow, len(rows))
	for _, r := range rows {
		infoByID[r.VariantID] = r
	}

	// keep cookie order; variants that disappeared are dropped
	final := make([]cartRow, 0, len(ids))
	for _, it := range c.Items {
		r, ok := infoByID[it.VariantID]
		if !ok || it.Qty <= 0 {
			continue
		}
		r.Qty = it.Qty
		final = append(final, r)
	}
	return s.buildCartVMFromRows(final)
}

func (s *Service) empty() view.CartPage {
	return view.CartPage{
		Items:        []view.CartItem{},
		Currency:     s.currency,
		Subtotal:     view.MoneyFromCents(0, s.currency),
		AllAvailable: true,
	}
}

func (s *Service) buildCartVMFromRows(rows []cartRow) (view.CartPage, error) {
	vm := s.empty()
	vm.Items = make([]view.CartItem, 0, len(rows))

	currency := ""
	for _, r := range rows {
		if r.Qty <= 0 {
			continue
		}
		cur := strings.ToUpper(strings.TrimSpace(r.Currency))
		if currency == "" {
			currency = cur
		} else if cur != "" && cur != currency {
			return view.CartPage{}, ErrMixedCurrency
		}

		line := r.PriceCents * r.Qty
		available := r.ProductStatus == "active" && r.Stock >= r.Qty
		if !available {
			vm.AllAvailable = false
		}
		img := ""
		if r.ImageURL != nil {
			img = *r.ImageURL
		}
		opts := map[string]any(r.Options)
		if opts == nil {
			opts = map[string]any{}
		}

		vm.Items = append(vm.Items, view.CartItem{
			VariantID:      r.VariantID,
			ProductID:      r.ProductID,
			ProductName:    r.ProductName,
			ProductSlug:    r.ProductSlug,
			ImageURL:       img,
			SKU:            r.SKU,
			Options:        opts,
			Qty:            r.Qty,
			Stock:          r.Stock,
			Available:      available,
			UnitPriceCents: r.PriceCents,
			LineTotalCents: line,
			UnitPrice:      view.MoneyFromCents(r.PriceCents, cur),
			LineTotal:      view.MoneyFromCents(line, cur),
		})
		vm.Count += r.Qty
		vm.SubtotalCents += line
	}

	if currency != "" {
		vm.Currency = currency
	}
	vm.Subtotal = view.MoneyFromCents(vm.SubtotalCents, vm.Currency)
	return vm, nil
}
