package products

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/platform/database"
)

const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

const (
	minPriceExpr = "(SELECT MIN(pv.price_cents) FROM product_variants pv WHERE pv.product_id = products.id)"
	inStockExpr  = "EXISTS (SELECT 1 FROM product_variants pv WHERE pv.product_id = products.id AND pv.stock > 0)"
)

// Query is the storefront catalog query.
type Query struct {
	Q        string
	Category string // slug
	MinPrice *int
	MaxPrice *int
	InStock  bool
	Featured bool
	Sort     string // newest|price_asc|price_desc|name|rating
	Page     int
	PageSize int
}

func (q *Query) normalize() {
	q.Q = strings.TrimSpace(q.Q)
	q.Category = strings.TrimSpace(q.Category)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	switch q.Sort {
	case "newest", "price_asc", "price_desc", "name", "rating":
	default:
		q.Sort = "newest"
	}
}

type CategoryFacet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int64  `json:"count"`
}

type PriceFacet struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type StockFacet struct {
	InStock    int64 `json:"in_stock"`
	OutOfStock int64 `json:"out_of_stock"`
}

type Facets struct {
	Categories []CategoryFacet `json:"categories"`
	Price      PriceFacet      `json:"price"`
	Stock      StockFacet      `json:"stock"`
}

type SearchResult struct {
	Items    []Product
	Total    int64
	Page     int
	PageSize int
	Pages    int
	Facets   Facets
}

type Repository interface {
	Search(ctx context.Context, q Query) (SearchResult, error)
	GetBySlug(ctx context.Context, slug string) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// facet names a filter left out when computing that facet's counts, so a
// chosen category still shows its siblings.
type facet int

const (
	facetNone facet = iota
	facetCategory
	facetPrice
	facetStock
)

func (r *GormRepo) filtered(ctx context.Context, q Query, categoryIDs []string, skip facet) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&Product{}).Where("products.status = ?", StatusActive)

	if q.Q != "" {
		like := database.LikeContains(q.Q)
		tx = tx.Where("(LOWER(products.name) LIKE ? ESCAPE '!' OR LOWER(products.brand) LIKE ? ESCAPE '!' OR LOWER(products.description) LIKE ? ESCAPE '!')", like, like, like)
	}
	if q.Category != "" && skip != facetCategory {
		if len(categoryIDs) == 0 {
			tx = tx.Where("1 = 0")
		} else {
			tx = tx.Where("products.category_id IN ?", categoryIDs)
		}
	}
	if skip != facetPrice {
		if q.MinPrice != nil {
			tx = tx.Where(minPriceExpr+" >= ?", *q.MinPrice)
		}
		if q.MaxPrice != nil {
			tx = tx.Where(minPriceExpr+" <= ?", *q.MaxPrice)
		}
	}
	if q.InStock && skip != facetStock {
		tx = tx.Where(inStockExpr)
	}
	if q.Featured {
		tx = tx.Where("products.featured = ?", true)
	}
	return tx
}

// categoryScope resolves a category slug to its id and its direct children.
func (r *GormRepo) categoryScope(ctx context.Context, slug string) ([]string, error) {
	if slug == "" {
		return nil, nil
	}
	var root Category
	if err := r.db.WithContext(ctx).First(&root, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ids := []string{root.ID}
	var children []string
	if err := r.db.WithContext(ctx).Model(&Category{}).Where("parent_id = ?", root.ID).Pluck("id", &children).Error; err != nil {
		return nil, err
	}
	return append(ids, children...), nil
}

func (r *GormRepo) Search(ctx context.Context, q Query) (SearchResult, error) {
	q.normalize()
	out := SearchResult{Page: q.Page, PageSize: q.PageSize, Items: []Product{}}

	catIDs, err := r.categoryScope(ctx, q.Category)
	if err != nil {
		return out, err
	}

	if err := r.filtered(ctx, q, catIDs, facetNone).Count(&out.Total).Error; err != nil {
		return out, err
	}
	out.Pages = int((out.Total + int64(q.PageSize) - 1) / int64(q.PageSize))

	if out.Total > 0 {
		tx := r.filtered(ctx, q, catIDs, facetNone).
			Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
			Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("price_cents asc, id asc") })
		switch q.Sort {
		case "price_asc":
			tx = tx.Order(minPriceExpr + " ASC").Order("products.id ASC")
		case "price_desc":
			tx = tx.Order(minPriceExpr + " DESC").Order("products.id ASC")
		case "name":
			tx = tx.Order("products.name ASC").Order("products.id ASC")
		case "rating":
			tx = tx.Order("products.rating DESC").Order("products.num_reviews DESC").Order("products.id ASC")
		default:
			tx = tx.Order("products.created_at DESC").Order("products.id DESC")
		}
		if err := tx.Limit(q.PageSize).Offset((q.Page - 1) * q.PageSize).Find(&out.Items).Error; err != nil {
			return out, err
		}
	}

	facets, err := r.facets(ctx, q, catIDs)
	if err != nil {
		return out, err
	}
	out.Facets = facets
	return out, nil
}

func (r *GormRepo) facets(ctx context.Context, q Query, catIDs []string) (Facets, error) {
	f := Facets{Categories: []CategoryFacet{}}

	var rows []struct {
		CategoryID string
		Count      int64
	}
	err := r.filtered(ctx, q, catIDs, facetCategory).
		Select("products.category_id AS category_id, COUNT(*) AS count").
		Where("products.category_id IS NOT NULL").
		Group("products.category_id").
		Scan(&rows).Error
	if err != nil {
		return f, err
	}
	if len(rows) > 0 {
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.CategoryID)
		}
		var cats []Category
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("position asc, name asc").Find(&cats).Error; err != nil {
			return f, err
		}
		counts := make(map[string]int64, len(rows))
		for _, row := range rows {
			counts[row.CategoryID] = row.Count
		}
		for _, c := range cats {
			f.Categories = append(f.Categories, CategoryFacet{ID: c.ID, Name: c.Name, Slug: c.Slug, Count: counts[c.ID]})
		}
	}

	var price struct {
		MinPrice *int
		MaxPrice *int
	}
	err = r.filtered(ctx, q, catIDs, facetPrice).
		Select("MIN(" + minPriceExpr + ") AS min_price, MAX(" + minPriceExpr + ") AS max_price").
		Scan(&price).Error
	if err != nil {
		return f, err
	}
	if price.MinPrice != nil {
		f.Price.Min = *price.MinPrice
	}
	if price.MaxPrice != nil {
		f.Price.Max = *price.MaxPrice
	}

	var total int64
	if err := r.filtered(ctx, q, catIDs, facetStock).Count(&total).Error; err != nil {
		return f, err
	}
	if err := r.filtered(ctx, q, catIDs, facetStock).Where(inStockExpr).Count(&f.Stock.InStock).Error; err != nil {
		return f, err
	}
	f.Stock.OutOfStock = total - f.Stock.InStock
	return f, nil
}

func (r *GormRepo) GetBySlug(ctx context.Context, slug string) (Product, error) {
	var p Product
	err := r.db.WithContext(ctx).
		Model(&Product{}).
		Where("slug = ? AND status = ?", slug, StatusActive).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("price_cents asc, id asc")
		}).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	return p, err
}

// GetActiveByIDs loads active products with variants and images, keyed by id.
func (r *GormRepo) GetActiveByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, StatusActive).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("price_cents asc, id asc") }).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

func (r *GormRepo) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	err := r.db.WithContext(ctx).Order("position asc, name asc").Find(&cats).Error
	return cats, err
}

// CategoryNode is one level of the category tree.
type CategoryNode struct {
	Category
	Children []CategoryNode `json:"children"`
}

// BuildTree nests categories by parent id; orphans are treated as roots.
func BuildTree(cats []Category) []CategoryNode {
	byParent := map[string][]Category{}
	ids := map[string]bool{}
	for _, c := range cats {
		ids[c.ID] = true
	}
	for _, c := range cats {
		key := ""
		if c.ParentID != nil && ids[*c.ParentID] {
			key = *c.ParentID
		}
		byParent[key] = append(byParent[key], c)
	}
	var build func(parent string, depth int) []CategoryNode
	build = func(parent string, depth int) []CategoryNode {
		nodes := []CategoryNode{}
		if depth > 8 {
			return nodes
		}
		for _, c := range byParent[parent] {
			nodes = append(nodes, CategoryNode{Category: c, Children: build(c.ID, depth+1)})
		}
		return nodes
	}
	return build("", 0)
}
