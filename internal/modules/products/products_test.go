package products

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/platform/database/dbtest"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/storage"
)

func newDB(t *testing.T) *gorm.DB {
	return dbtest.New(t, &Category{}, &Product{}, &Variant{}, &Image{})
}

type fixture struct {
	shoes, boots, hats Category
	runner, hiker, cap Product
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	ctx := context.Background()
	svc := NewAdminService(NewRepo(db), nil, logging.Discard())
	repo := svc.Repo()

	var f fixture
	var err error
	f.shoes, err = repo.CreateCategory(ctx, CategoryInput{Name: "Shoes"})
	require.NoError(t, err)
	f.boots, err = repo.CreateCategory(ctx, CategoryInput{Name: "Boots", ParentID: &f.shoes.ID})
	require.NoError(t, err)
	f.hats, err = repo.CreateCategory(ctx, CategoryInput{Name: "Hats"})
	require.NoError(t, err)

	mk := func(name, brand string, cat *Category, featured bool, rating float64, prices []int, stock int) Product {
		var cid *string
		if cat != nil {
			cid = &cat.ID
		}
		p, err := svc.CreateProduct(ctx, ProductInput{Name: name, Brand: brand, CategoryID: cid, Status: StatusActive, Featured: featured, Rating: rating})
		require.NoError(t, err)
		for i, price := range prices {
			_, err := svc.AddVariant(ctx, p.ID, VariantInput{
				SKU: strings.ToUpper(p.Slug) + "-" + string(rune('A'+i)), PriceCents: price, Currency: "usd", Stock: stock,
				Options: map[string]any{"size": string(rune('S' + i))},
			})
			require.NoError(t, err)
		}
		// keep created_at strictly increasing for "newest" ordering
		time.Sleep(5 * time.Millisecond)
		return p
	}
	f.runner = mk("Trail Runner", "Acme", &f.shoes, true, 4.5, []int{8000, 9000}, 3)
	f.hiker = mk("Mountain Hiker", "Peak", &f.boots, false, 4.8, []int{15000}, 0)
	f.cap = mk("Sun Cap", "Acme", &f.hats, false, 3.9, []int{2000}, 10)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "Secret Draft", CategoryID: &f.shoes.ID})
	require.NoError(t, err)
	return f
}

func TestSearchFiltersAndSorts(t *testing.T) {
	db := newDB(t)
	f := seed(t, db)
	repo := NewGormRepo(db)
	ctx := context.Background()

	res, err := repo.Search(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total, "drafts are hidden")
	require.Len(t, res.Items, 3)
	assert.Equal(t, f.cap.ID, res.Items[0].ID, "newest first")
	assert.Equal(t, 1, res.Pages)

	res, err = repo.Search(ctx, Query{Category: "shoes", Sort: "price_asc"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2, "parent category includes direct children")
	assert.Equal(t, f.runner.ID, res.Items[0].ID)
	assert.Equal(t, f.hiker.ID, res.Items[1].ID)

	res, err = repo.Search(ctx, Query{Q: "acme", Sort: "price_desc"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, f.runner.ID, res.Items[0].ID)

	min, max := 5000, 10000
	res, err = repo.Search(ctx, Query{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, f.runner.ID, res.Items[0].ID)

	res, err = repo.Search(ctx, Query{InStock: true, Sort: "rating"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, f.runner.ID, res.Items[0].ID)

	res, err = repo.Search(ctx, Query{Featured: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	res, err = repo.Search(ctx, Query{Category: "no-such-category"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
	assert.Empty(t, res.Items)

	res, err = repo.Search(ctx, Query{PageSize: 2, Page: 2, Sort: "name"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Items, 1)
	assert.Equal(t, f.runner.ID, res.Items[0].ID)
}

func TestSearchFacets(t *testing.T) {
	db := newDB(t)
	f := seed(t, db)
	repo := NewGormRepo(db)

	res, err := repo.Search(context.Background(), Query{Category: "hats", InStock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	counts := map[string]int64{}
	for _, c := range res.Facets.Categories {
		counts[c.Slug] = c.Count
	}
	assert.Equal(t, int64(1), counts[f.hats.Slug])
	assert.Equal(t, int64(1), counts["shoes"], "category facet ignores the category filter")

	assert.Equal(t, 2000, res.Facets.Price.Min)
	assert.Equal(t, 2000, res.Facets.Price.Max)
	assert.Equal(t, int64(1), res.Facets.Stock.InStock)
	assert.Equal(t, int64(0), res.Facets.Stock.OutOfStock)
}

func TestGetBySlug(t *testing.T) {
	db := newDB(t)
	f := seed(t, db)
	repo := NewGormRepo(db)

	p, err := repo.GetBySlug(context.Background(), f.runner.Slug)
	require.NoError(t, err)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, 8000, p.Variants[0].PriceCents)
	price, cur, ok := p.MinPrice()
	assert.True(t, ok)
	assert.Equal(t, 8000, price)
	assert.Equal(t, "USD", cur)
	assert.Equal(t, "S", p.Variants[0].Options["size"])

	_, err = repo.GetBySlug(context.Background(), "secret-draft")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminConflicts(t *testing.T) {
	db := newDB(t)
	f := seed(t, db)
	ctx := context.Background()
	svc := NewAdminService(NewRepo(db), nil, logging.Discard())

	_, err := svc.CreateProduct(ctx, ProductInput{Name: "Trail Runner"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = svc.AddVariant(ctx, f.cap.ID, VariantInput{SKU: strings.ToUpper(f.runner.Slug) + "-A", PriceCents: 1, Currency: "USD"})
	assert.ErrorIs(t, err, ErrSKUTaken)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "X", Status: "weird"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	assert.ErrorIs(t, svc.Repo().DeleteCategory(ctx, f.shoes.ID), ErrCategoryInUse)
	_, err = svc.Repo().UpdateCategory(ctx, f.shoes.ID, CategoryInput{Name: "Shoes", ParentID: &f.boots.ID})
	assert.ErrorIs(t, err, ErrInvalidParent, "cycles are rejected")

	empty, err := svc.Repo().CreateCategory(ctx, CategoryInput{Name: "Empty"})
	require.NoError(t, err)
	require.NoError(t, svc.Repo().DeleteCategory(ctx, empty.ID))
}

func TestAdminListAndUpdate(t *testing.T) {
	db := newDB(t)
	f := seed(t, db)
	ctx := context.Background()
	svc := NewAdminService(NewRepo(db), nil, logging.Discard())

	items, total, err := svc.Repo().List(ctx, AdminQuery{Status: StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Secret Draft", items[0].Name)

	items, _, err = svc.Repo().List(ctx, AdminQuery{Q: "sun-cap-a"})
	require.NoError(t, err)
	require.Len(t, items, 1, "q also matches SKUs")

	p, err := svc.UpdateProduct(ctx, f.cap.ID, ProductInput{Name: "Sun Hat", Status: StatusArchived, CategoryID: &f.hats.ID})
	require.NoError(t, err)
	assert.Equal(t, "sun-hat", p.Slug)
	assert.Equal(t, StatusArchived, p.Status)

	_, err = svc.UpdateProduct(ctx, "missing", ProductInput{Name: "Nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImagesAndDelete(t *testing.T) {
	db := newDB(t)
	f := seed(t, db)
	ctx := context.Background()
	store := storage.NewLocal(t.TempDir(), "/uploads")
	svc := NewAdminService(NewRepo(db), store, logging.Discard())

	im1, err := svc.UploadImage(ctx, f.cap.ID, Upload{Filename: "a.png", Body: strings.NewReader("1")})
	require.NoError(t, err)
	im2, err := svc.UploadImage(ctx, f.cap.ID, Upload{Filename: "b.jpg", Body: strings.NewReader("2")})
	require.NoError(t, err)
	assert.Equal(t, 0, im1.Position)
	assert.Equal(t, 1, im2.Position)
	assert.True(t, strings.HasPrefix(im1.URL, "/uploads/products/"+f.cap.ID+"/"))

	_, err = svc.UploadImage(ctx, f.cap.ID, Upload{Filename: "x.exe", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, storage.ErrUnsupportedType)

	require.NoError(t, svc.DeleteImage(ctx, f.cap.ID, im1.ID))
	_, err = svc.Repo().GetImage(ctx, f.cap.ID, im1.ID)
	assert.ErrorIs(t, err, ErrImageNotFound)

	require.NoError(t, svc.DeleteProduct(ctx, f.cap.ID))
	_, err = svc.Repo().Get(ctx, f.cap.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	var n int64
	require.NoError(t, db.Model(&Variant{}).Where("product_id = ?", f.cap.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestBuildTree(t *testing.T) {
	a, b := "a", "b"
	tree := BuildTree([]Category{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B", ParentID: &a},
		{ID: "c", Name: "C", ParentID: &b},
		{ID: "d", Name: "D", ParentID: strPtr("gone")},
	})
	require.Len(t, tree, 2)
	assert.Equal(t, "b", tree[0].Children[0].ID)
	assert.Equal(t, "c", tree[0].Children[0].Children[0].ID)
	assert.Equal(t, "d", tree[1].ID)
}

func strPtr(s string) *string { return &s }
