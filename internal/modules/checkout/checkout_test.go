package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/config"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/platform/database/dbtest"
)

func pricer() *Pricer {
	return NewPricer(config.CheckoutConfig{
		Currency:                   "USD",
		TaxRateBasisPoints:         1500,
		FreeShippingThresholdCents: 10000,
		StandardShippingCents:      1000,
		ExpressShippingCents:       2500,
	})
}

func TestTotals(t *testing.T) {
	p := pricer()

	tt, err := p.Totals(9999, ShippingStandard)
	require.NoError(t, err)
	assert.Equal(t, Totals{Subtotal: 9999, Shipping: 1000, Tax: 1500, Total: 12499}, tt)

	tt, err = p.Totals(10000, ShippingStandard)
	require.NoError(t, err)
	assert.Equal(t, 0, tt.Shipping, "free shipping at the threshold")
	assert.Equal(t, 11500, tt.Total)

	tt, err = p.Totals(10000, ShippingExpress)
	require.NoError(t, err)
	assert.Equal(t, 2500, tt.Shipping)

	_, err = p.Totals(100, "drone")
	assert.ErrorIs(t, err, ErrUnknownShippingMethod)
}

func TestTaxRoundsHalfUp(t *testing.T) {
	p := pricer()
	assert.Equal(t, 15, p.TaxCents(100))
	assert.Equal(t, 2, p.TaxCents(10)) // 1.5 -> 2
	assert.Equal(t, 1, p.TaxCents(9))  // 1.35 -> 1
	assert.Equal(t, 0, p.TaxCents(0))
}

func TestShippingOptions(t *testing.T) {
	opts := pricer().ShippingOptions(500)
	require.Len(t, opts, 2)
	assert.Equal(t, 1000, opts[0].PriceCents)
	assert.Equal(t, 2500, opts[1].PriceCents)
}

func TestAddressNormalize(t *testing.T) {
	a := Address{FullName: " Ada  King Lovelace ", Country: "gb "}.Normalize()
	assert.Equal(t, "GB", a.Country)
	first, last := a.SplitName()
	assert.Equal(t, "Ada  King", first)
	assert.Equal(t, "Lovelace", last)
}

func stockDB(t *testing.T) *gorm.DB {
	db := dbtest.New(t, &products.Category{}, &products.Product{}, &products.Variant{}, &products.Image{})
	require.NoError(t, db.Create(&products.Product{ID: "p1", Name: "P", Slug: "p", Status: "active"}).Error)
	require.NoError(t, db.Create(&products.Variant{ID: "a", ProductID: "p1", SKU: "A", PriceCents: 100, Currency: "USD", Stock: 5}).Error)
	require.NoError(t, db.Create(&products.Variant{ID: "b", ProductID: "p1", SKU: "B", PriceCents: 100, Currency: "USD", Stock: 1}).Error)
	return db
}

func stockOf(t *testing.T, db *gorm.DB, id string) int {
	var v products.Variant
	require.NoError(t, db.First(&v, "id = ?", id).Error)
	return v.Stock
}

func TestDeductStock(t *testing.T) {
	db := stockDB(t)
	ctx := context.Background()

	require.NoError(t, DeductStockTx(ctx, db, []StockLine{{VariantID: "a", Qty: 2}, {VariantID: "a", Qty: 1}, {VariantID: "b", Qty: 1}}))
	assert.Equal(t, 2, stockOf(t, db, "a"))
	assert.Equal(t, 0, stockOf(t, db, "b"))

	err := DeductStockTx(ctx, db, []StockLine{{VariantID: "a", Qty: 3}, {VariantID: "b", Qty: 1}, {VariantID: "zz", Qty: 1}})
	var oos *OutOfStockError
	require.True(t, errors.As(err, &oos))
	require.Len(t, oos.Items, 3, "every short line is reported")
	assert.Equal(t, "a", oos.Items[0].VariantID)
	assert.Equal(t, 2, oos.Items[0].Available)
	assert.Equal(t, 2, stockOf(t, db, "a"), "nothing deducted on failure")

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return RestoreStockInTx(ctx, tx, []StockLine{{VariantID: "b", Qty: 4}})
	}))
	assert.Equal(t, 4, stockOf(t, db, "b"))
}
