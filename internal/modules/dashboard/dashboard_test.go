package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/platform/database/dbtest"
)

func TestSummary(t *testing.T) {
	models := []any{
		&auth.User{}, &customers.Customer{},
		&products.Category{}, &products.Product{}, &products.Variant{}, &products.Image{},
	}
	db := dbtest.New(t, append(models, orders.Models()...)...)
	ctx := context.Background()
	now := time.Date(2025, 6, 30, 15, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&auth.User{ID: "u1", Email: "a@x", PasswordHash: "h", Role: auth.RoleAdmin}).Error)
	require.NoError(t, db.Create(&customers.Customer{ID: "c1", Email: "a@x"}).Error)
	require.NoError(t, db.Create(&products.Product{ID: "p1", Name: "Mug", Slug: "mug", Status: products.StatusActive}).Error)
	require.NoError(t, db.Create(&[]products.Variant{
		{ID: "v1", ProductID: "p1", SKU: "MUG-1", PriceCents: 1000, Currency: "USD", Stock: 2},
		{ID: "v2", ProductID: "p1", SKU: "MUG-2", PriceCents: 1000, Currency: "USD", Stock: 50},
	}).Error)

	at := func(d time.Duration) *time.Time { t := now.Add(-d); return &t }
	mk := func(id, status string, total, refunded int, paidAt *time.Time, created time.Time) {
		require.NoError(t, db.Create(&orders.Order{
			ID: id, Email: "a@x", Status: status, Currency: "USD",
			TotalCents: total, RefundedCents: refunded, PaidAt: paidAt,
			ShippingMethod: "standard", PaymentMethod: "paypal", CreatedAt: created,
		}).Error)
	}
	mk("o1", orders.StatusPaid, 5000, 0, at(time.Hour), now.Add(-2*time.Hour))
	mk("o2", orders.StatusPartiallyRefunded, 3000, 1000, at(24*time.Hour), now.Add(-25*time.Hour))
	mk("o3", orders.StatusCreated, 9999, 0, nil, now.Add(-time.Minute))
	mk("o4", orders.StatusShipped, 2000, 0, at(90*24*time.Hour), now.Add(-91*24*time.Hour))

	s := NewService(db, "USD")
	s.now = func() time.Time { return now }
	sum, err := s.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, Counts{Orders: 4, PaidOrders: 3, Products: 1, Customers: 1, Users: 1}, sum.Counts)
	assert.EqualValues(t, 5000+2000+2000, sum.RevenueCents)
	assert.Equal(t, "USD", sum.Currency)

	require.Len(t, sum.Sales, 30)
	assert.Equal(t, "2025-06-01", sum.Sales[0].Date)
	last := sum.Sales[29]
	assert.Equal(t, "2025-06-30", last.Date)
	assert.Equal(t, 1, last.Orders)
	assert.Equal(t, 5000, last.RevenueCents)
	assert.Equal(t, 2000, sum.Sales[28].RevenueCents)

	require.Len(t, sum.RecentOrders, 4)
	assert.Equal(t, "o3", sum.RecentOrders[0].ID)

	require.Len(t, sum.LowStock, 1)
	assert.Equal(t, "MUG-1", sum.LowStock[0].SKU)
	assert.Equal(t, "Mug", sum.LowStock[0].ProductName)
}
