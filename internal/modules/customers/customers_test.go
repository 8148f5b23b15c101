package customers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/platform/database/dbtest"
)

// orderRow mirrors the columns of the orders table this package reads.
type orderRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	CustomerID    *string
	Status        string
	Currency      string
	TotalCents    int
	RefundedCents int
	CreatedAt     time.Time
}

func (orderRow) TableName() string { return "orders" }

func setup(t *testing.T) (*gorm.DB, *Service) {
	db := dbtest.New(t, &Customer{}, &orderRow{})
	return db, NewService(db)
}

func TestUpsertTx(t *testing.T) {
	db, s := setup(t)
	ctx := context.Background()

	c1, err := UpsertTx(ctx, db, Input{Email: " Ada@Example.com", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", c1.Email)
	assert.Nil(t, c1.UserID)

	uid := "u1"
	c2, err := UpsertTx(ctx, db, Input{Email: "ada@example.com", UserID: &uid, LastName: "Lovelace",
		DefaultAddress: datatypes.JSON(`{"city":"London"}`)})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	got, err := s.Get(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "u1", *got.UserID)
	assert.JSONEq(t, `{"city":"London"}`, string(got.DefaultAddress))
}

func TestListWithStats(t *testing.T) {
	db, s := setup(t)
	ctx := context.Background()

	a, err := s.Create(ctx, Input{Email: "a@example.com", FirstName: "Ann", LastName: "Zed"})
	require.NoError(t, err)
	b, err := s.Create(ctx, Input{Email: "b@example.com", FirstName: "Bob", LastName: "Young"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Email: "A@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	for _, o := range []orderRow{
		{ID: "o1", CustomerID: &a.ID, Status: "paid", TotalCents: 1000, CreatedAt: time.Now()},
		{ID: "o2", CustomerID: &a.ID, Status: "created", TotalCents: 5000, CreatedAt: time.Now()},
		{ID: "o3", CustomerID: &b.ID, Status: "partially_refunded", TotalCents: 9000, RefundedCents: 1000, CreatedAt: time.Now()},
	} {
		require.NoError(t, db.Create(&o).Error)
	}

	items, total, err := s.List(ctx, ListQuery{Sort: "spent"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)
	assert.Equal(t, int64(8000), items[0].SpentCents)
	assert.Equal(t, int64(2), items[1].OrderCount)
	assert.Equal(t, int64(1000), items[1].SpentCents)

	items, _, err = s.List(ctx, ListQuery{Q: "bob"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	d, err := s.Detail(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.OrderCount)
	assert.Len(t, d.RecentOrders, 2)
}

func TestUpdateAndDelete(t *testing.T) {
	db, s := setup(t)
	ctx := context.Background()
	a, err := s.Create(ctx, Input{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Email: "b@example.com"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&orderRow{ID: "o1", CustomerID: &a.ID, Status: "paid"}).Error)

	_, err = s.Update(ctx, a.ID, Input{Email: "b@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	u, err := s.Update(ctx, a.ID, Input{Email: "new@example.com", Notes: "vip"})
	require.NoError(t, err)
	assert.Equal(t, "vip", u.Notes)

	require.NoError(t, s.Delete(ctx, a.ID))
	var o orderRow
	require.NoError(t, db.First(&o, "id = ?", "o1").Error)
	assert.Nil(t, o.CustomerID, "orders survive with the link cleared")

	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)
}
