package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk.io/app/internal/platform/database/dbtest"
)

func TestMigrateCreatesEveryTable(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db), "migrate is repeatable")

	for _, table := range []string{
		"users", "sessions", "categories", "products", "product_variants", "product_images",
		"carts", "cart_items", "wishlist_items", "customers",
		"orders", "order_items", "order_events", "financial_entries",
		"payments", "refunds", "provider_events", "email_outbox", "password_resets",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
