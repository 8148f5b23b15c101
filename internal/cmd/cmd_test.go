package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/platform/database/dbtest"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/schema"
)

func TestSeedDemoIsIdempotent(t *testing.T) {
	db := dbtest.New(t, schema.Models()...)
	ctx := context.Background()
	log := logging.Discard()

	require.NoError(t, seedDemo(ctx, db, log, "USD", "admin@example.com", "admin123"))
	require.NoError(t, seedDemo(ctx, db, log, "USD", "admin@example.com", "admin123"))

	var n int64
	require.NoError(t, db.Model(&products.Product{}).Count(&n).Error)
	assert.EqualValues(t, len(demoCatalog), n)
	require.NoError(t, db.Model(&products.Category{}).Count(&n).Error)
	assert.EqualValues(t, len(demoCategories), n)
	require.NoError(t, db.Model(&products.Variant{}).Where("currency = ?", "USD").Count(&n).Error)
	assert.EqualValues(t, 9, n)

	var u auth.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&u).Error)
	assert.Equal(t, auth.RoleAdmin, u.Role)
}

func TestSeedPromotesExistingUser(t *testing.T) {
	db := dbtest.New(t, schema.Models()...)
	ctx := context.Background()
	_, err := auth.NewService(db, 0).Signup(ctx, auth.SignupInput{Email: "boss@example.com", Password: "hunter22"})
	require.NoError(t, err)

	require.NoError(t, seedDemo(ctx, db, logging.Discard(), "EUR", "boss@example.com", "ignored-pw"))

	var u auth.User
	require.NoError(t, db.Where("email = ?", "boss@example.com").First(&u).Error)
	assert.Equal(t, auth.RoleAdmin, u.Role)
}

func TestMockWebhookBodyVerifies(t *testing.T) {
	body, err := mockWebhookBody(mockWebhookFlags{
		eventType:  payments.EventPaymentSucceeded,
		paymentRef: "MOCK-1",
		amount:     1999,
		currency:   "USD",
	})
	require.NoError(t, err)

	var ev payments.MockWebhook
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.NotEmpty(t, ev.ID)

	h := http.Header{}
	h.Set(payments.MockSignatureHeader, payments.SignMock("s3cret", time.Now(), body))
	parsed, err := payments.NewMock("s3cret").VerifyAndParseWebhook(context.Background(), h, body)
	require.NoError(t, err)
	assert.Equal(t, "MOCK-1", parsed.PaymentRef)
	assert.Equal(t, 1999, parsed.AmountCents)
}
