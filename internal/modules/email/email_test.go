package email

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/config"
	"shopdesk.io/app/internal/mailer"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/platform/database/dbtest"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/metrics"
)

type fixture struct {
	db     *gorm.DB
	outbox *OutboxService
	mail   *mailer.Mock
	worker *Worker
	mt     *metrics.Metrics
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:    dbtest.New(t, Models()...),
		mail:  &mailer.Mock{},
		mt:    metrics.New(),
		clock: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	f.outbox = NewOutboxService(f.db)
	f.outbox.now = now
	f.worker = NewWorker(f.db, f.mail, config.EmailConfig{
		From: "shop@example.com", FromName: "Shopdesk", BatchSize: 10, MaxAttempts: 3,
	}, f.mt, logging.Discard())
	f.worker.now = now
	return f
}

func (f *fixture) row(t *testing.T) Outbox {
	t.Helper()
	var m Outbox
	require.NoError(t, f.db.First(&m).Error)
	return m
}

func sampleOrder(t *testing.T) (orders.Order, []orders.OrderItem) {
	t.Helper()
	addr, err := json.Marshal(checkout.Address{
		FullName: "Ada Lovelace", Address1: "1 Main St", City: "London", PostalCode: "N1", Country: "GB",
	})
	require.NoError(t, err)
	o := orders.Order{
		ID: "ord-1", Email: "ada@example.com", Currency: "USD", Status: orders.StatusCreated,
		SubtotalCents: 5000, ShippingCents: 1000, TaxCents: 750, TotalCents: 6750,
		ShippingMethod: "standard", ShippingAddressJSON: datatypes.JSON(addr),
	}
	items := []orders.OrderItem{{
		ProductName: "Mug", Quantity: 2, LineTotalCents: 5000, Currency: "USD",
		Options: datatypes.JSONMap{"size": "L", "color": "red"},
	}}
	return o, items
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.outbox.Enqueue(ctx, " a@example.com ", "Hi", "text", "<p>html</p>"))
	m := f.row(t)
	assert.Equal(t, "a@example.com", m.To)
	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, 0, m.Attempts)
	assert.True(t, m.NextAttemptAt.Equal(f.clock))

	assert.ErrorIs(t, f.outbox.Enqueue(ctx, "  ", "Hi", "t", ""), ErrNoRecipient)
	assert.Error(t, f.outbox.EnqueueJob(ctx, Job{To: "a@x", Template: "nope"}))
}

func TestEnqueueTxRollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	o, items := sampleOrder(t)
	boom := errors.New("boom")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, f.outbox.EnqueueTx(context.Background(), tx, Job{
			To: o.Email, Template: TemplateOrderConfirmation, Payload: orderData{OrderID: o.ID, Items: []itemData{{Name: items[0].ProductName}}},
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, f.db.Model(&Outbox{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOrderNotifierTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := NewOrderNotifier(f.outbox, "https://shop.example.com/", "Shopdesk")
	o, items := sampleOrder(t)

	require.NoError(t, n.OrderPlaced(ctx, o, items))
	require.NoError(t, n.PaymentReceived(ctx, o))
	require.NoError(t, n.OrderShipped(ctx, o))

	var rows []Outbox
	require.NoError(t, f.db.Order("template").Find(&rows).Error)
	require.Len(t, rows, 3)
	byTemplate := map[string]Outbox{}
	for _, r := range rows {
		assert.Equal(t, "ada@example.com", r.To)
		byTemplate[r.Template] = r
	}

	conf := byTemplate[TemplateOrderConfirmation]
	assert.Equal(t, "Order confirmation #ord-1", conf.Subject)
	assert.Contains(t, conf.TextBody, "Hello Ada Lovelace")
	assert.Contains(t, conf.TextBody, "2 x Mug (color: red, size: L): $50.00")
	assert.Contains(t, conf.TextBody, "Total:    $67.50")
	assert.Contains(t, conf.TextBody, "https://shop.example.com/orders/ord-1")
	assert.Contains(t, conf.HTMLBody, "<strong>$67.50</strong>")
	assert.Contains(t, conf.HTMLBody, "2 &times; Mug")

	paid := byTemplate[TemplatePaymentReceived]
	assert.Equal(t, "Payment received for order #ord-1", paid.Subject)
	assert.Contains(t, paid.TextBody, "$67.50")

	shipped := byTemplate[TemplateOrderShipped]
	assert.Equal(t, "Your order #ord-1 has shipped", shipped.Subject)
	assert.Contains(t, shipped.TextBody, "1 Main St, N1 London, GB")
}

func TestHTMLIsEscaped(t *testing.T) {
	r, err := render(TemplatePaymentReceived, orderData{OrderID: "x", Name: "<script>", Currency: "USD"})
	require.NoError(t, err)
	assert.NotContains(t, r.HTML, "<script>")
	assert.Contains(t, r.HTML, "&lt;script&gt;")
	assert.Contains(t, r.Text, "Hello <script>")
}

func TestWorkerDelivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.outbox.Enqueue(ctx, "a@example.com", "Hi", "text", ""))

	sent, err := f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := f.mail.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "shop@example.com", msgs[0].From)
	assert.Equal(t, "Shopdesk", msgs[0].FromName)
	assert.Equal(t, []string{"a@example.com"}, msgs[0].To)

	m := f.row(t)
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, 1, m.Attempts)
	require.NotNil(t, m.SentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mt.EmailsSent.WithLabelValues(StatusSent)))

	sent, err = f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, f.mail.Sent(), 1)
}

func TestWorkerBacksOffThenFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.outbox.Enqueue(ctx, "a@example.com", "Hi", "text", ""))
	f.mail.SetErr(errors.New("smtp down"))

	_, err := f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	m := f.row(t)
	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, 1, m.Attempts)
	require.NotNil(t, m.LastError)
	assert.Equal(t, "smtp down", *m.LastError)
	assert.True(t, m.NextAttemptAt.Equal(f.clock.Add(time.Minute)))

	// not due yet
	_, err = f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.row(t).Attempts)

	f.clock = f.clock.Add(time.Minute)
	_, err = f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	m = f.row(t)
	assert.Equal(t, 2, m.Attempts)
	assert.True(t, m.NextAttemptAt.Equal(f.clock.Add(2*time.Minute)))

	f.clock = f.clock.Add(2 * time.Minute)
	_, err = f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	m = f.row(t)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, 3, m.Attempts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mt.EmailsSent.WithLabelValues(StatusFailed)))

	// manual retry puts it back in the queue
	f.mail.SetErr(nil)
	require.NoError(t, f.outbox.Retry(ctx, m.ID))
	assert.ErrorIs(t, f.outbox.Retry(ctx, m.ID), gorm.ErrRecordNotFound)
	sent, err := f.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, StatusSent, f.row(t).Status)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.worker.interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(0))
	assert.Equal(t, time.Minute, Backoff(1))
	assert.Equal(t, 2*time.Minute, Backoff(2))
	assert.Equal(t, 4*time.Minute, Backoff(3))
	assert.Equal(t, 6*time.Hour, Backoff(40))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.clock = f.clock.Add(time.Second)
		require.NoError(t, f.outbox.Enqueue(ctx, "a@example.com", "Hi", "t", ""))
	}
	rows, total, err := f.outbox.List(ctx, ListParams{Status: StatusPending, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 2)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))
}
