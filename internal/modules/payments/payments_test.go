package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/docstore"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/platform/database/dbtest"
)

type countingNotifier struct {
	orders.NopNotifier
	paid int
}

func (n *countingNotifier) PaymentReceived(context.Context, orders.Order) error {
	n.paid++
	return nil
}

type fixture struct {
	db       *gorm.DB
	mock     *Mock
	svc      *Service
	refunds  *RefundService
	webhooks *WebhookService
	docs     *docstore.Memory
	notifier *countingNotifier
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t, append(orders.Models(), Models()...)...)
	docs := docstore.NewMemory()
	n := &countingNotifier{}
	d := Deps{Mirror: orders.NewDocumentSyncer(db, docs), Notifier: n}
	m := NewMock("whsec")
	return fixture{
		db:       db,
		mock:     m,
		svc:      NewService(db, m, d),
		refunds:  NewRefundService(db, m, d),
		webhooks: NewWebhookService(db, d),
		docs:     docs,
		notifier: n,
	}
}

func mkOrder(t *testing.T, db *gorm.DB, id string, userID *string, total int) orders.Order {
	t.Helper()
	o := orders.Order{
		ID:             id,
		UserID:         userID,
		Email:          "buyer@example.com",
		Status:         orders.StatusCreated,
		Currency:       "USD",
		SubtotalCents:  total,
		TotalCents:     total,
		ShippingMethod: "standard",
		PaymentMethod:  orders.PaymentMethodPayPal,
	}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func orderStatus(t *testing.T, db *gorm.DB, id string) orders.Order {
	t.Helper()
	var o orders.Order
	require.NoError(t, db.First(&o, "id = ?", id).Error)
	return o
}

func startAndCapture(t *testing.T, f fixture, orderID string) StartResult {
	t.Helper()
	ctx := context.Background()
	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: orderID, ReturnURL: "http://api.test/checkout/paypal/return"})
	require.NoError(t, err)
	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	require.NoError(t, err)
	return start
}

func TestStartAndCaptureRedirectFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 5000)

	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1", IdempotencyKey: "k1",
		ReturnURL: "http://api.test/checkout/paypal/return", CancelURL: "http://api.test/checkout/paypal/cancel"})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresAction, start.Status)
	assert.True(t, strings.HasPrefix(start.ProviderRef, "MOCK-"))
	assert.Contains(t, start.ApproveURL, "token="+start.ProviderRef)

	again, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, start.PaymentID, again.PaymentID)

	res, err := f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, orders.StatusPaid, res.OrderStatus)
	assert.False(t, res.Idempotent)

	var p Payment
	require.NoError(t, f.db.First(&p, "id = ?", start.PaymentID).Error)
	require.NotNil(t, p.CaptureRef)
	require.NotNil(t, p.PayerEmail)
	assert.Equal(t, "buyer@example.com", *p.PayerEmail)

	// popup flow arriving after the redirect
	res, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef, OrderID: "o1", CheckActor: true})
	require.NoError(t, err)
	assert.True(t, res.Idempotent)
	assert.Equal(t, 1, f.notifier.paid)

	o := orderStatus(t, f.db, "o1")
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.NotNil(t, o.PaidAt)

	var entries []orders.FinancialEntry
	require.NoError(t, f.db.Find(&entries, "order_id = ?", "o1").Error)
	require.Len(t, entries, 1)
	assert.Equal(t, 5000, entries[0].AmountCents)

	doc, err := f.docs.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, doc.Status)
	require.Len(t, doc.Payments, 1)
	assert.Equal(t, StatusSucceeded, doc.Payments[0].Status)

	_, err = f.svc.StartPayment(ctx, StartInput{OrderID: "o1", IdempotencyKey: "k2"})
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestStartPaymentAuthorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	uid := "u1"
	mkOrder(t, f.db, "o1", &uid, 1000)

	_, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.StartPayment(ctx, StartInput{OrderID: "o1", ActorUserID: "u2"})
	assert.ErrorIs(t, err, ErrForbidden)

	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1", ActorUserID: "u1", Flow: FlowPopup})
	require.NoError(t, err)

	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef, OrderID: "o1", ActorUserID: "u2", CheckActor: true})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef, OrderID: "other"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: "nope"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	var p Payment
	require.NoError(t, f.db.First(&p, "id = ?", start.PaymentID).Error)
	assert.Equal(t, FlowPopup, p.Flow)
}

func TestProviderFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 1000)

	f.mock.FailCreate = true
	res, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1", IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, StatusFailed, res.Status)
	f.mock.FailCreate = false

	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1", IdempotencyKey: "k2"})
	require.NoError(t, err)

	f.mock.DeclineCapture = true
	capRes, err := f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, capRes.Status)
	assert.Equal(t, orders.StatusCreated, capRes.OrderStatus)

	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	assert.ErrorIs(t, err, ErrNotCapturable)
}

func TestCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 1000)
	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1"})
	require.NoError(t, err)

	orderID, err := f.svc.Cancel(ctx, start.ProviderRef)
	require.NoError(t, err)
	assert.Equal(t, "o1", orderID)

	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	assert.ErrorIs(t, err, ErrNotCapturable)
	assert.Equal(t, orders.StatusCreated, orderStatus(t, f.db, "o1").Status)
}

func TestRefunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 10000)

	_, err := f.refunds.RefundOrder(ctx, RefundOrderInput{OrderID: "o1", ActorUserID: "admin", IdempotencyKey: "r0"})
	assert.ErrorIs(t, err, ErrNotRefundable)

	startAndCapture(t, f, "o1")

	part, err := f.refunds.RefundOrder(ctx, RefundOrderInput{OrderID: "o1", ActorUserID: "admin", IdempotencyKey: "r1", AmountCents: 4000, Reason: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, part.Status)
	assert.Equal(t, orders.StatusPartiallyRefunded, part.OrderStatus)

	replay, err := f.refunds.RefundOrder(ctx, RefundOrderInput{OrderID: "o1", ActorUserID: "admin", IdempotencyKey: "r1", AmountCents: 4000})
	require.NoError(t, err)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, part.RefundID, replay.RefundID)

	_, err = f.refunds.RefundOrder(ctx, RefundOrderInput{OrderID: "o1", ActorUserID: "admin", IdempotencyKey: "r2", AmountCents: 7000})
	assert.ErrorIs(t, err, orders.ErrRefundExceedsTotal)

	rest, err := f.refunds.RefundOrder(ctx, RefundOrderInput{OrderID: "o1", ActorUserID: "admin", IdempotencyKey: "r3"})
	require.NoError(t, err)
	assert.Equal(t, 6000, rest.AmountCents)
	assert.Equal(t, orders.StatusRefunded, rest.OrderStatus)

	o := orderStatus(t, f.db, "o1")
	assert.Equal(t, 10000, o.RefundedCents)

	var events []orders.OrderEvent
	require.NoError(t, f.db.Find(&events, "order_id = ? AND action = ?", "o1", orders.ActionRefund).Error)
	require.Len(t, events, 2)

	pays, refs, err := f.svc.ListForOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, pays, 1)
	assert.Len(t, refs, 2)
}

func signedDelivery(t *testing.T, f fixture, w MockWebhook) (WebhookEvent, []byte) {
	t.Helper()
	body, err := json.Marshal(w)
	require.NoError(t, err)
	h := http.Header{}
	h.Set(MockSignatureHeader, SignMock("whsec", time.Now(), body))
	ev, err := f.mock.VerifyAndParseWebhook(context.Background(), h, body)
	require.NoError(t, err)
	return ev, body
}

func TestWebhookCapturesAndDedupes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 2500)
	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1"})
	require.NoError(t, err)

	w := MockWebhook{ID: "evt_1", Type: EventPaymentSucceeded}
	w.Data.PaymentRef = start.ProviderRef
	w.Data.CaptureRef = "CAP-1"
	ev, body := signedDelivery(t, f, w)

	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))
	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))

	assert.Equal(t, orders.StatusPaid, orderStatus(t, f.db, "o1").Status)
	assert.Equal(t, 1, f.notifier.paid)

	var n int64
	require.NoError(t, f.db.Model(&ProviderEvent{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	require.NoError(t, f.db.Model(&orders.FinancialEntry{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	// the buyer's return after the webhook finds the payment settled
	res, err := f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	require.NoError(t, err)
	assert.True(t, res.Idempotent)
}

func TestWebhookErrorIsRecordedAndRetried(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	w := MockWebhook{ID: "evt_2", Type: EventPaymentSucceeded}
	w.Data.PaymentRef = "MOCK-UNKNOWN"
	ev, body := signedDelivery(t, f, w)

	err := f.webhooks.Handle(ctx, "mock", ev, body)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	var pe ProviderEvent
	require.NoError(t, f.db.First(&pe, "event_id = ?", "evt_2").Error)
	assert.Nil(t, pe.ProcessedAt)
	require.NotNil(t, pe.ProcessError)

	// the payment shows up, the provider retries the same event
	mkOrder(t, f.db, "o1", nil, 1000)
	ref := "MOCK-UNKNOWN"
	require.NoError(t, f.db.Create(&Payment{ID: "p1", OrderID: "o1", Provider: "mock", ProviderRef: &ref,
		Status: StatusRequiresAction, Flow: FlowRedirect, AmountCents: 1000, Currency: "USD", IdempotencyKey: "k"}).Error)
	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))

	require.NoError(t, f.db.First(&pe, "event_id = ?", "evt_2").Error)
	assert.NotNil(t, pe.ProcessedAt)
	assert.Equal(t, orders.StatusPaid, orderStatus(t, f.db, "o1").Status)

	unknown := MockWebhook{ID: "evt_3", Type: "payment.weird"}
	ev, body = signedDelivery(t, f, unknown)
	assert.ErrorIs(t, f.webhooks.Handle(ctx, "mock", ev, body), ErrUnknownEventType)
}

func TestMockSignature(t *testing.T) {
	m := NewMock("whsec")
	body := []byte(`{"id":"evt","type":"payment.failed","data":{"payment_ref":"X"}}`)

	h := http.Header{}
	h.Set(MockSignatureHeader, SignMock("whsec", time.Now(), body))
	ev, err := m.VerifyAndParseWebhook(context.Background(), h, body)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "X", ev.PaymentRef)

	h.Set(MockSignatureHeader, SignMock("other", time.Now(), body))
	_, err = m.VerifyAndParseWebhook(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	h.Set(MockSignatureHeader, SignMock("whsec", time.Now().Add(-time.Hour), body))
	_, err = m.VerifyAndParseWebhook(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	h.Set(MockSignatureHeader, SignMock("whsec", time.Now(), []byte(`{}`)))
	_, err = m.VerifyAndParseWebhook(context.Background(), h, []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "12.34", FormatAmount(1234))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "-1.00", FormatAmount(-100))

	for in, want := range map[string]int{"12.34": 1234, "12.3": 1230, "7": 700, "0.05": 5, "-2.50": -250} {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAmount("1.234")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestCaptureRefusedAfterAdminCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 3000)
	start, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1", ReturnURL: "http://api.test/checkout/paypal/return"})
	require.NoError(t, err)

	admin := orders.NewAdminService(f.db, nil, nil, nil)
	_, err = admin.Transition(ctx, orders.TransitionInput{OrderID: "o1", ActorUserID: "admin", Action: orders.ActionCancel})
	require.NoError(t, err)

	var p Payment
	require.NoError(t, f.db.First(&p, "id = ?", start.PaymentID).Error)
	assert.Equal(t, StatusCancelled, p.Status, "cancel closes the open checkout")

	res, err := f.svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	assert.ErrorIs(t, err, ErrNotCapturable)
	assert.Equal(t, "o1", res.OrderID)
	assert.False(t, f.mock.Captured(start.ProviderRef), "the provider is never asked to capture")
	assert.Equal(t, orders.StatusCancelled, orderStatus(t, f.db, "o1").Status)
}

// cancelDuringCapture cancels the order while the provider captures.
type cancelDuringCapture struct {
	*Mock
	cancel func()
}

func (p cancelDuringCapture) CapturePayment(ctx context.Context, req CaptureRequest) (CaptureResponse, error) {
	p.cancel()
	return p.Mock.CapturePayment(ctx, req)
}

func TestCaptureRacingCancelIsRecorded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 3000)

	admin := orders.NewAdminService(f.db, nil, nil, nil)
	provider := cancelDuringCapture{Mock: f.mock, cancel: func() {
		_, err := admin.Transition(ctx, orders.TransitionInput{OrderID: "o1", ActorUserID: "admin", Action: orders.ActionCancel})
		require.NoError(t, err)
	}}
	svc := NewService(f.db, provider, Deps{})

	start, err := svc.StartPayment(ctx, StartInput{OrderID: "o1", ReturnURL: "http://api.test/checkout/paypal/return"})
	require.NoError(t, err)
	_, err = svc.Capture(ctx, CaptureInput{ProviderRef: start.ProviderRef})
	assert.ErrorIs(t, err, ErrNotCapturable)
	require.True(t, f.mock.Captured(start.ProviderRef))

	var p Payment
	require.NoError(t, f.db.First(&p, "id = ?", start.PaymentID).Error)
	assert.Equal(t, StatusSucceeded, p.Status)
	require.NotNil(t, p.CaptureRef, "the capture is kept for a manual refund")
	require.NotNil(t, p.ErrorMessage)

	assert.Equal(t, orders.StatusCancelled, orderStatus(t, f.db, "o1").Status)
	var n int64
	require.NoError(t, f.db.Model(&orders.FinancialEntry{}).Count(&n).Error)
	assert.Zero(t, n)

	// the provider's capture webhook for it is acknowledged
	w := MockWebhook{ID: "evt_late", Type: EventPaymentSucceeded}
	w.Data.PaymentRef = start.ProviderRef
	w.Data.CaptureRef = *p.CaptureRef
	ev, body := signedDelivery(t, f, w)
	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))
	assert.Equal(t, orders.StatusCancelled, orderStatus(t, f.db, "o1").Status)
}

func TestPendingCaptureWaitsForWebhook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mkOrder(t, f.db, "o1", nil, 2000)
	mkOrder(t, f.db, "o2", nil, 2000)
	f.mock.PendingCapture = true

	s1, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o1"})
	require.NoError(t, err)
	res, err := f.svc.Capture(ctx, CaptureInput{ProviderRef: s1.ProviderRef})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, orders.StatusCreated, res.OrderStatus)

	again, err := f.svc.Capture(ctx, CaptureInput{ProviderRef: s1.ProviderRef})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, StatusPending, again.Status)
	assert.Zero(t, f.notifier.paid)

	var p1 Payment
	require.NoError(t, f.db.First(&p1, "id = ?", s1.PaymentID).Error)
	require.NotNil(t, p1.CaptureRef)

	// denied later: the payment fails and the order stays unpaid
	denied := MockWebhook{ID: "evt_denied", Type: EventPaymentFailed}
	denied.Data.CaptureRef = *p1.CaptureRef
	ev, body := signedDelivery(t, f, denied)
	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))
	require.NoError(t, f.db.First(&p1, "id = ?", s1.PaymentID).Error)
	assert.Equal(t, StatusFailed, p1.Status)
	assert.Equal(t, orders.StatusCreated, orderStatus(t, f.db, "o1").Status)

	// completed later: the order is paid
	s2, err := f.svc.StartPayment(ctx, StartInput{OrderID: "o2"})
	require.NoError(t, err)
	_, err = f.svc.Capture(ctx, CaptureInput{ProviderRef: s2.ProviderRef})
	require.NoError(t, err)
	var p2 Payment
	require.NoError(t, f.db.First(&p2, "id = ?", s2.PaymentID).Error)
	require.NotNil(t, p2.CaptureRef)

	done := MockWebhook{ID: "evt_done", Type: EventPaymentSucceeded}
	done.Data.PaymentRef = s2.ProviderRef
	done.Data.CaptureRef = *p2.CaptureRef
	ev, body = signedDelivery(t, f, done)
	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))
	assert.Equal(t, orders.StatusPaid, orderStatus(t, f.db, "o2").Status)
	assert.Equal(t, 1, f.notifier.paid)
}

func TestWebhookIgnoresUnknownRefund(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	w := MockWebhook{ID: "evt_ext_refund", Type: EventRefundSucceeded}
	w.Data.RefundRef = "REFUNDED-IN-DASHBOARD"
	ev, body := signedDelivery(t, f, w)
	require.NoError(t, f.webhooks.Handle(ctx, "mock", ev, body))

	var pe ProviderEvent
	require.NoError(t, f.db.First(&pe, "event_id = ?", "evt_ext_refund").Error)
	assert.NotNil(t, pe.ProcessedAt)
	assert.Nil(t, pe.ProcessError)
}
