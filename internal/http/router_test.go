package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/config"
	"shopdesk.io/app/internal/docstore"
	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/platform/database/dbtest"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/schema"
	"shopdesk.io/app/internal/storage"
)

const storefront = "http://shop.test"

type testApp struct {
	srv  *httptest.Server
	db   *gorm.DB
	mock *payments.Mock
	docs *docstore.Memory
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "test", BaseURL: "http://api.test", StorefrontURL: storefront, Secret: "test-secret"},
		Session: config.SessionConfig{CookieName: "sid", TTL: time.Hour},
		Cart:    config.CartConfig{CookieName: "cart", WishlistCookieName: "wishlist"},
		Checkout: config.CheckoutConfig{
			Currency:                   "USD",
			TaxRateBasisPoints:         0,
			FreeShippingThresholdCents: 10000,
			StandardShippingCents:      500,
			ExpressShippingCents:       1500,
		},
		Email:     config.EmailConfig{FromName: "Shop"},
		RateLimit: config.RateLimitConfig{AuthRPS: 1000, AuthBurst: 1000, CheckoutRPS: 1000, CheckoutBurst: 1000},
	}
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t, schema.Models()...)
	mock := payments.NewMock("whsec")
	docs := docstore.NewMemory()
	r := NewRouter(Deps{
		Config:   testConfig(),
		DB:       db,
		Log:      logging.Discard(),
		Provider: mock,
		Storage:  storage.NewLocal(t.TempDir(), "/uploads"),
		Docs:     docs,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return testApp{srv: srv, db: db, mock: mock, docs: docs}
}

// client keeps cookies and does not follow redirects.
func (a testApp) client(t *testing.T) *nethttp.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &nethttp.Client{
		Jar: jar,
		CheckRedirect: func(*nethttp.Request, []*nethttp.Request) error {
			return nethttp.ErrUseLastResponse
		},
	}
}

func (a testApp) do(t *testing.T, c *nethttp.Client, method, path string, body any, headers ...string) (*nethttp.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	u := path
	if !strings.HasPrefix(path, "http") {
		u = a.srv.URL + path
	}
	req, err := nethttp.NewRequest(method, u, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := c.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return res, out
}

func seedVariant(t *testing.T, db *gorm.DB, price, stock int) products.Variant {
	t.Helper()
	p := products.Product{ID: "p-1", Name: "Trail Shoe", Slug: "trail-shoe", Status: products.StatusActive}
	require.NoError(t, db.Create(&p).Error)
	v := products.Variant{ID: "v-1", ProductID: p.ID, SKU: "TS-42", PriceCents: price, Currency: "USD", Stock: stock}
	require.NoError(t, db.Create(&v).Error)
	return v
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) {
	t.Helper()
	hash, err := auth.HashPassword("secret-pass")
	require.NoError(t, err)
	u := auth.User{ID: "u-" + role, Email: email, Name: role, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(&u).Error)
}

func login(t *testing.T, a testApp, c *nethttp.Client, email string) {
	t.Helper()
	res, _ := a.do(t, c, nethttp.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": "secret-pass"})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
}

var shipTo = map[string]any{
	"full_name":   "Ada Lovelace",
	"address1":    "1 Analytical Way",
	"city":        "London",
	"postal_code": "N1 9GU",
	"country":     "gb",
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)

	res, body := a.do(t, c, nethttp.MethodGet, "/health", nil)
	assert.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])

	res, _ = a.do(t, c, nethttp.MethodGet, "/metrics", nil)
	assert.Equal(t, nethttp.StatusOK, res.StatusCode)

	res, body = a.do(t, c, nethttp.MethodGet, "/nope", nil)
	assert.Equal(t, nethttp.StatusNotFound, res.StatusCode)
	assert.NotEmpty(t, body["request_id"])
}

func TestGuestCheckoutWithRedirectPayment(t *testing.T) {
	a := newTestApp(t)
	v := seedVariant(t, a.db, 2500, 5)
	c := a.client(t)

	res, cart := a.do(t, c, nethttp.MethodPost, "/api/cart/items", map[string]any{"variant_id": v.ID, "qty": 2})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.EqualValues(t, 2, cart["count"])
	assert.EqualValues(t, 5000, cart["subtotal_cents"])

	res, quote := a.do(t, c, nethttp.MethodPost, "/api/checkout/quote", map[string]any{"shipping_method": "express"})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	totals := quote["totals"].(map[string]any)
	assert.EqualValues(t, 6500, totals["total_cents"])

	// guests must give an email
	res, body := a.do(t, c, nethttp.MethodPost, "/api/checkout/orders", map[string]any{"shipping_address": shipTo})
	require.Equal(t, nethttp.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body["fields"], "email")

	res, placed := a.do(t, c, nethttp.MethodPost, "/api/checkout/orders", map[string]any{
		"email":            "guest@example.com",
		"shipping_address": shipTo,
	}, handlers.IdempotencyHeader, "guest-key-1")
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)
	order := placed["order"].(map[string]any)
	orderID := order["id"].(string)
	assert.Equal(t, orders.StatusCreated, order["status"])
	assert.Equal(t, true, order["guest"])

	// the guest cart cookie is gone; the same key replays the order
	_, cart = a.do(t, c, nethttp.MethodGet, "/api/cart", nil)
	assert.EqualValues(t, 0, cart["count"])
	res, replay := a.do(t, c, nethttp.MethodPost, "/api/checkout/orders", map[string]any{
		"email":            "guest@example.com",
		"shipping_address": shipTo,
	}, handlers.IdempotencyHeader, "guest-key-1")
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, false, replay["created"])
	assert.Equal(t, orderID, replay["order"].(map[string]any)["id"])

	res, start := a.do(t, c, nethttp.MethodPost, "/api/orders/"+orderID+"/pay", map[string]any{"flow": "redirect"})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	approve := start["approve_url"].(string)
	require.True(t, strings.HasPrefix(approve, "http://api.test"+handlers.PayPalReturnPath))

	// follow the approve URL back to this server
	au, err := url.Parse(approve)
	require.NoError(t, err)
	res, _ = a.do(t, c, nethttp.MethodGet, au.Path+"?"+au.RawQuery, nil)
	require.Equal(t, nethttp.StatusFound, res.StatusCode)
	assert.Equal(t, storefront+"/orders/"+orderID+"?payment=success", res.Header.Get("Location"))

	res, got := a.do(t, c, nethttp.MethodGet, "/api/orders/"+orderID, nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, orders.StatusPaid, got["status"])

	var stock int
	require.NoError(t, a.db.Model(&products.Variant{}).Select("stock").Where("id = ?", v.ID).Scan(&stock).Error)
	assert.Equal(t, 3, stock)
}

func TestSignupMergesGuestCartAndWishlist(t *testing.T) {
	a := newTestApp(t)
	v := seedVariant(t, a.db, 1000, 10)
	c := a.client(t)

	res, _ := a.do(t, c, nethttp.MethodPost, "/api/cart/items", map[string]any{"variant_id": v.ID})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	res, _ = a.do(t, c, nethttp.MethodPost, "/api/wishlist", map[string]any{"product_id": v.ProductID})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)

	res, _ = a.do(t, c, nethttp.MethodPost, "/api/auth/signup", map[string]any{
		"email": "new@example.com", "password": "secret-pass", "name": "New",
	})
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)

	res, me := a.do(t, c, nethttp.MethodGet, "/api/auth/me", nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.EqualValues(t, 1, me["cart_count"])
	assert.Equal(t, "1", res.Header.Get("X-Cart-Count"))

	_, wl := a.do(t, c, nethttp.MethodGet, "/api/wishlist", nil)
	require.Len(t, wl["items"], 1)

	res, _ = a.do(t, c, nethttp.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, nethttp.StatusNoContent, res.StatusCode)
	res, _ = a.do(t, c, nethttp.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, res.StatusCode)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	a := newTestApp(t)
	seedUser(t, a.db, "admin@example.com", auth.RoleAdmin)
	seedUser(t, a.db, "customer@example.com", auth.RoleCustomer)

	anon := a.client(t)
	res, _ := a.do(t, anon, nethttp.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, res.StatusCode)

	cust := a.client(t)
	login(t, a, cust, "customer@example.com")
	res, _ = a.do(t, cust, nethttp.MethodGet, "/api/admin/orders", nil)
	assert.Equal(t, nethttp.StatusForbidden, res.StatusCode)

	adm := a.client(t)
	login(t, a, adm, "admin@example.com")
	res, body := a.do(t, adm, nethttp.MethodGet, "/api/admin/dashboard", nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, "USD", body["currency"])

	res, body = a.do(t, adm, nethttp.MethodPost, "/api/admin/categories", map[string]any{"name": "Shoes"})
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)
	assert.Equal(t, "shoes", body["slug"])

	// an admin cannot delete themselves
	res, _ = a.do(t, adm, nethttp.MethodDelete, "/api/admin/users/u-admin", nil)
	assert.Equal(t, nethttp.StatusBadRequest, res.StatusCode)
}

func TestAdminShipsPaidOrder(t *testing.T) {
	a := newTestApp(t)
	v := seedVariant(t, a.db, 4000, 3)
	seedUser(t, a.db, "admin@example.com", auth.RoleAdmin)
	seedUser(t, a.db, "customer@example.com", auth.RoleCustomer)

	cust := a.client(t)
	login(t, a, cust, "customer@example.com")
	res, _ := a.do(t, cust, nethttp.MethodPost, "/api/cart/items", map[string]any{"variant_id": v.ID})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	res, placed := a.do(t, cust, nethttp.MethodPost, "/api/checkout/orders", map[string]any{"shipping_address": shipTo})
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)
	orderID := placed["order"].(map[string]any)["id"].(string)

	res, start := a.do(t, cust, nethttp.MethodPost, "/api/orders/"+orderID+"/pay", map[string]any{"flow": "popup"})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	res, captured := a.do(t, cust, nethttp.MethodPost, "/api/orders/"+orderID+"/paypal/capture",
		map[string]any{"provider_ref": start["provider_ref"]})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, orders.StatusPaid, captured["order_status"])

	res, list := a.do(t, cust, nethttp.MethodGet, "/api/orders", nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Len(t, list["items"], 1)

	adm := a.client(t)
	login(t, a, adm, "admin@example.com")

	res, _ = a.do(t, adm, nethttp.MethodPost, "/api/admin/orders/"+orderID+"/actions/deliver", nil)
	assert.Equal(t, nethttp.StatusConflict, res.StatusCode)

	res, shipped := a.do(t, adm, nethttp.MethodPost, "/api/admin/orders/"+orderID+"/actions/ship", nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, orders.StatusShipped, shipped["status"])

	res, detail := a.do(t, adm, nethttp.MethodGet, "/api/admin/orders/"+orderID, nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.NotEmpty(t, detail["events"])
	assert.Len(t, detail["payments"], 1)

	doc, err := a.docs.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, doc.Status)
}

func TestMockWebhookSignature(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)
	body := []byte(`{"id":"evt-1","type":"ignored","data":{"payment_ref":"MOCK-X","amount_cents":0,"currency":"USD"}}`)

	post := func(sig string) int {
		req, err := nethttp.NewRequest(nethttp.MethodPost, a.srv.URL+"/webhooks/mock", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(payments.MockSignatureHeader, sig)
		res, err := c.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		return res.StatusCode
	}

	assert.Equal(t, nethttp.StatusBadRequest, post("t=1,v1=deadbeef"))
	assert.Equal(t, nethttp.StatusOK, post(payments.SignMock("whsec", time.Now(), body)))

	res, _ := a.do(t, c, nethttp.MethodPost, "/webhooks/paypal", map[string]any{})
	assert.Equal(t, nethttp.StatusNotFound, res.StatusCode)
}

func TestGuestOrdersNeedVerifiedEmail(t *testing.T) {
	a := newTestApp(t)
	v := seedVariant(t, a.db, 1500, 5)

	guest := a.client(t)
	res, _ := a.do(t, guest, nethttp.MethodPost, "/api/cart/items", map[string]any{"variant_id": v.ID})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	res, _ = a.do(t, guest, nethttp.MethodPost, "/api/checkout/orders", map[string]any{
		"email":            "ada@example.com",
		"shipping_address": shipTo,
	})
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)

	c := a.client(t)
	res, _ = a.do(t, c, nethttp.MethodPost, "/api/auth/signup", map[string]any{
		"email": "ada@example.com", "password": "secret-pass", "name": "Ada",
	})
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)

	res, list := a.do(t, c, nethttp.MethodGet, "/api/orders", nil)
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Empty(t, list["items"], "an unconfirmed address does not claim guest orders")

	var mail email.Outbox
	require.NoError(t, a.db.Where("template = ?", email.TemplateVerifyEmail).First(&mail).Error)
	i := strings.Index(mail.TextBody, "verify-email?token=")
	require.GreaterOrEqual(t, i, 0)
	token := strings.Fields(mail.TextBody[i+len("verify-email?token="):])[0]

	res, _ = a.do(t, c, nethttp.MethodPost, "/api/auth/email/verify", map[string]any{"token": "nope"})
	assert.Equal(t, nethttp.StatusBadRequest, res.StatusCode)
	res, _ = a.do(t, c, nethttp.MethodPost, "/api/auth/email/verify", map[string]any{"token": token})
	require.Equal(t, nethttp.StatusOK, res.StatusCode)

	_, list = a.do(t, c, nethttp.MethodGet, "/api/orders", nil)
	assert.Len(t, list["items"], 1)

	res, _ = a.do(t, c, nethttp.MethodPost, "/api/auth/email/verify/resend", nil)
	assert.Equal(t, nethttp.StatusConflict, res.StatusCode)
}
