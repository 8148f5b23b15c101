package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const MockSignatureHeader = "X-Mock-Signature"

// mockTolerance bounds the age of a signed mock webhook.
const mockTolerance = 5 * time.Minute

// Mock stands in for PayPal in development and tests. The approve URL
// loops straight back to the return URL, so the redirect flow runs without
// leaving the site.
type Mock struct {
	secret []byte
	now    func() time.Time

	// FailCreate and DeclineCapture simulate provider failures.
	// PendingCapture accepts captures without settling them.
	FailCreate     bool
	DeclineCapture bool
	PendingCapture bool

	mu       sync.Mutex
	captures map[string]CaptureResponse
	amounts  map[string]CreatePaymentRequest
}

func NewMock(secret string) *Mock {
	return &Mock{
		secret:   []byte(secret),
		now:      time.Now,
		captures: map[string]CaptureResponse{},
		amounts:  map[string]CreatePaymentRequest{},
	}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) CreatePayment(_ context.Context, req CreatePaymentRequest) (CreatePaymentResponse, error) {
	if m.FailCreate {
		return CreatePaymentResponse{}, errors.New("mock: create declined")
	}
	ref := "MOCK-" + strings.ToUpper(uuid.NewString()[:13])
	m.mu.Lock()
	m.amounts[ref] = req
	m.mu.Unlock()

	approve := req.ReturnURL
	if approve != "" {
		if u, err := url.Parse(approve); err == nil {
			q := u.Query()
			q.Set("token", ref)
			u.RawQuery = q.Encode()
			approve = u.String()
		}
	}
	return CreatePaymentResponse{ProviderRef: ref, Status: StatusRequiresAction, ApproveURL: approve}, nil
}

// CapturePayment is idempotent per provider ref, like PayPal's capture.
func (m *Mock) CapturePayment(_ context.Context, req CaptureRequest) (CaptureResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.captures[req.ProviderRef]; ok {
		return c, nil
	}
	if m.DeclineCapture {
		return CaptureResponse{Status: StatusFailed}, nil
	}
	created := m.amounts[req.ProviderRef]
	status := StatusSucceeded
	if m.PendingCapture {
		status = StatusPending
	}
	c := CaptureResponse{
		CaptureRef:  "MOCKCAP-" + strings.ToUpper(uuid.NewString()[:13]),
		Status:      status,
		AmountCents: created.AmountCents,
		Currency:    created.Currency,
		PayerEmail:  "buyer@example.com",
		PayerID:     "MOCKPAYER",
	}
	m.captures[req.ProviderRef] = c
	return c, nil
}

// Captured reports whether the provider took money for ref.
func (m *Mock) Captured(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[ref]
	return ok && c.Status != StatusFailed
}

func (m *Mock) RefundPayment(_ context.Context, req RefundRequest) (RefundResponse, error) {
	if req.CaptureRef == "" {
		return RefundResponse{Status: StatusFailed}, errors.New("mock: missing capture ref")
	}
	return RefundResponse{ProviderRef: "MOCKREF-" + strings.ToUpper(uuid.NewString()[:13]), Status: StatusSucceeded}, nil
}

// MockWebhook is the JSON body of a mock webhook delivery.
type MockWebhook struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef  string `json:"payment_ref"`
		CaptureRef  string `json:"capture_ref,omitempty"`
		RefundRef   string `json:"refund_ref,omitempty"`
		AmountCents int    `json:"amount_cents"`
		Currency    string `json:"currency"`
	} `json:"data"`
}

// SignMock returns the X-Mock-Signature value: "t=<unix>,v1=<hex hmac>"
// where the HMAC-SHA256 covers "<unix>.<body>".
func SignMock(secret string, t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + mockSig([]byte(secret), ts, body)
}

func mockSig(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *Mock) VerifyAndParseWebhook(_ context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	var ts, sig string
	for _, part := range strings.Split(headers.Get(MockSignatureHeader), ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sig == "" {
		return WebhookEvent{}, ErrInvalidSignature
	}
	if d := m.now().Sub(time.Unix(unix, 0)); d > mockTolerance || d < -mockTolerance {
		return WebhookEvent{}, ErrInvalidSignature
	}
	if !hmac.Equal([]byte(sig), []byte(mockSig(m.secret, ts, body))) {
		return WebhookEvent{}, ErrInvalidSignature
	}

	var p MockWebhook
	if err := json.Unmarshal(body, &p); err != nil || p.ID == "" || p.Type == "" {
		return WebhookEvent{}, ErrInvalidPayload
	}
	return WebhookEvent{
		EventID:     p.ID,
		Type:        p.Type,
		PaymentRef:  p.Data.PaymentRef,
		CaptureRef:  p.Data.CaptureRef,
		RefundRef:   p.Data.RefundRef,
		AmountCents: p.Data.AmountCents,
		Currency:    p.Data.Currency,
	}, nil
}
