package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/plutov/paypal/v4"

	"shopdesk.io/app/internal/config"
)

// PayPal talks to the Orders v2 API: one PayPal order per payment attempt,
// captured after the buyer approves it (redirect or popup).
type PayPal struct {
	client    *paypal.Client
	webhookID string
	brandName string
}

func NewPayPal(cfg config.PayPalConfig) (*PayPal, error) {
	base := paypal.APIBaseSandBox
	if strings.EqualFold(cfg.Mode, "live") {
		base = paypal.APIBaseLive
	}
	if cfg.APIBase != "" {
		base = strings.TrimRight(cfg.APIBase, "/")
	}
	c, err := paypal.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	return &PayPal{client: c, webhookID: cfg.WebhookID, brandName: cfg.BrandName}, nil
}

func (p *PayPal) Name() string { return "paypal" }

func money(currency string, cents int) *paypal.Money {
	return &paypal.Money{Currency: currency, Value: FormatAmount(cents)}
}

func (p *PayPal) CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResponse, error) {
	amount := &paypal.PurchaseUnitAmount{
		Currency: req.Currency,
		Value:    FormatAmount(req.AmountCents),
	}
	// the breakdown must add up to the value, so it is only sent when it does
	if req.SubtotalCents+req.ShippingCents+req.TaxCents == req.AmountCents && req.SubtotalCents > 0 {
		amount.Breakdown = &paypal.PurchaseUnitAmountBreakdown{
			ItemTotal: money(req.Currency, req.SubtotalCents),
			Shipping:  money(req.Currency, req.ShippingCents),
			TaxTotal:  money(req.Currency, req.TaxCents),
		}
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture,
		[]paypal.PurchaseUnitRequest{{
			ReferenceID: req.OrderID,
			Amount:      amount,
		}},
		nil,
		&paypal.ApplicationContext{
			BrandName: p.brandName,
			ReturnURL: req.ReturnURL,
			CancelURL: req.CancelURL,
		},
	)
	if err != nil {
		return CreatePaymentResponse{}, fmt.Errorf("paypal create order: %w", err)
	}

	out := CreatePaymentResponse{ProviderRef: order.ID, Status: StatusRequiresAction}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApproveURL = l.Href
			break
		}
	}
	if out.ApproveURL == "" {
		return out, errors.New("paypal create order: no approve link in response")
	}
	return out, nil
}

func (p *PayPal) CapturePayment(ctx context.Context, req CaptureRequest) (CaptureResponse, error) {
	resp, err := p.client.CaptureOrder(ctx, req.ProviderRef, paypal.CaptureOrderRequest{})
	if err != nil {
		if alreadyCaptured(err) {
			return p.capturedFromOrder(ctx, req.ProviderRef)
		}
		return CaptureResponse{}, fmt.Errorf("paypal capture: %w", err)
	}

	out := CaptureResponse{Status: StatusFailed}
	if resp.Payer != nil {
		out.PayerEmail = resp.Payer.EmailAddress
		out.PayerID = resp.Payer.PayerID
	}
	for _, pu := range resp.PurchaseUnits {
		if pu.Payments == nil {
			continue
		}
		for _, c := range pu.Payments.Captures {
			fillCapture(&out, c)
		}
	}
	return out, nil
}

func fillCapture(out *CaptureResponse, c paypal.CaptureAmount) {
	out.CaptureRef = c.ID
	if c.Amount != nil {
		out.Currency = c.Amount.Currency
		if v, err := ParseAmount(c.Amount.Value); err == nil {
			out.AmountCents = v
		}
	}
	switch c.Status {
	case "COMPLETED":
		out.Status = StatusSucceeded
	case "PENDING":
		// settles later as PAYMENT.CAPTURE.COMPLETED or DENIED
		out.Status = StatusPending
	default:
		out.Status = StatusFailed
	}
}

// capturedFromOrder reads the existing capture when the order was captured
// by an earlier request or by the other checkout flow.
func (p *PayPal) capturedFromOrder(ctx context.Context, orderID string) (CaptureResponse, error) {
	order, err := p.client.GetOrder(ctx, orderID)
	if err != nil {
		return CaptureResponse{}, fmt.Errorf("paypal get order: %w", err)
	}
	out := CaptureResponse{Status: StatusFailed}
	if order.Payer != nil {
		out.PayerEmail = order.Payer.EmailAddress
		out.PayerID = order.Payer.PayerID
	}
	for _, pu := range order.PurchaseUnits {
		if pu.Payments == nil {
			continue
		}
		for _, c := range pu.Payments.Captures {
			fillCapture(&out, c)
		}
	}
	return out, nil
}

func alreadyCaptured(err error) bool {
	var er *paypal.ErrorResponse
	if !errors.As(err, &er) {
		return false
	}
	for _, d := range er.Details {
		if d.Issue == "ORDER_ALREADY_CAPTURED" {
			return true
		}
	}
	return false
}

func (p *PayPal) RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	if req.CaptureRef == "" {
		return RefundResponse{Status: StatusFailed}, errors.New("paypal refund: payment has no capture")
	}
	resp, err := p.client.RefundCapture(ctx, req.CaptureRef, paypal.RefundCaptureRequest{
		Amount:      money(req.Currency, req.AmountCents),
		NoteToPayer: req.Reason,
	})
	if err != nil {
		return RefundResponse{Status: StatusFailed}, fmt.Errorf("paypal refund: %w", err)
	}
	out := RefundResponse{ProviderRef: resp.ID}
	switch resp.Status {
	case "COMPLETED":
		out.Status = StatusSucceeded
	case "PENDING":
		out.Status = StatusInitiated
	default:
		out.Status = StatusFailed
	}
	return out, nil
}

type paypalWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount *struct {
			Currency string `json:"currency_code"`
			Value    string `json:"value"`
		} `json:"amount"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	} `json:"resource"`
}

func (p *PayPal) VerifyAndParseWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	if p.webhookID == "" {
		return WebhookEvent{}, fmt.Errorf("%w: paypal webhook id not configured", ErrInvalidSignature)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
	if err != nil {
		return WebhookEvent{}, err
	}
	req.Header = headers.Clone()
	res, err := p.client.VerifyWebhookSignature(ctx, req, p.webhookID)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("paypal verify webhook: %w", err)
	}
	if res.VerificationStatus != "SUCCESS" {
		return WebhookEvent{}, ErrInvalidSignature
	}
	return ParsePayPalWebhook(body)
}

// ParsePayPalWebhook maps a PayPal event onto the provider-neutral shape.
// Events that need no action map to EventIgnored.
func ParsePayPalWebhook(body []byte) (WebhookEvent, error) {
	var w paypalWebhook
	if err := json.Unmarshal(body, &w); err != nil || w.ID == "" || w.EventType == "" {
		return WebhookEvent{}, ErrInvalidPayload
	}
	ev := WebhookEvent{EventID: w.ID}
	if a := w.Resource.Amount; a != nil {
		ev.Currency = a.Currency
		if v, err := ParseAmount(a.Value); err == nil {
			ev.AmountCents = v
		}
	}

	switch w.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		ev.Type = EventPaymentSucceeded
		ev.CaptureRef = w.Resource.ID
		ev.PaymentRef = w.Resource.SupplementaryData.RelatedIDs.OrderID
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		ev.Type = EventPaymentFailed
		ev.CaptureRef = w.Resource.ID
		ev.PaymentRef = w.Resource.SupplementaryData.RelatedIDs.OrderID
	case "PAYMENT.CAPTURE.REFUNDED":
		ev.Type = EventRefundSucceeded
		ev.RefundRef = w.Resource.ID
		for _, l := range w.Resource.Links {
			if l.Rel == "up" {
				ev.CaptureRef = l.Href[strings.LastIndex(l.Href, "/")+1:]
			}
		}
	default:
		// CHECKOUT.ORDER.APPROVED and the rest: capture happens on return
		ev.Type = EventIgnored
	}
	return ev, nil
}
