package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/payments"
)

const (
	PayPalReturnPath = "/checkout/paypal/return"
	PayPalCancelPath = "/checkout/paypal/cancel"
)

// PaymentsHandler starts provider checkouts and settles them, both from the
// provider's redirect back to this server and from the storefront popup.
type PaymentsHandler struct {
	PaySvc        *payments.Service
	BaseURL       string
	StorefrontURL string
	Logger        *slog.Logger
}

func NewPaymentsHandler(pay *payments.Service, baseURL, storefrontURL string, l *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		PaySvc:        pay,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		StorefrontURL: strings.TrimRight(storefrontURL, "/"),
		Logger:        l,
	}
}

type startPaymentInput struct {
	Flow           string `json:"flow" binding:"omitempty,oneof=redirect popup"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

// POST /api/orders/:id/pay
func (h *PaymentsHandler) Start(c *gin.Context) {
	var in startPaymentInput
	if c.Request.ContentLength != 0 && !BindJSON(c, &in) {
		return
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	}
	actor := ""
	if u, ok := middleware.CurrentUser(c); ok {
		actor = u.ID
	}
	res, err := h.PaySvc.StartPayment(c.Request.Context(), payments.StartInput{
		OrderID:        c.Param("id"),
		ActorUserID:    actor,
		IdempotencyKey: in.IdempotencyKey,
		Flow:           in.Flow,
		ReturnURL:      h.BaseURL + PayPalReturnPath,
		CancelURL:      h.BaseURL + PayPalCancelPath,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type captureInput struct {
	ProviderRef string `json:"provider_ref" binding:"required,max=128"`
}

// POST /api/orders/:id/paypal/capture is the popup flow's onApprove call.
func (h *PaymentsHandler) Capture(c *gin.Context) {
	var in captureInput
	if !BindJSON(c, &in) {
		return
	}
	actor := ""
	if u, ok := middleware.CurrentUser(c); ok {
		actor = u.ID
	}
	res, err := h.PaySvc.Capture(c.Request.Context(), payments.CaptureInput{
		ProviderRef: in.ProviderRef,
		OrderID:     c.Param("id"),
		ActorUserID: actor,
		CheckActor:  true,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /checkout/paypal/return?token=... captures and sends the buyer back to
// the storefront order page with payment=success|pending|failed.
func (h *PaymentsHandler) Return(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	res, err := h.PaySvc.Capture(c.Request.Context(), payments.CaptureInput{ProviderRef: token})
	outcome := "failed"
	switch {
	case err != nil:
		h.Logger.Warn("paypal return capture failed", "token", token, "order_id", res.OrderID, "err", err)
	case res.Status == payments.StatusSucceeded:
		outcome = "success"
	case res.Status == payments.StatusPending:
		outcome = "pending"
	}
	c.Redirect(http.StatusFound, h.storefrontOrderURL(res.OrderID, outcome))
}

// GET /checkout/paypal/cancel?token=...
func (h *PaymentsHandler) Cancel(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	orderID, err := h.PaySvc.Cancel(c.Request.Context(), token)
	if err != nil {
		h.Logger.Warn("paypal cancel failed", "token", token, "err", err)
	}
	c.Redirect(http.StatusFound, h.storefrontOrderURL(orderID, "cancelled"))
}

func (h *PaymentsHandler) storefrontOrderURL(orderID, outcome string) string {
	path := "/checkout"
	if orderID != "" {
		path = "/orders/" + url.PathEscape(orderID)
	}
	return h.StorefrontURL + path + "?payment=" + outcome
}
