package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/shared/apperr"
	"shopdesk.io/app/pkg/view"
)

const IdempotencyHeader = "Idempotency-Key"

// CheckoutHandler backs the checkout wizard: a quote for the review step
// and the single POST that places the order.
type CheckoutHandler struct {
	CartSvc *cart.Service
	CartCK  *cartcookie.Codec
	Pricer  *checkout.Pricer
	OrderSv *orders.Service
}

func NewCheckoutHandler(cartSvc *cart.Service, ck *cartcookie.Codec, pricer *checkout.Pricer, osvc *orders.Service) *CheckoutHandler {
	return &CheckoutHandler{CartSvc: cartSvc, CartCK: ck, Pricer: pricer, OrderSv: osvc}
}

type quoteInput struct {
	ShippingMethod string `json:"shipping_method" binding:"omitempty,oneof=standard express"`
}

// POST /api/checkout/quote
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var in quoteInput
	if c.Request.ContentLength != 0 && !BindJSON(c, &in) {
		return
	}
	if in.ShippingMethod == "" {
		in.ShippingMethod = checkout.ShippingStandard
	}

	var vm view.CartPage
	var err error
	if u, ok := middleware.CurrentUser(c); ok {
		vm, err = h.CartSvc.BuildCartPageForUser(c.Request.Context(), u.ID)
	} else {
		vm, err = h.CartSvc.BuildCartPageFromCookie(c.Request.Context(), h.CartCK.Cart(c))
	}
	if err != nil {
		Fail(c, err)
		return
	}
	if len(vm.Items) == 0 {
		Fail(c, orders.ErrCartEmpty)
		return
	}

	totals, err := h.Pricer.Totals(vm.SubtotalCents, in.ShippingMethod)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.CheckoutQuote{
		Cart:            vm,
		ShippingMethod:  in.ShippingMethod,
		ShippingOptions: ShippingOptionsView(vm.Currency, h.Pricer.ShippingOptions(vm.SubtotalCents)),
		Totals:          TotalsView(vm.Currency, totals),
	})
}

type placeOrderInput struct {
	Email           string            `json:"email" binding:"omitempty,email,max=255"`
	ShippingAddress checkout.Address  `json:"shipping_address" binding:"required"`
	BillingAddress  *checkout.Address `json:"billing_address"`
	ShippingMethod  string            `json:"shipping_method" binding:"omitempty,oneof=standard express"`
	PaymentMethod   string            `json:"payment_method" binding:"omitempty,oneof=paypal"`
	IdempotencyKey  string            `json:"idempotency_key" binding:"max=64"`
}

// POST /api/checkout/orders answers 201 for a new order and 200 when the
// idempotency key replays an earlier one.
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var in placeOrderInput
	if !BindJSON(c, &in) {
		return
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	}
	if len(in.IdempotencyKey) > 64 {
		middleware.Fail(c, apperr.InvalidErr("Please check the highlighted fields.",
			map[string]string{"idempotency_key": "Must be at most 64."}))
		return
	}

	ci := orders.CreateInput{
		ShippingAddress: in.ShippingAddress.Normalize(),
		ShippingMethod:  in.ShippingMethod,
		PaymentMethod:   in.PaymentMethod,
		IdempotencyKey:  in.IdempotencyKey,
	}
	if in.BillingAddress != nil {
		b := in.BillingAddress.Normalize()
		ci.BillingAddress = &b
	}

	u, authed := middleware.CurrentUser(c)
	if authed {
		ci.UserID = u.ID
		ci.Email = u.Email
	} else {
		if in.Email == "" {
			middleware.Fail(c, apperr.InvalidErr("Please check the highlighted fields.",
				map[string]string{"email": "This field is required."}))
			return
		}
		ci.Email = in.Email
		ci.GuestItems = h.CartCK.Cart(c).Items
	}

	res, err := h.OrderSv.CreateFromCart(c.Request.Context(), ci)
	if err != nil {
		Fail(c, err)
		return
	}
	if !authed {
		h.CartCK.Clear(c)
	}

	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"order": OrderDetailView(res.Order, res.Items), "created": res.Created})
}
