package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/docstore"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/http/validation"
	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/modules/users"
	"shopdesk.io/app/internal/modules/wishlist"
	"shopdesk.io/app/internal/shared/apperr"
	"shopdesk.io/app/internal/storage"
)

type errRule struct {
	target error
	kind   apperr.Kind
	msg    string
	field  string
}

var errRules = []errRule{
	{orders.ErrNotFound, apperr.NotFound, "Order not found.", ""},
	{products.ErrNotFound, apperr.NotFound, "Product not found.", ""},
	{products.ErrVariantNotFound, apperr.NotFound, "Variant not found.", ""},
	{products.ErrImageNotFound, apperr.NotFound, "Image not found.", ""},
	{products.ErrCategoryNotFound, apperr.NotFound, "Category not found.", ""},
	{customers.ErrNotFound, apperr.NotFound, "Customer not found.", ""},
	{auth.ErrUserNotFound, apperr.NotFound, "User not found.", ""},
	{cart.ErrVariantNotFound, apperr.NotFound, "This product is not available.", ""},
	{cart.ErrItemNotFound, apperr.NotFound, "Item not in cart.", ""},
	{cart.ErrCartNotFound, apperr.NotFound, "Cart not found.", ""},
	{wishlist.ErrProductNotFound, apperr.NotFound, "Product not found.", ""},
	{payments.ErrPaymentNotFound, apperr.NotFound, "Payment not found.", ""},
	{docstore.ErrNotFound, apperr.NotFound, "Order document not found.", ""},
	{docstore.ErrDisabled, apperr.NotFound, "Order documents are not enabled.", ""},
	{gorm.ErrRecordNotFound, apperr.NotFound, "Not found.", ""},

	{auth.ErrEmailTaken, apperr.Conflict, "This email is already registered.", "email"},
	{customers.ErrEmailTaken, apperr.Conflict, "A customer with this email already exists.", "email"},
	{products.ErrSlugTaken, apperr.Conflict, "This slug is already in use.", "slug"},
	{products.ErrSKUTaken, apperr.Conflict, "This SKU is already in use.", "sku"},
	{products.ErrCategoryInUse, apperr.Conflict, "The category still has products or subcategories.", ""},
	{orders.ErrIdempotencyConflict, apperr.Conflict, "This idempotency key was already used.", "idempotency_key"},
	{orders.ErrInvalidTransition, apperr.Conflict, "This action is not allowed in the order's current status.", ""},
	{orders.ErrPaymentPending, apperr.Conflict, "A payment for this order is still settling.", ""},
	{orders.ErrNotDeletable, apperr.Conflict, "Only created or cancelled orders can be deleted.", ""},
	{orders.ErrProductUnavailable, apperr.Conflict, "A product in your cart is no longer available.", ""},
	{orders.ErrCurrencyMismatch, apperr.Conflict, "Your cart mixes currencies.", ""},
	{cart.ErrMixedCurrency, apperr.Conflict, "Your cart mixes currencies.", ""},
	{payments.ErrOrderNotPayable, apperr.Conflict, "This order cannot be paid.", ""},
	{payments.ErrNotCapturable, apperr.Conflict, "This payment cannot be captured.", ""},
	{payments.ErrNotRefundable, apperr.Conflict, "This order cannot be refunded.", ""},
	{payments.ErrNoSucceededPayment, apperr.Conflict, "The order has no captured payment.", ""},

	{orders.ErrCartEmpty, apperr.Invalid, "Your cart is empty.", ""},
	{orders.ErrUnsupportedPaymentMethod, apperr.Invalid, "Unsupported payment method.", "payment_method"},
	{orders.ErrEmailRequired, apperr.Invalid, "Email is required.", "email"},
	{orders.ErrRefundExceedsTotal, apperr.Invalid, "The refund exceeds the refundable amount.", "amount_cents"},
	{orders.ErrNotActionable, apperr.Invalid, "Unknown order action.", "action"},
	{checkout.ErrUnknownShippingMethod, apperr.Invalid, "Unknown shipping method.", "shipping_method"},
	{auth.ErrWeakPassword, apperr.Invalid, "Password must be at least 6 characters.", "password"},
	{auth.ErrWrongPassword, apperr.Invalid, "Current password is incorrect.", "current_password"},
	{products.ErrInvalidParent, apperr.Invalid, "Invalid parent category.", "parent_id"},
	{products.ErrInvalidStatus, apperr.Invalid, "Invalid product status.", "status"},
	{storage.ErrUnsupportedType, apperr.Invalid, "Images must be png, jpg, webp or gif.", "file"},
	{users.ErrSelfDelete, apperr.Invalid, "You cannot delete your own account.", ""},
	{users.ErrSelfDemote, apperr.Invalid, "You cannot remove your own admin role.", "role"},
	{users.ErrInvalidRole, apperr.Invalid, "Invalid role.", "role"},
	{users.ErrInvalidToken, apperr.Invalid, "This link is invalid or has expired.", "token"},
	{users.ErrAlreadyVerified, apperr.Conflict, "Your email address is already verified.", ""},
	{email.ErrNoRecipient, apperr.Invalid, "Recipient is required.", ""},
	{payments.ErrInvalidSignature, apperr.Invalid, "Invalid webhook signature.", ""},
	{payments.ErrInvalidPayload, apperr.Invalid, "Invalid webhook payload.", ""},

	{auth.ErrInvalidCredentials, apperr.Unauthorized, "Invalid email or password.", ""},
	{payments.ErrForbidden, apperr.Forbidden, "You cannot access this order.", ""},
	{payments.ErrProvider, apperr.Internal, "The payment provider is unavailable. Please try again.", ""},
}

// MapError turns module errors into apperr values. Unknown errors become
// generic internal errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var oos *checkout.OutOfStockError
	if errors.As(err, &oos) {
		fields := make(map[string]string, len(oos.Items))
		for _, it := range oos.Items {
			key := it.SKU
			if key == "" {
				key = it.VariantID
			}
			fields[key] = fmt.Sprintf("Only %d left in stock.", it.Available)
		}
		return &apperr.AppError{Kind: apperr.Conflict, PublicMsg: "Some items are out of stock.", Fields: fields, Err: err}
	}

	for _, r := range errRules {
		if errors.Is(err, r.target) {
			ae := &apperr.AppError{Kind: r.kind, PublicMsg: r.msg, Err: err}
			if r.field != "" && (r.kind == apperr.Invalid || r.kind == apperr.Conflict) {
				ae.Fields = map[string]string{r.field: r.msg}
			}
			return ae
		}
	}
	return apperr.Wrap(err)
}

// Fail maps err and aborts the request; ErrorHandler renders it.
func Fail(c *gin.Context, err error) {
	middleware.Fail(c, MapError(err))
}

// BindJSON binds and validates the body, failing the request on error.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Please check the highlighted fields.", validation.FromBindError(err)))
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid query parameters.", validation.FromBindError(err)))
		return false
	}
	return true
}
