package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/pkg/view"
)

// CartHandler serves the cart: the database cart for signed-in users, the
// signed cookie for guests.
type CartHandler struct {
	CartSvc *cart.Service
	CK      *cartcookie.Codec
}

func NewCartHandler(svc *cart.Service, ck *cartcookie.Codec) *CartHandler {
	return &CartHandler{CartSvc: svc, CK: ck}
}

func (h *CartHandler) page(c *gin.Context) (view.CartPage, error) {
	if u, ok := middleware.CurrentUser(c); ok {
		return h.CartSvc.BuildCartPageForUser(c.Request.Context(), u.ID)
	}
	return h.CartSvc.BuildCartPageFromCookie(c.Request.Context(), h.CK.Cart(c))
}

func (h *CartHandler) respond(c *gin.Context, status int) {
	vm, err := h.page(c)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(status, vm)
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	h.respond(c, http.StatusOK)
}

// GET /api/cart/count; CartCount middleware already did the work.
func (h *CartHandler) Count(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": middleware.GetCartCount(c)})
}

type addItemInput struct {
	VariantID string `json:"variant_id" binding:"required,max=36"`
	Qty       int    `json:"qty" binding:"omitempty,min=1,max=99"`
}

// POST /api/cart/items
func (h *CartHandler) Add(c *gin.Context) {
	var in addItemInput
	if !BindJSON(c, &in) {
		return
	}
	if in.Qty == 0 {
		in.Qty = 1
	}
	variantID := strings.TrimSpace(in.VariantID)
	ctx := c.Request.Context()

	if err := h.CartSvc.CheckVariant(ctx, variantID); err != nil {
		Fail(c, err)
		return
	}

	if u, ok := middleware.CurrentUser(c); ok {
		uc, err := h.CartSvc.Repo().GetOrCreateUserCart(ctx, u.ID)
		if err != nil {
			Fail(c, err)
			return
		}
		if err := h.CartSvc.Repo().AddItem(ctx, uc.ID, variantID, in.Qty); err != nil {
			Fail(c, err)
			return
		}
		h.respond(c, http.StatusOK)
		return
	}

	gc := h.CK.Cart(c)
	gc.Add(variantID, in.Qty)
	if err := h.CK.SaveCart(c, gc); err != nil {
		Fail(c, err)
		return
	}
	vm, err := h.CartSvc.BuildCartPageFromCookie(ctx, gc)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vm)
}

type updateItemInput struct {
	Qty *int `json:"qty" binding:"required,min=0,max=99"`
}

// PATCH /api/cart/items/:variantID; qty 0 removes the line.
func (h *CartHandler) Update(c *gin.Context) {
	var in updateItemInput
	if !BindJSON(c, &in) {
		return
	}
	h.setQty(c, c.Param("variantID"), *in.Qty)
}

// DELETE /api/cart/items/:variantID
func (h *CartHandler) Remove(c *gin.Context) {
	h.setQty(c, c.Param("variantID"), 0)
}

func (h *CartHandler) setQty(c *gin.Context, variantID string, qty int) {
	ctx := c.Request.Context()

	if u, ok := middleware.CurrentUser(c); ok {
		cartID, err := h.CartSvc.Repo().OpenCartID(ctx, u.ID)
		if err != nil {
			Fail(c, err)
			return
		}
		if cartID == "" {
			Fail(c, cart.ErrItemNotFound)
			return
		}
		if err := h.CartSvc.Repo().UpdateItemQty(ctx, cartID, variantID, qty); err != nil {
			Fail(c, err)
			return
		}
		h.respond(c, http.StatusOK)
		return
	}

	gc := h.CK.Cart(c)
	if !gc.Set(variantID, qty) {
		Fail(c, cart.ErrItemNotFound)
		return
	}
	if err := h.CK.SaveCart(c, gc); err != nil {
		Fail(c, err)
		return
	}
	vm, err := h.CartSvc.BuildCartPageFromCookie(ctx, gc)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vm)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	if u, ok := middleware.CurrentUser(c); ok {
		cartID, err := h.CartSvc.Repo().OpenCartID(c.Request.Context(), u.ID)
		if err != nil {
			Fail(c, err)
			return
		}
		if cartID != "" {
			if err := h.CartSvc.Repo().ClearCart(c.Request.Context(), cartID); err != nil {
				Fail(c, err)
				return
			}
		}
	} else {
		h.CK.Clear(c)
	}
	c.Status(http.StatusNoContent)
}
