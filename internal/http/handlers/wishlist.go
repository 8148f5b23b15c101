package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/wishlist"
)

type WishlistHandler struct {
	Svc *wishlist.Service
	CK  *cartcookie.Codec
}

func NewWishlistHandler(svc *wishlist.Service, ck *cartcookie.Codec) *WishlistHandler {
	return &WishlistHandler{Svc: svc, CK: ck}
}

func (h *WishlistHandler) respond(c *gin.Context, ids []string, fromUser bool) {
	ctx := c.Request.Context()
	var err error
	if fromUser {
		u, _ := middleware.CurrentUser(c)
		ids, err = h.Svc.ProductIDs(ctx, u.ID)
		if err != nil {
			Fail(c, err)
			return
		}
	}
	ps, err := h.Svc.Products(ctx, ids)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ProductCardsView(ps)})
}

// GET /api/wishlist
func (h *WishlistHandler) Get(c *gin.Context) {
	if _, ok := middleware.CurrentUser(c); ok {
		h.respond(c, nil, true)
		return
	}
	h.respond(c, h.CK.Wishlist(c).ProductIDs, false)
}

type wishlistInput struct {
	ProductID string `json:"product_id" binding:"required,max=36"`
}

// POST /api/wishlist is idempotent.
func (h *WishlistHandler) Add(c *gin.Context) {
	var in wishlistInput
	if !BindJSON(c, &in) {
		return
	}
	ctx := c.Request.Context()

	if u, ok := middleware.CurrentUser(c); ok {
		if err := h.Svc.Add(ctx, u.ID, in.ProductID); err != nil {
			Fail(c, err)
			return
		}
		h.respond(c, nil, true)
		return
	}

	if err := h.Svc.CheckProduct(ctx, in.ProductID); err != nil {
		Fail(c, err)
		return
	}
	w := h.CK.Wishlist(c)
	w.Add(in.ProductID)
	if err := h.CK.SaveWishlist(c, w); err != nil {
		Fail(c, err)
		return
	}
	h.respond(c, w.ProductIDs, false)
}

// DELETE /api/wishlist/:productID
func (h *WishlistHandler) Remove(c *gin.Context) {
	id := c.Param("productID")
	if u, ok := middleware.CurrentUser(c); ok {
		if err := h.Svc.Remove(c.Request.Context(), u.ID, id); err != nil {
			Fail(c, err)
			return
		}
		h.respond(c, nil, true)
		return
	}
	w := h.CK.Wishlist(c)
	w.Remove(id)
	if err := h.CK.SaveWishlist(c, w); err != nil {
		Fail(c, err)
		return
	}
	h.respond(c, w.ProductIDs, false)
}
