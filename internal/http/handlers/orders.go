package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/pkg/view"
)

// OrdersHandler serves a customer's own orders.
type OrdersHandler struct {
	OrderSv *orders.Service
}

func NewOrdersHandler(osvc *orders.Service) *OrdersHandler {
	return &OrdersHandler{OrderSv: osvc}
}

type accountOrdersQuery struct {
	Status string `form:"status" binding:"omitempty,max=32"`
	PageParams
}

// GET /api/orders lists the user's orders and, once the account email is
// verified, guest orders placed with it.
func (h *OrdersHandler) List(c *gin.Context) {
	var q accountOrdersQuery
	if !BindQuery(c, &q) {
		return
	}
	page, size := q.Normalize(20)
	u, _ := middleware.CurrentUser(c)

	params := orders.ListByUserParams{
		UserID:   u.ID,
		Page:     page,
		PageSize: size,
		Status:   q.Status,
	}
	if u.EmailVerified {
		params.VerifiedEmail = u.Email
	}
	res, err := h.OrderSv.ListForUser(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}

	out := view.AccountOrdersPage{
		Items:        make([]view.AccountOrderListItem, 0, len(res.Items)),
		FilterStatus: q.Status,
		Page:         view.NewPage(res.Total, page, size),
	}
	for _, it := range res.Items {
		o := it.Order
		out.Items = append(out.Items, view.AccountOrderListItem{
			ID:         o.ID,
			CreatedAt:  o.CreatedAt,
			Status:     o.Status,
			TotalCents: o.TotalCents,
			Total:      view.MoneyFromCents(o.TotalCents, o.Currency),
			Currency:   o.Currency,
			ItemCount:  it.Count,
			PaidAt:     o.PaidAt,
			Guest:      o.IsGuest(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/orders/:id is open to the owner, and to anyone holding the id
// of a guest order.
func (h *OrdersHandler) Get(c *gin.Context) {
	var v orders.Viewer
	if u, ok := middleware.CurrentUser(c); ok {
		v = orders.Viewer{UserID: u.ID, Email: u.Email}
	}
	o, items, err := h.OrderSv.GetForViewer(c.Request.Context(), c.Param("id"), v)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OrderDetailView(o, items))
}
