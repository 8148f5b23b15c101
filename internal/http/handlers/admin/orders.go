package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/pkg/view"
)

type OrdersHandler struct {
	Admin     *orders.AdminService
	PaySvc    *payments.Service
	RefundSvc *payments.RefundService
	Docs      *orders.DocumentSyncer
}

func NewOrdersHandler(admin *orders.AdminService, pay *payments.Service, refundSvc *payments.RefundService, docs *orders.DocumentSyncer) *OrdersHandler {
	return &OrdersHandler{Admin: admin, PaySvc: pay, RefundSvc: refundSvc, Docs: docs}
}

type listOrdersQuery struct {
	Q      string `form:"q" binding:"max=255"`
	Status string `form:"status" binding:"omitempty,max=32"`
	Sort   string `form:"sort" binding:"omitempty,oneof=newest oldest total_desc total_asc"`
	handlers.PageParams
}

// GET /api/admin/orders
func (h *OrdersHandler) List(c *gin.Context) {
	var q listOrdersQuery
	if !handlers.BindQuery(c, &q) {
		return
	}
	page, size := q.Normalize(30)
	if q.Sort == "" {
		q.Sort = "newest"
	}

	res, err := h.Admin.Repo().AdminList(c.Request.Context(), orders.AdminListParams{
		Q: strings.TrimSpace(q.Q), Status: q.Status, Sort: q.Sort, Page: page, PageSize: size,
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}

	items := make([]view.AdminOrderListItem, 0, len(res.Items))
	for _, o := range res.Items {
		items = append(items, view.AdminOrderListItem{
			ID:         o.ID,
			Status:     o.Status,
			Email:      o.Email,
			Guest:      o.IsGuest(),
			TotalCents: o.TotalCents,
			Total:      view.MoneyFromCents(o.TotalCents, o.Currency),
			Currency:   o.Currency,
			CreatedAt:  o.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, view.AdminOrdersPage{
		Items:  items,
		Q:      q.Q,
		Status: q.Status,
		Sort:   q.Sort,
		Page:   view.NewPage(res.Total, page, size),
	})
}

// GET /api/admin/orders/:id
func (h *OrdersHandler) Detail(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	o, items, ev, err := h.Admin.Repo().AdminGetDetail(ctx, id)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	fin, err := h.Admin.Repo().AdminListFinancial(ctx, id)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	pays, refs, err := h.PaySvc.ListForOrder(ctx, id)
	if err != nil {
		handlers.Fail(c, err)
		return
	}

	vm := view.AdminOrderDetail{
		OrderDetail: handlers.OrderDetailView(o, items),
		UserID:      ptrStr(o.UserID),
		CustomerID:  ptrStr(o.CustomerID),
		Refundable:  view.MoneyFromCents(o.Refundable(), o.Currency),
		Actions:     availableActions(o),
		Events:      make([]view.AdminOrderEvent, 0, len(ev)),
		Payments:    make([]view.AdminPayment, 0, len(pays)),
		Refunds:     make([]view.AdminRefund, 0, len(refs)),
		Financial:   make([]view.AdminOrderFinancialEntry, 0, len(fin)),
	}
	for _, e := range ev {
		vm.Events = append(vm.Events, view.AdminOrderEvent{
			Action:      e.Action,
			From:        e.FromStatus,
			To:          e.ToStatus,
			ActorUserID: e.ActorUserID,
			Note:        ptrStr(e.Note),
			At:          e.CreatedAt,
		})
	}
	for _, p := range pays {
		vm.Payments = append(vm.Payments, view.AdminPayment{
			ID:          p.ID,
			Provider:    p.Provider,
			ProviderRef: ptrStr(p.ProviderRef),
			CaptureRef:  ptrStr(p.CaptureRef),
			Status:      p.Status,
			Flow:        p.Flow,
			Amount:      view.MoneyFromCents(p.AmountCents, p.Currency),
			PayerEmail:  ptrStr(p.PayerEmail),
			Error:       ptrStr(p.ErrorMessage),
			CreatedAt:   p.CreatedAt,
		})
	}
	for _, r := range refs {
		vm.Refunds = append(vm.Refunds, view.AdminRefund{
			ID:          r.ID,
			PaymentID:   r.PaymentID,
			ProviderRef: ptrStr(r.ProviderRef),
			Status:      r.Status,
			Amount:      view.MoneyFromCents(r.AmountCents, r.Currency),
			Reason:      ptrStr(r.Reason),
			ActorUserID: r.ActorUserID,
			Error:       ptrStr(r.ErrorMessage),
			CreatedAt:   r.CreatedAt,
		})
	}
	for _, f := range fin {
		sign := "+"
		if f.AmountCents < 0 {
			sign = ""
		}
		vm.Financial = append(vm.Financial, view.AdminOrderFinancialEntry{
			Event:       f.Event,
			AmountCents: f.AmountCents,
			Amount:      sign + view.MoneyFromCents(f.AmountCents, f.Currency),
			Currency:    f.Currency,
			RefType:     f.RefType,
			RefID:       f.RefID,
			At:          f.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, vm)
}

func availableActions(o orders.Order) []string {
	out := []string{}
	for _, a := range []string{orders.ActionShip, orders.ActionDeliver, orders.ActionCancel} {
		if _, err := orders.NextStatus(o.Status, a); err == nil {
			out = append(out, a)
		}
	}
	if orders.Refundable(o.Status) && o.Refundable() > 0 {
		out = append(out, orders.ActionRefund)
	}
	return out
}

type actionInput struct {
	Note string `json:"note" binding:"max=500"`
}

// POST /api/admin/orders/:id/actions/:action (ship|deliver|cancel)
func (h *OrdersHandler) Action(c *gin.Context) {
	var in actionInput
	if c.Request.ContentLength != 0 && !handlers.BindJSON(c, &in) {
		return
	}
	u, _ := middleware.CurrentUser(c)

	action := c.Param("action")
	switch action {
	case orders.ActionShip, orders.ActionDeliver, orders.ActionCancel:
	default:
		handlers.Fail(c, orders.ErrNotActionable)
		return
	}

	o, err := h.Admin.Transition(c.Request.Context(), orders.TransitionInput{
		OrderID:     c.Param("id"),
		ActorUserID: u.ID,
		Action:      action,
		Note:        strings.TrimSpace(in.Note),
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": o.ID, "status": o.Status, "actions": availableActions(o)})
}

type refundInput struct {
	AmountCents    int    `json:"amount_cents" binding:"min=0"`
	Reason         string `json:"reason" binding:"max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

// POST /api/admin/orders/:id/refund; amount_cents 0 refunds what is left.
func (h *OrdersHandler) Refund(c *gin.Context) {
	var in refundInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	u, _ := middleware.CurrentUser(c)

	idem := strings.TrimSpace(in.IdempotencyKey)
	if idem == "" {
		idem = strings.TrimSpace(c.GetHeader(handlers.IdempotencyHeader))
	}
	if idem == "" {
		idem = uuid.NewString()
	}

	res, err := h.RefundSvc.RefundOrder(c.Request.Context(), payments.RefundOrderInput{
		OrderID:        c.Param("id"),
		ActorUserID:    u.ID,
		IdempotencyKey: idem,
		AmountCents:    in.AmountCents,
		Reason:         strings.TrimSpace(in.Reason),
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /api/admin/orders/:id
func (h *OrdersHandler) Delete(c *gin.Context) {
	if err := h.Admin.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/admin/orders/:id/document returns the document store copy.
func (h *OrdersHandler) Document(c *gin.Context) {
	doc, err := h.Docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func ptrStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
