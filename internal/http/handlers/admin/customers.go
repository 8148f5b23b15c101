package admin

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/pkg/view"
)

type CustomersHandler struct {
	Svc *customers.Service
}

func NewCustomersHandler(svc *customers.Service) *CustomersHandler {
	return &CustomersHandler{Svc: svc}
}

type listCustomersQuery struct {
	Q    string `form:"q" binding:"max=255"`
	Sort string `form:"sort" binding:"omitempty,oneof=newest name spent"`
	handlers.PageParams
}

// GET /api/admin/customers
func (h *CustomersHandler) List(c *gin.Context) {
	var q listCustomersQuery
	if !handlers.BindQuery(c, &q) {
		return
	}
	page, size := q.Normalize(20)
	items, total, err := h.Svc.List(c.Request.Context(), customers.ListQuery{Q: q.Q, Sort: q.Sort, Page: page, PageSize: size})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	if items == nil {
		items = []customers.ListItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "page": view.NewPage(total, page, size)})
}

// GET /api/admin/customers/:id includes the ten latest orders.
func (h *CustomersHandler) Get(c *gin.Context) {
	d, err := h.Svc.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type customerInput struct {
	UserID         *string           `json:"user_id" binding:"omitempty,max=36"`
	Email          string            `json:"email" binding:"required,email,max=255"`
	FirstName      string            `json:"first_name" binding:"max=100"`
	LastName       string            `json:"last_name" binding:"max=100"`
	Phone          string            `json:"phone" binding:"max=30"`
	DefaultAddress *checkout.Address `json:"default_address"`
	Notes          string            `json:"notes" binding:"max=5000"`
}

func (in customerInput) toInput() (customers.Input, error) {
	out := customers.Input{
		UserID:    in.UserID,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Notes:     in.Notes,
	}
	if in.DefaultAddress != nil {
		b, err := json.Marshal(in.DefaultAddress.Normalize())
		if err != nil {
			return out, err
		}
		out.DefaultAddress = datatypes.JSON(b)
	}
	return out, nil
}

// POST /api/admin/customers
func (h *CustomersHandler) Create(c *gin.Context) {
	var in customerInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	ci, err := in.toInput()
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	cu, err := h.Svc.Create(c.Request.Context(), ci)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cu)
}

// PUT /api/admin/customers/:id
func (h *CustomersHandler) Update(c *gin.Context) {
	var in customerInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	ci, err := in.toInput()
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	cu, err := h.Svc.Update(c.Request.Context(), c.Param("id"), ci)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cu)
}

// DELETE /api/admin/customers/:id
func (h *CustomersHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
