package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/users"
)

type UsersHandler struct {
	Svc *users.AdminService
}

func NewUsersHandler(svc *users.AdminService) *UsersHandler {
	return &UsersHandler{Svc: svc}
}

type listUsersQuery struct {
	Q    string `form:"q" binding:"max=255"`
	Role string `form:"role" binding:"omitempty,oneof=admin customer"`
	handlers.PageParams
}

// GET /api/admin/users
func (h *UsersHandler) List(c *gin.Context) {
	var q listUsersQuery
	if !handlers.BindQuery(c, &q) {
		return
	}
	page, size := q.Normalize(20)
	res, err := h.Svc.List(c.Request.Context(), users.ListParams{
		Q: strings.TrimSpace(q.Q), Role: q.Role, Page: page, PageSize: size,
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/admin/users/:id
func (h *UsersHandler) Get(c *gin.Context) {
	u, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type createUserInput struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"required,oneof=admin customer"`
}

// POST /api/admin/users
func (h *UsersHandler) Create(c *gin.Context) {
	var in createUserInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), users.CreateInput{
		Email: in.Email, Name: in.Name, Password: in.Password, Role: in.Role,
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

type updateUserInput struct {
	Email    string `json:"email" binding:"omitempty,email,max=255"`
	Name     string `json:"name" binding:"max=255"`
	Role     string `json:"role" binding:"omitempty,oneof=admin customer"`
	Password string `json:"password" binding:"omitempty,min=8,max=72"`
}

// PUT /api/admin/users/:id
func (h *UsersHandler) Update(c *gin.Context) {
	var in updateUserInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	actor, _ := middleware.CurrentUser(c)
	u, err := h.Svc.Update(c.Request.Context(), actor.ID, c.Param("id"), users.UpdateInput{
		Email: in.Email, Name: in.Name, Role: in.Role, Password: in.Password,
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DELETE /api/admin/users/:id
func (h *UsersHandler) Delete(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	if err := h.Svc.Delete(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
