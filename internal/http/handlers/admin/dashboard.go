package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/modules/dashboard"
)

type DashboardHandler struct {
	Svc *dashboard.Service
}

func NewDashboardHandler(svc *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{Svc: svc}
}

// GET /api/admin/dashboard
func (h *DashboardHandler) Summary(c *gin.Context) {
	s, err := h.Svc.Summary(c.Request.Context())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
