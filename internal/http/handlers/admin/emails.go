package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/pkg/view"
)

type EmailsHandler struct {
	Outbox *email.OutboxService
}

func NewEmailsHandler(outbox *email.OutboxService) *EmailsHandler {
	return &EmailsHandler{Outbox: outbox}
}

type listEmailsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending sent failed"`
	handlers.PageParams
}

// GET /api/admin/emails
func (h *EmailsHandler) List(c *gin.Context) {
	var q listEmailsQuery
	if !handlers.BindQuery(c, &q) {
		return
	}
	page, size := q.Normalize(20)
	rows, total, err := h.Outbox.List(c.Request.Context(), email.ListParams{Status: q.Status, Page: page, PageSize: size})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	if rows == nil {
		rows = []email.Outbox{}
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "page": view.NewPage(total, page, size)})
}

// POST /api/admin/emails/:id/retry only applies to failed messages.
func (h *EmailsHandler) Retry(c *gin.Context) {
	if err := h.Outbox.Retry(c.Request.Context(), c.Param("id")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
