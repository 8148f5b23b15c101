package middleware

import (
	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/shared/apperr"
)

// RequireAdmin answers 401 without a session and 403 for non-admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			Fail(c, apperr.UnauthorizedErr("Please sign in to continue."))
			return
		}
		if u.Role != auth.RoleAdmin {
			Fail(c, apperr.ForbiddenErr("Admin access required."))
			return
		}
		c.Next()
	}
}
