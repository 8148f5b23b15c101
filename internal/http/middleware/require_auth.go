package middleware

import (
	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/shared/apperr"
)

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		Fail(c, apperr.UnauthorizedErr("Please sign in to continue."))
	}
}
