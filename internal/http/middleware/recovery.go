package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/shared/apperr"
)

// Recovery turns a handler panic into a logged 500 JSON error. It writes the
// response itself since the deferred part of ErrorHandler never runs on a
// panic. A client that hung up gets no response.
func Recovery(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			rid := GetRequestID(c)
			if clientGone(recovered) {
				l.LogAttrs(c.Request.Context(), slog.LevelWarn, "client_connection_lost",
					slog.String("request_id", rid),
					slog.Any("err", recovered),
				)
				_ = c.Error(fmt.Errorf("connection lost: %v", recovered))
				c.Abort()
				return
			}

			l.LogAttrs(c.Request.Context(), slog.LevelError, "panic_recovered",
				slog.String("request_id", rid),
				slog.String("route", c.FullPath()),
				slog.Any("panic", recovered),
				slog.String("stack", string(debug.Stack())),
			)
			err := apperr.Wrap(fmt.Errorf("panic: %v", recovered))
			_ = c.Error(err)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), errorBody(c, err))
		}()
		c.Next()
	}
}

func clientGone(recovered any) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
