package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/modules/auth"
)

const (
	ctxKeyUser    = "current_user"
	ctxKeySession = "session"
)

// SessionCfg holds configuration for session middleware.
type SessionCfg struct {
	Auth       *auth.Service
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// ContextUser represents the authenticated user stored in request context.
type ContextUser struct {
	ID            string
	Email         string
	Name          string
	Role          string
	EmailVerified bool
}

func (u ContextUser) IsAdmin() bool { return u.Role == auth.RoleAdmin }

// Session resolves the session cookie into the current user. Invalid or
// expired cookies are cleared.
func Session(cfg SessionCfg) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		u, sess, err := cfg.Auth.Resolve(c.Request.Context(), token)
		if err != nil {
			ClearSessionCookie(c, cfg)
			c.Next()
			return
		}

		c.Set(ctxKeySession, sess)
		c.Set(ctxKeyUser, ContextUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, EmailVerified: u.EmailVerified()})
		c.Next()
	}
}

func SetSessionCookie(c *gin.Context, cfg SessionCfg, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
}

func ClearSessionCookie(c *gin.Context, cfg SessionCfg) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.Secure, true)
}

// CurrentUser retrieves the authenticated user from the gin context.
func CurrentUser(c *gin.Context) (ContextUser, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return ContextUser{}, false
	}
	u, ok := v.(ContextUser)
	if !ok || u.ID == "" {
		return ContextUser{}, false
	}
	return u, true
}

// SetCurrentUser is used right after login so the rest of the request sees
// the new identity.
func SetCurrentUser(c *gin.Context, u ContextUser) {
	c.Set(ctxKeyUser, u)
}
