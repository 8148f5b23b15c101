package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/internal/modules/users"
	"shopdesk.io/app/internal/modules/wishlist"
	"shopdesk.io/app/internal/shared/apperr"
)

// AuthHandlers serves signup, login, logout, the current user, email
// verification and the password reset flow.
type AuthHandlers struct {
	Auth           *auth.Service
	SessCfg        middleware.SessionCfg
	Carts          *cart.Repo
	Wishlist       *wishlist.Service
	CartCookie     *cartcookie.Codec
	WishlistCookie *cartcookie.Codec
	Resets         *users.PasswordResetService
	Verify         *users.VerifyService
	Log            *slog.Logger
}

func NewAuthHandlers(a *auth.Service, sessCfg middleware.SessionCfg, carts *cart.Repo, wl *wishlist.Service,
	cartCookie, wishlistCookie *cartcookie.Codec, resets *users.PasswordResetService, verify *users.VerifyService, l *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		Auth:           a,
		SessCfg:        sessCfg,
		Carts:          carts,
		Wishlist:       wl,
		CartCookie:     cartCookie,
		WishlistCookie: wishlistCookie,
		Resets:         resets,
		Verify:         verify,
		Log:            l,
	}
}

type signupInput struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"max=120"`
}

// POST /api/auth/signup
func (h *AuthHandlers) Signup(c *gin.Context) {
	var in signupInput
	if !BindJSON(c, &in) {
		return
	}
	u, err := h.Auth.Signup(c.Request.Context(), auth.SignupInput{Email: in.Email, Password: in.Password, Name: in.Name})
	if err != nil {
		Fail(c, err)
		return
	}
	if err := h.startSession(c, u); err != nil {
		Fail(c, err)
		return
	}
	if err := h.Verify.Start(c.Request.Context(), u.ID); err != nil {
		h.Log.Warn("verification email enqueue failed", "user_id", u.ID, "err", err)
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var in loginInput
	if !BindJSON(c, &in) {
		return
	}
	u, err := h.Auth.Authenticate(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	if err := h.startSession(c, u); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AuthHandlers) startSession(c *gin.Context, u *auth.User) error {
	token, _, err := h.Auth.StartSession(c.Request.Context(), u.ID)
	if err != nil {
		return err
	}
	middleware.SetSessionCookie(c, h.SessCfg, token)
	middleware.SetCurrentUser(c, middleware.ContextUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, EmailVerified: u.EmailVerified()})
	h.mergeGuestState(c, u.ID)
	return nil
}

// mergeGuestState moves the guest cart and wishlist cookies into the
// user's server-side state. A failed merge keeps the cookie for next time.
func (h *AuthHandlers) mergeGuestState(c *gin.Context, userID string) {
	ctx := c.Request.Context()

	if h.CartCookie != nil && h.Carts != nil {
		if gc := h.CartCookie.Cart(c); len(gc.Items) > 0 {
			uc, err := h.Carts.GetOrCreateUserCart(ctx, userID)
			if err == nil {
				err = h.Carts.MergeItems(ctx, uc.ID, gc.Items)
			}
			if err != nil {
				h.Log.Warn("guest cart merge failed", "user_id", userID, "err", err)
			} else {
				h.CartCookie.Clear(c)
			}
		}
	}

	if h.WishlistCookie != nil && h.Wishlist != nil {
		if gw := h.WishlistCookie.Wishlist(c); len(gw.ProductIDs) > 0 {
			if err := h.Wishlist.Merge(ctx, userID, gw.ProductIDs); err != nil {
				h.Log.Warn("guest wishlist merge failed", "user_id", userID, "err", err)
			} else {
				h.WishlistCookie.Clear(c)
			}
		}
	}
}

// POST /api/auth/logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.SessCfg.CookieName); err == nil && token != "" {
		if err := h.Auth.EndSession(c.Request.Context(), token); err != nil {
			h.Log.Warn("session delete failed", "err", err)
		}
	}
	middleware.ClearSessionCookie(c, h.SessCfg)
	c.Status(http.StatusNoContent)
}

// GET /api/auth/me
func (h *AuthHandlers) Me(c *gin.Context) {
	cu, _ := middleware.CurrentUser(c)
	u, err := h.Auth.Repo().GetByID(c.Request.Context(), cu.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "cart_count": middleware.GetCartCount(c)})
}

type accountInput struct {
	Name            string `json:"name" binding:"max=120"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"omitempty,min=6,max=72"`
}

// PUT /api/account
func (h *AuthHandlers) UpdateAccount(c *gin.Context) {
	var in accountInput
	if !BindJSON(c, &in) {
		return
	}
	if in.NewPassword != "" && in.CurrentPassword == "" {
		middleware.Fail(c, apperr.InvalidErr("Please check the highlighted fields.",
			map[string]string{"current_password": "This field is required."}))
		return
	}
	cu, _ := middleware.CurrentUser(c)
	u, err := h.Auth.UpdateAccount(c.Request.Context(), cu.ID, auth.UpdateAccountInput{
		Name:            in.Name,
		CurrentPassword: in.CurrentPassword,
		NewPassword:     in.NewPassword,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type forgotInput struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /api/auth/password/forgot answers 202 whether or not the address
// belongs to an account.
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var in forgotInput
	if !BindJSON(c, &in) {
		return
	}
	if err := h.Resets.Request(c.Request.Context(), in.Email); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

type resetInput struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// POST /api/auth/password/reset
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var in resetInput
	if !BindJSON(c, &in) {
		return
	}
	if err := h.Resets.Reset(c.Request.Context(), in.Token, in.Password); err != nil {
		Fail(c, err)
		return
	}
	middleware.ClearSessionCookie(c, h.SessCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type verifyEmailInput struct {
	Token string `json:"token" binding:"required,max=128"`
}

// POST /api/auth/email/verify
func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	var in verifyEmailInput
	if !BindJSON(c, &in) {
		return
	}
	u, err := h.Verify.Confirm(c.Request.Context(), in.Token)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// POST /api/auth/email/verify/resend
func (h *AuthHandlers) ResendVerification(c *gin.Context) {
	cu, _ := middleware.CurrentUser(c)
	if err := h.Verify.Start(c.Request.Context(), cu.ID); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
