package http

import (
	"context"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/config"
	"shopdesk.io/app/internal/docstore"
	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/http/handlers/admin"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/modules/dashboard"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/modules/users"
	"shopdesk.io/app/internal/modules/wishlist"
	"shopdesk.io/app/internal/platform/database"
	"shopdesk.io/app/internal/platform/metrics"
	"shopdesk.io/app/internal/storage"
)

// Deps is the infrastructure the router builds its services on.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Provider payments.Provider
	Storage  storage.Storage
	Docs     docstore.OrderDocuments
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Docs == nil {
		d.Docs = docstore.Nop{}
	}
	currency := cfg.Checkout.Currency

	// services
	authSvc := auth.NewService(d.DB, cfg.Session.TTL)
	cartSvc := cart.NewService(d.DB, currency)
	wishSvc := wishlist.NewService(d.DB)
	catalog := products.NewGormRepo(d.DB)
	productRepo := products.NewRepo(d.DB)
	productAdmin := products.NewAdminService(productRepo, d.Storage, d.Log)
	pricer := checkout.NewPricer(cfg.Checkout)
	outbox := email.NewOutboxService(d.DB)
	notifier := email.NewOrderNotifier(outbox, cfg.App.StorefrontURL, cfg.Email.FromName)
	docs := orders.NewDocumentSyncer(d.DB, d.Docs)
	orderSvc := orders.NewService(d.DB, orders.Deps{
		Pricer: pricer, Mirror: docs, Notifier: notifier, Metrics: d.Metrics, Log: d.Log,
	})
	orderAdmin := orders.NewAdminService(d.DB, docs, notifier, d.Log)
	payDeps := payments.Deps{Mirror: docs, Notifier: notifier, Metrics: d.Metrics, Log: d.Log}
	paySvc := payments.NewService(d.DB, d.Provider, payDeps)
	refundSvc := payments.NewRefundService(d.DB, d.Provider, payDeps)
	webhookSvc := payments.NewWebhookService(d.DB, payDeps)
	resets := users.NewPasswordResetService(d.DB, outbox, cfg.App.StorefrontURL, cfg.Email.FromName, d.Log)
	verify := users.NewVerifyService(d.DB, outbox, cfg.App.StorefrontURL, cfg.Email.FromName, d.Log)

	secret := []byte(cfg.App.Secret)
	cartCK := cartcookie.New(secret, cfg.Cart.CookieName, cfg.Session.Secure)
	wishCK := cartcookie.New(secret, cfg.Cart.WishlistCookieName, cfg.Session.Secure)
	sessCfg := middleware.SessionCfg{
		Auth:       authSvc,
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.Secure,
		TTL:        cfg.Session.TTL,
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Metrics(d.Metrics),
		middleware.Recovery(d.Log),
		middleware.ErrorHandler(d.Log),
		middleware.Session(sessCfg),
		middleware.CartCount(middleware.CartCountCfg{Codec: cartCK, Users: cartSvc.Repo()}),
	)

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, d.DB); err != nil {
			c.JSON(nethttp.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	if cfg.Storage.Driver == "local" && cfg.Storage.Local.URLPrefix != "" {
		r.Static(cfg.Storage.Local.URLPrefix, cfg.Storage.Local.Dir)
	}

	authH := handlers.NewAuthHandlers(authSvc, sessCfg, cartSvc.Repo(), wishSvc, cartCK, wishCK, resets, verify, d.Log)
	productsH := handlers.NewProductsHandler(catalog)
	cartH := handlers.NewCartHandler(cartSvc, cartCK)
	wishH := handlers.NewWishlistHandler(wishSvc, wishCK)
	checkoutH := handlers.NewCheckoutHandler(cartSvc, cartCK, pricer, orderSvc)
	ordersH := handlers.NewOrdersHandler(orderSvc)
	payH := handlers.NewPaymentsHandler(paySvc, cfg.App.BaseURL, cfg.App.StorefrontURL, d.Log)
	webhookH := handlers.NewWebhookHandler(d.Log, d.Provider, webhookSvc)

	authLimit := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst))
	checkoutLimit := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.CheckoutRPS, cfg.RateLimit.CheckoutBurst))

	api := r.Group("/api")
	{
		a := api.Group("/auth", authLimit)
		a.POST("/signup", authH.Signup)
		a.POST("/login", authH.Login)
		a.POST("/logout", authH.Logout)
		a.GET("/me", middleware.RequireAuth(), authH.Me)
		a.POST("/password/forgot", authH.ForgotPassword)
		a.POST("/password/reset", authH.ResetPassword)
		a.POST("/email/verify", authH.VerifyEmail)
		a.POST("/email/verify/resend", middleware.RequireAuth(), authH.ResendVerification)

		api.PUT("/account", middleware.RequireAuth(), authH.UpdateAccount)

		api.GET("/products", productsH.List)
		api.GET("/products/:slug", productsH.Show)
		api.GET("/categories", productsH.Categories)

		api.GET("/cart", cartH.Get)
		api.GET("/cart/count", cartH.Count)
		api.POST("/cart/items", cartH.Add)
		api.PATCH("/cart/items/:variantID", cartH.Update)
		api.DELETE("/cart/items/:variantID", cartH.Remove)
		api.DELETE("/cart", cartH.Clear)

		api.GET("/wishlist", wishH.Get)
		api.POST("/wishlist", wishH.Add)
		api.DELETE("/wishlist/:productID", wishH.Remove)

		api.POST("/checkout/quote", checkoutH.Quote)
		api.POST("/checkout/orders", checkoutLimit, checkoutH.PlaceOrder)

		api.GET("/orders", middleware.RequireAuth(), ordersH.List)
		api.GET("/orders/:id", ordersH.Get)
		api.POST("/orders/:id/pay", payH.Start)
		api.POST("/orders/:id/paypal/capture", payH.Capture)
	}

	r.GET(handlers.PayPalReturnPath, payH.Return)
	r.GET(handlers.PayPalCancelPath, payH.Cancel)
	r.POST("/webhooks/:provider", webhookH.Handle)

	adminOrders := admin.NewOrdersHandler(orderAdmin, paySvc, refundSvc, docs)
	adminProducts := admin.NewProductsHandler(productAdmin)
	adminCategories := admin.NewCategoriesHandler(productRepo)
	adminCustomers := admin.NewCustomersHandler(customers.NewService(d.DB))
	adminUsers := admin.NewUsersHandler(users.NewAdminService(d.DB))
	adminDashboard := admin.NewDashboardHandler(dashboard.NewService(d.DB, currency))
	adminEmails := admin.NewEmailsHandler(outbox)

	ad := api.Group("/admin", middleware.RequireAdmin())
	{
		ad.GET("/dashboard", adminDashboard.Summary)

		ad.GET("/orders", adminOrders.List)
		ad.GET("/orders/:id", adminOrders.Detail)
		ad.POST("/orders/:id/actions/:action", adminOrders.Action)
		ad.POST("/orders/:id/refund", adminOrders.Refund)
		ad.DELETE("/orders/:id", adminOrders.Delete)
		ad.GET("/orders/:id/document", adminOrders.Document)

		ad.GET("/products", adminProducts.List)
		ad.POST("/products", adminProducts.Create)
		ad.GET("/products/:id", adminProducts.Get)
		ad.PUT("/products/:id", adminProducts.Update)
		ad.DELETE("/products/:id", adminProducts.Delete)
		ad.POST("/products/:id/variants", adminProducts.AddVariant)
		ad.PUT("/products/:id/variants/:variantID", adminProducts.UpdateVariant)
		ad.DELETE("/products/:id/variants/:variantID", adminProducts.DeleteVariant)
		ad.POST("/products/:id/images", adminProducts.UploadImage)
		ad.DELETE("/products/:id/images/:imageID", adminProducts.DeleteImage)

		ad.GET("/categories", adminCategories.List)
		ad.POST("/categories", adminCategories.Create)
		ad.GET("/categories/:id", adminCategories.Get)
		ad.PUT("/categories/:id", adminCategories.Update)
		ad.DELETE("/categories/:id", adminCategories.Delete)

		ad.GET("/customers", adminCustomers.List)
		ad.POST("/customers", adminCustomers.Create)
		ad.GET("/customers/:id", adminCustomers.Get)
		ad.PUT("/customers/:id", adminCustomers.Update)
		ad.DELETE("/customers/:id", adminCustomers.Delete)

		ad.GET("/users", adminUsers.List)
		ad.POST("/users", adminUsers.Create)
		ad.GET("/users/:id", adminUsers.Get)
		ad.PUT("/users/:id", adminUsers.Update)
		ad.DELETE("/users/:id", adminUsers.Delete)

		ad.GET("/emails", adminEmails.List)
		ad.POST("/emails/:id/retry", adminEmails.Retry)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "Not found.", "request_id": middleware.GetRequestID(c)})
	})
	return r
}
