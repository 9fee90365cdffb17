package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

// Handlers groups every route handler the server mounts.
type Handlers struct {
	Auth      *AuthHandler
	Dashboard *DashboardHandler
	Payments  *PaymentHandler
	Callbacks *CallbackHandler
	Catalog   *CatalogHandler
	Public    *PublicHandler
	Users     *UserHandler
	WhatsApp  *WhatsAppHandler
	Internal  *InternalHandler
}

// Guards are the middlewares that protect route groups. Tests swap them
// for stubs.
type Guards struct {
	Auth     echo.MiddlewareFunc
	Admin    echo.MiddlewareFunc
	Internal echo.MiddlewareFunc
	// Sweep runs before API traffic so stale pending payments expire.
	Sweep echo.MiddlewareFunc
}

func RegisterRoutes(e *echo.Echo, h Handlers, g Guards) {
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusTemporaryRedirect, "/dashboard")
	})
	e.GET("/login", h.Auth.LoginPage)
	e.POST("/auth/login", h.Auth.HandleLogin)
	e.POST("/auth/logout", h.Auth.HandleLogout)

	e.GET(services.PaymentReturnPath, h.Callbacks.Return)
	e.GET(PaymentStatusPath, h.Callbacks.StatusPage)

	e.GET("/dashboard", h.Dashboard.Dashboard, g.Auth)

	// gateway callbacks skip the sweep so a late paid is never preceded by an expiry
	e.POST(services.DuitkuCallbackPath, h.Callbacks.DuitkuCallback)
	e.POST(services.MidtransNotificationPath, h.Callbacks.MidtransNotification)

	api := e.Group("/api", g.Sweep)
	api.GET("/locale", h.Public.Locale)
	api.GET("/portfolio", h.Public.Portfolio)
	api.GET("/portfolio/:slug", h.Public.PortfolioItem)
	api.GET("/payment-methods", h.Catalog.ActiveMethods)
	api.GET("/whatsapp/packages", h.Catalog.ActivePackages)

	internal := api.Group("/internal", g.Internal)
	internal.GET("/sessions/resolve", h.Internal.ResolveSession)
	internal.GET("/sessions/:token/bot", h.Internal.SessionBot)

	customer := api.Group("", g.Auth)
	customer.GET("/me", h.Users.Me)
	customer.PUT("/me", h.Users.UpdateProfile)
	customer.GET("/me/preferences", h.Users.GetPreference)
	customer.PUT("/me/preferences", h.Users.UpdatePreference)

	customer.POST("/checkout", h.Payments.Checkout)
	customer.GET("/transactions", h.Payments.ListTransactions)
	customer.GET("/transactions/:id", h.Payments.GetTransaction)
	customer.POST("/transactions/:id/payment/retry", h.Payments.RetryPayment)

	wa := customer.Group("/whatsapp")
	wa.GET("/subscription", h.WhatsApp.Subscription)
	wa.GET("/sessions", h.WhatsApp.ListSessions)
	wa.POST("/sessions", h.WhatsApp.CreateSession)
	wa.GET("/sessions/:id/status", h.WhatsApp.SessionStatus)
	wa.POST("/sessions/:id/connect", h.WhatsApp.Connect)
	wa.GET("/sessions/:id/webhook", h.WhatsApp.GetWebhook)
	wa.POST("/sessions/:id/webhook", h.WhatsApp.SetWebhook)
	wa.POST("/sessions/:id/bot", h.WhatsApp.BindBot)
	wa.DELETE("/sessions/:id/bot", h.WhatsApp.UnbindBot)
	wa.GET("/bots", h.WhatsApp.ListBots)
	wa.POST("/bots", h.WhatsApp.CreateBot)
	wa.GET("/bots/:id", h.WhatsApp.GetBot)
	wa.PUT("/bots/:id", h.WhatsApp.UpdateBot)
	wa.DELETE("/bots/:id", h.WhatsApp.DeleteBot)
	wa.POST("/bots/:id/documents", h.WhatsApp.AddDocument)
	wa.DELETE("/bots/:id/documents/:docId", h.WhatsApp.DeleteDocument)

	admin := customer.Group("/admin", g.Admin)
	admin.PATCH("/payments/:id/status", h.Payments.SetStatus)
	admin.GET("/payment-methods", h.Catalog.AllMethods)
	admin.POST("/payment-methods", h.Catalog.CreateMethod)
	admin.PUT("/payment-methods/:id", h.Catalog.UpdateMethod)
	admin.DELETE("/payment-methods/:id", h.Catalog.DeleteMethod)
	admin.GET("/bank-details", h.Catalog.ListBanks)
	admin.POST("/bank-details", h.Catalog.CreateBank)
	admin.PUT("/bank-details/:id", h.Catalog.UpdateBank)
	admin.DELETE("/bank-details/:id", h.Catalog.DeleteBank)
	admin.GET("/whatsapp/packages", h.Catalog.AllPackages)
	admin.POST("/whatsapp/packages", h.Catalog.CreatePackage)
	admin.PUT("/whatsapp/packages/:id", h.Catalog.UpdatePackage)
	admin.GET("/portfolio", h.Public.AllPortfolio)
	admin.POST("/portfolio", h.Public.CreatePortfolio)
	admin.PUT("/portfolio/:id", h.Public.UpdatePortfolio)
	admin.DELETE("/portfolio/:id", h.Public.DeletePortfolio)
}
