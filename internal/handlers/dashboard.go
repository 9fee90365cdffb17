package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
	"agency_portal_echo/web/pages"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	payments *services.PaymentService
	sessions *services.WhatsAppSessionService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(payments *services.PaymentService, sessions *services.WhatsAppSessionService) *DashboardHandler {
	return &DashboardHandler{payments: payments, sessions: sessions}
}

// Dashboard renders the customer's transactions and subscription.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	trxs, err := h.payments.ListTransactions(ctx, user)
	if err != nil {
		return err
	}
	sub, err := h.sessions.Subscription(ctx, user)
	if err != nil {
		return err
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	return render(c, http.StatusOK, pages.Dashboard(pages.DashboardProps{
		UserName:     name,
		Transactions: trxs,
		Subscription: sub,
	}))
}
