package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agency_portal_echo/internal/services"
	"agency_portal_echo/web/pages"
)

// PaymentStatusPath renders the display-only status page.
const PaymentStatusPath = "/payments/status"

// CallbackHandler receives gateway callbacks and browser returns.
type CallbackHandler struct {
	payments *services.PaymentService
}

func NewCallbackHandler(payments *services.PaymentService) *CallbackHandler {
	return &CallbackHandler{payments: payments}
}

// DuitkuCallback always answers 200 so Duitku does not retry; the outcome
// is recorded in the callback history instead.
func (h *CallbackHandler) DuitkuCallback(c echo.Context) error {
	var cb services.DuitkuCallback
	if err := c.Bind(&cb); err != nil {
		zap.S().Warnw("unreadable duitku callback", "error", err, "remote_ip", c.RealIP())
		return c.String(http.StatusOK, "OK")
	}
	outcome := h.payments.HandleDuitkuCallback(c.Request().Context(), cb)
	zap.S().Infow("duitku callback handled", "order_id", cb.MerchantOrderID, "outcome", outcome)
	return c.String(http.StatusOK, "OK")
}

// MidtransNotification mirrors DuitkuCallback for Midtrans HTTP notifications.
func (h *CallbackHandler) MidtransNotification(c echo.Context) error {
	var n services.MidtransNotification
	if err := c.Bind(&n); err != nil {
		zap.S().Warnw("unreadable midtrans notification", "error", err, "remote_ip", c.RealIP())
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	outcome := h.payments.HandleMidtransNotification(c.Request().Context(), n)
	zap.S().Infow("midtrans notification handled", "order_id", n.OrderID, "outcome", outcome)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Return is where gateways send the browser back. JSON callers get the
// display status, browsers are redirected to the status page. Nothing is
// written here.
func (h *CallbackHandler) Return(c echo.Context) error {
	if !wantsJSON(c) {
		target := PaymentStatusPath
		if raw := c.Request().URL.RawQuery; raw != "" {
			target += "?" + raw
		}
		return c.Redirect(http.StatusSeeOther, target)
	}

	view, err := h.describe(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// StatusPage renders the return view as HTML.
func (h *CallbackHandler) StatusPage(c echo.Context) error {
	view, err := h.describe(c)
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, pages.PaymentStatus(pages.PaymentStatusProps{
		Found:         view.Found,
		Title:         view.Title,
		Message:       view.Message,
		Status:        string(view.Status),
		OrderID:       view.OrderID,
		Amount:        view.Amount,
		TransactionID: view.TransactionID,
	}))
}

func (h *CallbackHandler) describe(c echo.Context) (*services.ReturnView, error) {
	var q services.ReturnQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return nil, err
	}
	return h.payments.DescribeReturn(c.Request().Context(), q)
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

