package handlers

import (
	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
)

// PaymentHandler serves checkout, transaction history and admin status
// changes.
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Checkout creates the transaction and opens the payment.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.CheckoutInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	res, err := h.payments.Checkout(c.Request().Context(), user, in)
	if err != nil {
		return err
	}
	return created(c, res)
}

func (h *PaymentHandler) ListTransactions(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	trxs, err := h.payments.ListTransactions(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return list(c, trxs)
}

func (h *PaymentHandler) GetTransaction(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	trx, err := h.payments.GetTransaction(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, trx)
}

// RetryPayment re-opens a pending payment whose gateway call failed.
func (h *PaymentHandler) RetryPayment(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res, err := h.payments.RetryGatewayPayment(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, res)
}

type statusInput struct {
	Status models.Status `json:"status" validate:"required,oneof=pending paid failed expired cancelled"`
}

// SetStatus is the admin confirmation of a manual transfer. The same
// sticky-paid rules as gateway callbacks apply.
func (h *PaymentHandler) SetStatus(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in statusInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	res, err := h.payments.AdminSetStatus(c.Request().Context(), id, in.Status)
	if err != nil {
		return err
	}
	return ok(c, res)
}
