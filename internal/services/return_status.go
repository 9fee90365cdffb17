package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

// ReturnQuery is what the browser brings back from the gateway. Duitku sends
// merchantOrderId, resultCode and reference; Midtrans sends order_id.
type ReturnQuery struct {
	MerchantOrderID string `query:"merchantOrderId"`
	ResultCode      string `query:"resultCode"`
	Reference       string `query:"reference"`
	OrderID         string `query:"order_id"`
}

// ReturnView is a display-only description of a payment.
type ReturnView struct {
	Found         bool          `json:"found"`
	OrderID       string        `json:"orderId,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	ResultCode    string        `json:"resultCode,omitempty"`
	Status        models.Status `json:"status,omitempty"`
	StoredStatus  models.Status `json:"storedStatus,omitempty"`
	TransactionID uint          `json:"transactionId,omitempty"`
	Amount        int64         `json:"amount,omitempty"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
}

// DescribeReturn looks the payment up for display only. It never writes:
// the callback stays the only source of truth for status.
func (s *PaymentService) DescribeReturn(ctx context.Context, q ReturnQuery) (*ReturnView, error) {
	orderID := q.MerchantOrderID
	if orderID == "" {
		orderID = q.OrderID
	}
	view := &ReturnView{OrderID: orderID, Reference: q.Reference, ResultCode: q.ResultCode}

	p, err := s.store.FindByReference(ctx, q.Reference, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		view.Title = "Payment not found"
		view.Message = "We could not find a payment for this reference. If you were charged, it will appear in your dashboard shortly."
		return view, nil
	}
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}

	view.Found = true
	view.StoredStatus = p.Status
	view.TransactionID = p.TransactionID
	view.Amount = p.Amount
	view.Status = provisionalStatus(p.Status, q.ResultCode)
	view.Title, view.Message = statusCopy(view.Status)
	return view, nil
}

// provisionalStatus prefers a settled stored status, then the browser's code.
func provisionalStatus(stored models.Status, resultCode string) models.Status {
	if stored.IsTerminal() || resultCode == "" {
		return stored
	}
	outcome, err := duitkuReturnCodes.Lookup(resultCode)
	if err != nil {
		return stored
	}
	st, err := outcome.Status()
	if err != nil {
		return stored
	}
	return st
}

func statusCopy(st models.Status) (string, string) {
	switch st {
	case models.StatusPaid:
		return "Payment successful", "Thank you! Your payment has been received."
	case models.StatusPending:
		return "Payment pending", "We are waiting for confirmation from the payment provider."
	case models.StatusExpired:
		return "Payment expired", "This payment has expired. Please start a new checkout."
	case models.StatusCancelled:
		return "Payment cancelled", "The payment was cancelled."
	default:
		return "Payment failed", "The payment could not be completed."
	}
}
