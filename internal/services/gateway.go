package services

import (
	"context"
	"errors"
	"fmt"

	"agency_portal_echo/internal/models"
)

// ErrUnknownGatewayCode is returned when a gateway sends a code no table maps.
var ErrUnknownGatewayCode = errors.New("unknown gateway status code")

// Outcome is the gateway-neutral verdict every gateway code is first mapped to.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomePending   Outcome = "pending"
	OutcomeFailed    Outcome = "failed"
	OutcomeExpired   Outcome = "expired"
	OutcomeCancelled Outcome = "cancelled"
)

// AllOutcomes must list every Outcome constant.
var AllOutcomes = []Outcome{OutcomeSuccess, OutcomePending, OutcomeFailed, OutcomeExpired, OutcomeCancelled}

var outcomeStatus = map[Outcome]models.Status{
	OutcomeSuccess:   models.StatusPaid,
	OutcomePending:   models.StatusPending,
	OutcomeFailed:    models.StatusFailed,
	OutcomeExpired:   models.StatusExpired,
	OutcomeCancelled: models.StatusCancelled,
}

// Status maps the outcome onto the internal payment status.
func (o Outcome) Status() (models.Status, error) {
	s, ok := outcomeStatus[o]
	if !ok {
		return "", fmt.Errorf("%w: outcome %q", ErrUnknownGatewayCode, o)
	}
	return s, nil
}

// CodeTable maps raw gateway codes onto outcomes.
type CodeTable map[string]Outcome

// Lookup returns the outcome for code or ErrUnknownGatewayCode.
func (t CodeTable) Lookup(code string) (Outcome, error) {
	o, ok := t[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGatewayCode, code)
	}
	return o, nil
}

// ValidateCodeTables checks that every outcome has a status and that every
// table only points at known outcomes. Gateways call it at construction so a
// gap is reported at startup instead of on the first callback.
func ValidateCodeTables(tables map[string]CodeTable) error {
	for _, o := range AllOutcomes {
		s, ok := outcomeStatus[o]
		if !ok || !s.Valid() {
			return fmt.Errorf("outcome %q has no valid internal status", o)
		}
	}
	if len(outcomeStatus) != len(AllOutcomes) {
		return fmt.Errorf("outcome table has %d entries, expected %d", len(outcomeStatus), len(AllOutcomes))
	}
	for name, table := range tables {
		if len(table) == 0 {
			return fmt.Errorf("code table %s is empty", name)
		}
		for code, o := range table {
			if _, ok := outcomeStatus[o]; !ok {
				return fmt.Errorf("code table %s: code %q maps to unknown outcome %q", name, code, o)
			}
		}
	}
	return nil
}

// CustomerInfo is forwarded to gateways that want payer details.
type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

// GatewayRequest is everything an adapter needs to open a payment.
type GatewayRequest struct {
	OrderID        string
	Amount         int64
	MethodCode     string
	ProductDetails string
	Customer       CustomerInfo
	CallbackURL    string
	ReturnURL      string
	ExpiryMinutes  int
}

// GatewayResult is the parsed synchronous response of a gateway.
type GatewayResult struct {
	Status      models.Status
	ExternalID  string
	RedirectURL string
	VANumber    string
	QRString    string
	Raw         []byte
}

// Gateway opens payments at an external processor.
type Gateway interface {
	Provider() models.PaymentGateway
	CreatePayment(ctx context.Context, req GatewayRequest) (*GatewayResult, error)
}
