package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

// Midtrans transaction_status values. A capture is refined by
// midtransCaptureFraud in NotificationOutcome.
var midtransStatusCodes = CodeTable{
	"settlement": OutcomeSuccess,
	"capture":    OutcomeSuccess,
	"pending":    OutcomePending,
	"deny":       OutcomeFailed,
	"failure":    OutcomeFailed,
	"expire":     OutcomeExpired,
	"cancel":     OutcomeCancelled,
}

// fraud_status of a card capture. Non-card captures carry no fraud status.
var midtransCaptureFraud = CodeTable{
	"":          OutcomeSuccess,
	"accept":    OutcomeSuccess,
	"challenge": OutcomePending,
	"deny":      OutcomeFailed,
}

type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
}

// snapCreator is the part of snap.Client the service uses.
type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type MidtransService struct {
	snap      snapCreator
	serverKey string
}

func NewMidtransService(cfg MidtransConfig) (*MidtransService, error) {
	if cfg.ServerKey == "" {
		return nil, fmt.Errorf("midtrans server key is required")
	}
	if err := ValidateCodeTables(map[string]CodeTable{
		"midtrans":         midtransStatusCodes,
		"midtrans capture": midtransCaptureFraud,
	}); err != nil {
		return nil, err
	}

	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.ServerKey, env)

	// Set Default Options
	midtrans.ServerKey = cfg.ServerKey
	midtrans.ClientKey = cfg.ClientKey
	midtrans.Environment = env

	return &MidtransService{snap: &s, serverKey: cfg.ServerKey}, nil
}

func (s *MidtransService) Provider() models.PaymentGateway {
	return models.PaymentGatewayMidtrans
}

// CreatePayment opens a Snap transaction. The order id doubles as the
// external reference because notifications are keyed by order_id.
func (s *MidtransService) CreatePayment(ctx context.Context, req GatewayRequest) (*GatewayResult, error) {
	param := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.OrderID,
			Name:  truncate(req.ProductDetails, 50),
			Price: req.Amount,
			Qty:   1,
		}},
	}
	if req.MethodCode != "" {
		param.EnabledPayments = []snap.SnapPaymentType{snap.SnapPaymentType(req.MethodCode)}
	}
	if req.ReturnURL != "" {
		param.Callbacks = &snap.Callbacks{Finish: req.ReturnURL}
	}
	if req.ExpiryMinutes > 0 {
		param.Expiry = &snap.ExpiryDetails{Unit: "minute", Duration: int64(req.ExpiryMinutes)}
	}

	resp, mErr := s.snap.CreateTransaction(param)
	if mErr != nil {
		zap.S().Errorw("midtrans create transaction failed",
			"order_id", req.OrderID,
			"upstream_status", mErr.StatusCode,
			"error", mErr.Message,
		)
		return nil, apperr.GatewayUnavailable(
			"Payment gateway is unavailable",
			fmt.Errorf("midtrans create transaction error: %v", mErr.Message),
		)
	}
	if resp == nil || resp.Token == "" || resp.RedirectURL == "" {
		return nil, apperr.InvalidGatewayResponse("Payment gateway returned no token", nil)
	}

	raw, _ := json.Marshal(resp)
	return &GatewayResult{
		Status:      models.StatusPending,
		ExternalID:  req.OrderID,
		RedirectURL: resp.RedirectURL,
		Raw:         raw,
	}, nil
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + ServerKey).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	if signatureKey == "" {
		return false
	}
	expected := s.Signature(orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signatureKey))) == 1
}

func (s *MidtransService) Signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + s.serverKey))
	return hex.EncodeToString(sum[:])
}

// NotificationOutcome maps transaction_status and fraud_status to an outcome.
// A capture is a success only when the fraud check accepted it; an unknown
// fraud status is an error so nothing is applied.
func (s *MidtransService) NotificationOutcome(transactionStatus, fraudStatus string) (Outcome, error) {
	o, err := midtransStatusCodes.Lookup(transactionStatus)
	if err != nil {
		return "", err
	}
	if transactionStatus == "capture" {
		return midtransCaptureFraud.Lookup(fraudStatus)
	}
	return o, nil
}
