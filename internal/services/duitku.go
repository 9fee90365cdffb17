package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

// Duitku result codes. Callbacks only carry 00 and 01; the browser return
// also uses 02.
var (
	duitkuCallbackCodes = CodeTable{
		"00": OutcomeSuccess,
		"01": OutcomeFailed,
		"02": OutcomeCancelled,
	}
	duitkuReturnCodes = CodeTable{
		"00": OutcomeSuccess,
		"01": OutcomePending,
		"02": OutcomeCancelled,
	}
)

type DuitkuConfig struct {
	MerchantCode  string
	APIKey        string
	BaseURL       string
	ExpiryMinutes int
}

type DuitkuGateway struct {
	cfg    DuitkuConfig
	client *http.Client
}

func NewDuitkuGateway(cfg DuitkuConfig, client *http.Client) (*DuitkuGateway, error) {
	if cfg.MerchantCode == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("duitku merchant code and api key are required")
	}
	if err := ValidateCodeTables(map[string]CodeTable{
		"duitku callback": duitkuCallbackCodes,
		"duitku return":   duitkuReturnCodes,
	}); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}
	if cfg.ExpiryMinutes <= 0 {
		cfg.ExpiryMinutes = 60
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &DuitkuGateway{cfg: cfg, client: client}, nil
}

func (g *DuitkuGateway) Provider() models.PaymentGateway {
	return models.PaymentGatewayDuitku
}

type duitkuInquiryRequest struct {
	MerchantCode    string `json:"merchantCode"`
	PaymentAmount   int64  `json:"paymentAmount"`
	PaymentMethod   string `json:"paymentMethod"`
	MerchantOrderID string `json:"merchantOrderId"`
	ProductDetails  string `json:"productDetails"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	CustomerVaName  string `json:"customerVaName"`
	CallbackURL     string `json:"callbackUrl"`
	ReturnURL       string `json:"returnUrl"`
	Signature       string `json:"signature"`
	ExpiryPeriod    int    `json:"expiryPeriod"`
}

type duitkuInquiryResponse struct {
	MerchantCode  string `json:"merchantCode"`
	Reference     string `json:"reference"`
	PaymentURL    string `json:"paymentUrl"`
	VANumber      string `json:"vaNumber"`
	QRString      string `json:"qrString"`
	Amount        string `json:"amount"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// CreatePayment calls the Duitku v2 inquiry endpoint.
func (g *DuitkuGateway) CreatePayment(ctx context.Context, req GatewayRequest) (*GatewayResult, error) {
	expiry := req.ExpiryMinutes
	if expiry <= 0 {
		expiry = g.cfg.ExpiryMinutes
	}

	body := duitkuInquiryRequest{
		MerchantCode:    g.cfg.MerchantCode,
		PaymentAmount:   req.Amount,
		PaymentMethod:   req.MethodCode,
		MerchantOrderID: req.OrderID,
		ProductDetails:  req.ProductDetails,
		Email:           req.Customer.Email,
		PhoneNumber:     req.Customer.Phone,
		CustomerVaName:  req.Customer.Name,
		CallbackURL:     req.CallbackURL,
		ReturnURL:       req.ReturnURL,
		Signature:       g.inquirySignature(req.OrderID, req.Amount),
		ExpiryPeriod:    expiry,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/webapi/api/merchant/v2/inquiry", bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, apperr.GatewayUnavailable("Payment gateway is unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.GatewayUnavailable("Payment gateway response could not be read", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.S().Errorw("duitku inquiry failed",
			"order_id", req.OrderID,
			"upstream_status", resp.StatusCode,
			"body", truncate(string(raw), 512),
		)
		return nil, apperr.GatewayUnavailable(
			fmt.Sprintf("Payment gateway returned status %d", resp.StatusCode),
			fmt.Errorf("duitku status %d", resp.StatusCode),
		)
	}

	var out duitkuInquiryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.InvalidGatewayResponse("Payment gateway returned malformed JSON", err)
	}
	if out.StatusCode != "00" || out.Reference == "" || out.PaymentURL == "" {
		zap.S().Warnw("duitku inquiry rejected",
			"order_id", req.OrderID,
			"status_code", out.StatusCode,
			"status_message", out.StatusMessage,
		)
		return nil, apperr.InvalidGatewayResponse(
			"Payment gateway did not accept the payment",
			fmt.Errorf("duitku status code %q: %s", out.StatusCode, out.StatusMessage),
		)
	}

	return &GatewayResult{
		Status:      models.StatusPending,
		ExternalID:  out.Reference,
		RedirectURL: out.PaymentURL,
		VANumber:    out.VANumber,
		QRString:    out.QRString,
		Raw:         raw,
	}, nil
}

// MD5(merchantCode + merchantOrderId + paymentAmount + apiKey)
func (g *DuitkuGateway) inquirySignature(orderID string, amount int64) string {
	return md5Hex(g.cfg.MerchantCode + orderID + strconv.FormatInt(amount, 10) + g.cfg.APIKey)
}

// VerifyCallbackSignature checks MD5(merchantCode + amount + merchantOrderId + apiKey).
func (g *DuitkuGateway) VerifyCallbackSignature(merchantCode, amount, merchantOrderID, signature string) bool {
	if merchantCode != g.cfg.MerchantCode || signature == "" {
		return false
	}
	expected := md5Hex(merchantCode + amount + merchantOrderID + g.cfg.APIKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// CallbackSignature builds the signature Duitku puts on callbacks.
func (g *DuitkuGateway) CallbackSignature(amount, merchantOrderID string) string {
	return md5Hex(g.cfg.MerchantCode + amount + merchantOrderID + g.cfg.APIKey)
}

func (g *DuitkuGateway) CallbackOutcome(resultCode string) (Outcome, error) {
	return duitkuCallbackCodes.Lookup(resultCode)
}

func (g *DuitkuGateway) ReturnOutcome(resultCode string) (Outcome, error) {
	return duitkuReturnCodes.Lookup(resultCode)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
