package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

const (
	DuitkuCallbackPath       = "/api/payments/duitku/callback"
	MidtransNotificationPath = "/api/payments/midtrans/notification"
	PaymentReturnPath        = "/payments/return"
)

type PaymentConfig struct {
	AppURL        string
	ManualExpiry  time.Duration
	GatewayExpiry time.Duration
}

type PaymentService struct {
	db       *gorm.DB
	store    *PaymentStore
	duitku   *DuitkuGateway
	midtrans *MidtransService
	events   EventPublisher
	cfg      PaymentConfig
	now      func() time.Time
}

// NewPaymentService wires the payment lifecycle. duitku and midtrans may be
// nil when the gateway is not configured; its methods are then unavailable.
func NewPaymentService(db *gorm.DB, cfg PaymentConfig, events EventPublisher, duitku *DuitkuGateway, midtrans *MidtransService) *PaymentService {
	if events == nil {
		events = LogPublisher{}
	}
	if cfg.ManualExpiry <= 0 {
		cfg.ManualExpiry = 24 * time.Hour
	}
	if cfg.GatewayExpiry <= 0 {
		cfg.GatewayExpiry = time.Hour
	}
	return &PaymentService{
		db:       db,
		store:    NewPaymentStore(db),
		duitku:   duitku,
		midtrans: midtrans,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *PaymentService) gatewayFor(provider models.PaymentGateway) Gateway {
	switch provider {
	case models.PaymentGatewayDuitku:
		if s.duitku != nil {
			return s.duitku
		}
	case models.PaymentGatewayMidtrans:
		if s.midtrans != nil {
			return s.midtrans
		}
	}
	return nil
}

// CheckoutInput is the customer's checkout request.
type CheckoutInput struct {
	PackageID         uint   `json:"packageId" validate:"required"`
	DurationMonths    int    `json:"durationMonths" validate:"required,oneof=1 3 6 12"`
	PaymentMethodCode string `json:"paymentMethodCode" validate:"required"`
}

type ManualInstructions struct {
	BankName      string    `json:"bankName"`
	AccountNumber string    `json:"accountNumber"`
	AccountHolder string    `json:"accountHolder"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type CheckoutResult struct {
	Transaction  models.Transaction  `json:"transaction"`
	Payment      models.Payment      `json:"payment"`
	RedirectURL  string              `json:"redirectUrl,omitempty"`
	Instructions *ManualInstructions `json:"instructions,omitempty"`
}

// Checkout creates a pending Transaction, Payment and WhatsAppTransaction,
// then opens the payment at the gateway for gateway methods. When the
// gateway call fails the rows stay pending and the error carries the
// transaction id so the client can retry.
func (s *PaymentService) Checkout(ctx context.Context, user models.User, in CheckoutInput) (*CheckoutResult, error) {
	db := s.db.WithContext(ctx)

	var pkg models.WhatsAppPackage
	if err := db.Where("id = ? AND is_active = ?", in.PackageID, true).First(&pkg).Error; err != nil {
		return nil, apperr.FromDB(err, "Package not found")
	}

	var method models.PaymentMethod
	if err := db.Preload("BankDetail").
		Where("code = ? AND is_active = ?", in.PaymentMethodCode, true).
		First(&method).Error; err != nil {
		return nil, apperr.FromDB(err, "Payment method not found")
	}

	gateway := models.PaymentGatewayManual
	expiry := s.cfg.ManualExpiry
	if method.IsGatewayMethod {
		if s.gatewayFor(method.Provider) == nil {
			return nil, apperr.ValidationFailed("Payment method is not available", map[string]string{
				"paymentMethodCode": "unavailable",
			})
		}
		gateway = method.Provider
		expiry = s.cfg.GatewayExpiry
	}

	subtotal := pkg.MonthlyPrice * int64(in.DurationMonths)
	fee := method.ServiceFee(subtotal)
	now := s.now()

	trx := models.Transaction{
		UserID:      user.ID,
		Description: fmt.Sprintf("%s x %d month(s)", pkg.Name, in.DurationMonths),
		Subtotal:    subtotal,
		ServiceFee:  fee,
		Amount:      subtotal + fee,
		Currency:    models.CurrencyIDR,
		Status:      models.StatusPending,
	}
	var payment models.Payment

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trx).Error; err != nil {
			return err
		}
		payment = models.Payment{
			TransactionID: trx.ID,
			OrderID:       fmt.Sprintf("TRX-%d-%d", trx.ID, now.Unix()),
			Gateway:       gateway,
			MethodCode:    method.Code,
			Status:        models.StatusPending,
			Amount:        trx.Amount,
			ExpiresAt:     now.Add(expiry),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Create(&models.WhatsAppTransaction{
			TransactionID:  trx.ID,
			UserID:         user.ID,
			PackageID:      pkg.ID,
			PackageName:    pkg.Name,
			DurationMonths: in.DurationMonths,
		}).Error
	})
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}

	zap.S().Infow("checkout created",
		"transaction_id", trx.ID,
		"order_id", payment.OrderID,
		"method", method.Code,
		"amount", trx.Amount,
	)

	result := &CheckoutResult{Transaction: trx, Payment: payment}
	if !method.IsGatewayMethod {
		if method.BankDetail != nil {
			result.Instructions = &ManualInstructions{
				BankName:      method.BankDetail.BankName,
				AccountNumber: method.BankDetail.AccountNumber,
				AccountHolder: method.BankDetail.AccountHolder,
				Amount:        payment.Amount,
				ExpiresAt:     payment.ExpiresAt,
			}
		}
		return result, nil
	}

	if err := s.openGatewayPayment(ctx, user, &trx, &payment, method); err != nil {
		return result, withTransactionID(err, trx.ID)
	}
	result.Payment = payment
	result.RedirectURL = payment.RedirectURL
	return result, nil
}

func withTransactionID(err error, id uint) error {
	ae := apperr.As(err)
	if ae.Fields == nil {
		ae.Fields = map[string]string{}
	}
	ae.Fields["transactionId"] = fmt.Sprint(id)
	return ae
}

// openGatewayPayment calls the gateway and stores its reference on the payment.
func (s *PaymentService) openGatewayPayment(ctx context.Context, user models.User, trx *models.Transaction, payment *models.Payment, method models.PaymentMethod) error {
	gw := s.gatewayFor(method.Provider)
	if gw == nil {
		return apperr.ValidationFailed("Payment method is not available", map[string]string{
			"paymentMethodCode": "unavailable",
		})
	}

	callbackPath := DuitkuCallbackPath
	if method.Provider == models.PaymentGatewayMidtrans {
		callbackPath = MidtransNotificationPath
	}

	expiryMinutes := int(payment.ExpiresAt.Sub(s.now()).Minutes())
	if expiryMinutes < 1 {
		expiryMinutes = 1
	}

	req := GatewayRequest{
		OrderID:        payment.OrderID,
		Amount:         payment.Amount,
		MethodCode:     method.GatewayCode,
		ProductDetails: trx.Description,
		Customer: CustomerInfo{
			Name:  user.Name,
			Email: user.Email,
			Phone: user.Phone,
		},
		CallbackURL:   s.cfg.AppURL + callbackPath,
		ReturnURL:     s.cfg.AppURL + PaymentReturnPath,
		ExpiryMinutes: expiryMinutes,
	}
	reqMeta, _ := json.Marshal(req)

	res, err := gw.CreatePayment(ctx, req)
	if err != nil {
		zap.S().Errorw("gateway create payment failed",
			"gateway", gw.Provider(),
			"order_id", payment.OrderID,
			"transaction_id", trx.ID,
			"error", err,
		)
		s.db.WithContext(ctx).Model(&models.Payment{}).
			Where("id = ?", payment.ID).
			Update("request_metadata", datatypes.JSON(reqMeta))
		return err
	}

	updates := map[string]interface{}{
		"external_id":       res.ExternalID,
		"redirect_url":      res.RedirectURL,
		"va_number":         res.VANumber,
		"qr_string":         res.QRString,
		"request_metadata":  datatypes.JSON(reqMeta),
		"response_metadata": datatypes.JSON(res.Raw),
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.StatusPending).
		Updates(updates).Error; err != nil {
		return apperr.DatabaseUnavailable(err)
	}

	payment.ExternalID = res.ExternalID
	payment.RedirectURL = res.RedirectURL
	payment.VANumber = res.VANumber
	payment.QRString = res.QRString
	return nil
}

// RetryGatewayPayment re-opens a pending gateway payment whose first gateway
// call failed. A payment already known to the gateway is returned as is.
func (s *PaymentService) RetryGatewayPayment(ctx context.Context, user models.User, transactionID uint) (*CheckoutResult, error) {
	trx, err := s.GetTransaction(ctx, user, transactionID)
	if err != nil {
		return nil, err
	}
	if trx.Payment == nil {
		return nil, apperr.NotFound("Payment not found")
	}
	payment := *trx.Payment

	if payment.Status != models.StatusPending || payment.IsExpired(s.now()) {
		return nil, apperr.Conflict("Payment is no longer pending, start a new checkout")
	}
	result := &CheckoutResult{Transaction: *trx, Payment: payment, RedirectURL: payment.RedirectURL}
	if payment.ExternalID != "" {
		return result, nil
	}

	var method models.PaymentMethod
	if err := s.db.WithContext(ctx).Where("code = ?", payment.MethodCode).First(&method).Error; err != nil {
		return nil, apperr.FromDB(err, "Payment method not found")
	}
	if !method.IsGatewayMethod {
		return nil, apperr.Conflict("Manual payments cannot be retried at a gateway")
	}

	if err := s.openGatewayPayment(ctx, user, trx, &payment, method); err != nil {
		return nil, err
	}
	result.Payment = payment
	result.RedirectURL = payment.RedirectURL
	return result, nil
}

// GetTransaction returns a transaction with its payment. Customers only see
// their own transactions. A pending payment already past its expiry is
// expired before the read returns, so the answer never depends on when the
// throttled request sweep last ran.
func (s *PaymentService) GetTransaction(ctx context.Context, user models.User, id uint) (*models.Transaction, error) {
	var trx models.Transaction
	load := func() error {
		q := s.db.WithContext(ctx).
			Preload("Payment").
			Preload("WhatsAppTransaction").
			Where("id = ?", id)
		if !user.IsAdmin() {
			q = q.Where("user_id = ?", user.ID)
		}
		return q.First(&trx).Error
	}

	if err := load(); err != nil {
		return nil, apperr.FromDB(err, "Transaction not found")
	}
	if s.expireStale(ctx, trx.Payment) {
		trx = models.Transaction{}
		if err := load(); err != nil {
			return nil, apperr.FromDB(err, "Transaction not found")
		}
	}
	return &trx, nil
}

// ListTransactions returns the user's transactions, newest first, with stale
// pending payments expired the same way GetTransaction does.
func (s *PaymentService) ListTransactions(ctx context.Context, user models.User) ([]models.Transaction, error) {
	var list []models.Transaction
	load := func() error {
		return s.db.WithContext(ctx).
			Preload("Payment").
			Preload("WhatsAppTransaction").
			Where("user_id = ?", user.ID).
			Order("created_at desc").
			Find(&list).Error
	}

	if err := load(); err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	touched := false
	for i := range list {
		if s.expireStale(ctx, list[i].Payment) {
			touched = true
		}
	}
	if touched {
		list = nil
		if err := load(); err != nil {
			return nil, apperr.DatabaseUnavailable(err)
		}
	}
	return list, nil
}

// expireStale expires p when it is pending past its expiry. It reports
// whether the stored rows may differ from p, in which case the caller
// reloads. Failures are logged and leave the read alone.
func (s *PaymentService) expireStale(ctx context.Context, p *models.Payment) bool {
	now := s.now()
	if p == nil || p.Status != models.StatusPending || !p.ExpiresAt.Before(now) {
		return false
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionTx(tx, p, models.StatusPending, models.StatusExpired, now)
	})
	switch {
	case errors.Is(err, errStatusMoved):
		return true
	case err != nil:
		zap.S().Warnw("failed to expire stale payment on read",
			"payment_id", p.ID,
			"order_id", p.OrderID,
			"error", err,
		)
		return false
	}
	announce(ctx, s.db, s.events, *p, models.StatusPending, models.StatusExpired, SourceSweeper, now)
	return true
}

// ApplyResult describes what ApplyStatus did.
type ApplyResult struct {
	Payment  models.Payment `json:"payment"`
	From     models.Status  `json:"from"`
	To       models.Status  `json:"to"`
	Changed  bool           `json:"changed"`
	Rejected bool           `json:"rejected"`
}

// ApplyStatus is the authoritative status writer used by gateway callbacks
// and admin confirmation. Repeating the current status is a no-op. Moves the
// state machine forbids, notably anything away from paid, are rejected and
// logged without touching the database.
func (s *PaymentService) ApplyStatus(ctx context.Context, paymentID uint, next models.Status, source StatusSource) (*ApplyResult, error) {
	if !next.Valid() {
		return nil, apperr.ValidationFailed("Unknown payment status", map[string]string{"status": "oneof"})
	}

	// The compare-and-set in transitionTx can lose to a concurrent writer;
	// reload and decide again when it does.
	for attempt := 0; attempt < 3; attempt++ {
		p, err := s.store.FindByID(ctx, paymentID)
		if err != nil {
			return nil, apperr.FromDB(err, "Payment not found")
		}

		res := &ApplyResult{Payment: *p, From: p.Status, To: next}
		if p.Status == next {
			return res, nil
		}

		if !models.CanTransition(p.Status, next) {
			res.Rejected = true
			log := zap.S().With(
				"payment_id", p.ID,
				"order_id", p.OrderID,
				"current", p.Status,
				"requested", next,
				"source", source,
			)
			if p.Status == models.StatusPaid {
				log.Warnw("status change on paid payment ignored", "alert", true)
			} else {
				log.Infow("status change rejected")
			}
			return res, nil
		}

		now := s.now()
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return transitionTx(tx, p, res.From, next, now)
		})
		if errors.Is(err, errStatusMoved) {
			continue
		}
		if err != nil {
			return nil, apperr.DatabaseUnavailable(err)
		}

		res.Payment = *p
		res.Changed = true
		announce(ctx, s.db, s.events, *p, res.From, next, source, now)
		return res, nil
	}
	return nil, apperr.Conflict("Payment status is changing concurrently, please retry")
}

// AdminSetStatus lets an admin confirm or reject a payment, typically a
// manual transfer.
func (s *PaymentService) AdminSetStatus(ctx context.Context, paymentID uint, next models.Status) (*ApplyResult, error) {
	res, err := s.ApplyStatus(ctx, paymentID, next, SourceAdmin)
	if err != nil {
		return nil, err
	}
	if res.Rejected {
		return res, apperr.Conflict(fmt.Sprintf("Payment is %s and cannot become %s", res.From, res.To))
	}
	return res, nil
}

// announce publishes a committed status change. Publishing failures are
// logged only; the database already holds the truth.
func announce(ctx context.Context, db *gorm.DB, events EventPublisher, p models.Payment, from, to models.Status, source StatusSource, at time.Time) {
	var userID uint
	db.WithContext(ctx).Model(&models.Transaction{}).
		Select("user_id").
		Where("id = ?", p.TransactionID).
		Scan(&userID)

	ev := PaymentStatusEvent{
		Event:         EventPaymentStatusChanged,
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		UserID:        userID,
		OrderID:       p.OrderID,
		From:          from,
		To:            to,
		Source:        source,
		OccurredAt:    at,
	}
	if err := events.PublishPaymentStatus(ctx, ev); err != nil {
		zap.S().Errorw("publish payment status failed", "payment_id", p.ID, "error", err)
	}
}

// DuitkuCallback is the form body Duitku posts to the callback URL.
type DuitkuCallback struct {
	MerchantCode     string `form:"merchantCode" json:"merchantCode"`
	Amount           string `form:"amount" json:"amount"`
	MerchantOrderID  string `form:"merchantOrderId" json:"merchantOrderId"`
	ProductDetail    string `form:"productDetail" json:"productDetail"`
	AdditionalParam  string `form:"additionalParam" json:"additionalParam"`
	PaymentCode      string `form:"paymentCode" json:"paymentCode"`
	ResultCode       string `form:"resultCode" json:"resultCode"`
	MerchantUserID   string `form:"merchantUserId" json:"merchantUserId"`
	Reference        string `form:"reference" json:"reference"`
	Signature        string `form:"signature" json:"signature"`
	PublisherOrderID string `form:"publisherOrderId" json:"publisherOrderId"`
	SettlementDate   string `form:"settlementDate" json:"settlementDate"`
	IssuerCode       string `form:"issuerCode" json:"issuerCode"`
}

// HandleDuitkuCallback processes one Duitku delivery and returns what it did.
// It never returns an error: every outcome is logged and kept in the
// callback history so the HTTP layer can always acknowledge the gateway.
func (s *PaymentService) HandleDuitkuCallback(ctx context.Context, cb DuitkuCallback) models.CallbackOutcome {
	h := &models.PaymentCallbackHistory{
		Gateway:    models.PaymentGatewayDuitku,
		Reference:  cb.Reference,
		ResultCode: cb.ResultCode,
	}
	h.Metadata, _ = json.Marshal(cb)
	defer s.recordCallback(ctx, h)

	log := zap.S().With(
		"gateway", models.PaymentGatewayDuitku,
		"reference", cb.Reference,
		"merchant_order_id", cb.MerchantOrderID,
		"result_code", cb.ResultCode,
	)

	if s.duitku == nil {
		return failCallback(h, models.CallbackOutcomeError, "duitku is not configured", log)
	}
	if !s.duitku.VerifyCallbackSignature(cb.MerchantCode, cb.Amount, cb.MerchantOrderID, cb.Signature) {
		return failCallback(h, models.CallbackOutcomeInvalidSignature, "signature mismatch", log)
	}

	outcome, err := s.duitku.CallbackOutcome(cb.ResultCode)
	if err != nil {
		return failCallback(h, models.CallbackOutcomeUnknownCode, err.Error(), log)
	}

	return s.applyCallback(ctx, h, cb.Reference, cb.MerchantOrderID, cb.Amount, outcome, log)
}

// MidtransNotification is the JSON body of a Midtrans HTTP notification.
type MidtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

func (s *PaymentService) HandleMidtransNotification(ctx context.Context, n MidtransNotification) models.CallbackOutcome {
	h := &models.PaymentCallbackHistory{
		Gateway:    models.PaymentGatewayMidtrans,
		Reference:  n.OrderID,
		ResultCode: n.TransactionStatus,
	}
	h.Metadata, _ = json.Marshal(n)
	defer s.recordCallback(ctx, h)

	log := zap.S().With(
		"gateway", models.PaymentGatewayMidtrans,
		"order_id", n.OrderID,
		"transaction_status", n.TransactionStatus,
	)

	if s.midtrans == nil {
		return failCallback(h, models.CallbackOutcomeError, "midtrans is not configured", log)
	}
	if !s.midtrans.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return failCallback(h, models.CallbackOutcomeInvalidSignature, "signature mismatch", log)
	}

	outcome, err := s.midtrans.NotificationOutcome(n.TransactionStatus, n.FraudStatus)
	if err != nil {
		return failCallback(h, models.CallbackOutcomeUnknownCode, err.Error(), log)
	}

	return s.applyCallback(ctx, h, n.OrderID, n.OrderID, n.GrossAmount, outcome, log)
}

func (s *PaymentService) applyCallback(ctx context.Context, h *models.PaymentCallbackHistory, reference, orderID, amount string, outcome Outcome, log *zap.SugaredLogger) models.CallbackOutcome {
	next, err := outcome.Status()
	if err != nil {
		return failCallback(h, models.CallbackOutcomeUnknownCode, err.Error(), log)
	}

	p, err := s.store.FindByReference(ctx, reference, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return failCallback(h, models.CallbackOutcomeUnknownPayment, "no payment matches the reference", log)
	}
	if err != nil {
		return failCallback(h, models.CallbackOutcomeError, err.Error(), log)
	}
	h.PaymentID = &p.ID

	if paid, err := parseAmount(amount); err != nil || paid != p.Amount {
		return failCallback(h, models.CallbackOutcomeRejected, fmt.Sprintf("amount %q does not match %d", amount, p.Amount), log)
	}

	res, err := s.ApplyStatus(ctx, p.ID, next, SourceCallback)
	switch {
	case err != nil:
		return failCallback(h, models.CallbackOutcomeError, err.Error(), log)
	case res.Rejected:
		h.Outcome = models.CallbackOutcomeRejected
		h.Detail = fmt.Sprintf("%s -> %s not allowed", res.From, res.To)
	case res.Changed:
		h.Outcome = models.CallbackOutcomeApplied
		h.Detail = fmt.Sprintf("%s -> %s", res.From, res.To)
		log.Infow("callback applied", "payment_id", p.ID, "from", res.From, "to", res.To)
	default:
		h.Outcome = models.CallbackOutcomeNoop
		log.Infow("duplicate callback ignored", "payment_id", p.ID, "status", res.From)
	}
	return h.Outcome
}

func failCallback(h *models.PaymentCallbackHistory, outcome models.CallbackOutcome, detail string, log *zap.SugaredLogger) models.CallbackOutcome {
	h.Outcome = outcome
	h.Detail = detail
	if outcome == models.CallbackOutcomeError {
		log.Errorw("callback processing failed", "outcome", outcome, "detail", detail)
	} else {
		log.Warnw("callback not applied", "outcome", outcome, "detail", detail)
	}
	return outcome
}

func (s *PaymentService) recordCallback(ctx context.Context, h *models.PaymentCallbackHistory) {
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		zap.S().Errorw("failed to record callback history",
			"gateway", h.Gateway,
			"reference", h.Reference,
			"outcome", h.Outcome,
			"error", err,
		)
	}
}

func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Round(0).IntPart(), nil
}
