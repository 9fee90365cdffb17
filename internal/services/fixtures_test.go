package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/testutil"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []PaymentStatusEvent
}

func (r *recordingPublisher) PublishPaymentStatus(ctx context.Context, ev PaymentStatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func createUser(t *testing.T, db *gorm.DB, uid string) models.User {
	t.Helper()
	u := models.User{FirebaseUID: uid, Name: "Customer " + uid, Email: uid + "@example.com", Phone: "08123", Role: models.UserRoleCustomer}
	testutil.MustCreate(t, db, &u)
	return u
}

// createPayment stores a transaction with one payment in the given state.
func createPayment(t *testing.T, db *gorm.DB, user models.User, status models.Status, expiresAt time.Time, externalID string) models.Payment {
	t.Helper()
	trx := models.Transaction{
		UserID:   user.ID,
		Subtotal: 150000,
		Amount:   150000,
		Currency: models.CurrencyIDR,
		Status:   status,
	}
	testutil.MustCreate(t, db, &trx)

	p := models.Payment{
		TransactionID: trx.ID,
		OrderID:       fmt.Sprintf("TRX-%d", trx.ID),
		Gateway:       models.PaymentGatewayDuitku,
		MethodCode:    "duitku_bca_va",
		Status:        status,
		Amount:        150000,
		ExternalID:    externalID,
		ExpiresAt:     expiresAt,
	}
	testutil.MustCreate(t, db, &p)
	return p
}

func reloadPayment(t *testing.T, db *gorm.DB, id uint) models.Payment {
	t.Helper()
	var p models.Payment
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("reload payment %d: %v", id, err)
	}
	return p
}

func reloadTransaction(t *testing.T, db *gorm.DB, id uint) models.Transaction {
	t.Helper()
	var trx models.Transaction
	if err := db.First(&trx, id).Error; err != nil {
		t.Fatalf("reload transaction %d: %v", id, err)
	}
	return trx
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func newTestDuitku(t *testing.T, baseURL string) *DuitkuGateway {
	t.Helper()
	g, err := NewDuitkuGateway(DuitkuConfig{
		MerchantCode: "D0001",
		APIKey:       "secret-key",
		BaseURL:      baseURL,
	}, nil)
	if err != nil {
		t.Fatalf("NewDuitkuGateway: %v", err)
	}
	return g
}

func newTestPaymentService(t *testing.T, db *gorm.DB, duitku *DuitkuGateway, events EventPublisher) *PaymentService {
	t.Helper()
	svc := NewPaymentService(db, PaymentConfig{AppURL: "https://agency.test"}, events, duitku, nil)
	svc.SetClock(fixedClock)
	return svc
}

// signedCallback builds a valid Duitku callback for p.
func signedCallback(g *DuitkuGateway, p models.Payment, resultCode string) DuitkuCallback {
	amount := "150000"
	return DuitkuCallback{
		MerchantCode:    "D0001",
		Amount:          amount,
		MerchantOrderID: p.OrderID,
		ResultCode:      resultCode,
		Reference:       p.ExternalID,
		Signature:       g.CallbackSignature(amount, p.OrderID),
	}
}
