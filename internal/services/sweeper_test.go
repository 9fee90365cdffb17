package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/testutil"
)

func TestSweepExpiresStalePayments(t *testing.T) {
	db := testutil.NewDB(t)
	events := &recordingPublisher{}
	sweeper := NewExpirationSweeper(db, events)
	sweeper.SetClock(fixedClock)

	user := createUser(t, db, "u1")
	stale := createPayment(t, db, user, models.StatusPending, testNow.Add(-time.Second), "")
	fresh := createPayment(t, db, user, models.StatusPending, testNow.Add(time.Minute), "")
	paid := createPayment(t, db, user, models.StatusPaid, testNow.Add(-time.Hour), "")

	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Expired != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want one expired", res)
	}

	tests := []struct {
		name    string
		payment models.Payment
		want    models.Status
	}{
		{name: "stale pending", payment: stale, want: models.StatusExpired},
		{name: "fresh pending", payment: fresh, want: models.StatusPending},
		{name: "paid past expiry", payment: paid, want: models.StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reloadPayment(t, db, tt.payment.ID).Status; got != tt.want {
				t.Errorf("payment status = %s, want %s", got, tt.want)
			}
			if got := reloadTransaction(t, db, tt.payment.TransactionID).Status; got != tt.want {
				t.Errorf("transaction status = %s, want %s", got, tt.want)
			}
		})
	}

	if events.count() != 1 || events.events[0].Source != SourceSweeper {
		t.Errorf("events = %+v", events.events)
	}
}

type snapshotRow struct {
	ID        uint
	Status    models.Status
	UpdatedAt time.Time
}

func snapshot(t *testing.T, db *gorm.DB) ([]snapshotRow, []snapshotRow) {
	t.Helper()
	var payments, trxs []snapshotRow
	if err := db.Model(&models.Payment{}).Order("id").Find(&payments).Error; err != nil {
		t.Fatalf("snapshot payments: %v", err)
	}
	if err := db.Model(&models.Transaction{}).Order("id").Find(&trxs).Error; err != nil {
		t.Fatalf("snapshot transactions: %v", err)
	}
	return payments, trxs
}

func TestSweepTwiceIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	sweeper := NewExpirationSweeper(db, nil)
	sweeper.SetClock(fixedClock)
	// more stale rows than one batch holds
	sweeper.batch = 2

	user := createUser(t, db, "u1")
	for i := 0; i < 5; i++ {
		createPayment(t, db, user, models.StatusPending, testNow.Add(-time.Duration(i+1)*time.Minute), "")
	}
	createPayment(t, db, user, models.StatusPending, testNow.Add(time.Hour), "")

	first, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Expired != 5 || first.Scanned != 5 {
		t.Fatalf("first sweep = %+v, want 5 scanned and expired", first)
	}
	payments1, trxs1 := snapshot(t, db)

	second, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second != (SweepResult{}) {
		t.Errorf("second sweep = %+v, want no work", second)
	}
	payments2, trxs2 := snapshot(t, db)

	for i := range payments1 {
		if payments1[i] != payments2[i] {
			t.Errorf("payment row changed: %+v -> %+v", payments1[i], payments2[i])
		}
	}
	for i := range trxs1 {
		if trxs1[i] != trxs2[i] {
			t.Errorf("transaction row changed: %+v -> %+v", trxs1[i], trxs2[i])
		}
	}
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	db := testutil.NewDB(t)
	sweeper := NewExpirationSweeper(db, nil)
	sweeper.SetClock(fixedClock)

	user := createUser(t, db, "u1")
	first := createPayment(t, db, user, models.StatusPending, testNow.Add(-2*time.Minute), "")
	second := createPayment(t, db, user, models.StatusPending, testNow.Add(-time.Minute), "")
	// the failing row fills a whole batch and must not hold back the next one
	sweeper.batch = 1

	failed := false
	if err := db.Callback().Update().Before("gorm:update").Register("test:fail_once", func(tx *gorm.DB) {
		if !failed && tx.Statement.Table == "payments" {
			failed = true
			_ = tx.AddError(errors.New("disk full"))
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Failed != 1 || res.Expired != 1 {
		t.Errorf("result = %+v, want one failed and one expired", res)
	}
	if st := reloadPayment(t, db, first.ID).Status; st != models.StatusPending {
		t.Errorf("failed payment status = %s, want pending", st)
	}
	if st := reloadTransaction(t, db, first.TransactionID).Status; st != models.StatusPending {
		t.Errorf("failed payment's transaction = %s, want pending", st)
	}
	if st := reloadPayment(t, db, second.ID).Status; st != models.StatusExpired {
		t.Errorf("second payment status = %s, want expired", st)
	}
}
