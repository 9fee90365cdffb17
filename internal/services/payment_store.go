package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
)

// ReceiptTaskName is the worker task queued when a payment becomes paid.
const ReceiptTaskName = "send_payment_receipt"

// errStatusMoved means the row left the expected status before our update.
var errStatusMoved = errors.New("payment status changed concurrently")

// PaymentStore persists payments and their status transitions.
type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByReference looks a payment up by gateway reference, then by order id.
func (s *PaymentStore) FindByReference(ctx context.Context, reference, orderID string) (*models.Payment, error) {
	db := s.db.WithContext(ctx)
	var p models.Payment
	if reference != "" {
		err := db.Where("external_id = ?", reference).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if orderID != "" {
		if err := db.Where("order_id = ?", orderID).First(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// FindExpiredPending returns up to limit pending payments whose expiry is
// before now, ordered by id and starting after afterID.
func (s *PaymentStore) FindExpiredPending(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	q := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ? AND id > ?", models.StatusPending, now, afterID).
		Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// transitionTx moves a payment from one status to another and cascades the
// change onto its Transaction. It must run inside a database transaction so
// both rows change together. A paid Transaction is never touched again.
func transitionTx(tx *gorm.DB, p *models.Payment, from, to models.Status, at time.Time) error {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	if to == models.StatusPaid {
		updates["payment_date"] = at
	}

	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", p.ID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStatusMoved
	}

	trxUpdates := map[string]interface{}{"status": to, "updated_at": at}
	if to == models.StatusPaid {
		trxUpdates["paid_at"] = at
	}
	if err := tx.Model(&models.Transaction{}).
		Where("id = ? AND status <> ?", p.TransactionID, models.StatusPaid).
		Updates(trxUpdates).Error; err != nil {
		return err
	}

	if to == models.StatusPaid {
		if err := activateSubscriptionTx(tx, p.TransactionID, at); err != nil {
			return err
		}
		if err := queueReceiptTx(tx, p.ID, at); err != nil {
			return err
		}
	}

	p.Status = to
	if to == models.StatusPaid {
		paid := at
		p.PaymentDate = &paid
	}
	return nil
}

// activateSubscriptionTx starts the WhatsApp package bought by the transaction.
func activateSubscriptionTx(tx *gorm.DB, transactionID uint, at time.Time) error {
	var wt models.WhatsAppTransaction
	err := tx.Where("transaction_id = ?", transactionID).First(&wt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if wt.StartsAt != nil {
		return nil
	}
	return tx.Model(&wt).Updates(map[string]interface{}{
		"starts_at":  at,
		"expires_at": at.AddDate(0, wt.DurationMonths, 0),
	}).Error
}

func queueReceiptTx(tx *gorm.DB, paymentID uint, at time.Time) error {
	return tx.Create(&models.ScheduledTask{
		TaskName:   ReceiptTaskName,
		Arguments:  map[string]interface{}{"payment_id": paymentID},
		Due:        at,
		Status:     models.ScheduledTaskStatusActive,
		TaskType:   models.ScheduledTaskTypeOneTime,
		MaxAttempt: 3,
	}).Error
}
