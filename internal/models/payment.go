package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentGateway string

const (
	PaymentGatewayDuitku   PaymentGateway = "duitku"
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// Payment is one attempt to settle a Transaction.
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TransactionID uint           `gorm:"uniqueIndex" json:"transaction_id"`
	OrderID       string         `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	Gateway       PaymentGateway `gorm:"type:varchar(50);not null" json:"gateway"`
	MethodCode    string         `gorm:"type:varchar(100)" json:"method_code"`
	Status        Status         `gorm:"type:varchar(20);index:idx_payments_status_expires,priority:1" json:"status"`
	Amount        int64          `json:"amount"`
	ExternalID    string         `gorm:"type:varchar(100);index" json:"external_id,omitempty"`
	RedirectURL   string         `gorm:"type:text" json:"redirect_url,omitempty"`
	VANumber      string         `gorm:"type:varchar(100)" json:"va_number,omitempty"`
	QRString      string         `gorm:"type:text" json:"qr_string,omitempty"`
	ExpiresAt     time.Time      `gorm:"index:idx_payments_status_expires,priority:2" json:"expires_at"`
	PaymentDate   *time.Time     `json:"payment_date,omitempty"`

	RequestMetadata  datatypes.JSON `json:"-"`
	ResponseMetadata datatypes.JSON `json:"-"`

	// Relationships
	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

// IsExpired reports whether a pending payment is past its expiry at now.
func (p Payment) IsExpired(now time.Time) bool {
	return p.Status == StatusPending && !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(now)
}
