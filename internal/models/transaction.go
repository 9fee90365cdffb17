package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrTransactionImmutable is returned when something tries to delete a transaction.
var ErrTransactionImmutable = errors.New("transactions are never deleted")

// CurrencyIDR is the only currency charged by the system.
const CurrencyIDR = "IDR"

// Transaction is one customer order. It is never hard-deleted.
type Transaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      uint       `gorm:"index" json:"user_id"`
	Description string     `gorm:"type:varchar(255)" json:"description"`
	Subtotal    int64      `json:"subtotal"`
	ServiceFee  int64      `json:"service_fee"`
	Amount      int64      `json:"amount"`
	Currency    string     `gorm:"type:varchar(3);default:'IDR'" json:"currency"`
	Status      Status     `gorm:"type:varchar(20);index" json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`

	// Relationships
	User                *User                `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Payment             *Payment             `gorm:"foreignKey:TransactionID" json:"payment,omitempty"`
	WhatsAppTransaction *WhatsAppTransaction `gorm:"foreignKey:TransactionID" json:"whatsapp_transaction,omitempty"`
}

// BeforeDelete refuses hard and soft deletes alike.
func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return ErrTransactionImmutable
}
