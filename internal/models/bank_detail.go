package models

import (
	"time"

	"gorm.io/gorm"
)

// BankDetail is a static bank account used by manual transfer methods
type BankDetail struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	BankName      string `gorm:"type:varchar(255)" json:"bank_name"`
	AccountNumber string `gorm:"type:varchar(100)" json:"account_number"`
	AccountHolder string `gorm:"type:varchar(255)" json:"account_holder"`
	Branch        string `gorm:"type:varchar(255)" json:"branch,omitempty"`
	IsActive      bool   `gorm:"default:true" json:"is_active"`
}
