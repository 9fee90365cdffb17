package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationChannel string

const (
	NotificationChannelEmail    NotificationChannel = "email"
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
	NotificationChannelNone     NotificationChannel = "none"
)

// UserNotifPreference decides where payment receipts are delivered.
// Users without a row get email.
type UserNotifPreference struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	Channel       NotificationChannel `gorm:"type:varchar(20);default:'email'" json:"channel"`
	WhatsappPhone string              `gorm:"type:varchar(50)" json:"whatsapp_phone,omitempty"` // falls back to User.Phone
}
