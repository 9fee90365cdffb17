package models

import (
	"time"

	"gorm.io/gorm"
)

// WhatsAppSession is one connection provisioned at the WhatsApp gateway.
// Token authenticates every call made on behalf of this session.
type WhatsAppSession struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID       uint       `gorm:"index" json:"user_id"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	Token        string     `gorm:"type:varchar(100);uniqueIndex" json:"-"`
	Connected    bool       `json:"connected"`
	LoggedIn     bool       `json:"logged_in"`
	JID          string     `gorm:"type:varchar(100)" json:"jid,omitempty"`
	WebhookURL   string     `gorm:"type:text" json:"webhook_url,omitempty"`
	LastStatusAt *time.Time `json:"last_status_at,omitempty"`

	// Relationships
	User       *User                `gorm:"foreignKey:UserID" json:"-"`
	BotBinding *AIBotSessionBinding `gorm:"foreignKey:SessionID" json:"bot_binding,omitempty"`
}

// WhatsAppPackage is a sellable WhatsApp Business API plan.
type WhatsAppPackage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name         string `gorm:"type:varchar(255)" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	MonthlyPrice int64  `json:"monthly_price"`
	MaxSessions  int    `gorm:"default:1" json:"max_sessions"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// WhatsAppTransaction is the subscription part of a Transaction.
// StartsAt/ExpiresAt are filled when the transaction is paid.
type WhatsAppTransaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TransactionID  uint       `gorm:"uniqueIndex" json:"transaction_id"`
	UserID         uint       `gorm:"index" json:"user_id"`
	PackageID      uint       `gorm:"index" json:"package_id"`
	PackageName    string     `gorm:"type:varchar(255)" json:"package_name"`
	DurationMonths int        `json:"duration_months"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at,omitempty"`

	// Relationships
	Transaction *Transaction     `gorm:"foreignKey:TransactionID" json:"-"`
	Package     *WhatsAppPackage `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

// IsActiveAt reports whether the subscription covers now.
func (w WhatsAppTransaction) IsActiveAt(now time.Time) bool {
	return w.StartsAt != nil && w.ExpiresAt != nil && !now.Before(*w.StartsAt) && now.Before(*w.ExpiresAt)
}
