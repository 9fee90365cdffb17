package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents the role of a user
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
)

// User is a dashboard account, linked to a Firebase identity
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirebaseUID string   `gorm:"type:varchar(128);uniqueIndex" json:"-"`
	Name        string   `gorm:"type:varchar(255)" json:"name"`
	Phone       string   `gorm:"type:varchar(50)" json:"phone"`
	Email       string   `gorm:"type:varchar(255);index" json:"email"`
	Role        UserRole `gorm:"type:varchar(20);default:'customer'" json:"role"`

	// Relationships
	Transactions []Transaction     `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
	Sessions     []WhatsAppSession `gorm:"foreignKey:UserID" json:"sessions,omitempty"`
}

// IsAdmin reports whether the user may use the admin dashboard
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
