package models

import (
	"time"

	"gorm.io/gorm"
)

// WhatsAppAIBot is an assistant configuration owned by a customer
type WhatsAppAIBot struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID       uint   `gorm:"index" json:"user_id"`
	Name         string `gorm:"type:varchar(255)" json:"name"`
	SystemPrompt string `gorm:"type:text" json:"system_prompt"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	Documents []AIBotDocument `gorm:"foreignKey:BotID" json:"documents,omitempty"`
}

// AIBotDocument is one knowledge-base entry of a bot
type AIBotDocument struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	BotID   uint   `gorm:"index" json:"bot_id"`
	Title   string `gorm:"type:varchar(255)" json:"title"`
	Content string `gorm:"type:text" json:"content"`
}

// AIBotSessionBinding maps a session to a bot. Unbinding flips IsActive.
type AIBotSessionBinding struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SessionID uint `gorm:"uniqueIndex" json:"session_id"`
	BotID     uint `gorm:"index" json:"bot_id"`
	IsActive  bool `gorm:"default:true" json:"is_active"`

	Bot *WhatsAppAIBot `gorm:"foreignKey:BotID" json:"bot,omitempty"`
}
