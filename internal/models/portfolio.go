package models

import (
	"time"

	"gorm.io/gorm"
)

// PortfolioItem is a showcased project on the marketing site
type PortfolioItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title       string   `gorm:"type:varchar(255)" json:"title"`
	Slug        string   `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Category    string   `gorm:"type:varchar(50);index" json:"category"` // e.g. "web", "mobile", "whatsapp"
	Description string   `gorm:"type:text" json:"description"`
	ImageURL    string   `gorm:"type:text" json:"image_url"`
	ProjectURL  string   `gorm:"type:text" json:"project_url,omitempty"`
	Tags        []string `gorm:"serializer:json" json:"tags"`
	IsPublished bool     `gorm:"default:true" json:"is_published"`
	SortOrder   int      `gorm:"default:0" json:"sort_order"`
}
