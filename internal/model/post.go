package model

import (
	"time"

	"gorm.io/gorm"
)

type Post struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
	Title       string         `json:"title" gorm:"not null;size:255"`
	Content     string         `json:"content" gorm:"type:text;not null"`
	UserID      uint           `json:"user_id" gorm:"not null;index"`
	CategoryID  *uint          `json:"category_id" gorm:"index"`
	User        User           `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	Category    *Category      `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:SET NULL;" json:"-"`
	Attachments []Attachment   `json:"attachments"`
	Comments    []Comment      `json:"-"`
}

type Attachment struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time
	PostID      uint   `json:"post_id" gorm:"not null;index"`
	Filename    string `json:"filename" gorm:"not null;size:255"`
	StorageKey  string `json:"-" gorm:"not null;unique;size:255"`
	ContentType string `json:"content_type" gorm:"not null;size:127"`
	ByteSize    int64  `json:"byte_size" gorm:"not null"`
	Post        Post   `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
}
