package model

import (
	"time"

	"gorm.io/gorm"
)

type Comment struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	PostID    uint           `json:"post_id" gorm:"not null;index"`
	UserID    uint           `json:"user_id" gorm:"not null;index"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	Post      Post           `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	User      User           `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
}

type Category struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time
	Name      string `json:"name" gorm:"not null;unique;size:32"`
	Posts     []Post `json:"-"`
}

type Like struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time
	PostID    uint `json:"post_id" gorm:"not null;uniqueIndex:idx_like_post_user"`
	UserID    uint `json:"user_id" gorm:"not null;uniqueIndex:idx_like_post_user"`
	Post      Post `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	User      User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
}
