package model

import "time"

type PasskeyCredential struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       uint   `json:"user_id" gorm:"not null;index"`
	CredentialID string `json:"credential_id" gorm:"not null;uniqueIndex;size:255"`
	Name         string `json:"name" gorm:"size:64"`
	PublicKey    []byte `json:"-" gorm:"not null"`
	// Credential 保存完整的序列化凭据（flags/transport 等验签元数据）。
	Credential string     `json:"-" gorm:"type:text;not null"`
	SignCount  uint32     `json:"sign_count" gorm:"not null;default:0"`
	LastUsedAt *time.Time `json:"last_used_at"`
	User       User       `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
}
