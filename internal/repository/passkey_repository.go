package repository

import (
	"time"

	"brighttalk-server/internal/model"
)

type PasskeyStore interface {
	ListPasskeyCredentialsByUserID(userID uint) ([]model.PasskeyCredential, error)
	CountPasskeyCredentialsByUserID(userID uint) (int64, error)
	FindPasskeyCredentialByCredentialID(credentialID string) (*model.PasskeyCredential, error)
	CreatePasskeyCredential(credential *model.PasskeyCredential) error
	// CompareAndSwapSignCount 以条件更新实现计数器 CAS：仅当存储的 sign_count 仍为
	// expectedCount 时才写入 newCount 与最新凭据数据，返回是否命中。
	CompareAndSwapSignCount(credentialID string, expectedCount, newCount uint32, credentialJSON string, usedAt time.Time) (bool, error)
	DeletePasskeyCredentialByID(userID uint, passkeyID uint) error
	UpdatePasskeyCredentialNameByID(userID uint, passkeyID uint, name string) error
	DeletePasskeyCredentialsByUserID(userID uint) error
}
