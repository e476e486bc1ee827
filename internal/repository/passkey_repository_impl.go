package repository

import (
	"time"

	"brighttalk-server/internal/model"

	"gorm.io/gorm"
)

type PasskeyRepository struct {
	db *gorm.DB
}

// ListPasskeyCredentialsByUserID 返回指定用户的全部 Passkey 凭据记录。
func (r *PasskeyRepository) ListPasskeyCredentialsByUserID(userID uint) ([]model.PasskeyCredential, error) {
	var credentials []model.PasskeyCredential
	if err := r.db.Where("user_id = ?", userID).Order("id asc").Find(&credentials).Error; err != nil {
		return nil, err
	}
	return credentials, nil
}

// CountPasskeyCredentialsByUserID 统计指定用户已绑定的 Passkey 数量。
func (r *PasskeyRepository) CountPasskeyCredentialsByUserID(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.PasskeyCredential{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindPasskeyCredentialByCredentialID 通过规范化的 credential_id 查找凭据。
func (r *PasskeyRepository) FindPasskeyCredentialByCredentialID(credentialID string) (*model.PasskeyCredential, error) {
	var credential model.PasskeyCredential
	if err := r.db.Where("credential_id = ?", credentialID).First(&credential).Error; err != nil {
		return nil, err
	}
	return &credential, nil
}

// CreatePasskeyCredential 创建 Passkey 凭据记录。
func (r *PasskeyRepository) CreatePasskeyCredential(credential *model.PasskeyCredential) error {
	return r.db.Create(credential).Error
}

// CompareAndSwapSignCount 条件更新计数器：WHERE 带上旧值，两个并发断言只会有一个命中，
// 落败方必须基于最新存储值重新校验回退条件。
func (r *PasskeyRepository) CompareAndSwapSignCount(credentialID string, expectedCount, newCount uint32, credentialJSON string, usedAt time.Time) (bool, error) {
	tx := r.db.Model(&model.PasskeyCredential{}).
		Where("credential_id = ? AND sign_count = ?", credentialID, expectedCount).
		Updates(map[string]interface{}{
			"sign_count":   newCount,
			"credential":   credentialJSON,
			"last_used_at": usedAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// DeletePasskeyCredentialByID 删除指定用户下的某条 Passkey 凭据记录。
func (r *PasskeyRepository) DeletePasskeyCredentialByID(userID uint, passkeyID uint) error {
	tx := r.db.Where("user_id = ? AND id = ?", userID, passkeyID).Delete(&model.PasskeyCredential{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePasskeyCredentialNameByID 更新指定用户下某条 Passkey 凭据的人类可读名称。
func (r *PasskeyRepository) UpdatePasskeyCredentialNameByID(userID uint, passkeyID uint, name string) error {
	tx := r.db.Model(&model.PasskeyCredential{}).
		Where("user_id = ? AND id = ?", userID, passkeyID).
		Update("name", name)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeletePasskeyCredentialsByUserID 删除指定用户下的全部 Passkey 凭据记录。
func (r *PasskeyRepository) DeletePasskeyCredentialsByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.PasskeyCredential{}).Error
}
