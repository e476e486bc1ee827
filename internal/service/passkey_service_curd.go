package service

import (
	"encoding/json"
	"errors"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"gorm.io/gorm"
)

// UserPasskey 是返回给前端的用户 Passkey 列表项。
type UserPasskey struct {
	ID             uint     `json:"id"`
	CredentialID   string   `json:"credential_id"`
	Name           string   `json:"name"`
	CreatedAt      int64    `json:"created_at"`
	LastUsedAt     int64    `json:"last_used_at"`
	SignCount      uint32   `json:"sign_count"`
	Attachment     string   `json:"attachment"`
	Transports     []string `json:"transports"`
	BackupEligible bool     `json:"backup_eligible"`
	BackupState    bool     `json:"backup_state"`
	UserVerified   bool     `json:"user_verified"`
}

// ListUserPasskeys 返回指定用户已绑定的 Passkey 列表。
func (s *AppService) ListUserPasskeys(userID uint) ([]UserPasskey, error) {
	if _, err := s.GetUserByID(userID); err != nil {
		return nil, err
	}

	records, err := s.repos.Passkey.ListPasskeyCredentialsByUserID(userID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("读取 Passkey 列表失败")
	}

	items := make([]UserPasskey, 0, len(records))
	for _, record := range records {
		item := UserPasskey{
			ID:           record.ID,
			CredentialID: record.CredentialID,
			Name:         record.Name,
			CreatedAt:    record.CreatedAt.Unix(),
			SignCount:    record.SignCount,
		}
		if record.LastUsedAt != nil {
			item.LastUsedAt = record.LastUsedAt.Unix()
		}

		var credential webauthn.Credential
		// 列表查询采用"尽力解析"策略：单条损坏不影响整体列表返回。
		if err := json.Unmarshal([]byte(record.Credential), &credential); err == nil {
			item.Attachment = string(credential.Authenticator.Attachment)
			item.Transports = convertPasskeyTransports(credential.Transport)
			item.BackupEligible = credential.Flags.BackupEligible
			item.BackupState = credential.Flags.BackupState
			item.UserVerified = credential.Flags.UserVerified
		}

		items = append(items, item)
	}

	return items, nil
}

// RenameUserPasskey 更新指定 Passkey 的人类可读名称。
func (s *AppService) RenameUserPasskey(userID uint, passkeyID uint, name string) error {
	if passkeyID == 0 {
		return common.NewValidationError("无效的 Passkey ID")
	}

	normalized, err := normalizePasskeyName(name)
	if err != nil {
		return err
	}

	if err := s.repos.Passkey.UpdatePasskeyCredentialNameByID(userID, passkeyID, normalized); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("Passkey 不存在")
		}
		return common.NewInternalError("重命名 Passkey 失败")
	}
	return nil
}

// DeleteUserPasskey 删除指定用户名下的某个 Passkey。
func (s *AppService) DeleteUserPasskey(userID uint, passkeyID uint) error {
	if passkeyID == 0 {
		return common.NewValidationError("无效的 Passkey ID")
	}

	if err := s.repos.Passkey.DeletePasskeyCredentialByID(userID, passkeyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("Passkey 不存在")
		}
		return common.NewInternalError("删除 Passkey 失败")
	}
	return nil
}

// ensureUserPasskeyCapacity 校验用户绑定数量未超上限。
func (s *AppService) ensureUserPasskeyCapacity(userID uint) error {
	count, err := s.repos.Passkey.CountPasskeyCredentialsByUserID(userID)
	if err != nil {
		return common.NewStoreUnavailableError("读取 Passkey 失败")
	}
	if count >= consts.MaxUserPasskeyCount {
		return common.NewForbiddenError("Passkey 数量已达上限")
	}
	return nil
}

func convertPasskeyTransports(transports []protocol.AuthenticatorTransport) []string {
	items := make([]string, 0, len(transports))
	for _, transport := range transports {
		items = append(items, string(transport))
	}
	return items
}
