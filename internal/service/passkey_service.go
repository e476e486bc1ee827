package service

import (
	"errors"
	"strings"
	"time"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"gorm.io/gorm"
)

// signCountSwapMaxRetries 计数器 CAS 的最大重试次数；竞争激烈到超过该值基本说明有程序性异常。
const signCountSwapMaxRetries = 3

// BeginPasskeyRegistration 为当前用户创建 Passkey 注册挑战并返回会话 ID。
func (s *AppService) BeginPasskeyRegistration(userID uint) (string, *protocol.CredentialCreation, error) {
	// 先校验容量上限，避免在已达上限时仍创建挑战造成无效流程。
	if err := s.ensureUserPasskeyCapacity(userID); err != nil {
		return "", nil, err
	}

	webauthnClient, err := s.newWebAuthnClient()
	if err != nil {
		return "", nil, err
	}

	passkeyUser, err := s.loadPasskeyWebAuthnUser(userID)
	if err != nil {
		return "", nil, err
	}

	creation, sessionData, err := webauthnClient.BeginRegistration(
		passkeyUser,
		// 要求创建可发现凭据（Resident Key），用于"无需用户名"的 Passkey 登录。
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		// 将已绑定凭据放入排除列表，阻止同一凭据重复注册。
		webauthn.WithExclusions(webauthn.Credentials(passkeyUser.credentials).CredentialDescriptors()),
		// 让客户端返回 credential properties（例如 rk），便于前端感知凭据能力。
		webauthn.WithExtensions(protocol.AuthenticationExtensions{"credProps": true}),
	)
	if err != nil {
		return "", nil, common.NewInternalError("创建 Passkey 注册挑战失败")
	}

	// 服务端保存一次性会话，并仅把 session_id 发给前端。
	sessionID, err := storePasskeySession(consts.PasskeySessionRegistration, userID, sessionData)
	if err != nil {
		return "", nil, common.NewInternalError("创建 Passkey 注册会话失败")
	}

	return sessionID, creation, nil
}

// FinishPasskeyRegistration 校验并完成 Passkey 注册，随后持久化凭据。
func (s *AppService) FinishPasskeyRegistration(userID uint, sessionID string, credentialJSON []byte) (*model.PasskeyCredential, error) {
	// 读取并消费注册会话，同时校验该会话必须归属当前登录用户。
	entry, err := consumePasskeySession(sessionID, consts.PasskeySessionRegistration)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, common.NewForbiddenError("无权完成该 Passkey 注册会话")
	}

	webauthnClient, err := s.newWebAuthnClient()
	if err != nil {
		return nil, err
	}

	passkeyUser, err := s.loadPasskeyWebAuthnUser(userID)
	if err != nil {
		return nil, err
	}

	request, err := buildPasskeyCredentialRequest(credentialJSON)
	if err != nil {
		return nil, err
	}

	// 使用服务端保存的 challenge/session 校验前端返回的 attestation。
	credential, err := webauthnClient.FinishRegistration(passkeyUser, entry.SessionData, request)
	if err != nil {
		return nil, common.NewServiceError(common.ErrorCodeAttestationVerificationFailed, "Passkey 注册校验失败，请重试")
	}

	credentialID := EncodeCredentialID(credential.ID)
	if err := s.ensureCredentialUnregistered(userID, credentialID); err != nil {
		return nil, err
	}

	// 注册完成前再次校验容量，防止并发场景下绕过上限。
	if err := s.ensureUserPasskeyCapacity(userID); err != nil {
		return nil, err
	}

	// 持久化完整 credential（包含 signCount/flags/transport 等后续验签元数据）。
	serialized, err := marshalPasskeyCredential(credential)
	if err != nil {
		return nil, common.NewInternalError("保存 Passkey 失败")
	}

	now := time.Now()
	record := &model.PasskeyCredential{
		UserID:       userID,
		CredentialID: credentialID,
		Name:         buildDefaultPasskeyName(credentialID),
		PublicKey:    credential.PublicKey,
		Credential:   serialized,
		SignCount:    credential.Authenticator.SignCount,
		LastUsedAt:   &now,
	}
	if err := s.repos.Passkey.CreatePasskeyCredential(record); err != nil {
		// 查重与写入之间的竞态由唯一索引兜底
		if isUniqueConflict(err) {
			return nil, common.NewServiceError(common.ErrorCodeDuplicateCredential, "该 Passkey 已绑定")
		}
		return nil, common.NewStoreUnavailableError("保存 Passkey 失败")
	}

	return record, nil
}

// ensureCredentialUnregistered 按 credential_id 查重，
// 区分"同账号重复绑定"和"被其他账号占用"，两者都拒绝但文案不同。
func (s *AppService) ensureCredentialUnregistered(userID uint, credentialID string) error {
	existing, err := s.repos.Passkey.FindPasskeyCredentialByCredentialID(credentialID)
	if err == nil {
		if existing.UserID == userID {
			return common.NewServiceError(common.ErrorCodeDuplicateCredential, "该 Passkey 已绑定")
		}
		return common.NewServiceError(common.ErrorCodeDuplicateCredential, "该 Passkey 已被其他账号绑定")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NewStoreUnavailableError("保存 Passkey 失败")
	}
	return nil
}

// BeginPasskeyLogin 创建 Passkey 登录挑战。
// 给出邮箱提示时返回该用户凭据的 allow-list；否则走无用户名（discoverable）流程。
func (s *AppService) BeginPasskeyLogin(emailHint string) (string, *protocol.CredentialAssertion, error) {
	webauthnClient, err := s.newWebAuthnClient()
	if err != nil {
		return "", nil, err
	}

	emailHint = strings.TrimSpace(emailHint)
	if emailHint != "" {
		if user, findErr := s.repos.User.FindByEmail(emailHint); findErr == nil {
			passkeyUser, loadErr := s.loadPasskeyWebAuthnUser(user.ID)
			if loadErr == nil && len(passkeyUser.credentials) > 0 {
				assertion, sessionData, beginErr := webauthnClient.BeginLogin(
					passkeyUser,
					webauthn.WithUserVerification(protocol.VerificationPreferred),
				)
				if beginErr != nil {
					return "", nil, common.NewInternalError("创建 Passkey 登录挑战失败")
				}
				sessionID, storeErr := storePasskeySession(consts.PasskeySessionLogin, user.ID, sessionData)
				if storeErr != nil {
					return "", nil, common.NewInternalError("创建 Passkey 登录会话失败")
				}
				return sessionID, assertion, nil
			}
		}
		// 邮箱不存在或没有凭据时仍走 discoverable 流程并返回空 allow-list，
		// 避免通过该接口探测邮箱是否已注册。
	}

	assertion, sessionData, err := webauthnClient.BeginDiscoverableLogin(
		// 登录场景偏向体验，优先请求 UV（支持设备会自动触发生物认证/PIN）。
		webauthn.WithUserVerification(protocol.VerificationPreferred),
	)
	if err != nil {
		return "", nil, common.NewInternalError("创建 Passkey 登录挑战失败")
	}

	// 登录挑战同样只在服务端保存明文 SessionData，前端仅持有 session_id。
	sessionID, err := storePasskeySession(consts.PasskeySessionLogin, 0, sessionData)
	if err != nil {
		return "", nil, common.NewInternalError("创建 Passkey 登录会话失败")
	}

	return sessionID, assertion, nil
}

// FinishPasskeyLogin 完成 Passkey 登录校验并建立会话。
func (s *AppService) FinishPasskeyLogin(sessionID string, credentialJSON []byte) (string, error) {
	// 登录挑战一次性消费，防止 assertion 重放攻击。
	entry, err := consumePasskeySession(sessionID, consts.PasskeySessionLogin)
	if err != nil {
		return "", err
	}

	webauthnClient, err := s.newWebAuthnClient()
	if err != nil {
		return "", err
	}

	request, err := buildPasskeyCredentialRequest(credentialJSON)
	if err != nil {
		return "", err
	}

	parsed, err := protocol.ParseCredentialRequestResponse(request)
	if err != nil {
		return "", common.NewValidationError("credential 格式错误")
	}

	// 断言返回的凭据 ID 可能是任意编码形式，先归一再查库。
	credentialID := NormalizeCredentialID(parsed.ID)
	record, err := s.repos.Passkey.FindPasskeyCredentialByCredentialID(credentialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", common.NewServiceError(common.ErrorCodeCredentialNotFound, "Passkey 未注册")
		}
		return "", common.NewStoreUnavailableError("Passkey 登录失败")
	}

	// 带邮箱提示发起的会话只能由该用户的凭据完成。
	if entry.UserID != 0 && entry.UserID != record.UserID {
		return "", common.NewServiceError(common.ErrorCodeCredentialNotFound, "Passkey 未注册")
	}

	passkeyUser, err := s.loadPasskeyWebAuthnUser(record.UserID)
	if err != nil {
		return "", err
	}

	validatedCredential, err := s.verifyPasskeyAssertion(webauthnClient, passkeyUser, entry, parsed)
	if err != nil {
		return "", err
	}

	// 计数器校验与写回：CAS 保证并发断言不会丢失较大的计数值。
	if err := s.applySignCountUpdate(credentialID, record, validatedCredential, parsed.Response.AuthenticatorData.Counter); err != nil {
		return "", err
	}

	// 验签通过后再查完整用户，复用统一登录准入策略（状态/邮箱验证等）。
	user, err := s.repos.User.FindByID(record.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", common.NewUnauthorizedError("Passkey 登录失败")
		}
		return "", common.NewInternalError("Passkey 登录失败")
	}

	// 与密码登录共用同一会话建立逻辑，保证两种方式行为一致。
	return s.EstablishSession(user)
}

// verifyPasskeyAssertion 按会话形态选择校验路径：带 allow-list 的会话走 ValidateLogin，
// discoverable 会话通过 userHandle 解析用户后走 ValidateDiscoverableLogin。
func (s *AppService) verifyPasskeyAssertion(
	webauthnClient *webauthn.WebAuthn,
	passkeyUser *passkeyWebAuthnUser,
	entry *passkeySessionEntry,
	parsed *protocol.ParsedCredentialAssertionData,
) (*webauthn.Credential, error) {
	if entry.UserID != 0 {
		credential, err := webauthnClient.ValidateLogin(passkeyUser, entry.SessionData, parsed)
		if err != nil {
			return nil, common.NewServiceError(common.ErrorCodeSignatureVerificationFailed, "Passkey 登录失败")
		}
		return credential, nil
	}

	credential, err := webauthnClient.ValidateDiscoverableLogin(
		func(rawID, userHandle []byte) (webauthn.User, error) {
			// discoverable 流程下 userHandle 由认证器返回，这里按约定解析为 userID。
			userID, parseErr := parsePasskeyUserHandle(userHandle)
			if parseErr != nil {
				return nil, parseErr
			}
			if userID != passkeyUser.userID {
				return nil, errors.New("user handle does not match credential owner")
			}
			return passkeyUser, nil
		},
		entry.SessionData,
		parsed,
	)
	if err != nil {
		return nil, common.NewServiceError(common.ErrorCodeSignatureVerificationFailed, "Passkey 登录失败")
	}
	return credential, nil
}

// applySignCountUpdate 实施计数器防克隆策略并写回最新值。
//
// 回退判定沿用来源策略：仅当存储计数非 0 时才拒绝（兼容始终上报 0 的认证器）。
// 写回用条件更新（WHERE sign_count = 旧值）实现 CAS，落败方重读最新存储值
// 重新判定，绝不基于过期读丢掉更大的计数。
func (s *AppService) applySignCountUpdate(
	credentialID string,
	record *model.PasskeyCredential,
	validatedCredential *webauthn.Credential,
	assertedCount uint32,
) error {
	serialized, err := marshalPasskeyCredential(validatedCredential)
	if err != nil {
		return common.NewInternalError("Passkey 登录失败")
	}

	storedCount := record.SignCount
	for attempt := 0; attempt < signCountSwapMaxRetries; attempt++ {
		if storedCount != 0 && assertedCount <= storedCount {
			// 计数器回退是克隆凭据的信号，必须与一般验签失败区分，
			// 调用方可据此锁定凭据而不仅是拒绝本次请求。
			return common.NewServiceError(common.ErrorCodeCounterRegression, "Passkey 计数器异常，凭据可能已被克隆")
		}

		swapped, swapErr := s.repos.Passkey.CompareAndSwapSignCount(credentialID, storedCount, assertedCount, serialized, time.Now())
		if swapErr != nil {
			return common.NewStoreUnavailableError("Passkey 登录失败")
		}
		if swapped {
			return nil
		}

		// CAS 未命中：有并发断言先写入了，重读最新值再判一次
		latest, findErr := s.repos.Passkey.FindPasskeyCredentialByCredentialID(credentialID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return common.NewServiceError(common.ErrorCodeCredentialNotFound, "Passkey 未注册")
			}
			return common.NewStoreUnavailableError("Passkey 登录失败")
		}
		storedCount = latest.SignCount
	}

	return common.NewInternalError("Passkey 登录失败")
}
