package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

type passkeySessionEntry struct {
	PasskeySessionType consts.PasskeySessionType
	UserID             uint
	SessionData        webauthn.SessionData
	ExpiresAt          time.Time
}

// passkeyStoredCredential 持久化的凭据结构（不含 Attestation 大字段）。
type passkeyStoredCredential struct {
	ID              []byte                            `json:"id"`
	PublicKey       []byte                            `json:"publicKey"`
	AttestationType string                            `json:"attestationType"`
	Transport       []protocol.AuthenticatorTransport `json:"transport"`
	Flags           webauthn.CredentialFlags          `json:"flags"`
	Authenticator   webauthn.Authenticator            `json:"authenticator"`
}

var passkeySessionStore sync.Map

// canonicalCredentialIDPattern 匹配规范形式：URL-safe base64 字母表、无填充。
var canonicalCredentialIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NormalizeCredentialID 将外部传入的凭据标识归一为规范形式（URL-safe、无填充 base64）。
// 已是规范形式的输入原样返回，因此该函数幂等；任何输入都有输出，永不报错。
func NormalizeCredentialID(credentialID string) string {
	if credentialID == "" {
		return ""
	}
	if canonicalCredentialIDPattern.MatchString(credentialID) {
		return credentialID
	}

	// 标准 base64（含填充）：解码后按规范形式重编码
	if decoded, err := base64.StdEncoding.DecodeString(credentialID); err == nil {
		return base64.RawURLEncoding.EncodeToString(decoded)
	}

	// 解码失败（URL-safe 带填充、无填充标准形式等）：退化为逐字符替换
	return strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(credentialID)
}

// EncodeCredentialID 将原始凭据 ID 字节编码为规范存储形式。
func EncodeCredentialID(credentialID []byte) string {
	return base64.RawURLEncoding.EncodeToString(credentialID)
}

// passkeyWebAuthnUser 是 webauthn.User 的实现，承载用户身份与其凭据集合。
type passkeyWebAuthnUser struct {
	userID      uint
	username    string
	credentials []webauthn.Credential
}

func (u *passkeyWebAuthnUser) WebAuthnID() []byte {
	// userHandle 约定为十进制 userID，discoverable 登录时按同一约定解析
	return []byte(strconv.FormatUint(uint64(u.userID), 10))
}

func (u *passkeyWebAuthnUser) WebAuthnName() string {
	return u.username
}

func (u *passkeyWebAuthnUser) WebAuthnDisplayName() string {
	return u.username
}

func (u *passkeyWebAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// newWebAuthnClient 根据系统配置构建 WebAuthn 客户端。
func (s *AppService) newWebAuthnClient() (*webauthn.WebAuthn, error) {
	baseURL := strings.TrimSpace(s.GetString(consts.ConfigBaseURL))
	if baseURL == "" {
		baseURL = "http://localhost"
	}

	// base_url 同时决定 RP ID 与 Origin，必须是完整可解析的绝对 URL。
	parsedBaseURL, err := url.Parse(baseURL)
	if err != nil || parsedBaseURL.Scheme == "" || parsedBaseURL.Host == "" || parsedBaseURL.Hostname() == "" {
		return nil, common.NewValidationError("系统 base_url 配置无效，无法启用 Passkey")
	}

	siteName := strings.TrimSpace(s.GetString(consts.ConfigSiteName))
	if siteName == "" {
		siteName = "BrightTalk"
	}

	return webauthn.New(&webauthn.Config{
		RPDisplayName: siteName,
		// RPID 必须是 host（不含端口/协议），认证器会严格校验。
		RPID: parsedBaseURL.Hostname(),
		// RPOrigins 需要精确包含协议+主机（含端口），用于浏览器端 origin 校验。
		RPOrigins: []string{parsedBaseURL.Scheme + "://" + parsedBaseURL.Host},
	})
}

// loadPasskeyWebAuthnUser 读取用户及其全部凭据，构造 WebAuthn 参与方。
func (s *AppService) loadPasskeyWebAuthnUser(userID uint) (*passkeyWebAuthnUser, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	credentials, err := s.loadUserPasskeyCredentials(userID)
	if err != nil {
		return nil, err
	}

	return &passkeyWebAuthnUser{
		userID:      user.ID,
		username:    user.Username,
		credentials: credentials,
	}, nil
}

// loadUserPasskeyCredentials 读取并反序列化用户的 Passkey 凭据集合。
func (s *AppService) loadUserPasskeyCredentials(userID uint) ([]webauthn.Credential, error) {
	records, err := s.repos.Passkey.ListPasskeyCredentialsByUserID(userID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("读取 Passkey 失败")
	}

	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		credential, err := unmarshalPasskeyCredential(record)
		if err != nil {
			return nil, common.NewInternalError("Passkey 数据损坏，请重新绑定")
		}
		credentials = append(credentials, *credential)
	}

	return credentials, nil
}

func unmarshalPasskeyCredential(record model.PasskeyCredential) (*webauthn.Credential, error) {
	var stored passkeyStoredCredential
	if err := json.Unmarshal([]byte(record.Credential), &stored); err != nil {
		return nil, err
	}
	credential := webauthn.Credential{
		ID:              stored.ID,
		PublicKey:       stored.PublicKey,
		AttestationType: stored.AttestationType,
		Transport:       stored.Transport,
		Flags:           stored.Flags,
		Authenticator:   stored.Authenticator,
	}
	// sign_count 列是计数器的权威来源，凭据 JSON 只跟随写入
	credential.Authenticator.SignCount = record.SignCount
	return &credential, nil
}

// storePasskeySession 保存 Passkey 挑战会话并返回一次性会话 ID。
func storePasskeySession(sessionType consts.PasskeySessionType, userID uint, session *webauthn.SessionData) (string, error) {
	if session == nil {
		return "", errors.New("passkey session is nil")
	}

	sessionID, err := generatePasskeySessionID()
	if err != nil {
		return "", err
	}

	expireAt := time.Now().Add(consts.PasskeySessionTTL)
	// 显式同步 Expires，确保后续库侧校验与本地过期策略一致。
	session.Expires = expireAt
	entry := passkeySessionEntry{
		PasskeySessionType: sessionType,
		UserID:             userID,
		SessionData:        *session,
		ExpiresAt:          expireAt,
	}

	// Redis 可用时优先写入 Redis，支持多实例共享会话。
	if storePasskeySessionInRedis(sessionID, entry) {
		return sessionID, nil
	}

	// Redis 不可用或写入失败时回退本地内存。
	storePasskeySessionInMemory(sessionID, entry)
	return sessionID, nil
}

func storePasskeySessionInRedis(sessionID string, entry passkeySessionEntry) bool {
	redisClient := GetRedisClient()
	if redisClient == nil {
		return false
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("⚠️ Redis 写入 Passkey 会话失败，序列化异常，回退内存会话: %v", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := RedisKey("passkey", "session", sessionID)
	if err := redisClient.Set(ctx, key, payload, consts.PasskeySessionTTL).Err(); err != nil {
		log.Printf("⚠️ Redis 写入 Passkey 会话失败，回退内存会话: %v", err)
		return false
	}

	// 注册挑战额外记入按用户索引，登录成功后可整体作废。
	if entry.PasskeySessionType == consts.PasskeySessionRegistration {
		indexPendingRegistration(redisClient, entry.UserID, sessionID)
	}

	return true
}

// pendingRegistrationRedis 覆盖注册挑战索引用到的 Redis 命令，收窄接口便于测试替身。
type pendingRegistrationRedis interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func pendingRegistrationIndexKey(userID uint) string {
	return RedisKey("passkey", "pending", strconv.FormatUint(uint64(userID), 10))
}

// indexPendingRegistration 把注册挑战的 session_id 记入该用户的待完成集合。
// 索引随挑战同步过期，失败仅记日志，不影响挑战本体。
func indexPendingRegistration(client pendingRegistrationRedis, userID uint, sessionID string) {
	if client == nil || userID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := pendingRegistrationIndexKey(userID)
	if err := client.SAdd(ctx, key, sessionID).Err(); err != nil {
		log.Printf("⚠️ Redis 记录待完成注册挑战失败: %v", err)
		return
	}
	if err := client.Expire(ctx, key, consts.PasskeySessionTTL).Err(); err != nil {
		log.Printf("⚠️ Redis 设置注册挑战索引过期失败: %v", err)
	}
}

// unindexPendingRegistration 在挑战被正常消费后移除索引项。
func unindexPendingRegistration(client pendingRegistrationRedis, userID uint, sessionID string) {
	if client == nil || userID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.SRem(ctx, pendingRegistrationIndexKey(userID), sessionID).Err(); err != nil {
		log.Printf("⚠️ Redis 移除注册挑战索引失败: %v", err)
	}
}

// sweepPendingRegistrations 删除某用户在 Redis 中全部待完成的注册挑战及其索引。
func sweepPendingRegistrations(client pendingRegistrationRedis, userID uint) {
	if client == nil || userID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	indexKey := pendingRegistrationIndexKey(userID)
	sessionIDs, err := client.SMembers(ctx, indexKey).Result()
	if err != nil {
		log.Printf("⚠️ Redis 读取待完成注册挑战失败: %v", err)
		return
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, RedisKey("passkey", "session", id))
	}
	keys = append(keys, indexKey)
	if err := client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("⚠️ Redis 清理待完成注册挑战失败: %v", err)
	}
}

func storePasskeySessionInMemory(sessionID string, entry passkeySessionEntry) {
	// 每次写入前顺带清理过期会话，控制内存占用。
	cleanupExpiredPasskeySessions()
	passkeySessionStore.Store(sessionID, entry)
}

// consumePasskeySession 读取并消费一次性挑战会话。
// 同一 session_id 的并发消费只会有一方拿到会话，落败方收到 ChallengeNotFound。
func consumePasskeySession(sessionID string, expectedType consts.PasskeySessionType) (*passkeySessionEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, common.NewValidationError("session_id 不能为空")
	}

	// Redis 可用时优先从 Redis 原子读取并删除；未命中再回退本地内存。
	entry, err := consumePasskeySessionFromRedis(sessionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry, err = consumePasskeySessionFromMemory(sessionID)
		if err != nil {
			return nil, err
		}
	}

	// 防止把"注册会话"拿去走"登录校验"或反向混用。
	if entry.PasskeySessionType != expectedType {
		return nil, common.NewServiceError(common.ErrorCodeChallengeNotFound, "Passkey 会话不存在或已过期，请重新发起")
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, common.NewServiceError(common.ErrorCodeChallengeExpired, "Passkey 会话已过期，请重新发起")
	}

	return entry, nil
}

func consumePasskeySessionFromRedis(sessionID string) (*passkeySessionEntry, error) {
	redisClient := GetRedisClient()
	if redisClient == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// GetDel 保证读取与删除原子完成，挑战只可消费一次。
	key := RedisKey("passkey", "session", sessionID)
	payload, err := redisClient.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		// Redis 异常时回退本地内存，避免影响单机兼容路径。
		log.Printf("⚠️ Redis 读取 Passkey 会话失败，回退内存会话: %v", err)
		return nil, nil
	}

	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}

	var entry passkeySessionEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, common.NewInternalError("Passkey 会话数据异常")
	}

	// 挑战已被消费，同步移除按用户的注册索引项。
	if entry.PasskeySessionType == consts.PasskeySessionRegistration {
		unindexPendingRegistration(redisClient, entry.UserID, sessionID)
	}

	return &entry, nil
}

func consumePasskeySessionFromMemory(sessionID string) (*passkeySessionEntry, error) {
	// LoadAndDelete 保证会话只可使用一次，天然抵御挑战重放。
	raw, ok := passkeySessionStore.LoadAndDelete(sessionID)
	if !ok {
		return nil, common.NewServiceError(common.ErrorCodeChallengeNotFound, "Passkey 会话不存在或已过期，请重新发起")
	}

	entry, ok := raw.(passkeySessionEntry)
	if !ok {
		return nil, common.NewInternalError("Passkey 会话数据异常")
	}

	return &entry, nil
}

// clearPendingPasskeyRegistrations 丢弃某用户尚未完成的注册挑战，
// 内存与 Redis 两侧都要清，已登出的挑战不允许在 TTL 内被补完成。
func clearPendingPasskeyRegistrations(userID uint) {
	passkeySessionStore.Range(func(key, value interface{}) bool {
		entry, ok := value.(passkeySessionEntry)
		if ok && entry.PasskeySessionType == consts.PasskeySessionRegistration && entry.UserID == userID {
			passkeySessionStore.Delete(key)
		}
		return true
	})

	if redisClient := GetRedisClient(); redisClient != nil {
		sweepPendingRegistrations(redisClient, userID)
	}
}

// cleanupExpiredPasskeySessions 清理内存中已过期的会话记录。
func cleanupExpiredPasskeySessions() {
	now := time.Now()
	passkeySessionStore.Range(func(key, value interface{}) bool {
		entry, ok := value.(passkeySessionEntry)
		if !ok || now.After(entry.ExpiresAt) {
			passkeySessionStore.Delete(key)
		}
		return true
	})
}

// generatePasskeySessionID 生成高熵的一次性会话 ID。
func generatePasskeySessionID() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// buildPasskeyCredentialRequest 将前端凭据 JSON 包装成 WebAuthn 库可处理的 HTTP 请求。
func buildPasskeyCredentialRequest(credentialJSON []byte) (*http.Request, error) {
	trimmed := bytes.TrimSpace(credentialJSON)
	if len(trimmed) == 0 {
		return nil, common.NewValidationError("credential 不能为空")
	}

	request, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(trimmed))
	if err != nil {
		return nil, common.NewInternalError("Passkey 请求构造失败")
	}
	request.Header.Set("Content-Type", "application/json")
	return request, nil
}

// parsePasskeyUserHandle 将 discoverable 登录返回的 userHandle 解析为用户 ID。
func parsePasskeyUserHandle(userHandle []byte) (uint, error) {
	if len(userHandle) == 0 {
		return 0, errors.New("user handle is empty")
	}

	// userHandle 由 WebAuthnID() 写入十进制 userID，这里按同一约定解析。
	parsed, err := strconv.ParseUint(string(userHandle), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid user handle")
	}
	if parsed > uint64(^uint(0)) {
		return 0, errors.New("user handle overflows uint")
	}
	return uint(parsed), nil
}

// marshalPasskeyCredential 将凭据对象序列化为存储用 JSON（不包含 Attestation 大字段）。
func marshalPasskeyCredential(credential *webauthn.Credential) (string, error) {
	if credential == nil {
		return "", errors.New("credential is nil")
	}

	stored := passkeyStoredCredential{
		ID:              credential.ID,
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		Transport:       credential.Transport,
		Flags:           credential.Flags,
		Authenticator:   credential.Authenticator,
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// buildDefaultPasskeyName 根据凭据 ID 构造默认名称，便于用户首次识别。
func buildDefaultPasskeyName(credentialID string) string {
	short := credentialID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Passkey-" + short
}

// normalizePasskeyName 清洗并校验用户输入的 Passkey 名称。
func normalizePasskeyName(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "", common.NewValidationError("Passkey 名称不能为空")
	}
	if utf8.RuneCountInString(normalized) > consts.PasskeyNameMaxRunes {
		return "", common.NewValidationError("Passkey 名称长度不能超过 64 个字符")
	}
	return normalized, nil
}

// isUniqueConflict 判断数据库错误是否属于唯一约束冲突。
func isUniqueConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
