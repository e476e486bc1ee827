package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/config"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"
	"brighttalk-server/internal/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginStrategyKind string

const (
	// LoginStrategyPassword 表示该身份没有可用 Passkey，只能走密码登录。
	LoginStrategyPassword LoginStrategyKind = "password_required"
	// LoginStrategyPasskey 表示该身份已绑定 Passkey，优先提供 Passkey 登录。
	LoginStrategyPasskey LoginStrategyKind = "passkey_offered"
)

// LoginStrategy 是登录方式决策结果：密码兜底始终可用，
// CredentialIDs 仅在 Passkey 路径下返回，供前端限定可用认证器。
type LoginStrategy struct {
	Kind          LoginStrategyKind `json:"kind"`
	CredentialIDs []string          `json:"credential_ids,omitempty"`
}

// activeSessionStore 内存模式下记录每个用户当前有效会话的 jti。
type activeSessionEntry struct {
	JTI       string
	ExpiresAt time.Time
}

// DetermineLoginStrategy 根据邮箱判断登录方式。
// 查不到用户时同样返回密码路径，避免通过该接口探测邮箱是否已注册。
func (s *AppService) DetermineLoginStrategy(email string) (*LoginStrategy, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, common.NewValidationError("邮箱不能为空")
	}

	user, err := s.repos.User.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &LoginStrategy{Kind: LoginStrategyPassword}, nil
		}
		return nil, common.NewStoreUnavailableError("查询登录方式失败")
	}

	records, err := s.repos.Passkey.ListPasskeyCredentialsByUserID(user.ID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("查询登录方式失败")
	}
	if len(records) == 0 {
		return &LoginStrategy{Kind: LoginStrategyPassword}, nil
	}

	identifiers := make([]string, 0, len(records))
	for _, record := range records {
		identifiers = append(identifiers, record.CredentialID)
	}
	return &LoginStrategy{Kind: LoginStrategyPasskey, CredentialIDs: identifiers}, nil
}

// LoginUser 校验用户名（或邮箱）加密码，成功后建立会话。
func (s *AppService) LoginUser(account string, password string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" || password == "" {
		return "", common.NewValidationError("用户名和密码不能为空")
	}

	user, err := s.repos.User.FindByUsername(account)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", common.NewInternalError("登录失败，请稍后重试")
		}
		// 用户名查不到时再按邮箱匹配一次
		user, err = s.repos.User.FindByEmail(account)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", common.NewUnauthorizedError("用户名或密码错误")
			}
			return "", common.NewInternalError("登录失败，请稍后重试")
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", common.NewUnauthorizedError("用户名或密码错误")
	}

	return s.EstablishSession(user)
}

// EstablishSession 签发登录 JWT 并登记为该用户唯一有效会话。
// 密码登录和 Passkey 登录统一走这里，重复登录会替换旧会话。
func (s *AppService) EstablishSession(user *model.User) (string, error) {
	if err := s.checkLoginAdmission(user); err != nil {
		return "", err
	}

	cfg := config.Get()
	duration := time.Hour * time.Duration(cfg.JWT.ExpirationHours)
	jti := uuid.NewString()

	token, err := utils.GenerateLoginToken(user.ID, user.Username, user.Admin, jti, duration)
	if err != nil {
		return "", common.NewInternalError("登录失败，请稍后重试")
	}

	registerActiveSession(user.ID, jti, duration)
	// 登录成功后作废该用户遗留的 Passkey 注册挑战，避免旧仪式被继续完成。
	clearPendingPasskeyRegistrations(user.ID)

	return token, nil
}

// checkLoginAdmission 统一的登录准入策略：状态与邮箱验证规则对两种登录方式一致生效。
func (s *AppService) checkLoginAdmission(user *model.User) error {
	if user.Status == 2 {
		return common.NewForbiddenError("该账号已被封禁")
	}
	if user.Status == 3 {
		return common.NewForbiddenError("该账号已停用")
	}

	if s.GetBool(consts.ConfigBlockUnverifiedUsers) {
		if user.Email != "" && !user.EmailVerified {
			return common.NewForbiddenError("请先验证邮箱后再登录")
		}
	}
	return nil
}

// activeSessionStore 以 userID 为键维护当前会话，Redis 可用时优先写 Redis 支持多实例。
var activeSessionStore sync.Map

// IsActiveSession 判断 jti 是否仍是该用户的当前会话。
// 新登录会覆盖旧 jti，被覆盖的 token 在此处失效。
func IsActiveSession(userID uint, jti string) bool {
	if jti == "" {
		return false
	}

	if redisClient := GetRedisClient(); redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		key := RedisKey("auth", "session", strconv.FormatUint(uint64(userID), 10))
		current, err := redisClient.Get(ctx, key).Result()
		if err == nil {
			return current == jti
		}
		if !errors.Is(err, redis.Nil) {
			// Redis 异常时回退内存判断，避免全站登录失效。
			log.Printf("⚠️ Redis 读取会话失败，回退内存判断: %v", err)
		} else {
			return false
		}
	}

	raw, ok := activeSessionStore.Load(userID)
	if !ok {
		return false
	}
	entry, ok := raw.(activeSessionEntry)
	if !ok {
		return false
	}
	if time.Now().After(entry.ExpiresAt) {
		activeSessionStore.Delete(userID)
		return false
	}
	return entry.JTI == jti
}

func registerActiveSession(userID uint, jti string, ttl time.Duration) {
	if redisClient := GetRedisClient(); redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		key := RedisKey("auth", "session", strconv.FormatUint(uint64(userID), 10))
		if err := redisClient.Set(ctx, key, jti, ttl).Err(); err == nil {
			return
		} else {
			log.Printf("⚠️ Redis 写入会话失败，回退内存会话: %v", err)
		}
	}

	activeSessionStore.Store(userID, activeSessionEntry{
		JTI:       jti,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// InvalidateSession 注销该用户的当前会话（登出/封禁时调用）。
func InvalidateSession(userID uint) {
	activeSessionStore.Delete(userID)

	if redisClient := GetRedisClient(); redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		key := RedisKey("auth", "session", strconv.FormatUint(uint64(userID), 10))
		_ = redisClient.Del(ctx, key).Err()
	}
}
