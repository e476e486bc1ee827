package service

import (
	"context"
	"testing"
	"time"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// 测试内容：验证凭据标识归一化覆盖各种输入形式且幂等。
func TestNormalizeCredentialID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "canonical_unchanged", input: "AQIDBA", want: "AQIDBA"},
		{name: "std_base64_padded", input: "+/+/", want: "-_-_"},
		{name: "std_base64_with_padding", input: "AQIDBA==", want: "AQIDBA"},
		{name: "urlsafe_with_padding", input: "AQ_DBA==", want: "AQ_DBA"},
		{name: "mixed_chars", input: "a+b/c=", want: "a-b_c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCredentialID(tt.input)
			if got != tt.want {
				t.Fatalf("NormalizeCredentialID(%q) = %q, want %q", tt.input, got, tt.want)
			}
			// 幂等：规范形式再归一必须不变。
			if again := NormalizeCredentialID(got); again != got {
				t.Fatalf("归一化不幂等: %q -> %q", got, again)
			}
		})
	}
}

// 测试内容：验证 EncodeCredentialID 与归一化互相一致。
func TestEncodeCredentialID_Canonical(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xbf, 0x01, 0x02}
	encoded := EncodeCredentialID(raw)

	if NormalizeCredentialID(encoded) != encoded {
		t.Fatalf("EncodeCredentialID 输出必须已是规范形式: %q", encoded)
	}
}

// 测试内容：验证挑战会话只能被消费一次，第二次返回 ChallengeNotFound。
func TestPasskeySession_ConsumeOnce(t *testing.T) {
	session := &webauthn.SessionData{Challenge: "test-challenge"}
	sessionID, err := storePasskeySession(consts.PasskeySessionRegistration, 7, session)
	if err != nil {
		t.Fatalf("storePasskeySession 错误: %v", err)
	}

	entry, err := consumePasskeySession(sessionID, consts.PasskeySessionRegistration)
	if err != nil {
		t.Fatalf("首次消费应成功: %v", err)
	}
	if entry.UserID != 7 || entry.SessionData.Challenge != "test-challenge" {
		t.Fatalf("会话内容不符: %+v", entry)
	}

	_, err = consumePasskeySession(sessionID, consts.PasskeySessionRegistration)
	if !common.IsErrorCode(err, common.ErrorCodeChallengeNotFound) {
		t.Fatalf("二次消费期望 ChallengeNotFound, got: %v", err)
	}
}

// 测试内容：验证注册会话不能当作登录会话消费。
func TestPasskeySession_TypeMismatch(t *testing.T) {
	session := &webauthn.SessionData{Challenge: "c"}
	sessionID, err := storePasskeySession(consts.PasskeySessionRegistration, 1, session)
	if err != nil {
		t.Fatalf("storePasskeySession 错误: %v", err)
	}

	_, err = consumePasskeySession(sessionID, consts.PasskeySessionLogin)
	if !common.IsErrorCode(err, common.ErrorCodeChallengeNotFound) {
		t.Fatalf("类型不匹配期望 ChallengeNotFound, got: %v", err)
	}
}

// 测试内容：验证内存会话过期后消费返回 ChallengeExpired。
func TestPasskeySession_Expired(t *testing.T) {
	passkeySessionStore.Store("expired-session", passkeySessionEntry{
		PasskeySessionType: consts.PasskeySessionLogin,
		UserID:             1,
		SessionData:        webauthn.SessionData{Challenge: "c"},
		ExpiresAt:          time.Now().Add(-time.Minute),
	})

	_, err := consumePasskeySession("expired-session", consts.PasskeySessionLogin)
	if !common.IsErrorCode(err, common.ErrorCodeChallengeExpired) {
		t.Fatalf("过期会话期望 ChallengeExpired, got: %v", err)
	}
}

// 测试内容：验证空 session_id 直接拒绝。
func TestPasskeySession_EmptyID(t *testing.T) {
	_, err := consumePasskeySession("  ", consts.PasskeySessionLogin)
	if !common.IsErrorCode(err, common.ErrorCodeValidation) {
		t.Fatalf("期望参数错误, got: %v", err)
	}
}

// 测试内容：验证重新发起注册会丢弃该用户旧的注册挑战。
func TestClearPendingPasskeyRegistrations(t *testing.T) {
	session := &webauthn.SessionData{Challenge: "old"}
	oldID, err := storePasskeySession(consts.PasskeySessionRegistration, 42, session)
	if err != nil {
		t.Fatalf("storePasskeySession 错误: %v", err)
	}

	loginSession := &webauthn.SessionData{Challenge: "login"}
	loginID, err := storePasskeySession(consts.PasskeySessionLogin, 42, loginSession)
	if err != nil {
		t.Fatalf("storePasskeySession 错误: %v", err)
	}

	clearPendingPasskeyRegistrations(42)

	if _, err := consumePasskeySession(oldID, consts.PasskeySessionRegistration); !common.IsErrorCode(err, common.ErrorCodeChallengeNotFound) {
		t.Fatalf("旧注册挑战应被丢弃, got: %v", err)
	}
	// 登录会话不受影响。
	if _, err := consumePasskeySession(loginID, consts.PasskeySessionLogin); err != nil {
		t.Fatalf("登录会话不应被清理: %v", err)
	}
}

// 测试内容：验证会话 ID 高熵且互不重复。
func TestGeneratePasskeySessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := generatePasskeySessionID()
		if err != nil {
			t.Fatalf("generatePasskeySessionID 错误: %v", err)
		}
		if len(id) < 40 {
			t.Fatalf("会话 ID 长度不足: %q", id)
		}
		if seen[id] {
			t.Fatalf("会话 ID 重复: %q", id)
		}
		seen[id] = true
	}
}

// 测试内容：验证 Passkey 名称归一化的长度限制与默认名生成。
func TestNormalizePasskeyName(t *testing.T) {
	name, err := normalizePasskeyName("  我的钥匙  ")
	if err != nil {
		t.Fatalf("normalizePasskeyName 错误: %v", err)
	}
	if name != "我的钥匙" {
		t.Fatalf("期望去除首尾空白, got: %q", name)
	}

	long := make([]rune, consts.PasskeyNameMaxRunes+1)
	for i := range long {
		long[i] = '长'
	}
	if _, err := normalizePasskeyName(string(long)); err == nil {
		t.Fatalf("超长名称应报错")
	}
}

// fakePendingRegistrationRedis 以内存字典模拟注册挑战索引用到的 Redis 命令。
type fakePendingRegistrationRedis struct {
	sets   map[string]map[string]struct{}
	values map[string]string
}

func newFakePendingRegistrationRedis() *fakePendingRegistrationRedis {
	return &fakePendingRegistrationRedis{
		sets:   make(map[string]map[string]struct{}),
		values: make(map[string]string),
	}
}

func (f *fakePendingRegistrationRedis) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	set := f.sets[key]
	if set == nil {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	var added int64
	for _, m := range members {
		member := m.(string)
		if _, ok := set[member]; !ok {
			set[member] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakePendingRegistrationRedis) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	var removed int64
	for _, m := range members {
		member := m.(string)
		if _, ok := f.sets[key][member]; ok {
			delete(f.sets[key], member)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakePendingRegistrationRedis) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	members := make([]string, 0, len(f.sets[key]))
	for member := range f.sets[key] {
		members = append(members, member)
	}
	return redis.NewStringSliceResult(members, nil)
}

func (f *fakePendingRegistrationRedis) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (f *fakePendingRegistrationRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
		if _, ok := f.sets[key]; ok {
			delete(f.sets, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

// 测试内容：验证登录成功后 Redis 中该用户待完成的注册挑战被整体清理，
// 其他用户与登录类型的会话不受影响。
func TestSweepPendingRegistrations_RemovesRedisChallenges(t *testing.T) {
	fake := newFakePendingRegistrationRedis()

	// 用户 7 有两个未完成的注册挑战，Redis 中同时存有会话本体与索引。
	for _, sessionID := range []string{"reg-a", "reg-b"} {
		fake.values[RedisKey("passkey", "session", sessionID)] = "payload"
		indexPendingRegistration(fake, 7, sessionID)
	}
	// 其他用户的注册挑战与一条登录挑战作为对照。
	fake.values[RedisKey("passkey", "session", "reg-other")] = "payload"
	indexPendingRegistration(fake, 8, "reg-other")
	loginKey := RedisKey("passkey", "session", "login-x")
	fake.values[loginKey] = "payload"

	sweepPendingRegistrations(fake, 7)

	for _, sessionID := range []string{"reg-a", "reg-b"} {
		if _, ok := fake.values[RedisKey("passkey", "session", sessionID)]; ok {
			t.Errorf("会话 %s 应随登录被清理", sessionID)
		}
	}
	if _, ok := fake.sets[pendingRegistrationIndexKey(7)]; ok {
		t.Error("用户 7 的注册挑战索引应被删除")
	}
	if _, ok := fake.values[RedisKey("passkey", "session", "reg-other")]; !ok {
		t.Error("其他用户的注册挑战不应被清理")
	}
	if _, ok := fake.values[loginKey]; !ok {
		t.Error("登录挑战不应被清理")
	}
}

// 测试内容：验证注册挑战被消费后索引项同步移除。
func TestUnindexPendingRegistration(t *testing.T) {
	fake := newFakePendingRegistrationRedis()
	indexPendingRegistration(fake, 9, "reg-c")
	indexPendingRegistration(fake, 9, "reg-d")

	unindexPendingRegistration(fake, 9, "reg-c")

	members, err := fake.SMembers(context.Background(), pendingRegistrationIndexKey(9)).Result()
	if err != nil {
		t.Fatalf("读取索引失败: %v", err)
	}
	if len(members) != 1 || members[0] != "reg-d" {
		t.Errorf("索引应只剩 reg-d，实际为 %v", members)
	}
}

// 测试内容：验证 discoverable 登录挑战（user_id=0）不会写入任何索引。
func TestIndexPendingRegistration_SkipsAnonymous(t *testing.T) {
	fake := newFakePendingRegistrationRedis()
	indexPendingRegistration(fake, 0, "reg-anon")
	if len(fake.sets) != 0 {
		t.Errorf("user_id=0 不应建立索引，实际为 %v", fake.sets)
	}
}
