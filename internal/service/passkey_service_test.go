package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/model"

	"github.com/go-webauthn/webauthn/webauthn"
)

// createTestPasskey 为用户写入一条可被正常反序列化的 Passkey 记录。
func createTestPasskey(t *testing.T, app *AppService, userID uint, credentialID string, signCount uint32) *model.PasskeyCredential {
	t.Helper()

	credential := &webauthn.Credential{
		ID:        []byte(credentialID),
		PublicKey: []byte("test-public-key"),
	}
	credential.Authenticator.SignCount = signCount

	serialized, err := marshalPasskeyCredential(credential)
	if err != nil {
		t.Fatalf("序列化凭据失败: %v", err)
	}

	record := &model.PasskeyCredential{
		UserID:       userID,
		CredentialID: EncodeCredentialID(credential.ID),
		Name:         "测试 Passkey",
		PublicKey:    credential.PublicKey,
		Credential:   serialized,
		SignCount:    signCount,
	}
	if err := app.repos.Passkey.CreatePasskeyCredential(record); err != nil {
		t.Fatalf("写入 Passkey 记录失败: %v", err)
	}
	return record
}

func TestApplySignCountUpdate_RejectsRegression(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "counteruser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "counter-cred", 5)

	validated := &webauthn.Credential{ID: []byte("counter-cred"), PublicKey: record.PublicKey}

	for _, asserted := range []uint32{5, 3} {
		validated.Authenticator.SignCount = asserted
		err := app.applySignCountUpdate(record.CredentialID, record, validated, asserted)
		if !common.IsErrorCode(err, common.ErrorCodeCounterRegression) {
			t.Fatalf("asserted=%d 期望计数器回退错误，实际: %v", asserted, err)
		}
	}

	// 被拒绝的断言不应改动存储计数
	latest, err := app.repos.Passkey.FindPasskeyCredentialByCredentialID(record.CredentialID)
	if err != nil {
		t.Fatalf("读取凭据失败: %v", err)
	}
	if latest.SignCount != 5 {
		t.Errorf("存储计数被意外修改: %d", latest.SignCount)
	}
}

func TestApplySignCountUpdate_AdvancesCounter(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "advanceuser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "advance-cred", 5)

	validated := &webauthn.Credential{ID: []byte("advance-cred"), PublicKey: record.PublicKey}
	validated.Authenticator.SignCount = 6

	if err := app.applySignCountUpdate(record.CredentialID, record, validated, 6); err != nil {
		t.Fatalf("计数器前进应当成功: %v", err)
	}

	latest, err := app.repos.Passkey.FindPasskeyCredentialByCredentialID(record.CredentialID)
	if err != nil {
		t.Fatalf("读取凭据失败: %v", err)
	}
	if latest.SignCount != 6 {
		t.Errorf("存储计数 = %d, 期望 6", latest.SignCount)
	}
	if latest.LastUsedAt == nil {
		t.Error("成功断言后 LastUsedAt 应被更新")
	}
}

func TestApplySignCountUpdate_ZeroStoredAlwaysAllowed(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "zerouser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "zero-cred", 0)

	validated := &webauthn.Credential{ID: []byte("zero-cred"), PublicKey: record.PublicKey}
	validated.Authenticator.SignCount = 0

	// 兼容始终上报 0 的认证器：存储计数为 0 时不做回退判定
	if err := app.applySignCountUpdate(record.CredentialID, record, validated, 0); err != nil {
		t.Fatalf("存储计数为 0 时应当放行: %v", err)
	}
}

func TestApplySignCountUpdate_RetriesAfterStaleRead(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "staleuser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "stale-cred", 10)

	// 模拟并发落败方：手里的 record 还停留在旧计数 7，数据库已是 10。
	stale := *record
	stale.SignCount = 7

	validated := &webauthn.Credential{ID: []byte("stale-cred"), PublicKey: record.PublicKey}
	validated.Authenticator.SignCount = 11

	// 首次 CAS（expected=7）必然落空，重读到 10 后 11 > 10 仍应成功
	if err := app.applySignCountUpdate(record.CredentialID, &stale, validated, 11); err != nil {
		t.Fatalf("CAS 落空后重读应当成功: %v", err)
	}

	latest, err := app.repos.Passkey.FindPasskeyCredentialByCredentialID(record.CredentialID)
	if err != nil {
		t.Fatalf("读取凭据失败: %v", err)
	}
	if latest.SignCount != 11 {
		t.Errorf("存储计数 = %d, 期望 11", latest.SignCount)
	}
}

func TestFinishPasskeyLogin_UnknownSession(t *testing.T) {
	resetPasskeySessionStore()
	app, _ := setupTestApp(t)

	_, err := app.FinishPasskeyLogin("no-such-session", []byte(`{}`))
	if !common.IsErrorCode(err, common.ErrorCodeChallengeNotFound) {
		t.Fatalf("未知会话期望 challenge_not_found，实际: %v", err)
	}
}

func TestFinishPasskeyRegistration_WrongUserSession(t *testing.T) {
	resetPasskeySessionStore()
	app, gdb := setupTestApp(t)
	owner := createTestUser(t, gdb, "sessionowner", "Passw0rd123")

	sessionID, _, err := app.BeginPasskeyRegistration(owner.ID)
	if err != nil {
		t.Fatalf("创建注册挑战失败: %v", err)
	}

	// 其他用户不能完成不属于自己的注册会话
	_, err = app.FinishPasskeyRegistration(owner.ID+1, sessionID, []byte(`{}`))
	if !common.IsErrorCode(err, common.ErrorCodeForbidden) {
		t.Fatalf("跨用户完成会话期望 forbidden，实际: %v", err)
	}
}

func TestBeginPasskeyRegistration_CapacityLimit(t *testing.T) {
	resetPasskeySessionStore()
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "capacityuser", "Passw0rd123")

	for i := 0; i < 10; i++ {
		createTestPasskey(t, app, user.ID, fmt.Sprintf("cap-cred-%d", i), 0)
	}

	_, _, err := app.BeginPasskeyRegistration(user.ID)
	if !common.IsErrorCode(err, common.ErrorCodeForbidden) {
		t.Fatalf("超过数量上限期望 forbidden，实际: %v", err)
	}
}

func TestListUserPasskeys(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "listuser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "list-cred", 3)

	now := time.Now()
	if err := gdb.Model(record).Update("last_used_at", now).Error; err != nil {
		t.Fatalf("更新 last_used_at 失败: %v", err)
	}

	items, err := app.ListUserPasskeys(user.ID)
	if err != nil {
		t.Fatalf("读取列表失败: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("列表长度 = %d, 期望 1", len(items))
	}
	item := items[0]
	if item.CredentialID != record.CredentialID {
		t.Errorf("CredentialID = %q", item.CredentialID)
	}
	if item.Name != "测试 Passkey" {
		t.Errorf("Name = %q", item.Name)
	}
	if item.SignCount != 3 {
		t.Errorf("SignCount = %d", item.SignCount)
	}
	if item.LastUsedAt == 0 {
		t.Error("LastUsedAt 未填充")
	}
}

func TestRenameUserPasskey(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "renameuser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "rename-cred", 0)

	if err := app.RenameUserPasskey(user.ID, record.ID, "  工作电脑  "); err != nil {
		t.Fatalf("重命名失败: %v", err)
	}

	items, err := app.ListUserPasskeys(user.ID)
	if err != nil {
		t.Fatalf("读取列表失败: %v", err)
	}
	if items[0].Name != "工作电脑" {
		t.Errorf("Name = %q, 期望去除首尾空白", items[0].Name)
	}

	if err := app.RenameUserPasskey(user.ID, record.ID+100, "新名字"); !common.IsErrorCode(err, common.ErrorCodeNotFound) {
		t.Errorf("重命名不存在的 Passkey 期望 not_found，实际: %v", err)
	}
}

func TestDeleteUserPasskey(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "deleteuser", "Passw0rd123")
	other := createTestUser(t, gdb, "otheruser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "delete-cred", 0)

	// 非持有者删除应视为不存在
	if err := app.DeleteUserPasskey(other.ID, record.ID); !common.IsErrorCode(err, common.ErrorCodeNotFound) {
		t.Fatalf("跨用户删除期望 not_found，实际: %v", err)
	}

	if err := app.DeleteUserPasskey(user.ID, record.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	items, err := app.ListUserPasskeys(user.ID)
	if err != nil {
		t.Fatalf("读取列表失败: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("删除后列表长度 = %d, 期望 0", len(items))
	}
}

// 测试内容：验证注册前查重对"同账号重复绑定"与"被其他账号占用"都拒绝。
func TestEnsureCredentialUnregistered(t *testing.T) {
	app, gdb := setupTestApp(t)
	owner := createTestUser(t, gdb, "dupowner", "Passw0rd123")
	other := createTestUser(t, gdb, "dupother", "Passw0rd123")
	record := createTestPasskey(t, app, owner.ID, "dup-cred", 0)

	// 同一账号重复绑定
	err := app.ensureCredentialUnregistered(owner.ID, record.CredentialID)
	if !common.IsErrorCode(err, common.ErrorCodeDuplicateCredential) {
		t.Errorf("同账号重复绑定期望 duplicate_credential，实际为 %v", err)
	}

	// 凭据已被其他账号占用
	err = app.ensureCredentialUnregistered(other.ID, record.CredentialID)
	if !common.IsErrorCode(err, common.ErrorCodeDuplicateCredential) {
		t.Errorf("跨账号占用期望 duplicate_credential，实际为 %v", err)
	}

	// 未注册过的凭据放行
	if err := app.ensureCredentialUnregistered(owner.ID, EncodeCredentialID([]byte("fresh-cred"))); err != nil {
		t.Errorf("未注册凭据应放行: %v", err)
	}
}

// 测试内容：验证查重与写入之间的竞态由唯一索引兜底，冲突可被识别为重复绑定。
func TestCreatePasskeyCredential_UniqueIndexFallback(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "racer", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "race-cred", 0)

	duplicate := &model.PasskeyCredential{
		UserID:       user.ID,
		CredentialID: record.CredentialID,
		Name:         "竞态副本",
		PublicKey:    record.PublicKey,
		Credential:   record.Credential,
	}
	err := app.repos.Passkey.CreatePasskeyCredential(duplicate)
	if err == nil {
		t.Fatal("相同 credential_id 的二次写入应触发唯一约束")
	}
	if !isUniqueConflict(err) {
		t.Errorf("唯一约束冲突应被识别为重复绑定，实际错误: %v", err)
	}
}

// 测试内容：两个并发断言竞争同一凭据时，存储计数最终收敛到较大值。
func TestApplySignCountUpdate_ConcurrentAssertions(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "concurrentuser", "Passw0rd123")
	record := createTestPasskey(t, app, user.ID, "concurrent-cred", 9)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, asserted := range []uint32{10, 11} {
		wg.Add(1)
		go func(slot int, count uint32) {
			defer wg.Done()
			stale := *record
			validated := &webauthn.Credential{ID: []byte("concurrent-cred"), PublicKey: record.PublicKey}
			validated.Authenticator.SignCount = count
			errs[slot] = app.applySignCountUpdate(record.CredentialID, &stale, validated, count)
		}(i, asserted)
	}
	wg.Wait()

	// 计数 11 的一方必须成功；计数 10 的一方若后到会被判回退，这是预期行为。
	if errs[1] != nil {
		t.Errorf("较大计数的断言应当成功: %v", errs[1])
	}
	if errs[0] != nil && !common.IsErrorCode(errs[0], common.ErrorCodeCounterRegression) {
		t.Errorf("较小计数的断言只允许成功或被判回退，实际为 %v", errs[0])
	}

	latest, err := app.repos.Passkey.FindPasskeyCredentialByCredentialID(record.CredentialID)
	if err != nil {
		t.Fatalf("读取凭据失败: %v", err)
	}
	if latest.SignCount != 11 {
		t.Errorf("并发断言后存储计数 = %d, 期望 11", latest.SignCount)
	}
}
