package service

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"brighttalk-server/internal/config"
	"brighttalk-server/internal/model"
	"brighttalk-server/internal/repository"
	"brighttalk-server/internal/testutils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// setupTestApp 建立独立的内存数据库并返回对应的 AppService。
func setupTestApp(t *testing.T) (*AppService, *gorm.DB) {
	t.Helper()
	gdb := testutils.SetupDB(t)
	config.SetForTesting(config.Config{
		JWT: config.JWTConfig{Secret: "test_secret", ExpirationHours: 1},
	})
	app := NewAppService(repository.NewRepositories(gdb))
	app.ClearSettingsCache()
	return app, gdb
}

// createTestUser 写入一个可登录的测试用户。
func createTestUser(t *testing.T, gdb *gorm.DB, username string, password string) *model.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	user := &model.User{
		Username:      username,
		Password:      string(hashed),
		Email:         username + "@example.com",
		EmailVerified: true,
		Status:        1,
	}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func resetPasskeySessionStore() {
	passkeySessionStore.Range(func(key, value any) bool {
		passkeySessionStore.Delete(key)
		return true
	})
}

func resetActiveSessionStore() {
	activeSessionStore.Range(func(key, value any) bool {
		activeSessionStore.Delete(key)
		return true
	})
}

// mustFileHeader 构造 multipart 文件头，用于上传相关测试。
func mustFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("创建表单文件失败: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("写入表单文件失败: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭 multipart writer 失败: %v", err)
	}
	req := httptest.NewRequest("POST", "http://example/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("解析 multipart 表单失败: %v", err)
	}
	fhs := req.MultipartForm.File["file"]
	if len(fhs) != 1 {
		t.Fatalf("期望 1 个文件，实际为 %d", len(fhs))
	}
	return fhs[0]
}
