package config

import (
	"os"
	"testing"
)

// 测试内容：验证初始化配置会设置默认值并写入可用的配置目录。
func TestInitConfig_SetsDefaults(t *testing.T) {
	dir := t.TempDir()

	// 确保不在 release 模式（release 模式下不安全的 secret 会导致 fatal）。
	t.Setenv("BRIGHTTALK_SERVER_MODE", "debug")
	t.Setenv("BRIGHTTALK_JWT_SECRET", "")

	InitConfig(dir)

	cfg := Get()
	if cfg.Server.Port == "" {
		t.Fatalf("期望 default server.port to be set")
	}
	if cfg.JWT.Secret == "" {
		t.Fatalf("期望 JWT secret to be set in non-release mode")
	}
	if cfg.Upload.Path == "" {
		t.Fatalf("期望 default upload.path to be set")
	}
	if GetConfigDir() != dir {
		t.Fatalf("期望 config dir %q，实际为 %q", dir, GetConfigDir())
	}

	// 写入一个配置文件名以确保目录可写（测试的基本健全性检查）。
	if err := os.WriteFile(dir+string(os.PathSeparator)+"_test_write", []byte("ok"), 0644); err != nil {
		t.Fatalf("期望 temp config dir to be writable: %v", err)
	}
}

// 测试内容：验证环境变量可以覆盖配置文件与默认值。
func TestInitConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("BRIGHTTALK_SERVER_MODE", "debug")
	t.Setenv("BRIGHTTALK_SERVER_PORT", "9090")
	t.Setenv("BRIGHTTALK_JWT_SECRET", "env_secret")

	InitConfig(dir)

	cfg := Get()
	if cfg.Server.Port != "9090" {
		t.Fatalf("server.port = %q, 期望环境变量覆盖为 9090", cfg.Server.Port)
	}
	if cfg.JWT.Secret != "env_secret" {
		t.Fatalf("jwt.secret = %q, 期望环境变量覆盖", cfg.JWT.Secret)
	}
}

// 测试内容：验证 SetForTesting 直接替换全局配置。
func TestSetForTesting(t *testing.T) {
	SetForTesting(Config{JWT: JWTConfig{Secret: "snapshot", ExpirationHours: 2}})
	if got := Get().JWT.Secret; got != "snapshot" {
		t.Fatalf("jwt.secret = %q", got)
	}
}
