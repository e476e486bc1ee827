package middleware

import (
	"testing"

	"brighttalk-server/internal/config"
	"brighttalk-server/internal/repository"
	"brighttalk-server/internal/service"
	"brighttalk-server/internal/testutils"

	"gorm.io/gorm"
)

func setupTestApp(t *testing.T) (*service.AppService, *gorm.DB) {
	t.Helper()
	gdb := testutils.SetupDB(t)
	config.SetForTesting(config.Config{
		JWT: config.JWTConfig{Secret: "test_secret", ExpirationHours: 1},
	})
	app := service.NewAppService(repository.NewRepositories(gdb))
	app.ClearSettingsCache()
	return app, gdb
}

func resetStatusCache() {
	statusCache.Range(func(key, value any) bool {
		statusCache.Delete(key)
		return true
	})
}
