package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"brighttalk-server/internal/consts"

	"github.com/gin-gonic/gin"
)

// 测试内容：验证附件上传接口会拒绝超过配置上限的请求体。
func TestUploadBodyLimitMiddleware_RejectsTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, _ := setupTestApp(t)

	// 1MB 上限
	if err := app.UpdateSetting(consts.ConfigMaxUploadSize, "1"); err != nil {
		t.Fatalf("设置配置项失败: %v", err)
	}

	r := gin.New()
	r.POST("/posts/1/attachments", UploadBodyLimitMiddleware(app), func(c *gin.Context) { c.Status(http.StatusOK) })

	payload := bytes.Repeat([]byte("a"), 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/posts/1/attachments", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("期望 413，实际为 %d", w.Code)
	}
}

// 测试内容：验证普通接口的请求体超限会被截断并报错。
func TestBodyLimitMiddleware_LimitsNonUploadRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, _ := setupTestApp(t)

	// 1MB 上限
	if err := app.UpdateSetting(consts.ConfigMaxRequestBodySize, "1"); err != nil {
		t.Fatalf("设置配置项失败: %v", err)
	}

	r := gin.New()
	r.POST("/x", BodyLimitMiddleware(app), func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"err": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})

	payload := bytes.Repeat([]byte("a"), 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("期望 413，实际为 %d body=%s", w.Code, w.Body.String())
	}
}

// 测试内容：验证附件上传路由不受普通请求体上限约束。
func TestBodyLimitMiddleware_SkipsAttachmentRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, _ := setupTestApp(t)

	if err := app.UpdateSetting(consts.ConfigMaxRequestBodySize, "1"); err != nil {
		t.Fatalf("设置配置项失败: %v", err)
	}

	r := gin.New()
	r.POST("/posts/1/attachments", BodyLimitMiddleware(app), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	payload := bytes.Repeat([]byte("a"), 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/posts/1/attachments", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际为 %d", w.Code)
	}
}
