package router

import (
	"brighttalk-server/internal/handler"
	"brighttalk-server/internal/middleware"

	"github.com/gin-gonic/gin"
)

func registerAuthRoutes(api *gin.RouterGroup, authLimiter gin.HandlerFunc, h *handler.Handler) {
	api.POST("/login", authLimiter, h.Login)
	api.POST("/register", authLimiter, h.Register)

	// 登录方式协商与 Passkey 登录
	api.POST("/auth/login-options", authLimiter, h.LoginOptions)
	api.POST("/auth/passkey/login/start", authLimiter, h.BeginPasskeyLogin)
	api.POST("/auth/passkey/login/finish", authLimiter, h.FinishPasskeyLogin)

	api.POST("/auth/email-verify", h.EmailVerify)
	api.POST("/auth/logout", middleware.JWTAuth(), h.Logout)
}
