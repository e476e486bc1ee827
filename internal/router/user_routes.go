package router

import (
	"brighttalk-server/internal/handler"
	"brighttalk-server/internal/middleware"
	"brighttalk-server/internal/service"

	"github.com/gin-gonic/gin"
)

func registerUserRoutes(api *gin.RouterGroup, h *handler.Handler, appService *service.AppService) {
	userGroup := api.Group("/user")
	userGroup.Use(middleware.JWTAuth())
	userGroup.Use(middleware.UserStatusCheck())

	userGroup.GET("/profile", h.Profile)
	userGroup.PATCH("/username", h.UpdateUsername)
	userGroup.PATCH("/password", h.UpdatePassword)
	userGroup.POST("/avatar", middleware.UploadBodyLimitMiddleware(appService), h.UpdateAvatar)
	userGroup.DELETE("/avatar", h.RemoveAvatar)

	userGroup.GET("/passkeys", h.ListPasskeys)
	userGroup.POST("/passkeys/register/start", h.BeginPasskeyRegistration)
	userGroup.POST("/passkeys/register/finish", h.FinishPasskeyRegistration)
	userGroup.PATCH("/passkeys/:id", h.RenamePasskey)
	userGroup.DELETE("/passkeys/:id", h.DeletePasskey)

	userGroup.GET("/posts", h.ListMyPosts)
}
