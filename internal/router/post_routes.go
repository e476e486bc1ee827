package router

import (
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/handler"
	"brighttalk-server/internal/middleware"
	"brighttalk-server/internal/service"

	"github.com/gin-gonic/gin"
)

func registerPostRoutes(api *gin.RouterGroup, h *handler.Handler, appService *service.AppService) {
	postGroup := api.Group("/posts")
	postGroup.Use(middleware.JWTAuth())
	postGroup.Use(middleware.UserStatusCheck())

	uploadLimiter := middleware.RateLimitMiddleware(appService, consts.ConfigRateLimitUploadRPS, consts.ConfigRateLimitUploadBurst)
	uploadBodyLimit := middleware.UploadBodyLimitMiddleware(appService)

	postGroup.POST("", h.CreatePost)
	postGroup.PUT("/:id", h.UpdatePost)
	postGroup.DELETE("/:id", h.DeletePost)

	postGroup.POST("/:id/attachments", uploadBodyLimit, uploadLimiter, h.UploadAttachment)
	postGroup.DELETE("/:id/attachments/:attachment_id", h.DeleteAttachment)

	postGroup.POST("/:id/comments", h.CreateComment)
	postGroup.POST("/:id/like", h.LikePost)
	postGroup.DELETE("/:id/like", h.UnlikePost)

	commentGroup := api.Group("/comments")
	commentGroup.Use(middleware.JWTAuth())
	commentGroup.Use(middleware.UserStatusCheck())
	commentGroup.DELETE("/:id", h.DeleteComment)
}
