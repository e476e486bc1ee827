package router

import (
	"brighttalk-server/internal/handler"
	"brighttalk-server/internal/middleware"

	"github.com/gin-gonic/gin"
)

func registerAdminRoutes(api *gin.RouterGroup, h *handler.Handler) {
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.JWTAuth())
	adminGroup.Use(middleware.UserStatusCheck())
	adminGroup.Use(middleware.AdminCheck())

	adminGroup.GET("/settings", h.GetSettings)
	adminGroup.PATCH("/settings", h.UpdateSettings)
	adminGroup.POST("/settings/test-email", h.SendTestEmail)

	adminGroup.POST("/categories", h.CreateCategory)
	adminGroup.DELETE("/categories/:id", h.DeleteCategory)
}
