package router

import (
	"brighttalk-server/internal/handler"

	"github.com/gin-gonic/gin"
)

func registerPublicRoutes(api *gin.RouterGroup, h *handler.Handler) {
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong from gin"})
	})
	api.GET("/webinfo", h.GetWebInfo)
	api.GET("/captcha", h.GetCaptcha)
	api.GET("/categories", h.ListCategories)

	// 帖子浏览无需登录
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:id", h.GetPost)
	api.GET("/posts/:id/html", h.GetPostHTML)
	api.GET("/posts/:id/comments", h.ListComments)
}
