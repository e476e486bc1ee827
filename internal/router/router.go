package router

import (
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/handler"
	"brighttalk-server/internal/middleware"
	"brighttalk-server/internal/service"

	"github.com/gin-gonic/gin"
)

type Router struct {
	handler *handler.Handler
	service *service.AppService
}

func NewRouter(h *handler.Handler, appService *service.AppService) *Router {
	return &Router{
		handler: h,
		service: appService,
	}
}

func (rt *Router) Init(r *gin.Engine) {
	r.Use(middleware.SecurityHeaders())

	api := r.Group("/api")
	api.Use(middleware.BodyLimitMiddleware(rt.service))

	// 认证限流在多个路由组中复用同一个实例，保持行为一致
	authLimiter := middleware.RateLimitMiddleware(rt.service, consts.ConfigRateLimitAuthRPS, consts.ConfigRateLimitAuthBurst)

	registerPublicRoutes(api, rt.handler)
	registerAuthRoutes(api, authLimiter, rt.handler)
	registerUserRoutes(api, rt.handler, rt.service)
	registerPostRoutes(api, rt.handler, rt.service)
	registerAdminRoutes(api, rt.handler)
}
