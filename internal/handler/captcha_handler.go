package handler

import (
	"net/http"

	"brighttalk-server/internal/common/httpx"

	"github.com/gin-gonic/gin"
)

// GetCaptcha 下发图形验证码。站点未开启验证码时只返回 enabled=false。
func (h *Handler) GetCaptcha(c *gin.Context) {
	challenge, err := h.service.NewCaptchaChallenge()
	if err != nil {
		httpx.WriteServiceError(c, err, "生成验证码失败")
		return
	}

	c.JSON(http.StatusOK, challenge)
}
