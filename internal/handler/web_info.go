package handler

import (
	"net/http"

	"brighttalk-server/internal/consts"

	"github.com/gin-gonic/gin"
)

// GetWebInfo 返回前台展示用的公共配置项。
func (h *Handler) GetWebInfo(c *gin.Context) {
	allowKeys := []string{
		consts.ConfigSiteName,
		consts.ConfigSiteDescription,
		consts.ConfigAllowRegister,
		consts.ConfigEnableCaptcha,
	}

	type webInfoItem struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	var response []webInfoItem
	for _, key := range allowKeys {
		response = append(response, webInfoItem{
			Key:   key,
			Value: h.service.GetString(key),
		})
	}
	c.JSON(http.StatusOK, response)
}
