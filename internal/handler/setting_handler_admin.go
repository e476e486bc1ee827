package handler

import (
	"net/http"

	"brighttalk-server/internal/common/httpx"
	"brighttalk-server/internal/service"

	"github.com/gin-gonic/gin"
)

// GetSettings 返回全部配置项（管理员）。
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.service.AdminListSettings()
	if err != nil {
		httpx.WriteServiceError(c, err, "获取配置失败")
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings 批量更新配置项（管理员）。
func (h *Handler) UpdateSettings(c *gin.Context) {
	var reqs []service.SettingUpdate
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数格式错误"})
		return
	}

	if err := h.service.AdminUpdateSettings(reqs); err != nil {
		httpx.WriteServiceError(c, err, "更新失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "配置更新成功",
		"count":   len(reqs),
	})
}

// SendTestEmail 发送 SMTP 测试邮件（管理员）。
func (h *Handler) SendTestEmail(c *gin.Context) {
	var req struct {
		ToEmail string `json:"to_email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "邮箱格式不正确"})
		return
	}

	if err := h.service.SendTestEmail(req.ToEmail); err != nil {
		httpx.WriteServiceError(c, err, "发送失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "测试邮件已发送"})
}
