package handler

import (
	"net/http"

	"brighttalk-server/internal/common/httpx"
	"brighttalk-server/internal/middleware"
	"brighttalk-server/internal/service"

	"github.com/gin-gonic/gin"
)

// Profile 返回当前登录用户信息。
func (h *Handler) Profile(c *gin.Context) {
	userID := c.GetUint("id")

	user, err := h.service.GetUserByID(userID)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询用户信息失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"email_verified": user.EmailVerified,
		"admin":          user.Admin,
		"avatar":         service.AvatarURL(user.ID, user.Avatar),
		"created_at":     user.CreatedAt,
	})
}

// UpdateAvatar 上传头像。
func (h *Handler) UpdateAvatar(c *gin.Context) {
	userID := c.GetUint("id")

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请选择头像文件"})
		return
	}

	avatarURL, err := h.service.UpdateUserAvatar(userID, file)
	if err != nil {
		httpx.WriteServiceError(c, err, "头像上传失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "头像更新成功", "avatar": avatarURL})
}

// RemoveAvatar 移除头像。
func (h *Handler) RemoveAvatar(c *gin.Context) {
	userID := c.GetUint("id")

	if err := h.service.RemoveUserAvatar(userID); err != nil {
		httpx.WriteServiceError(c, err, "移除头像失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "头像已移除"})
}

// UpdateUsername 修改用户名。
func (h *Handler) UpdateUsername(c *gin.Context) {
	userID := c.GetUint("id")

	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	if err := h.service.UpdateUsername(userID, req.Username); err != nil {
		httpx.WriteServiceError(c, err, "修改用户名失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "用户名修改成功"})
}

// UpdatePassword 修改密码，成功后当前会话失效，需重新登录。
func (h *Handler) UpdatePassword(c *gin.Context) {
	userID := c.GetUint("id")

	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	if err := h.service.UpdatePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		httpx.WriteServiceError(c, err, "修改密码失败")
		return
	}

	middleware.ClearUserStatusCache(userID)
	c.JSON(http.StatusOK, gin.H{"message": "密码修改成功，请重新登录"})
}
