package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"brighttalk-server/internal/common/httpx"

	"github.com/gin-gonic/gin"
)

// BeginPasskeyRegistration 为当前用户创建 Passkey 注册挑战。
func (h *Handler) BeginPasskeyRegistration(c *gin.Context) {
	userID := c.GetUint("id")

	sessionID, creation, err := h.service.BeginPasskeyRegistration(userID)
	if err != nil {
		httpx.WriteServiceError(c, err, "创建 Passkey 注册挑战失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":       sessionID,
		"creation_options": creation,
	})
}

// FinishPasskeyRegistration 校验认证器返回的注册凭据并保存。
func (h *Handler) FinishPasskeyRegistration(c *gin.Context) {
	userID := c.GetUint("id")

	var req struct {
		SessionID  string          `json:"session_id" binding:"required"`
		Credential json.RawMessage `json:"credential" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	credential, err := h.service.FinishPasskeyRegistration(userID, req.SessionID, req.Credential)
	if err != nil {
		httpx.WriteServiceError(c, err, "Passkey 注册失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Passkey 注册成功",
		"passkey": gin.H{
			"id":            credential.ID,
			"credential_id": credential.CredentialID,
			"name":          credential.Name,
		},
	})
}

// ListPasskeys 列出当前用户的全部 Passkey。
func (h *Handler) ListPasskeys(c *gin.Context) {
	userID := c.GetUint("id")

	passkeys, err := h.service.ListUserPasskeys(userID)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询 Passkey 失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"passkeys": passkeys})
}

// RenamePasskey 修改 Passkey 备注名。
func (h *Handler) RenamePasskey(c *gin.Context) {
	userID := c.GetUint("id")

	passkeyID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	if err := h.service.RenameUserPasskey(userID, passkeyID, req.Name); err != nil {
		httpx.WriteServiceError(c, err, "修改 Passkey 失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "修改成功"})
}

// DeletePasskey 删除指定 Passkey。
func (h *Handler) DeletePasskey(c *gin.Context) {
	userID := c.GetUint("id")

	passkeyID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteUserPasskey(userID, passkeyID); err != nil {
		httpx.WriteServiceError(c, err, "删除 Passkey 失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// parseUintParam 解析路径参数中的数字 ID，失败时直接写入 400 响应。
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 ID"})
		return 0, false
	}
	return uint(value), true
}
