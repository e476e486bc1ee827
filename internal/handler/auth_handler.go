package handler

import (
	"encoding/json"
	"net/http"

	"brighttalk-server/internal/common/httpx"
	"brighttalk-server/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Account       string `json:"account" binding:"required"`
		Password      string `json:"password" binding:"required"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	if err := h.service.VerifyCaptchaChallenge(req.CaptchaID, req.CaptchaAnswer); err != nil {
		httpx.WriteServiceError(c, err, "验证码校验失败")
		return
	}

	token, err := h.service.LoginUser(req.Account, req.Password)
	if err != nil {
		httpx.WriteServiceError(c, err, "登录失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "登录成功",
	})
}

// LoginOptions 根据邮箱返回推荐的登录方式。
// 对未注册邮箱同样返回 password_required，避免暴露邮箱是否存在。
func (h *Handler) LoginOptions(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	strategy, err := h.service.DetermineLoginStrategy(req.Email)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询登录方式失败")
		return
	}

	c.JSON(http.StatusOK, strategy)
}

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username      string `json:"username" binding:"required"`
		Password      string `json:"password" binding:"required"`
		Email         string `json:"email" binding:"required"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数格式错误"})
		return
	}

	if err := h.service.VerifyCaptchaChallenge(req.CaptchaID, req.CaptchaAnswer); err != nil {
		httpx.WriteServiceError(c, err, "验证码校验失败")
		return
	}

	if err := h.service.RegisterUser(req.Username, req.Password, req.Email); err != nil {
		httpx.WriteServiceError(c, err, "注册失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "注册成功，请前往邮箱验证"})
}

func (h *Handler) EmailVerify(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	alreadyVerified, err := h.service.VerifyEmail(req.Token)
	if err != nil {
		httpx.WriteServiceError(c, err, "验证失败，请稍后重试")
		return
	}

	if alreadyVerified {
		c.JSON(http.StatusOK, gin.H{"message": "邮箱已验证，无需重复验证"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "邮箱验证成功，现在可以登录了"})
}

// Logout 注销当前会话，对应的 Token 立即失效。
func (h *Handler) Logout(c *gin.Context) {
	userID := c.GetUint("id")
	service.InvalidateSession(userID)
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// BeginPasskeyLogin 创建 Passkey 登录挑战并返回会话 ID。
// 带邮箱提示时下发该用户的凭据列表，否则走 discoverable 流程。
func (h *Handler) BeginPasskeyLogin(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	sessionID, assertion, err := h.service.BeginPasskeyLogin(req.Email)
	if err != nil {
		httpx.WriteServiceError(c, err, "创建 Passkey 登录挑战失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":        sessionID,
		"assertion_options": assertion,
	})
}

// FinishPasskeyLogin 完成 Passkey 登录校验并返回 JWT。
func (h *Handler) FinishPasskeyLogin(c *gin.Context) {
	var req struct {
		SessionID  string          `json:"session_id" binding:"required"`
		Credential json.RawMessage `json:"credential" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	token, err := h.service.FinishPasskeyLogin(req.SessionID, req.Credential)
	if err != nil {
		httpx.WriteServiceError(c, err, "Passkey 登录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "登录成功",
	})
}
