package service

import (
	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/utils"
)

// CaptchaChallenge 是下发给前端的图形验证码。
type CaptchaChallenge struct {
	Enabled bool   `json:"enabled"`
	ID      string `json:"id,omitempty"`
	Image   string `json:"image,omitempty"`
}

// NewCaptchaChallenge 生成图形验证码。站点未开启验证码时仅返回 Enabled=false。
func (s *AppService) NewCaptchaChallenge() (*CaptchaChallenge, error) {
	if !s.GetBool(consts.ConfigEnableCaptcha) {
		return &CaptchaChallenge{Enabled: false}, nil
	}

	id, b64s, _, err := utils.MakeCaptcha()
	if err != nil {
		return nil, common.NewInternalError("生成验证码失败")
	}
	return &CaptchaChallenge{Enabled: true, ID: id, Image: b64s}, nil
}

// VerifyCaptchaChallenge 校验验证码答案。关闭验证码时直接放行。
func (s *AppService) VerifyCaptchaChallenge(captchaID, captchaAnswer string) error {
	if !s.GetBool(consts.ConfigEnableCaptcha) {
		return nil
	}
	if captchaID == "" || captchaAnswer == "" {
		return common.NewValidationError("请完成验证码")
	}
	if !utils.VerifyCaptcha(captchaID, captchaAnswer) {
		return common.NewValidationError("验证码错误")
	}
	return nil
}
