package service

import (
	"log"
	"strconv"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"
)

const settingValueNotFound = "||__NOT_FOUND__||"

var DefaultSettings = []model.Setting{
	{Key: consts.ConfigSiteName, Value: "BrightTalk", Desc: "网站名称"},
	{Key: consts.ConfigSiteDescription, Value: "A place to share thoughts", Desc: "网站描述"},
	{Key: consts.ConfigBaseURL, Value: "http://localhost:8080", Desc: "站点对外访问地址 (决定 Passkey RP ID/Origin)"},
	{Key: consts.ConfigAllowRegister, Value: "true", Desc: "是否开放注册 (true/false)"},
	{Key: consts.ConfigEnableSMTP, Value: "false", Desc: "是否开启邮件发送"},
	{Key: consts.ConfigBlockUnverifiedUsers, Value: "false", Desc: "是否阻止未验证邮箱的用户登录"},
	{Key: consts.ConfigEnableCaptcha, Value: "false", Desc: "登录/注册是否需要验证码"},
	{Key: consts.ConfigMaxUploadSize, Value: "20", Desc: "单个附件最大大小 (MB)"},
	{Key: consts.ConfigAllowFileExtensions, Value: ".jpg,.jpeg,.png,.gif,.webp,.mp4,.webm,.pdf", Desc: "允许上传的附件扩展名"},
	{Key: consts.ConfigRateLimitEnabled, Value: "true", Desc: "是否开启接口限流"},
	{Key: consts.ConfigRateLimitAuthRPS, Value: "0.5", Desc: "认证接口每秒请求限制 (RPS)"},
	{Key: consts.ConfigRateLimitAuthBurst, Value: "2", Desc: "认证接口突发请求限制"},
	{Key: consts.ConfigRateLimitUploadRPS, Value: "1.0", Desc: "上传接口每秒请求限制 (RPS)"},
	{Key: consts.ConfigRateLimitUploadBurst, Value: "5", Desc: "上传接口突发请求限制"},
	{Key: consts.ConfigMaxRequestBodySize, Value: "2", Desc: "非文件上传接口最大请求体限制 (MB)"},
	{Key: consts.ConfigStaticCacheControl, Value: "public, max-age=31536000", Desc: "静态资源缓存设置 (Cache-Control)"},
}

func (s *AppService) ClearSettingsCache() {
	s.settingsCache.Range(func(key, value interface{}) bool {
		s.settingsCache.Delete(key)
		return true
	})
}

// InitializeSettings 将缺失的默认配置写入数据库。
func (s *AppService) InitializeSettings() {
	if err := s.repos.Setting.InitializeDefaults(DefaultSettings); err != nil {
		log.Printf("⚠️ 初始化默认配置失败: %v", err)
	}
}

// GetString 读取站点配置，优先走内存缓存，数据库缺失时回退默认值。
func (s *AppService) GetString(key string) string {
	if val, ok := s.settingsCache.Load(key); ok {
		strVal, ok := val.(string)
		if !ok {
			s.settingsCache.Delete(key)
		} else {
			if strVal == settingValueNotFound {
				return ""
			}
			return strVal
		}
	}

	setting, err := s.repos.Setting.FindByKey(key)
	if err != nil {
		// 数据库没查到，尝试查找默认配置
		for _, def := range DefaultSettings {
			if def.Key == key {
				s.settingsCache.Store(key, def.Value)
				return def.Value
			}
		}
		// 彻底没有这个配置项：记一个占位符，避免每次都打到数据库
		s.settingsCache.Store(key, settingValueNotFound)
		return ""
	}

	s.settingsCache.Store(key, setting.Value)
	return setting.Value
}

func (s *AppService) GetInt(key string) int {
	val := s.GetString(key)
	if val == "" {
		return 0
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return parsed
}

func (s *AppService) GetInt64(key string) int64 {
	val := s.GetString(key)
	if val == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func (s *AppService) GetFloat64(key string) float64 {
	val := s.GetString(key)
	if val == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func (s *AppService) GetBool(key string) bool {
	return s.GetString(key) == "true"
}

// UpdateSetting 更新配置项并刷新缓存。
func (s *AppService) UpdateSetting(key string, value string) error {
	if err := s.repos.Setting.UpsertValue(key, value); err != nil {
		return err
	}
	s.settingsCache.Store(key, value)
	return nil
}

// AdminListSettings 列出全部配置项（管理员）。
func (s *AppService) AdminListSettings() ([]model.Setting, error) {
	settings, err := s.repos.Setting.FindAll()
	if err != nil {
		return nil, common.NewInternalError("获取配置失败")
	}
	return settings, nil
}

// SettingUpdate 是单条配置更新请求。
type SettingUpdate struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// AdminUpdateSettings 批量更新配置项（管理员）。
// 只允许更新已知的配置键，防止写入任意数据。
func (s *AppService) AdminUpdateSettings(items []SettingUpdate) error {
	known := make(map[string]bool, len(DefaultSettings))
	for _, def := range DefaultSettings {
		known[def.Key] = true
	}

	for _, item := range items {
		if !known[item.Key] {
			return common.NewValidationError("未知的配置项: " + item.Key)
		}
	}
	for _, item := range items {
		if err := s.UpdateSetting(item.Key, item.Value); err != nil {
			return common.NewInternalError("更新配置失败")
		}
	}
	return nil
}
