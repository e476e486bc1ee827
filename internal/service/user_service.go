package service

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/config"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"
	"brighttalk-server/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterUser 注册新用户，邮箱验证链接异步发送。
func (s *AppService) RegisterUser(username string, password string, email string) error {
	if !s.GetBool(consts.ConfigAllowRegister) {
		return common.NewForbiddenError("当前未开放注册")
	}

	if ok, msg := utils.ValidateUsername(username); !ok {
		return common.NewValidationError(msg)
	}
	if ok, msg := utils.ValidatePassword(password); !ok {
		return common.NewValidationError(msg)
	}
	email = strings.TrimSpace(email)
	if ok, msg := utils.ValidateEmail(email); !ok {
		return common.NewValidationError(msg)
	}

	exists, err := s.repos.User.FieldExists(consts.UserFieldUsername, username, nil)
	if err != nil {
		return common.NewInternalError("注册失败，请稍后重试")
	}
	if exists {
		return common.NewConflictError("用户名已被占用")
	}

	exists, err = s.repos.User.FieldExists(consts.UserFieldEmail, email, nil)
	if err != nil {
		return common.NewInternalError("注册失败，请稍后重试")
	}
	if exists {
		return common.NewConflictError("邮箱已被注册")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return common.NewInternalError("注册失败，请稍后重试")
	}

	user := &model.User{
		Username: username,
		Password: string(hashed),
		Email:    email,
		Status:   1,
	}
	if err := s.repos.User.Create(user); err != nil {
		return common.NewInternalError("注册失败，请稍后重试")
	}

	// 邮件发送失败不阻塞注册流程
	go s.sendVerificationEmailAsync(user)

	return nil
}

func (s *AppService) sendVerificationEmailAsync(user *model.User) {
	token, err := utils.GenerateEmailToken(user.ID, user.Email, 24*time.Hour)
	if err != nil {
		log.Printf("⚠️ 生成邮箱验证 Token 失败: %v", err)
		return
	}

	baseURL := strings.TrimRight(s.GetString(consts.ConfigBaseURL), "/")
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", baseURL, token)
	if err := s.SendVerificationEmail(user.Email, user.Username, verifyURL); err != nil {
		log.Printf("⚠️ 发送验证邮件失败: %v", err)
	}
}

// VerifyEmail 校验邮箱验证 Token 并标记邮箱已验证。
// 返回值表示该邮箱是否此前已验证过。
func (s *AppService) VerifyEmail(tokenString string) (bool, error) {
	claims, err := utils.ParseEmailToken(tokenString)
	if err != nil {
		return false, common.NewValidationError("验证链接无效或已过期")
	}

	user, err := s.repos.User.FindByID(claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, common.NewNotFoundError("用户不存在")
		}
		return false, common.NewInternalError("验证失败，请稍后重试")
	}

	// Token 签发后邮箱被修改过则作废
	if user.Email != claims.Email {
		return false, common.NewValidationError("验证链接无效或已过期")
	}

	if user.EmailVerified {
		return true, nil
	}

	if err := s.repos.User.UpdateByID(user.ID, map[string]interface{}{"email_verified": true}); err != nil {
		return false, common.NewInternalError("验证失败，请稍后重试")
	}
	return false, nil
}

// GetUserByID 查询用户资料。
func (s *AppService) GetUserByID(userID uint) (*model.User, error) {
	user, err := s.repos.User.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewNotFoundError("用户不存在")
		}
		return nil, common.NewInternalError("查询用户失败")
	}
	return user, nil
}

// UpdateUsername 修改用户名。
func (s *AppService) UpdateUsername(userID uint, username string) error {
	if ok, msg := utils.ValidateUsername(username); !ok {
		return common.NewValidationError(msg)
	}

	exists, err := s.repos.User.FieldExists(consts.UserFieldUsername, username, &userID)
	if err != nil {
		return common.NewInternalError("修改用户名失败")
	}
	if exists {
		return common.NewConflictError("用户名已被占用")
	}

	if err := s.repos.User.UpdateUsernameByID(userID, username); err != nil {
		return common.NewInternalError("修改用户名失败")
	}
	return nil
}

// UpdatePassword 校验旧密码后更新密码，并注销当前会话。
func (s *AppService) UpdatePassword(userID uint, oldPassword string, newPassword string) error {
	if ok, msg := utils.ValidatePassword(newPassword); !ok {
		return common.NewValidationError(msg)
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return common.NewUnauthorizedError("旧密码错误")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return common.NewInternalError("修改密码失败")
	}

	if err := s.repos.User.UpdatePasswordByID(userID, string(hashed)); err != nil {
		return common.NewInternalError("修改密码失败")
	}

	// 改密后强制重新登录
	InvalidateSession(userID)
	return nil
}

// 头像只接受图片，与附件白名单配置互相独立。
var avatarAllowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

const avatarMaxSizeMB = 5

// UpdateUserAvatar 上传新头像，旧头像文件随后清理。
func (s *AppService) UpdateUserAvatar(userID uint, file *multipart.FileHeader) (string, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return "", err
	}

	if file.Size > int64(avatarMaxSizeMB)*1024*1024 {
		return "", common.NewValidationError(fmt.Sprintf("头像大小不能超过 %dMB", avatarMaxSizeMB))
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !avatarAllowedExtensions[ext] {
		return "", common.NewValidationError("头像仅支持图片格式")
	}

	storageDir := avatarStorageDir(userID)
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		log.Printf("MkdirAll error: %v\n", err)
		return "", common.NewInternalError("系统错误: 无法创建存储目录")
	}

	newFilename := uuid.New().String() + ext
	dst, err := utils.SecureJoin(storageDir, newFilename)
	if err != nil {
		log.Printf("SecureJoin dst error: %v\n", err)
		return "", common.NewInternalError("系统错误: 非法存储路径")
	}

	src, err := file.Open()
	if err != nil {
		return "", common.NewValidationError("无法读取上传文件")
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return "", common.NewInternalError("系统错误: 无法创建文件")
	}
	defer func() { _ = out.Close() }()

	if _, err = io.Copy(out, src); err != nil {
		return "", common.NewInternalError("头像保存失败")
	}

	oldAvatar := user.Avatar
	if err := s.repos.User.UpdateAvatar(user, newFilename); err != nil {
		_ = os.Remove(dst) // 回滚文件
		return "", common.NewInternalError("系统错误: 数据库更新失败")
	}

	if oldAvatar != "" {
		// 旧文件名来自数据库，同样走安全拼接
		if oldPath, secureErr := utils.SecureJoin(storageDir, oldAvatar); secureErr == nil {
			_ = os.Remove(oldPath)
		}
	}

	return AvatarURL(userID, newFilename), nil
}

// RemoveUserAvatar 移除头像，无头像时为幂等空操作。
func (s *AppService) RemoveUserAvatar(userID uint) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.Avatar == "" {
		return nil
	}

	oldPath, pathErr := utils.SecureJoin(avatarStorageDir(userID), user.Avatar)
	if err := s.repos.User.UpdateAvatar(user, ""); err != nil {
		return common.NewInternalError("系统错误: 移除头像失败")
	}

	if pathErr != nil {
		log.Printf("⚠️ 头像路径异常，跳过删除: %v", pathErr)
		return nil
	}
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ 删除头像文件失败: %v", err)
	}
	return nil
}

// avatarStorageDir 按用户划分头像目录，与附件共用上传根目录以便统一静态服务。
func avatarStorageDir(userID uint) string {
	uploadRoot := config.Get().Upload.Path
	if uploadRoot == "" {
		uploadRoot = "uploads/files"
	}
	return filepath.Join(uploadRoot, "avatars", fmt.Sprintf("%d", userID))
}

// AvatarURL 构造头像的对外访问地址，无头像时返回空串。
func AvatarURL(userID uint, avatar string) string {
	if avatar == "" {
		return ""
	}
	return fmt.Sprintf("%savatars/%d/%s", consts.AttachmentURLPrefix, userID, avatar)
}
