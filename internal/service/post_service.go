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
	"unicode/utf8"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/config"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"
	"brighttalk-server/internal/render"
	"brighttalk-server/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostPage 是帖子列表的分页返回。
type PostPage struct {
	Posts []model.Post `json:"posts"`
	Total int64        `json:"total"`
}

// CreatePost 发布新帖子。
func (s *AppService) CreatePost(userID uint, title string, content string, categoryID *uint) (*model.Post, error) {
	if err := validatePostFields(title, content); err != nil {
		return nil, err
	}

	if categoryID != nil {
		if _, err := s.repos.Category.FindByID(*categoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, common.NewValidationError("分类不存在")
			}
			return nil, common.NewInternalError("发布失败，请稍后重试")
		}
	}

	post := &model.Post{
		Title:      strings.TrimSpace(title),
		Content:    content,
		UserID:     userID,
		CategoryID: categoryID,
	}
	if err := s.repos.Post.Create(post); err != nil {
		return nil, common.NewInternalError("发布失败，请稍后重试")
	}
	return post, nil
}

// UpdatePost 修改自己的帖子。
func (s *AppService) UpdatePost(userID uint, postID uint, title string, content string, categoryID *uint) (*model.Post, error) {
	if err := validatePostFields(title, content); err != nil {
		return nil, err
	}

	post, err := s.getOwnedPost(userID, postID)
	if err != nil {
		return nil, err
	}

	post.Title = strings.TrimSpace(title)
	post.Content = content
	post.CategoryID = categoryID
	if err := s.repos.Post.Save(post); err != nil {
		return nil, common.NewInternalError("保存失败，请稍后重试")
	}
	return post, nil
}

// DeletePost 删除自己的帖子，随后清理附件文件。
func (s *AppService) DeletePost(userID uint, postID uint) error {
	attachments, err := s.repos.Post.ListAttachmentsByPostID(postID)
	if err != nil {
		return common.NewInternalError("删除失败，请稍后重试")
	}

	if err := s.repos.Post.DeleteByID(userID, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("帖子不存在")
		}
		return common.NewInternalError("删除失败，请稍后重试")
	}

	// 数据库删除成功后再清理磁盘文件；文件残留可通过后续巡检清理
	for _, attachment := range attachments {
		removeAttachmentFile(attachment.StorageKey)
	}
	return nil
}

// GetPost 查询帖子（含附件）。
func (s *AppService) GetPost(postID uint) (*model.Post, error) {
	post, err := s.repos.Post.FindByID(postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewNotFoundError("帖子不存在")
		}
		return nil, common.NewInternalError("查询帖子失败")
	}
	return post, nil
}

// ListPosts 按分类/关键字浏览帖子。
func (s *AppService) ListPosts(categoryID *uint, keyword string, page int, pageSize int) (*PostPage, error) {
	offset, limit := normalizePage(page, pageSize)
	posts, total, err := s.repos.Post.ListPosts(categoryID, keyword, offset, limit)
	if err != nil {
		return nil, common.NewInternalError("查询帖子失败")
	}
	return &PostPage{Posts: posts, Total: total}, nil
}

// ListUserPosts 查询某用户的帖子。
func (s *AppService) ListUserPosts(userID uint, page int, pageSize int) (*PostPage, error) {
	offset, limit := normalizePage(page, pageSize)
	posts, total, err := s.repos.Post.ListByUserID(userID, offset, limit)
	if err != nil {
		return nil, common.NewInternalError("查询帖子失败")
	}
	return &PostPage{Posts: posts, Total: total}, nil
}

// RenderPostHTML 渲染帖子正文，attachment: 引用解析为附件 URL。
func (s *AppService) RenderPostHTML(postID uint) (string, error) {
	post, err := s.GetPost(postID)
	if err != nil {
		return "", err
	}
	return render.HTML(post.Content, attachmentsForRender(post.Attachments)), nil
}

// attachmentsForRender 将附件记录转为渲染器输入，URL 按存储键构造保证持久可访问。
func attachmentsForRender(attachments []model.Attachment) []render.Attachment {
	items := make([]render.Attachment, 0, len(attachments))
	for _, att := range attachments {
		items = append(items, render.Attachment{
			Filename: att.Filename,
			URL:      consts.AttachmentURLPrefix + att.StorageKey,
		})
	}
	return items
}

// UploadAttachment 处理帖子附件上传：校验、落盘、入库。
func (s *AppService) UploadAttachment(userID uint, postID uint, file *multipart.FileHeader) (*model.Attachment, error) {
	if _, err := s.getOwnedPost(userID, postID); err != nil {
		return nil, err
	}

	ext, err := s.validateAttachmentFile(file)
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	uploadRoot := cfg.Upload.Path
	if uploadRoot == "" {
		uploadRoot = "uploads/files"
	}
	if err := os.MkdirAll(uploadRoot, 0755); err != nil {
		log.Printf("MkdirAll error: %v\n", err)
		return nil, common.NewInternalError("系统错误: 无法创建存储目录")
	}

	// 存储键用 uuid 保证唯一，原始文件名只保留在数据库中
	storageKey := uuid.New().String() + ext
	dst, err := utils.SecureJoin(uploadRoot, storageKey)
	if err != nil {
		log.Printf("SecureJoin dst error: %v\n", err)
		return nil, common.NewInternalError("系统错误: 非法存储路径")
	}

	src, err := file.Open()
	if err != nil {
		return nil, common.NewValidationError("无法读取上传文件")
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return nil, common.NewInternalError("系统错误: 无法创建文件")
	}
	defer func() { _ = out.Close() }()

	if _, err = io.Copy(out, src); err != nil {
		return nil, common.NewInternalError("文件保存失败")
	}

	attachment := &model.Attachment{
		PostID:      postID,
		Filename:    filepath.Base(file.Filename),
		StorageKey:  storageKey,
		ContentType: file.Header.Get("Content-Type"),
		ByteSize:    file.Size,
	}
	if err := s.repos.Post.CreateAttachment(attachment); err != nil {
		_ = os.Remove(dst) // 回滚文件
		log.Printf("Create attachment DB error: %v\n", err)
		return nil, common.NewInternalError("系统错误: 数据库记录失败")
	}

	return attachment, nil
}

// DeleteAttachment 删除自己帖子下的附件。
func (s *AppService) DeleteAttachment(userID uint, postID uint, attachmentID uint) error {
	if _, err := s.getOwnedPost(userID, postID); err != nil {
		return err
	}

	attachment, err := s.repos.Post.FindAttachmentByID(attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("附件不存在")
		}
		return common.NewInternalError("删除附件失败")
	}

	if err := s.repos.Post.DeleteAttachmentByID(postID, attachmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.NewNotFoundError("附件不存在")
		}
		return common.NewInternalError("删除附件失败")
	}

	removeAttachmentFile(attachment.StorageKey)
	return nil
}

// validateAttachmentFile 校验附件大小与扩展名白名单，返回小写扩展名。
func (s *AppService) validateAttachmentFile(file *multipart.FileHeader) (string, error) {
	maxSizeMB := s.GetInt(consts.ConfigMaxUploadSize)
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	if file.Size > int64(maxSizeMB)*1024*1024 {
		return "", common.NewValidationError(fmt.Sprintf("文件大小不能超过 %dMB", maxSizeMB))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		return "", common.NewValidationError("无法识别文件类型")
	}

	allowExtsStr := s.GetString(consts.ConfigAllowFileExtensions)
	for _, allowExt := range strings.Split(allowExtsStr, ",") {
		if strings.TrimSpace(strings.ToLower(allowExt)) == ext {
			return ext, nil
		}
	}
	return "", common.NewValidationError(fmt.Sprintf("不支持的文件类型: %s", ext))
}

func (s *AppService) getOwnedPost(userID uint, postID uint) (*model.Post, error) {
	post, err := s.GetPost(postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, common.NewForbiddenError("无权操作该帖子")
	}
	return post, nil
}

func removeAttachmentFile(storageKey string) {
	cfg := config.Get()
	uploadRoot := cfg.Upload.Path
	if uploadRoot == "" {
		uploadRoot = "uploads/files"
	}
	target, err := utils.SecureJoin(uploadRoot, storageKey)
	if err != nil {
		log.Printf("⚠️ 附件路径异常，跳过删除: %v", err)
		return
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ 删除附件文件失败: %v", err)
	}
}

func validatePostFields(title string, content string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return common.NewValidationError("标题不能为空")
	}
	if utf8.RuneCountInString(title) > consts.PostTitleMaxRunes {
		return common.NewValidationError("标题过长")
	}
	if strings.TrimSpace(content) == "" {
		return common.NewValidationError("正文不能为空")
	}
	if utf8.RuneCountInString(content) > consts.PostContentMaxRunes {
		return common.NewValidationError("正文过长")
	}
	return nil
}

func normalizePage(page int, pageSize int) (offset int, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = consts.DefaultPageSize
	}
	if pageSize > consts.MaxPageSize {
		pageSize = consts.MaxPageSize
	}
	return (page - 1) * pageSize, pageSize
}
