package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"brighttalk-server/internal/common"
	"brighttalk-server/internal/config"
	"brighttalk-server/internal/model"
)

func TestCreatePost(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "author", "Passw0rd123")

	post, err := app.CreatePost(user.ID, "  第一篇帖子  ", "正文内容", nil)
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	if post.Title != "第一篇帖子" {
		t.Errorf("Title = %q, 期望去除首尾空白", post.Title)
	}
	if post.UserID != user.ID {
		t.Errorf("UserID = %d", post.UserID)
	}
}

func TestCreatePost_Validation(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "validator", "Passw0rd123")

	cases := []struct {
		name    string
		title   string
		content string
	}{
		{"empty_title", "   ", "内容"},
		{"title_too_long", strings.Repeat("标", 121), "内容"},
		{"empty_content", "标题", ""},
		{"content_too_long", "标题", strings.Repeat("a", 65536)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := app.CreatePost(user.ID, tc.title, tc.content, nil); !common.IsErrorCode(err, common.ErrorCodeValidation) {
				t.Errorf("期望校验错误，实际: %v", err)
			}
		})
	}

	// 不存在的分类
	missing := uint(999)
	if _, err := app.CreatePost(user.ID, "标题", "内容", &missing); !common.IsErrorCode(err, common.ErrorCodeValidation) {
		t.Errorf("不存在的分类期望校验错误，实际: %v", err)
	}
}

func TestUpdatePost_OwnershipCheck(t *testing.T) {
	app, gdb := setupTestApp(t)
	owner := createTestUser(t, gdb, "postowner", "Passw0rd123")
	intruder := createTestUser(t, gdb, "intruder", "Passw0rd123")

	post, err := app.CreatePost(owner.ID, "原标题", "原内容", nil)
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}

	if _, err := app.UpdatePost(intruder.ID, post.ID, "改标题", "改内容", nil); !common.IsErrorCode(err, common.ErrorCodeForbidden) {
		t.Fatalf("非作者修改期望 forbidden，实际: %v", err)
	}

	updated, err := app.UpdatePost(owner.ID, post.ID, "改标题", "改内容", nil)
	if err != nil {
		t.Fatalf("作者修改失败: %v", err)
	}
	if updated.Title != "改标题" || updated.Content != "改内容" {
		t.Errorf("更新结果不符: %q / %q", updated.Title, updated.Content)
	}
}

func TestDeletePost(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "deleter", "Passw0rd123")

	post, err := app.CreatePost(user.ID, "待删除", "内容", nil)
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}

	if err := app.DeletePost(user.ID, post.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := app.GetPost(post.ID); !common.IsErrorCode(err, common.ErrorCodeNotFound) {
		t.Errorf("删除后查询期望 not_found，实际: %v", err)
	}
	// 重复删除视为不存在
	if err := app.DeletePost(user.ID, post.ID); !common.IsErrorCode(err, common.ErrorCodeNotFound) {
		t.Errorf("重复删除期望 not_found，实际: %v", err)
	}
}

func TestListPosts_Filters(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "lister", "Passw0rd123")

	category, err := app.CreateCategory("技术")
	if err != nil {
		t.Fatalf("创建分类失败: %v", err)
	}

	if _, err := app.CreatePost(user.ID, "Go 并发模型", "goroutine 与 channel", &category.ID); err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	if _, err := app.CreatePost(user.ID, "随笔", "生活记录", nil); err != nil {
		t.Fatalf("发布失败: %v", err)
	}

	page, err := app.ListPosts(nil, "", 1, 20)
	if err != nil {
		t.Fatalf("列表查询失败: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, 期望 2", page.Total)
	}

	page, err = app.ListPosts(&category.ID, "", 1, 20)
	if err != nil {
		t.Fatalf("分类过滤失败: %v", err)
	}
	if page.Total != 1 || page.Posts[0].Title != "Go 并发模型" {
		t.Errorf("分类过滤结果不符: total=%d", page.Total)
	}

	page, err = app.ListPosts(nil, "并发", 1, 20)
	if err != nil {
		t.Fatalf("关键字过滤失败: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("关键字过滤 Total = %d, 期望 1", page.Total)
	}
}

func TestListPosts_PageNormalization(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "pager", "Passw0rd123")
	if _, err := app.CreatePost(user.ID, "唯一一篇", "内容", nil); err != nil {
		t.Fatalf("发布失败: %v", err)
	}

	// 非法分页参数回退默认值而不是报错
	page, err := app.ListPosts(nil, "", -1, 100000)
	if err != nil {
		t.Fatalf("列表查询失败: %v", err)
	}
	if page.Total != 1 || len(page.Posts) != 1 {
		t.Errorf("归一化分页结果不符: total=%d len=%d", page.Total, len(page.Posts))
	}
}

func TestRenderPostHTML_ResolvesAttachment(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "renderer", "Passw0rd123")

	post, err := app.CreatePost(user.ID, "带附件", "前文 ![示意图](attachment:diagram.png) 后文", nil)
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	attachment := &model.Attachment{
		PostID:      post.ID,
		Filename:    "diagram.png",
		StorageKey:  "abc123.png",
		ContentType: "image/png",
		ByteSize:    1024,
	}
	if err := app.repos.Post.CreateAttachment(attachment); err != nil {
		t.Fatalf("写入附件失败: %v", err)
	}

	html, err := app.RenderPostHTML(post.ID)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if !strings.Contains(html, `src="/files/abc123.png"`) {
		t.Errorf("附件引用未解析为存储地址: %s", html)
	}
	if !strings.Contains(html, `alt="示意图"`) {
		t.Errorf("alt 文本丢失: %s", html)
	}
}

func TestRenderPostHTML_UnknownAttachmentFailOpen(t *testing.T) {
	app, gdb := setupTestApp(t)
	user := createTestUser(t, gdb, "failopen", "Passw0rd123")

	post, err := app.CreatePost(user.ID, "悬空引用", "![图](attachment:missing.png)", nil)
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}

	html, err := app.RenderPostHTML(post.ID)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	// 未匹配的引用保留原文而不是渲染成坏链
	if !strings.Contains(html, "attachment:missing.png") {
		t.Errorf("悬空引用应保留原文: %s", html)
	}
	if strings.Contains(html, `src=`) {
		t.Errorf("悬空引用不应产出 img 标签: %s", html)
	}
}

// 测试内容：验证附件上传落盘并入库，删除附件后文件被清理。
func TestUploadAndDeleteAttachment(t *testing.T) {
	app, gdb := setupTestApp(t)
	config.SetForTesting(config.Config{
		JWT:    config.JWTConfig{Secret: "test_secret", ExpirationHours: 1},
		Upload: config.UploadConfig{Path: t.TempDir()},
	})

	user := createTestUser(t, gdb, "attacher", "Passw0rd123")
	post := createTestPost(t, app, user.ID)

	attachment, err := app.UploadAttachment(user.ID, post.ID, mustFileHeader(t, "图表.png", []byte("png-bytes")))
	if err != nil {
		t.Fatalf("上传附件失败: %v", err)
	}
	if attachment.Filename != "图表.png" {
		t.Errorf("原始文件名应保留，实际为 %q", attachment.Filename)
	}
	if !strings.HasSuffix(attachment.StorageKey, ".png") {
		t.Errorf("存储键扩展名错误: %q", attachment.StorageKey)
	}
	stored := filepath.Join(config.Get().Upload.Path, attachment.StorageKey)
	if _, err := os.Stat(stored); err != nil {
		t.Errorf("附件文件不存在: %v", err)
	}

	if err := app.DeleteAttachment(user.ID, post.ID, attachment.ID); err != nil {
		t.Fatalf("删除附件失败: %v", err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Errorf("删除附件后文件应被清理")
	}
	if err := app.DeleteAttachment(user.ID, post.ID, attachment.ID); !common.IsErrorCode(err, common.ErrorCodeNotFound) {
		t.Errorf("重复删除期望 not_found，实际为 %v", err)
	}
}

// 测试内容：验证附件上传的归属与扩展名校验。
func TestUploadAttachment_Validation(t *testing.T) {
	app, gdb := setupTestApp(t)
	config.SetForTesting(config.Config{
		JWT:    config.JWTConfig{Secret: "test_secret", ExpirationHours: 1},
		Upload: config.UploadConfig{Path: t.TempDir()},
	})

	owner := createTestUser(t, gdb, "fileowner", "Passw0rd123")
	other := createTestUser(t, gdb, "filestranger", "Passw0rd123")
	post := createTestPost(t, app, owner.ID)

	if _, err := app.UploadAttachment(other.ID, post.ID, mustFileHeader(t, "a.png", []byte("x"))); !common.IsErrorCode(err, common.ErrorCodeForbidden) {
		t.Errorf("他人帖子上传期望 forbidden，实际为 %v", err)
	}
	if _, err := app.UploadAttachment(owner.ID, post.ID, mustFileHeader(t, "tool.exe", []byte("x"))); !common.IsErrorCode(err, common.ErrorCodeValidation) {
		t.Errorf("白名单外扩展名期望校验错误，实际为 %v", err)
	}
	if _, err := app.UploadAttachment(owner.ID, post.ID, mustFileHeader(t, "noext", []byte("x"))); !common.IsErrorCode(err, common.ErrorCodeValidation) {
		t.Errorf("无扩展名期望校验错误，实际为 %v", err)
	}
	if _, err := app.UploadAttachment(owner.ID, post.ID+99, mustFileHeader(t, "a.png", []byte("x"))); !common.IsErrorCode(err, common.ErrorCodeNotFound) {
		t.Errorf("不存在的帖子期望 not_found，实际为 %v", err)
	}
}
