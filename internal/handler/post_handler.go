package handler

import (
	"net/http"
	"strconv"

	"brighttalk-server/internal/common/httpx"
	"brighttalk-server/internal/consts"
	"brighttalk-server/internal/model"

	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Title      string `json:"title" binding:"required"`
	Content    string `json:"content" binding:"required"`
	CategoryID *uint  `json:"category_id"`
}

// CreatePost 发布帖子。
func (h *Handler) CreatePost(c *gin.Context) {
	userID := c.GetUint("id")

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	post, err := h.service.CreatePost(userID, req.Title, req.Content, req.CategoryID)
	if err != nil {
		httpx.WriteServiceError(c, err, "发布失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "发布成功", "post": postResponse(post)})
}

// UpdatePost 修改帖子。
func (h *Handler) UpdatePost(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	post, err := h.service.UpdatePost(userID, postID, req.Title, req.Content, req.CategoryID)
	if err != nil {
		httpx.WriteServiceError(c, err, "保存失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "保存成功", "post": postResponse(post)})
}

// DeletePost 删除帖子及其附件。
func (h *Handler) DeletePost(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePost(userID, postID); err != nil {
		httpx.WriteServiceError(c, err, "删除失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// GetPost 查询帖子详情。
func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	post, err := h.service.GetPost(postID)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": postResponse(post)})
}

// GetPostHTML 返回帖子正文渲染后的 HTML 片段。
func (h *Handler) GetPostHTML(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	html, err := h.service.RenderPostHTML(postID)
	if err != nil {
		httpx.WriteServiceError(c, err, "渲染帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"html": html})
}

// ListPosts 浏览帖子，支持分类过滤与关键字搜索。
func (h *Handler) ListPosts(c *gin.Context) {
	var categoryID *uint
	if raw := c.Query("category_id"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的分类 ID"})
			return
		}
		id := uint(value)
		categoryID = &id
	}

	page, pageSize := parsePageQuery(c)
	result, err := h.service.ListPosts(categoryID, c.Query("keyword"), page, pageSize)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": postListResponse(result.Posts), "total": result.Total})
}

// ListMyPosts 查询当前用户的帖子。
func (h *Handler) ListMyPosts(c *gin.Context) {
	userID := c.GetUint("id")

	page, pageSize := parsePageQuery(c)
	result, err := h.service.ListUserPosts(userID, page, pageSize)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": postListResponse(result.Posts), "total": result.Total})
}

// UploadAttachment 上传帖子附件。
func (h *Handler) UploadAttachment(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请选择要上传的文件"})
		return
	}

	attachment, err := h.service.UploadAttachment(userID, postID, file)
	if err != nil {
		httpx.WriteServiceError(c, err, "上传失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "上传成功", "attachment": attachmentResponse(attachment)})
}

// DeleteAttachment 删除帖子附件。
func (h *Handler) DeleteAttachment(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := parseUintParam(c, "attachment_id")
	if !ok {
		return
	}

	if err := h.service.DeleteAttachment(userID, postID, attachmentID); err != nil {
		httpx.WriteServiceError(c, err, "删除附件失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

func parsePageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(consts.DefaultPageSize)))
	return page, pageSize
}

func postResponse(post *model.Post) gin.H {
	attachments := make([]gin.H, 0, len(post.Attachments))
	for i := range post.Attachments {
		attachments = append(attachments, attachmentResponse(&post.Attachments[i]))
	}
	return gin.H{
		"id":          post.ID,
		"title":       post.Title,
		"content":     post.Content,
		"user_id":     post.UserID,
		"category_id": post.CategoryID,
		"created_at":  post.CreatedAt,
		"updated_at":  post.UpdatedAt,
		"attachments": attachments,
	}
}

func postListResponse(posts []model.Post) []gin.H {
	items := make([]gin.H, 0, len(posts))
	for i := range posts {
		items = append(items, postResponse(&posts[i]))
	}
	return items
}

func attachmentResponse(att *model.Attachment) gin.H {
	return gin.H{
		"id":           att.ID,
		"filename":     att.Filename,
		"content_type": att.ContentType,
		"byte_size":    att.ByteSize,
		"url":          consts.AttachmentURLPrefix + att.StorageKey,
		"created_at":   att.CreatedAt,
	}
}
