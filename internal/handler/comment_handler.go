package handler

import (
	"net/http"

	"brighttalk-server/internal/common/httpx"

	"github.com/gin-gonic/gin"
)

// CreateComment 在帖子下发表评论。
func (h *Handler) CreateComment(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	comment, err := h.service.CreateComment(userID, postID, req.Content)
	if err != nil {
		httpx.WriteServiceError(c, err, "评论失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "评论成功", "comment": comment})
}

// ListComments 查询帖子评论。
func (h *Handler) ListComments(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	page, pageSize := parsePageQuery(c)
	result, err := h.service.ListComments(postID, page, pageSize)
	if err != nil {
		httpx.WriteServiceError(c, err, "查询评论失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": result.Comments, "total": result.Total})
}

// DeleteComment 删除自己的评论。
func (h *Handler) DeleteComment(c *gin.Context) {
	userID := c.GetUint("id")

	commentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteComment(userID, commentID); err != nil {
		httpx.WriteServiceError(c, err, "删除评论失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// LikePost 点赞帖子。
func (h *Handler) LikePost(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	count, err := h.service.LikePost(userID, postID)
	if err != nil {
		httpx.WriteServiceError(c, err, "点赞失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": count})
}

// UnlikePost 取消点赞。
func (h *Handler) UnlikePost(c *gin.Context) {
	userID := c.GetUint("id")

	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	count, err := h.service.UnlikePost(userID, postID)
	if err != nil {
		httpx.WriteServiceError(c, err, "取消点赞失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": count})
}
