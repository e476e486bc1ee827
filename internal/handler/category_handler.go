package handler

import (
	"net/http"

	"brighttalk-server/internal/common/httpx"

	"github.com/gin-gonic/gin"
)

// ListCategories 列出全部分类。
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories()
	if err != nil {
		httpx.WriteServiceError(c, err, "查询分类失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory 新建分类（管理员）。
func (h *Handler) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}

	category, err := h.service.CreateCategory(req.Name)
	if err != nil {
		httpx.WriteServiceError(c, err, "创建分类失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "创建成功", "category": category})
}

// DeleteCategory 删除分类（管理员）。
func (h *Handler) DeleteCategory(c *gin.Context) {
	categoryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(categoryID); err != nil {
		httpx.WriteServiceError(c, err, "删除分类失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
