package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"milletsmon/internal/store"
)

type CategoryHandler struct {
	categories *store.CategoryStore
}

func NewCategoryHandler(categories *store.CategoryStore) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List GET /admin/categories
// 后端不可用时返回内置分类，fallback 标记为 true
func (h *CategoryHandler) List(c *gin.Context) {
	items, fallback := h.categories.List(c.Request.Context(), forceRefresh(c))
	c.JSON(http.StatusOK, gin.H{
		"data":     items,
		"count":    len(items),
		"fallback": fallback,
	})
}
