package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/store"
	"milletsmon/internal/validation"
	"milletsmon/pkg/logger"
)

// ResourceHandler 活动与公开内容共用的 CRUD 处理器
type ResourceHandler[T store.Entity] struct {
	store     *store.ResourceStore[T]
	validator *validation.Validator
	logger    *zap.Logger
}

func NewResourceHandler[T store.Entity](s *store.ResourceStore[T], v *validation.Validator, logger *zap.Logger) *ResourceHandler[T] {
	return &ResourceHandler[T]{store: s, validator: v, logger: logger}
}

func (h *ResourceHandler[T]) List(c *gin.Context) {
	items, err := h.store.List(c.Request.Context(), identity(c), forceRefresh(c))
	listResponse(c, h.logger, items, err)
}

func (h *ResourceHandler[T]) Get(c *gin.Context) {
	item, err := h.store.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (h *ResourceHandler[T]) Create(c *gin.Context) {
	var item T
	if !bindAndValidate(c, h.validator, &item, false) {
		return
	}

	created, err := h.store.Create(c.Request.Context(), identity(c), item)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("Record created",
		zap.String("resource", h.store.Name()),
		zap.String("id", (*created).EntityID()))
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (h *ResourceHandler[T]) Update(c *gin.Context) {
	var item T
	if !bindAndValidate(c, h.validator, &item, true) {
		return
	}

	updated, err := h.store.Update(c.Request.Context(), identity(c), c.Param("id"), item)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (h *ResourceHandler[T]) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), identity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("Record deleted",
		zap.String("resource", h.store.Name()),
		zap.String("id", id))
	c.Status(http.StatusNoContent)
}
