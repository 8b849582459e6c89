package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/store"
	"milletsmon/pkg/logger"
)

// Refresher 立即执行一轮定时刷新（scheduler.Scheduler 实现）
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// AdminHandler 仅管理员可用的运维接口
type AdminHandler struct {
	client    *backend.Client
	registry  *store.Registry
	refresher Refresher
	states    func() []store.CollectionState
	logger    *zap.Logger
}

func NewAdminHandler(client *backend.Client, registry *store.Registry, refresher Refresher, states func() []store.CollectionState, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		client:    client,
		registry:  registry,
		refresher: refresher,
		states:    states,
		logger:    logger,
	}
}

// Users GET /admin/users
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.client.ListUsers(c.Request.Context(), token(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "count": len(users)})
}

// User GET /admin/users/:id
func (h *AdminHandler) User(c *gin.Context) {
	u, err := h.client.GetUser(c.Request.Context(), token(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

// RefreshCache POST /admin/cache/refresh
// 本实例全部集合标记失效，再执行一轮公开集合刷新；刷新失败不影响失效结果
func (h *AdminHandler) RefreshCache(c *gin.Context) {
	ctx := c.Request.Context()
	h.registry.InvalidateAll()

	resp := gin.H{"invalidated": h.registry.Names()}
	if h.refresher != nil {
		if err := h.refresher.RunOnce(ctx); err != nil {
			logger.WithTrace(ctx, h.logger).Warn("Cache refresh incomplete", zap.Error(err))
			resp["refresh_error"] = err.Error()
		}
	}

	logger.WithTrace(ctx, h.logger).Info("Cache refreshed by admin",
		zap.String("user_id", identity(c).UserID))
	c.JSON(http.StatusOK, resp)
}

// CacheState GET /admin/cache 各集合的缓存状态
func (h *AdminHandler) CacheState(c *gin.Context) {
	var states []store.CollectionState
	if h.states != nil {
		states = h.states()
	}
	c.JSON(http.StatusOK, gin.H{"data": states, "count": len(states)})
}
