package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "milletsmon/contracts/mq"
	"milletsmon/internal/store"
	"milletsmon/pkg/metrics"
)

// Deduper util.Deduper 满足
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
}

type CacheInvalidatedHandler struct {
	registry *store.Registry
	deduper  Deduper
	instance string
	logger   *zap.Logger
}

func NewCacheInvalidatedHandler(registry *store.Registry, deduper Deduper, instance string, logger *zap.Logger) *CacheInvalidatedHandler {
	return &CacheInvalidatedHandler{
		registry: registry,
		deduper:  deduper,
		instance: instance,
		logger:   logger,
	}
}

// Handle 忽略自己发出的事件；每个实例各自去重（广播事件每个实例都要处理一次）
func (h *CacheInvalidatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.CacheInvalidatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal CacheInvalidatedPayload", zap.Error(err))
		return err
	}

	if p.Origin == h.instance {
		metrics.IncrementCacheInvalidation(p.Collection, "own")
		return nil
	}

	if h.deduper != nil && p.EventID != "" &&
		!h.deduper.AcquireOnce(ctx, "cache_invalidated:"+h.instance, p.EventID) {
		metrics.IncrementCacheInvalidation(p.Collection, "duplicate")
		return nil
	}

	if !h.registry.Invalidate(p.Collection, p.Scope) {
		metrics.IncrementCacheInvalidation(p.Collection, "unknown")
		h.logger.Warn("Invalidation for unknown collection",
			zap.String("collection", p.Collection),
			zap.String("origin", p.Origin),
		)
		return nil
	}

	metrics.IncrementCacheInvalidation(p.Collection, "applied")
	h.logger.Info("Handling cache.invalidated event",
		zap.String("collection", p.Collection),
		zap.String("scope", p.Scope),
		zap.String("origin", p.Origin),
	)
	return nil
}
