package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 Redis SETNX 的事件去重，key 形如 {prefix}dedup:{scope}:{event_id}
type Deduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Deduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Deduper{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (d *Deduper) key(scope, eventID string) string {
	return d.prefix + "dedup:" + scope + ":" + eventID
}

// AcquireOnce 第一次见到 scope 下的 eventID 时返回 true
// Redis 不可用时放行：重复失效一个集合只会多一次后端请求
func (d *Deduper) AcquireOnce(ctx context.Context, scope, eventID string) bool {
	ok, err := d.rdb.SetNX(ctx, d.key(scope, eventID), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Debug("Skipped duplicated event",
			zap.String("scope", scope),
			zap.String("event_id", eventID),
		)
	}
	return ok
}
