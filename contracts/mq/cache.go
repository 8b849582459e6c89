package mq

import "time"

// RoutingKeyCacheInvalidated 缓存失效广播
const RoutingKeyCacheInvalidated = "cache.invalidated"

// CacheInvalidatedPayload Scope 为空表示集合的所有作用域
type CacheInvalidatedPayload struct {
	EventID    string    `json:"event_id"`
	Origin     string    `json:"origin"`
	Collection string    `json:"collection"`
	Scope      string    `json:"scope,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
