package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotPersisted 表示键不存在
var ErrNotPersisted = errors.New("store: not persisted")

// Persister 集合快照与会话的持久化后端
type Persister interface {
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// RedisPersister 基于 Redis 的 Persister
type RedisPersister struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisPersister(rdb *redis.Client, prefix string) *RedisPersister {
	return &RedisPersister{rdb: rdb, prefix: prefix}
}

func (p *RedisPersister) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, p.prefix+key, data, ttl).Err()
}

func (p *RedisPersister) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotPersisted
	}
	return raw, err
}

func (p *RedisPersister) Delete(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, p.prefix+key).Err()
}
