package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"milletsmon/internal/backend"
	"milletsmon/pkg/metrics"
)

// Entity 由所有后端记录实现
type Entity interface {
	EntityID() string
}

// Loader 从后端拉取整个集合
type Loader[T any] func(ctx context.Context) ([]T, error)

// snapshot 持久化格式：保留原始 fetched_at，重启后过期判断不变
type snapshot[T any] struct {
	Items     []T       `json:"items"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CollectionState 用于 dashboard / 调试输出
type CollectionState struct {
	Name      string    `json:"name"`
	Scope     string    `json:"scope"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"last_error,omitempty"`
}

// Options 集合公共配置。LoadTimeout 是单次后端拉取的上限，与调用方的取消无关。
type Options struct {
	TTL         time.Duration
	Persister   Persister
	PersistTTL  time.Duration
	LoadTimeout time.Duration
	Logger      *zap.Logger
}

// maxLoadAttempts 拉取期间本地发生变更时的最大重试次数
const maxLoadAttempts = 3

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.PersistTTL <= 0 {
		o.PersistTTL = 7 * 24 * time.Hour
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Collection 缓存的记录集合。
// 变更先完成后端往返，成功后才修改本地切片；失败时本地状态不变。
// gen 在每次本地变更或失效时递增，拉取结果只在 gen 未变时提交。
type Collection[T Entity] struct {
	name  string
	scope string
	opts  Options
	now   func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	items       []T
	fetchedAt   time.Time
	invalidated bool
	lastErr     error
	gen         uint64
}

func NewCollection[T Entity](name, scope string, opts Options) *Collection[T] {
	return &Collection[T]{
		name:  name,
		scope: scope,
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
}

func (c *Collection[T]) key() string {
	return "store:" + c.name + ":" + c.scope
}

func (c *Collection[T]) label() string {
	return c.name
}

// Items 返回当前缓存的副本
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

func (c *Collection[T]) copyLocked() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Find 按 id 查找缓存中的记录
func (c *Collection[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// IsStale 从未拉取、被标记失效或超过 TTL 都视为过期
func (c *Collection[T]) IsStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked()
}

func (c *Collection[T]) staleLocked() bool {
	return c.invalidated || c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.opts.TTL
}

// Invalidate 标记过期，保留已有数据用于展示
func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	c.invalidated = true
	c.gen++
	c.mu.Unlock()
}

// LastError 最近一次拉取的错误
func (c *Collection[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Collection[T]) State() CollectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := CollectionState{
		Name:      c.name,
		Scope:     c.scope,
		Count:     len(c.items),
		FetchedAt: c.fetchedAt,
		Stale:     c.staleLocked(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Fetch 新鲜时直接返回缓存；否则通过 load 拉取。
// 并发的拉取合并为一次请求，调用方取消只影响自己的等待。拉取失败时返回旧数据和错误。
func (c *Collection[T]) Fetch(ctx context.Context, force bool, load Loader[T]) ([]T, error) {
	if !force {
		c.mu.RLock()
		if !c.staleLocked() {
			items := c.copyLocked()
			c.mu.RUnlock()
			metrics.IncrementStoreCache(c.label(), "hit")
			return items, nil
		}
		c.mu.RUnlock()
	}

	metrics.IncrementStoreCache(c.label(), "miss")

	ch := c.group.DoChan("fetch", func() (interface{}, error) {
		return nil, c.load(context.WithoutCancel(ctx), load)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	items := c.Items()
	if err != nil {
		if len(items) > 0 {
			metrics.IncrementStoreCache(c.label(), "stale_fallback")
		}
		return items, fmt.Errorf("fetch %s: %w", c.name, err)
	}
	return items, nil
}

// load 拉取并提交结果。拉取期间发生本地变更或失效时，结果可能早于变更，重新拉取。
func (c *Collection[T]) load(ctx context.Context, load Loader[T]) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.LoadTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		items, err := load(ctx)
		if err != nil {
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			return err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.items = items
			c.fetchedAt = c.now()
			c.invalidated = false
			c.lastErr = nil
			c.mu.Unlock()

			c.persist(ctx)
			return nil
		}
		if attempt >= maxLoadAttempts {
			// 保留本地数据，下次读取时重新拉取
			c.invalidated = true
			c.mu.Unlock()
			c.opts.Logger.Warn("Discarded fetch result superseded by local changes",
				zap.String("collection", c.name),
				zap.String("scope", c.scope),
				zap.Int("attempts", attempt))
			return nil
		}
		c.mu.Unlock()
	}
}

// Create 往返成功后追加到本地；响应没有 id 时只标记过期
func (c *Collection[T]) Create(ctx context.Context, roundTrip func(ctx context.Context) (*T, error)) (*T, error) {
	created, err := roundTrip(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.gen++
	if (*created).EntityID() == "" {
		c.invalidated = true
	} else {
		c.items = append(c.items, *created)
	}
	c.mu.Unlock()

	c.persist(ctx)
	return created, nil
}

// Update 往返成功后按 id 替换，本地没有则追加。
// 响应为空时使用发送的记录；响应 id 与请求 id 不一致时不修改本地，只标记过期。
func (c *Collection[T]) Update(ctx context.Context, id string, sent T, roundTrip func(ctx context.Context) (*T, error)) (*T, error) {
	updated, err := roundTrip(ctx)
	if err != nil {
		return nil, err
	}
	if updated == nil || (*updated).EntityID() == "" {
		updated = &sent
	}

	rid := (*updated).EntityID()
	c.mu.Lock()
	c.gen++
	if rid == "" || rid != id {
		c.invalidated = true
	} else {
		replaced := false
		for i := range c.items {
			if c.items[i].EntityID() == rid {
				c.items[i] = *updated
				replaced = true
				break
			}
		}
		if !replaced {
			c.items = append(c.items, *updated)
		}
	}
	c.mu.Unlock()

	c.persist(ctx)
	return updated, nil
}

// Delete 往返成功后从本地移除；后端 404 视为已删除
func (c *Collection[T]) Delete(ctx context.Context, id string, roundTrip func(ctx context.Context) error) error {
	if err := roundTrip(ctx); err != nil && !backend.IsNotFound(err) {
		return err
	}

	c.mu.Lock()
	c.gen++
	for i := range c.items {
		if c.items[i].EntityID() == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.persist(ctx)
	return nil
}

// Restore 从持久化快照恢复（保留原 fetched_at）。没有快照时返回 nil。
func (c *Collection[T]) Restore(ctx context.Context) error {
	if c.opts.Persister == nil {
		return nil
	}

	raw, err := c.opts.Persister.Load(ctx, c.key())
	if errors.Is(err, ErrNotPersisted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", c.key(), err)
	}

	var snap snapshot[T]
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", c.key(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// 已经拉取过的新数据优先
	if !c.fetchedAt.IsZero() && c.fetchedAt.After(snap.FetchedAt) {
		return nil
	}
	c.items = snap.Items
	c.fetchedAt = snap.FetchedAt
	c.invalidated = false
	return nil
}

// persist 失败只记录日志：持久化是加速手段，不影响本次结果
func (c *Collection[T]) persist(ctx context.Context) {
	if c.opts.Persister == nil {
		return
	}

	c.mu.RLock()
	snap := snapshot[T]{Items: c.copyLocked(), FetchedAt: c.fetchedAt}
	c.mu.RUnlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		c.opts.Logger.Warn("Failed to encode store snapshot", zap.String("key", c.key()), zap.Error(err))
		return
	}
	if err := c.opts.Persister.Save(ctx, c.key(), raw, c.opts.PersistTTL); err != nil {
		c.opts.Logger.Warn("Failed to persist store snapshot", zap.String("key", c.key()), zap.Error(err))
	}
}
