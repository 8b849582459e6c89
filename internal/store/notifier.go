package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Notifier 向其他实例广播缓存失效。scope 为空表示该集合的所有作用域。
type Notifier interface {
	NotifyInvalidated(ctx context.Context, collection, scope string) error
}

// Invalidator 由各类 store 实现，接收失效通知
type Invalidator interface {
	Invalidate(scope string)
}

// Registry 集合名 -> Invalidator，供消息消费者与刷新接口使用
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Invalidator
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Invalidator)}
}

func (r *Registry) Register(name string, inv Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = inv
}

// Invalidate 返回 false 表示集合名未注册
func (r *Registry) Invalidate(name, scope string) bool {
	r.mu.RLock()
	inv, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	inv.Invalidate(scope)
	return true
}

// InvalidateAll 使所有已注册集合过期
func (r *Registry) InvalidateAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.entries {
		inv.Invalidate("")
	}
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// notify 通知失败只记日志，本地变更已经生效
func notify(ctx context.Context, opts Options, n Notifier, collection, scope string) {
	if n == nil {
		return
	}
	if err := n.NotifyInvalidated(ctx, collection, scope); err != nil {
		opts.Logger.Warn("Failed to publish cache invalidation",
			zap.String("collection", collection),
			zap.String("scope", scope),
			zap.Error(err))
	}
}
