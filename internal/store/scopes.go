package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const (
	ScopePublic = "public"
	ScopeAll    = "all"
)

// scopedSet 同一资源按作用域分开缓存，集合在首次使用时创建
type scopedSet[T Entity] struct {
	name string
	opts Options

	mu     sync.Mutex
	scopes map[string]*Collection[T]
}

func newScopedSet[T Entity](name string, opts Options) *scopedSet[T] {
	return &scopedSet[T]{
		name:   name,
		opts:   opts,
		scopes: make(map[string]*Collection[T]),
	}
}

func (s *scopedSet[T]) ensure(scope string) (*Collection[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.scopes[scope]
	if !ok {
		c = NewCollection[T](s.name, scope, s.opts)
		s.scopes[scope] = c
	}
	return c, !ok
}

// get 获取或创建作用域对应的集合；首次创建时尝试从快照恢复
func (s *scopedSet[T]) get(ctx context.Context, scope string) *Collection[T] {
	c, created := s.ensure(scope)
	if created {
		if err := c.Restore(ctx); err != nil {
			s.opts.Logger.Warn("Failed to restore store snapshot",
				zap.String("collection", s.name),
				zap.String("scope", scope),
				zap.Error(err))
		}
	}
	return c
}

// peek 只读已有集合，不创建
func (s *scopedSet[T]) peek(scope string) (*Collection[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.scopes[scope]
	return c, ok
}

// restore 启动时恢复指定作用域的快照
func (s *scopedSet[T]) restore(ctx context.Context, scopes ...string) error {
	for _, scope := range scopes {
		c, _ := s.ensure(scope)
		if err := c.Restore(ctx); err != nil {
			return err
		}
	}
	return nil
}

// invalidate scope 为空时使所有作用域过期
func (s *scopedSet[T]) invalidate(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.scopes {
		if scope == "" || scope == name {
			c.Invalidate()
		}
	}
}

// invalidateExcept 变更方的集合已在本地更新，其余作用域标记过期
func (s *scopedSet[T]) invalidateExcept(except string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.scopes {
		if name != except {
			c.Invalidate()
		}
	}
}

func (s *scopedSet[T]) states() []CollectionState {
	s.mu.Lock()
	out := make([]CollectionState, 0, len(s.scopes))
	for _, c := range s.scopes {
		out = append(out, c.State())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out
}
