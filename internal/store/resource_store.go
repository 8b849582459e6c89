package store

import (
	"context"
	"errors"

	"milletsmon/internal/backend"
)

var ErrNotFound = errors.New("store: record not found")

// ResourceStore 通用资源缓存：按调用者作用域分开的列表 + 可选的公开列表
type ResourceStore[T Entity] struct {
	resource  string
	hasPublic bool
	client    *backend.Client
	opts      Options
	notifier  Notifier

	scopes *scopedSet[T]
}

// NewResourceStore hasPublic 表示后端提供 /api/public/{resource}
func NewResourceStore[T Entity](client *backend.Client, resource string, hasPublic bool, opts Options, notifier Notifier) *ResourceStore[T] {
	opts = opts.withDefaults()
	return &ResourceStore[T]{
		resource:  resource,
		hasPublic: hasPublic,
		client:    client,
		opts:      opts,
		notifier:  notifier,
		scopes:    newScopedSet[T](resource, opts),
	}
}

func (s *ResourceStore[T]) Name() string { return s.resource }

// Restore 启动时恢复管理员与公开列表的快照；普通人员的作用域首次访问时恢复
func (s *ResourceStore[T]) Restore(ctx context.Context) error {
	scopes := []string{ScopeAll}
	if s.hasPublic {
		scopes = append(scopes, ScopePublic)
	}
	return s.scopes.restore(ctx, scopes...)
}

// List 返回调用者可见的记录，访客走公开接口
func (s *ResourceStore[T]) List(ctx context.Context, id backend.Identity, force bool) ([]T, error) {
	scope := id.Scope()
	if scope == ScopePublic {
		return s.ListPublic(ctx, force)
	}
	return s.scopes.get(ctx, scope).Fetch(ctx, force, func(ctx context.Context) ([]T, error) {
		return backend.List[T](ctx, s.client, s.resource, id.Token)
	})
}

// ListPublic 没有公开接口的资源返回 ErrNotFound
func (s *ResourceStore[T]) ListPublic(ctx context.Context, force bool) ([]T, error) {
	if !s.hasPublic {
		return nil, ErrNotFound
	}
	return s.scopes.get(ctx, ScopePublic).Fetch(ctx, force, func(ctx context.Context) ([]T, error) {
		return backend.ListPublic[T](ctx, s.client, s.resource)
	})
}

// Cached 管理员作用域的缓存，不访问后端
func (s *ResourceStore[T]) Cached() []T {
	c, ok := s.scopes.peek(ScopeAll)
	if !ok {
		return nil
	}
	return c.Items()
}

func (s *ResourceStore[T]) Get(ctx context.Context, id backend.Identity, recordID string) (*T, error) {
	c := s.scopes.get(ctx, id.Scope())
	if it, ok := c.Find(recordID); ok {
		return &it, nil
	}
	if _, err := s.List(ctx, id, true); err != nil {
		return nil, err
	}
	if it, ok := c.Find(recordID); ok {
		return &it, nil
	}
	return nil, ErrNotFound
}

func (s *ResourceStore[T]) Create(ctx context.Context, id backend.Identity, item T) (*T, error) {
	scope := id.Scope()
	created, err := s.scopes.get(ctx, scope).Create(ctx, func(ctx context.Context) (*T, error) {
		return backend.Create(ctx, s.client, s.resource, id.Token, item)
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, scope)
	return created, nil
}

// Update 路径中的 id 优先于请求体
func (s *ResourceStore[T]) Update(ctx context.Context, id backend.Identity, recordID string, item T) (*T, error) {
	if v, ok := any(&item).(interface{ SetID(string) }); ok {
		v.SetID(recordID)
	}

	scope := id.Scope()
	updated, err := s.scopes.get(ctx, scope).Update(ctx, recordID, item, func(ctx context.Context) (*T, error) {
		return backend.Update(ctx, s.client, s.resource, id.Token, recordID, item)
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, scope)
	return updated, nil
}

func (s *ResourceStore[T]) Delete(ctx context.Context, id backend.Identity, recordID string) error {
	scope := id.Scope()
	err := s.scopes.get(ctx, scope).Delete(ctx, recordID, func(ctx context.Context) error {
		return s.client.Delete(ctx, s.resource, id.Token, recordID)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, scope)
	return nil
}

// afterMutation 其他作用域（含公开列表）可能包含该记录，全部标记过期
func (s *ResourceStore[T]) afterMutation(ctx context.Context, except string) {
	s.scopes.invalidateExcept(except)
	notify(ctx, s.opts, s.notifier, s.resource, "")
}

// Invalidate scope 为空时使所有作用域过期
func (s *ResourceStore[T]) Invalidate(scope string) {
	s.scopes.invalidate(scope)
}

func (s *ResourceStore[T]) States() []CollectionState {
	return s.scopes.states()
}
