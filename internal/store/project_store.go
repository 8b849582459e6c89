package store

import (
	"context"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
)

const CollectionProjects = "projects"

// ProjectStore 按作用域缓存项目列表：public / all / user:{id}
type ProjectStore struct {
	client   *backend.Client
	opts     Options
	notifier Notifier

	scopes *scopedSet[model.Project]
}

func NewProjectStore(client *backend.Client, opts Options, notifier Notifier) *ProjectStore {
	opts = opts.withDefaults()
	return &ProjectStore{
		client:   client,
		opts:     opts,
		notifier: notifier,
		scopes:   newScopedSet[model.Project](CollectionProjects, opts),
	}
}

func (s *ProjectStore) collection(ctx context.Context, scope string) *Collection[model.Project] {
	return s.scopes.get(ctx, scope)
}

// List 返回调用者可见的项目
func (s *ProjectStore) List(ctx context.Context, id backend.Identity, force bool) ([]model.Project, error) {
	return s.collection(ctx, id.Scope()).Fetch(ctx, force, func(ctx context.Context) ([]model.Project, error) {
		return s.client.ListProjects(ctx, id)
	})
}

// Get 先查缓存，未命中时刷新一次
func (s *ProjectStore) Get(ctx context.Context, id backend.Identity, projectID string) (*model.Project, error) {
	c := s.collection(ctx, id.Scope())
	if p, ok := c.Find(projectID); ok {
		return &p, nil
	}
	if _, err := s.List(ctx, id, true); err != nil {
		return nil, err
	}
	if p, ok := c.Find(projectID); ok {
		return &p, nil
	}
	return nil, ErrNotFound
}

func (s *ProjectStore) Create(ctx context.Context, id backend.Identity, p model.Project) (*model.Project, error) {
	scope := id.Scope()
	created, err := s.collection(ctx, scope).Create(ctx, func(ctx context.Context) (*model.Project, error) {
		return s.client.CreateProject(ctx, id.Token, p)
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, scope)
	return created, nil
}

func (s *ProjectStore) Update(ctx context.Context, id backend.Identity, p model.Project) (*model.Project, error) {
	scope := id.Scope()
	updated, err := s.collection(ctx, scope).Update(ctx, p.ID, p, func(ctx context.Context) (*model.Project, error) {
		return s.client.UpdateProject(ctx, id.Token, p)
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, scope)
	return updated, nil
}

func (s *ProjectStore) Delete(ctx context.Context, id backend.Identity, projectID string) error {
	scope := id.Scope()
	err := s.collection(ctx, scope).Delete(ctx, projectID, func(ctx context.Context) error {
		return s.client.DeleteProject(ctx, id.Token, projectID)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, scope)
	return nil
}

// afterMutation 其他作用域的列表也可能包含该项目，全部标记过期
func (s *ProjectStore) afterMutation(ctx context.Context, except string) {
	s.scopes.invalidateExcept(except)
	notify(ctx, s.opts, s.notifier, CollectionProjects, "")
}

// Invalidate scope 为空时使所有作用域过期
func (s *ProjectStore) Invalidate(scope string) {
	s.scopes.invalidate(scope)
}

func (s *ProjectStore) States() []CollectionState {
	return s.scopes.states()
}
