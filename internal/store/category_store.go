package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
)

const CollectionCategories = "categories"

// CategoryStore 分类变化很少，使用长 TTL；后端不可用且无缓存时返回内置分类
type CategoryStore struct {
	client *backend.Client
	coll   *Collection[model.Category]
	logger *zap.Logger
}

func NewCategoryStore(client *backend.Client, opts Options) *CategoryStore {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	opts = opts.withDefaults()
	return &CategoryStore{
		client: client,
		coll:   NewCollection[model.Category](CollectionCategories, "public", opts),
		logger: opts.Logger,
	}
}

// List 第二个返回值表示是否为内置分类
func (s *CategoryStore) List(ctx context.Context, force bool) ([]model.Category, bool) {
	items, err := s.coll.Fetch(ctx, force, s.client.ListCategories)
	if err == nil {
		return items, false
	}
	if len(items) > 0 {
		s.logger.Warn("Serving cached categories after backend failure", zap.Error(err))
		return items, false
	}

	s.logger.Warn("Serving default categories", zap.Error(err))
	out := make([]model.Category, len(model.DefaultCategories))
	copy(out, model.DefaultCategories)
	return out, true
}

func (s *CategoryStore) Restore(ctx context.Context) error {
	return s.coll.Restore(ctx)
}

func (s *CategoryStore) Invalidate(string) {
	s.coll.Invalidate()
}

func (s *CategoryStore) State() CollectionState {
	return s.coll.State()
}
