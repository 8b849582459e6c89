package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"milletsmon/internal/model"
	"milletsmon/internal/store"
	"milletsmon/pkg/logger"
)

type DashboardHandler struct {
	projects   *store.ProjectStore
	activities *store.ActivityStores
	content    *store.ContentStores
	categories *store.CategoryStore
	logger     *zap.Logger
}

func NewDashboardHandler(projects *store.ProjectStore, activities *store.ActivityStores, content *store.ContentStores, categories *store.CategoryStore, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		projects:   projects,
		activities: activities,
		content:    content,
		categories: categories,
		logger:     logger,
	}
}

// Dashboard 管理后台首页的全部数据
type Dashboard struct {
	Projects     []model.Project                 `json:"projects"`
	Activities   map[model.Kind][]model.Activity `json:"activities"`
	Events       []model.UpcomingEvent           `json:"events"`
	Gallery      []model.GalleryItem             `json:"gallery"`
	Publications []model.Publication             `json:"publications"`
	Categories   []model.Category                `json:"categories"`
	Stale        []string                        `json:"stale,omitempty"`
}

// Get GET /admin/dashboard
// 所有集合并发拉取；某个集合失败但仍有旧数据时记入 stale，没有数据时整个请求失败
func (h *DashboardHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id := identity(c)
	force := forceRefresh(c)
	log := logger.WithTrace(ctx, h.logger)

	d := Dashboard{Activities: make(map[model.Kind][]model.Activity, len(model.ActivityKinds))}
	acts := make([][]model.Activity, len(model.ActivityKinds))
	stale := make([]string, 0)
	staleCh := make(chan string, len(model.ActivityKinds)+5)

	// tolerate 旧数据可用时吞掉错误
	tolerate := func(name string, n int, err error) error {
		if err == nil {
			return nil
		}
		if n == 0 {
			return err
		}
		log.Warn("Dashboard serving stale collection", zap.String("collection", name), zap.Error(err))
		staleCh <- name
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := h.projects.List(gctx, id, force)
		d.Projects = items
		return tolerate(store.CollectionProjects, len(items), err)
	})
	for i, kind := range model.ActivityKinds {
		g.Go(func() error {
			items, err := h.activities.Activities(gctx, id, kind, force)
			acts[i] = items
			return tolerate(string(kind), len(items), err)
		})
	}
	g.Go(func() error {
		items, err := h.content.Events.List(gctx, id, force)
		d.Events = items
		return tolerate(model.ResourceEvents, len(items), err)
	})
	g.Go(func() error {
		items, err := h.content.Gallery.List(gctx, id, force)
		d.Gallery = items
		return tolerate(model.ResourceGallery, len(items), err)
	})
	g.Go(func() error {
		items, err := h.content.Publications.List(gctx, id, force)
		d.Publications = items
		return tolerate(model.ResourcePublications, len(items), err)
	})
	g.Go(func() error {
		items, fallback := h.categories.List(gctx, force)
		d.Categories = items
		if fallback {
			staleCh <- store.CollectionCategories
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		respondError(c, h.logger, err)
		return
	}
	close(staleCh)
	for name := range staleCh {
		stale = append(stale, name)
	}
	sort.Strings(stale)

	for i, kind := range model.ActivityKinds {
		d.Activities[kind] = acts[i]
	}
	d.Stale = stale
	c.JSON(http.StatusOK, gin.H{"data": d})
}
