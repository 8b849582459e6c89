package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
	"milletsmon/internal/store"
)

// PublicHandler 公开站点接口，不需要登录
type PublicHandler struct {
	projects   *store.ProjectStore
	content    *store.ContentStores
	activities *store.ActivityStores
	logger     *zap.Logger
	now        func() time.Time
}

func NewPublicHandler(projects *store.ProjectStore, content *store.ContentStores, activities *store.ActivityStores, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{
		projects:   projects,
		content:    content,
		activities: activities,
		logger:     logger,
		now:        time.Now,
	}
}

// Projects GET /public/projects
func (h *PublicHandler) Projects(c *gin.Context) {
	items, err := h.projects.List(c.Request.Context(), backend.Identity{}, false)
	listResponse(c, h.logger, items, err)
}

// Events GET /public/events 只返回今天及以后的活动，按日期升序
func (h *PublicHandler) Events(c *gin.Context) {
	items, err := h.content.Events.ListPublic(c.Request.Context(), false)
	listResponse(c, h.logger, UpcomingEvents(items, h.now()), err)
}

// UpcomingEvents 过滤掉今天之前的活动并按日期排序；今天已开始的活动仍然保留
func UpcomingEvents(items []model.UpcomingEvent, now time.Time) []model.UpcomingEvent {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make([]model.UpcomingEvent, 0, len(items))
	for _, e := range items {
		if !e.EventDate.Before(today) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventDate.Before(out[j].EventDate)
	})
	return out
}

// Gallery GET /public/gallery
func (h *PublicHandler) Gallery(c *gin.Context) {
	items, err := h.content.Gallery.ListPublic(c.Request.Context(), false)
	listResponse(c, h.logger, items, err)
}

// Publications GET /public/publications
func (h *PublicHandler) Publications(c *gin.Context) {
	items, err := h.content.Publications.ListPublic(c.Request.Context(), false)
	listResponse(c, h.logger, items, err)
}

// KindStats 某类活动的公开统计
type KindStats struct {
	Count         int `json:"count"`
	Target        int `json:"target"`
	Achieved      int `json:"achieved"`
	Beneficiaries int `json:"beneficiaries"`
}

// Stats GET /public/stats
// 活动数据只读已缓存的部分，访客请求不会触发带 token 的后端调用
func (h *PublicHandler) Stats(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), backend.Identity{}, false)
	if err != nil && len(projects) == 0 {
		respondError(c, h.logger, err)
		return
	}

	kinds := make(map[model.Kind]KindStats, len(model.ActivityKinds))
	var total KindStats
	for kind, acts := range h.activities.Cached() {
		var ks KindStats
		for _, a := range acts {
			b := a.Base()
			ks.Count++
			ks.Target += b.Target
			ks.Achieved += b.Achieved
			ks.Beneficiaries += b.Beneficiaries.Total()
		}
		kinds[kind] = ks
		total.Count += ks.Count
		total.Target += ks.Target
		total.Achieved += ks.Achieved
		total.Beneficiaries += ks.Beneficiaries
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":   len(projects),
		"activities": kinds,
		"totals":     total,
	})
}
