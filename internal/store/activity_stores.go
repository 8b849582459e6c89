package store

import (
	"context"
	"fmt"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
)

// ActivityStores 每种活动一个缓存，按调用者作用域分开
type ActivityStores struct {
	Trainings          *ResourceStore[model.TrainingProgram]
	Awareness          *ResourceStore[model.AwarenessProgram]
	FLDs               *ResourceStore[model.FLD]
	Infrastructure     *ResourceStore[model.InfrastructureActivity]
	InputDistributions *ResourceStore[model.InputDistribution]
}

func NewActivityStores(client *backend.Client, opts Options, notifier Notifier) *ActivityStores {
	return &ActivityStores{
		Trainings:          NewResourceStore[model.TrainingProgram](client, string(model.KindTraining), false, opts, notifier),
		Awareness:          NewResourceStore[model.AwarenessProgram](client, string(model.KindAwareness), false, opts, notifier),
		FLDs:               NewResourceStore[model.FLD](client, string(model.KindFLD), false, opts, notifier),
		Infrastructure:     NewResourceStore[model.InfrastructureActivity](client, string(model.KindInfrastructure), false, opts, notifier),
		InputDistributions: NewResourceStore[model.InputDistribution](client, string(model.KindInputDistribution), false, opts, notifier),
	}
}

// Activities 按类型拉取并转换为统一接口，供报表与 dashboard 使用
func (s *ActivityStores) Activities(ctx context.Context, id backend.Identity, kind model.Kind, force bool) ([]model.Activity, error) {
	switch kind {
	case model.KindTraining:
		return fetchAs(ctx, s.Trainings, id, force)
	case model.KindAwareness:
		return fetchAs(ctx, s.Awareness, id, force)
	case model.KindFLD:
		return fetchAs(ctx, s.FLDs, id, force)
	case model.KindInfrastructure:
		return fetchAs(ctx, s.Infrastructure, id, force)
	case model.KindInputDistribution:
		return fetchAs(ctx, s.InputDistributions, id, force)
	default:
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
}

// Cached 管理员作用域已缓存的全部活动（不访问后端），公开统计使用
func (s *ActivityStores) Cached() map[model.Kind][]model.Activity {
	return map[model.Kind][]model.Activity{
		model.KindTraining:          toActivities(s.Trainings.Cached()),
		model.KindAwareness:         toActivities(s.Awareness.Cached()),
		model.KindFLD:               toActivities(s.FLDs.Cached()),
		model.KindInfrastructure:    toActivities(s.Infrastructure.Cached()),
		model.KindInputDistribution: toActivities(s.InputDistributions.Cached()),
	}
}

func toActivities[T model.Activity](items []T) []model.Activity {
	out := make([]model.Activity, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}

func fetchAs[T model.Activity](ctx context.Context, rs *ResourceStore[T], id backend.Identity, force bool) ([]model.Activity, error) {
	items, err := rs.List(ctx, id, force)
	return toActivities(items), err
}

// Register 将所有活动缓存注册到失效表
func (s *ActivityStores) Register(r *Registry) {
	r.Register(s.Trainings.Name(), s.Trainings)
	r.Register(s.Awareness.Name(), s.Awareness)
	r.Register(s.FLDs.Name(), s.FLDs)
	r.Register(s.Infrastructure.Name(), s.Infrastructure)
	r.Register(s.InputDistributions.Name(), s.InputDistributions)
}

func (s *ActivityStores) Restore(ctx context.Context) error {
	for _, fn := range []func(context.Context) error{
		s.Trainings.Restore,
		s.Awareness.Restore,
		s.FLDs.Restore,
		s.Infrastructure.Restore,
		s.InputDistributions.Restore,
	} {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *ActivityStores) States() []CollectionState {
	var out []CollectionState
	out = append(out, s.Trainings.States()...)
	out = append(out, s.Awareness.States()...)
	out = append(out, s.FLDs.States()...)
	out = append(out, s.Infrastructure.States()...)
	out = append(out, s.InputDistributions.States()...)
	return out
}

// ContentStores 公开站点内容：活动预告、图库、出版物
type ContentStores struct {
	Events       *ResourceStore[model.UpcomingEvent]
	Gallery      *ResourceStore[model.GalleryItem]
	Publications *ResourceStore[model.Publication]
}

func NewContentStores(client *backend.Client, opts Options, notifier Notifier) *ContentStores {
	return &ContentStores{
		Events:       NewResourceStore[model.UpcomingEvent](client, model.ResourceEvents, true, opts, notifier),
		Gallery:      NewResourceStore[model.GalleryItem](client, model.ResourceGallery, true, opts, notifier),
		Publications: NewResourceStore[model.Publication](client, model.ResourcePublications, true, opts, notifier),
	}
}

func (s *ContentStores) Register(r *Registry) {
	r.Register(s.Events.Name(), s.Events)
	r.Register(s.Gallery.Name(), s.Gallery)
	r.Register(s.Publications.Name(), s.Publications)
}

// Restore 恢复公开内容快照
func (s *ContentStores) Restore(ctx context.Context) error {
	for _, fn := range []func(context.Context) error{s.Events.Restore, s.Gallery.Restore, s.Publications.Restore} {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *ContentStores) States() []CollectionState {
	var out []CollectionState
	out = append(out, s.Events.States()...)
	out = append(out, s.Gallery.States()...)
	out = append(out, s.Publications.States()...)
	return out
}
