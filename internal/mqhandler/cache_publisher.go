package mqhandler

import (
	"context"
	"time"

	"github.com/google/uuid"

	mqcontracts "milletsmon/contracts/mq"
)

// EventPublisher pkg/mq.Publisher 满足
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// CachePublisher 实现 store.Notifier，把本实例的变更广播给其他实例
type CachePublisher struct {
	pub      EventPublisher
	instance string
	now      func() time.Time
}

func NewCachePublisher(pub EventPublisher, instance string) *CachePublisher {
	return &CachePublisher{pub: pub, instance: instance, now: time.Now}
}

func (p *CachePublisher) NotifyInvalidated(ctx context.Context, collection, scope string) error {
	return p.pub.Publish(ctx, mqcontracts.RoutingKeyCacheInvalidated, mqcontracts.CacheInvalidatedPayload{
		EventID:    uuid.NewString(),
		Origin:     p.instance,
		Collection: collection,
		Scope:      scope,
		OccurredAt: p.now().UTC(),
	})
}
