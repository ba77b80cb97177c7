// Package events publishes domain events to kafka and keeps the orders
// search projection in elasticsearch. Publishing is best-effort.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

const (
	TopicCart   = "cart_events"
	TopicOrders = "order_events"
)

const (
	CartItemAdded     = "cart_item_added"
	CartItemIncreased = "cart_item_increased"
	CartItemDecreased = "cart_item_decreased"
	CartItemRemoved   = "cart_item_removed"

	OrderCreated = "order_created"
	OrderUpdated = "order_updated"
	OrderDeleted = "order_deleted"
)

type Event struct {
	Type    string    `json:"type"`
	ID      uuid.UUID `json:"id"`
	UserID  uuid.UUID `json:"userId"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic string, ev Event) error
}

type Nop struct{}

func (Nop) PublishEvent(context.Context, string, Event) error { return nil }

// Fanout hands every event to each publisher and joins their failures.
type Fanout []Publisher

func (f Fanout) PublishEvent(ctx context.Context, topic string, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishEvent(ctx, topic, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishTimeout bounds one Emit call.
var PublishTimeout = 2 * time.Second

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, topic string, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	pctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()
	if err := p.PublishEvent(pctx, topic, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error",
			"topic", topic, "type", ev.Type, "id", ev.ID, "error", err)
	}
}
