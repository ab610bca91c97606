package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

// EventBus broadcasts run status transitions over redis pub/sub so
// dashboards and other services can follow runs without polling.
type EventBus struct {
	client  *redis.Client
	channel string
}

func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{
		client:  client,
		channel: "opsdesk:events:run_status",
	}
}

var _ ports.EventBus = (*EventBus)(nil)

func (b *EventBus) PublishRunStatus(ctx context.Context, event domain.RunStatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// SubscribeRunStatus opens a continuous stream of status events. The
// returned channel closes when ctx is cancelled.
func (b *EventBus) SubscribeRunStatus(ctx context.Context) (<-chan domain.RunStatusEvent, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	msgChan := make(chan domain.RunStatusEvent)

	go func() {
		defer close(msgChan)
		defer pubsub.Close()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			var event domain.RunStatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case msgChan <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}
