package memory

import (
	"context"
	"encoding/json"
	"sync"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type queuedJob struct {
	Job     string          `json:"job"`
	Payload json.RawMessage `json:"payload"`
}

// JobQueue is a buffered channel standing in for the redis list queue.
type JobQueue struct {
	jobs chan queuedJob
}

func NewJobQueue(size int) *JobQueue {
	if size <= 0 {
		size = 64
	}
	return &JobQueue{jobs: make(chan queuedJob, size)}
}

var _ ports.JobQueue = (*JobQueue)(nil)

func (q *JobQueue) Enqueue(ctx context.Context, job string, payload []byte) error {
	select {
	case q.jobs <- queuedJob{Job: job, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *JobQueue) Dequeue(ctx context.Context) (string, []byte, error) {
	select {
	case item := <-q.jobs:
		return item.Job, item.Payload, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// EventBus fans run status events out to every subscriber. Slow
// subscribers drop events rather than block the publisher.
type EventBus struct {
	mu   sync.Mutex
	subs []chan domain.RunStatusEvent
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

var _ ports.EventBus = (*EventBus)(nil)

func (b *EventBus) PublishRunStatus(ctx context.Context, event domain.RunStatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
	return nil
}

func (b *EventBus) SubscribeRunStatus(ctx context.Context) (<-chan domain.RunStatusEvent, error) {
	ch := make(chan domain.RunStatusEvent, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}()
	return ch, nil
}
