package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"opsdesk/internal/core/ports"
)

type jobEnvelope struct {
	Job     string          `json:"job"`
	Payload json.RawMessage `json:"payload"`
}

// JobQueue is a redis-list backed job queue. Producers RPush envelopes,
// workers BLPop them off the front.
type JobQueue struct {
	client    *redis.Client
	queueName string
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{
		client:    client,
		queueName: "opsdesk:queue:jobs",
	}
}

var _ ports.JobQueue = (*JobQueue)(nil)

func (q *JobQueue) Enqueue(ctx context.Context, job string, payload []byte) error {
	envelope, err := json.Marshal(jobEnvelope{Job: job, Payload: payload})
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.queueName, envelope).Err()
}

// Dequeue blocks until an envelope is available. A zero timeout tells
// redis to wait forever, so cancellation comes through ctx.
func (q *JobQueue) Dequeue(ctx context.Context) (string, []byte, error) {
	result, err := q.client.BLPop(ctx, 0*time.Second, q.queueName).Result()
	if err != nil {
		return "", nil, err
	}
	// BLPop returns [queueName, element].
	var envelope jobEnvelope
	if err := json.Unmarshal([]byte(result[1]), &envelope); err != nil {
		return "", nil, err
	}
	return envelope.Job, envelope.Payload, nil
}
