// Package worker consumes queue jobs and dispatches them through the job
// registry. Workers are stateless; run failures are recorded on the run
// itself, so a crashed worker loses nothing the checkpoints cannot replay.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"opsdesk/internal/core/ports"
)

type Worker struct {
	workerID string
	queue    ports.JobQueue
	registry JobRegistry
	logger   *slog.Logger
}

func NewWorker(queue ports.JobQueue, registry JobRegistry, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	return &Worker{
		workerID: id,
		queue:    queue,
		registry: registry,
		logger:   logger.With("worker_id", id),
	}
}

// ProcessNextJob handles exactly one job lifecycle.
func (w *Worker) ProcessNextJob(ctx context.Context) {
	job, payload, err := w.queue.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("dequeue job", "error", err)
		return
	}

	handler, exists := w.registry[job]
	if !exists {
		w.logger.Error("unknown job", "job", job)
		return
	}

	w.logger.Info("job claimed", "job", job)
	if err := handler(ctx, payload); err != nil {
		w.logger.Error("job failed", "job", job, "error", err)
		return
	}
	w.logger.Info("job done", "job", job)
}

func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		w.ProcessNextJob(ctx)
	}
}

// StartPool launches count workers sharing one queue and registry. The
// returned wait function blocks until every worker observed cancellation.
func StartPool(ctx context.Context, count int, queue ports.JobQueue, registry JobRegistry, logger *slog.Logger) (wait func()) {
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		worker := NewWorker(queue, registry, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}
	return wg.Wait
}
