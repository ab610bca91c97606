package worker

import (
	"context"

	"opsdesk/internal/service"
)

// JobHandler is the blueprint for any function that consumes a queue job.
type JobHandler func(ctx context.Context, payload []byte) error

// JobRegistry maps job names to their handlers.
type JobRegistry map[string]JobHandler

// InitRegistry wires queue jobs to the run supervisor.
func InitRegistry(runs *service.RunService) JobRegistry {
	registry := make(JobRegistry)
	registry[service.JobMeetingFinalize] = runs.HandleFinalizeJob
	return registry
}
