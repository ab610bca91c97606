package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type RunRepository struct {
	mu   sync.Mutex
	runs map[uuid.UUID]domain.AgentRun
}

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID]domain.AgentRun)}
}

var _ ports.RunRepository = (*RunRepository)(nil)

func (r *RunRepository) Create(ctx context.Context, run *domain.AgentRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AgentRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, output datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	run.Status = status
	if output != nil {
		run.Output = output
	}
	run.UpdatedAt = time.Now()
	r.runs[id] = run
	return nil
}
