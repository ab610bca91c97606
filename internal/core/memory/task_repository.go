package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type TaskRepository struct {
	mu    sync.Mutex
	tasks []domain.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) CreateAll(ctx context.Context, tasks []domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, tasks...)
	return nil
}

// All returns a snapshot of every stored task, for test assertions.
func (r *TaskRepository) All() []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

func (r *TaskRepository) SearchByKeyword(ctx context.Context, companyID uuid.UUID, keyword string, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(keyword)
	var out []domain.Task
	for _, task := range r.tasks {
		if task.CompanyID != companyID {
			continue
		}
		if !strings.Contains(strings.ToLower(task.Title), needle) &&
			!strings.Contains(strings.ToLower(task.DescriptionMD), needle) {
			continue
		}
		out = append(out, task)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *TaskRepository) ListOverdue(ctx context.Context, companyID uuid.UUID, now time.Time, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Task
	for _, task := range r.tasks {
		if task.CompanyID != companyID || task.Status == domain.TaskDone {
			continue
		}
		if task.DueAt == nil || !task.DueAt.Before(now) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(*out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
