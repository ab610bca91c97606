package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) ports.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) CreateAll(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		return fmt.Errorf("%w: create tasks: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *taskRepository) SearchByKeyword(ctx context.Context, companyID uuid.UUID, keyword string, limit int) ([]domain.Task, error) {
	pattern := "%" + keyword + "%"
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("title ILIKE ? OR description_md ILIKE ?", pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("%w: search tasks: %v", domain.ErrPersistenceFailure, err)
	}
	return tasks, nil
}

func (r *taskRepository) ListOverdue(ctx context.Context, companyID uuid.UUID, now time.Time, limit int) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND status <> ? AND due_at < ?", companyID, domain.TaskDone, now).
		Order("due_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list overdue tasks: %v", domain.ErrPersistenceFailure, err)
	}
	return tasks, nil
}
