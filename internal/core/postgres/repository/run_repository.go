package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) ports.RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *domain.AgentRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("%w: insert run: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AgentRun, error) {
	var run domain.AgentRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load run: %v", domain.ErrPersistenceFailure, err)
	}
	return &run, nil
}

func (r *runRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, output datatypes.JSON) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if output != nil {
		updates["output"] = output
	}
	err := r.db.WithContext(ctx).
		Model(&domain.AgentRun{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("%w: update run status: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}
