package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.jetify.com/typeid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type checkpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository returns the Postgres-backed checkpoint store.
func NewCheckpointRepository(db *gorm.DB) ports.CheckpointStore {
	return &checkpointRepository{db: db}
}

func newCheckpointID() (string, error) {
	id, err := typeid.WithPrefix("ckpt")
	if err != nil {
		return "", fmt.Errorf("%w: generate checkpoint id: %v", domain.ErrPersistenceFailure, err)
	}
	return id.String(), nil
}

func (r *checkpointRepository) GetLatest(ctx context.Context, threadID, namespace, checkpointID string) (*ports.CheckpointTuple, error) {
	query := r.db.WithContext(ctx).
		Where("thread_id = ? AND namespace = ?", threadID, namespace)
	if checkpointID != "" {
		query = query.Where("checkpoint_id = ?", checkpointID)
	}

	var row domain.Checkpoint
	err := query.Order("created_at DESC, checkpoint_id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load checkpoint: %v", domain.ErrPersistenceFailure, err)
	}

	var writes []domain.CheckpointWrite
	err = r.db.WithContext(ctx).
		Where("thread_id = ? AND namespace = ? AND checkpoint_id = ?", threadID, namespace, row.CheckpointID).
		Order("created_at ASC").
		Find(&writes).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load pending writes: %v", domain.ErrPersistenceFailure, err)
	}

	return &ports.CheckpointTuple{Checkpoint: row, PendingWrites: writes}, nil
}

func (r *checkpointRepository) List(ctx context.Context, threadID, namespace string, limit int) ([]domain.Checkpoint, error) {
	var rows []domain.Checkpoint
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND namespace = ?", threadID, namespace).
		Order("created_at DESC, checkpoint_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list checkpoints: %v", domain.ErrPersistenceFailure, err)
	}
	return rows, nil
}

// Put verifies inside the transaction that parentID is still the newest
// checkpoint, so two racing resumes of one thread cannot both append.
func (r *checkpointRepository) Put(ctx context.Context, threadID, namespace, parentID string, state, metadata datatypes.JSON) (string, error) {
	id, err := newCheckpointID()
	if err != nil {
		return "", err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest domain.Checkpoint
		err := tx.
			Where("thread_id = ? AND namespace = ?", threadID, namespace).
			Order("created_at DESC, checkpoint_id DESC").
			First(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if parentID != "" {
				return domain.ErrStaleParent
			}
		case err != nil:
			return err
		default:
			if latest.CheckpointID != parentID {
				return domain.ErrStaleParent
			}
		}

		row := domain.Checkpoint{
			ID:           uuid.New(),
			ThreadID:     threadID,
			Namespace:    namespace,
			CheckpointID: id,
			State:        state,
			Metadata:     metadata,
			CreatedAt:    time.Now(),
		}
		if parentID != "" {
			row.ParentCheckpointID = &parentID
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, domain.ErrStaleParent) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: insert checkpoint: %v", domain.ErrPersistenceFailure, err)
	}
	return id, nil
}

func (r *checkpointRepository) PutWrites(ctx context.Context, threadID, namespace, checkpointID, stepID string, writes datatypes.JSON) error {
	row := domain.CheckpointWrite{
		ID:           uuid.New(),
		ThreadID:     threadID,
		Namespace:    namespace,
		CheckpointID: checkpointID,
		StepID:       stepID,
		Writes:       writes,
		CreatedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: insert pending writes: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *checkpointRepository) DeleteThread(ctx context.Context, threadID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&domain.CheckpointWrite{}).Error; err != nil {
			return err
		}
		return tx.Where("thread_id = ?", threadID).Delete(&domain.Checkpoint{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: delete thread: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}
