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

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ports.ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, approval *domain.Approval) error {
	if err := r.db.WithContext(ctx).Create(approval).Error; err != nil {
		return fmt.Errorf("%w: insert approval: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *approvalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Approval, error) {
	var approval domain.Approval
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&approval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load approval: %v", domain.ErrPersistenceFailure, err)
	}
	return &approval, nil
}

func (r *approvalRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, status domain.ApprovalStatus) ([]domain.Approval, error) {
	query := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var approvals []domain.Approval
	if err := query.Order("created_at DESC").Find(&approvals).Error; err != nil {
		return nil, fmt.Errorf("%w: list approvals: %v", domain.ErrPersistenceFailure, err)
	}
	return approvals, nil
}

// Approve flips the row PENDING -> APPROVED and creates the tasks in the
// same transaction, so tasks can never exist next to a still-PENDING
// approval. The conditional update is the exactly-once guard.
func (r *approvalRepository) Approve(ctx context.Context, id uuid.UUID, payload datatypes.JSON, reviewerID *uuid.UUID, feedback *string, tasks []domain.Task) error {
	return r.decide(ctx, id, map[string]interface{}{
		"status":             domain.ApprovalApproved,
		"payload":            payload,
		"reviewer_person_id": reviewerID,
		"reviewer_feedback":  feedback,
		"decided_at":         time.Now(),
	}, tasks)
}

func (r *approvalRepository) Reject(ctx context.Context, id uuid.UUID, reviewerID *uuid.UUID, feedback *string) error {
	return r.decide(ctx, id, map[string]interface{}{
		"status":             domain.ApprovalRejected,
		"reviewer_person_id": reviewerID,
		"reviewer_feedback":  feedback,
		"decided_at":         time.Now(),
	}, nil)
}

func (r *approvalRepository) decide(ctx context.Context, id uuid.UUID, updates map[string]interface{}, tasks []domain.Task) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Approval{}).
			Where("id = ? AND status = ?", id, domain.ApprovalPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var existing domain.Approval
			if err := tx.Where("id = ?", id).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			} else if err != nil {
				return err
			}
			return domain.ErrAlreadyDecided
		}
		if len(tasks) > 0 {
			if err := tx.Create(&tasks).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyDecided) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: decide approval: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}
