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

type ApprovalRepository struct {
	mu        sync.Mutex
	approvals map[uuid.UUID]domain.Approval
	tasks     *TaskRepository
}

// NewApprovalRepository stores approvals in memory; tasks created by an
// approve decision land in the given task repository, mirroring the
// single-transaction behaviour of the postgres implementation.
func NewApprovalRepository(tasks *TaskRepository) *ApprovalRepository {
	return &ApprovalRepository{
		approvals: make(map[uuid.UUID]domain.Approval),
		tasks:     tasks,
	}
}

var _ ports.ApprovalRepository = (*ApprovalRepository)(nil)

func (r *ApprovalRepository) Create(ctx context.Context, approval *domain.Approval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals[approval.ID] = *approval
	return nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Approval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	approval, ok := r.approvals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &approval, nil
}

func (r *ApprovalRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, status domain.ApprovalStatus) ([]domain.Approval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Approval
	for _, approval := range r.approvals {
		if approval.CompanyID != companyID {
			continue
		}
		if status != "" && approval.Status != status {
			continue
		}
		out = append(out, approval)
	}
	return out, nil
}

func (r *ApprovalRepository) Approve(ctx context.Context, id uuid.UUID, payload datatypes.JSON, reviewerID *uuid.UUID, feedback *string, tasks []domain.Task) error {
	if err := r.decide(id, domain.ApprovalApproved, payload, reviewerID, feedback); err != nil {
		return err
	}
	if r.tasks != nil {
		return r.tasks.CreateAll(ctx, tasks)
	}
	return nil
}

func (r *ApprovalRepository) Reject(ctx context.Context, id uuid.UUID, reviewerID *uuid.UUID, feedback *string) error {
	return r.decide(id, domain.ApprovalRejected, nil, reviewerID, feedback)
}

func (r *ApprovalRepository) decide(id uuid.UUID, status domain.ApprovalStatus, payload datatypes.JSON, reviewerID *uuid.UUID, feedback *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	approval, ok := r.approvals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if approval.Status != domain.ApprovalPending {
		return domain.ErrAlreadyDecided
	}

	approval.Status = status
	if payload != nil {
		approval.Payload = payload
	}
	approval.ReviewerPersonID = reviewerID
	approval.ReviewerFeedback = feedback
	now := time.Now()
	approval.DecidedAt = &now
	r.approvals[id] = approval
	return nil
}
