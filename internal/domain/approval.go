package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type ApprovalType string

const (
	ApprovalCreateTasks ApprovalType = "CREATE_TASKS"
	ApprovalUpdateTasks ApprovalType = "UPDATE_TASKS"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Approval is the persisted record of a pending human decision gating
// workflow continuation. Status moves PENDING -> APPROVED or PENDING ->
// REJECTED exactly once; the repository enforces the transition with a
// conditional single-row update.
type Approval struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key;"`
	CompanyID  uuid.UUID      `gorm:"type:uuid;index;not null"`
	AgentRunID uuid.UUID      `gorm:"type:uuid;index;not null"`
	Type       ApprovalType   `gorm:"type:varchar(20);not null"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null"`
	Status     ApprovalStatus `gorm:"type:varchar(10);index;default:'PENDING'"`

	ReviewerPersonID *uuid.UUID `gorm:"type:uuid"`
	ReviewerFeedback *string    `gorm:"type:text"`

	CreatedAt time.Time
	DecidedAt *time.Time
}

func NewApproval(companyID, runID uuid.UUID, typ ApprovalType, payload datatypes.JSON) *Approval {
	return &Approval{
		ID:         uuid.New(),
		CompanyID:  companyID,
		AgentRunID: runID,
		Type:       typ,
		Payload:    payload,
		Status:     ApprovalPending,
		CreatedAt:  time.Now(),
	}
}
