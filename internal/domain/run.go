package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RunKind string

const (
	RunKindMeetingPrep RunKind = "MEETING_PREP"
	RunKindMeetingPost RunKind = "MEETING_POST"
	RunKindDailyBrief  RunKind = "DAILY_BRIEF"
)

type RunStatus string

const (
	RunQueued          RunStatus = "QUEUED"
	RunRunning         RunStatus = "RUNNING"
	RunWaitingApproval RunStatus = "WAITING_APPROVAL"
	RunCompleted       RunStatus = "COMPLETED"
	RunFailed          RunStatus = "FAILED"
)

// AgentRun is the coarse status record for one workflow invocation. Its
// ThreadID keys the checkpoint lineage and stays stable across suspend/resume.
type AgentRun struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null"`
	Kind      RunKind   `gorm:"type:varchar(20);not null"`
	Status    RunStatus `gorm:"type:varchar(20);index;default:'QUEUED'"`
	ThreadID  string    `gorm:"type:varchar(64);index;not null"`

	InputRefs datatypes.JSON `gorm:"type:jsonb"`
	Output    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AgentRun) TableName() string { return "agent_runs" }

func NewAgentRun(companyID uuid.UUID, kind RunKind, inputRefs datatypes.JSON) *AgentRun {
	return &AgentRun{
		ID:        uuid.New(),
		CompanyID: companyID,
		Kind:      kind,
		Status:    RunRunning,
		ThreadID:  uuid.NewString(),
		InputRefs: inputRefs,
		CreatedAt: time.Now(),
	}
}

func (r *AgentRun) IsFinished() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}
