package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
	"opsdesk/internal/scribe"
)

type StartRunRequest struct {
	CompanyID         uuid.UUID `json:"company_id" binding:"required"`
	Kind              string    `json:"kind" binding:"required"`
	MeetingID         uuid.UUID `json:"meeting_id"`
	CreatedByPersonID uuid.UUID `json:"created_by_person_id"`
}

type DecideRequest struct {
	Decision      string                     `json:"decision" binding:"required"`
	EditedPayload *scribe.CreateTasksPayload `json:"edited_payload"`
	Feedback      string                     `json:"feedback"`
	ReviewerID    *uuid.UUID                 `json:"reviewer_person_id"`
}

type FinalizeMeetingRequest struct {
	CompanyID         uuid.UUID `json:"company_id" binding:"required"`
	MeetingID         uuid.UUID `json:"meeting_id" binding:"required"`
	CreatedByPersonID uuid.UUID `json:"created_by_person_id" binding:"required"`

	Provider   string            `json:"provider" binding:"required"`
	Language   string            `json:"language"`
	FullText   string            `json:"full_text" binding:"required"`
	Segments   json.RawMessage   `json:"segments"`
	Bookmarks  []json.RawMessage `json:"bookmarks"`
	StorageURL string            `json:"storage_url"`
}

type RunResponse struct {
	ID        uuid.UUID        `json:"id"`
	CompanyID uuid.UUID        `json:"company_id"`
	Kind      domain.RunKind   `json:"kind"`
	Status    domain.RunStatus `json:"status"`
	ThreadID  string           `json:"thread_id"`
	Output    json.RawMessage  `json:"output,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func RunFromDomain(run *domain.AgentRun) RunResponse {
	return RunResponse{
		ID:        run.ID,
		CompanyID: run.CompanyID,
		Kind:      run.Kind,
		Status:    run.Status,
		ThreadID:  run.ThreadID,
		Output:    json.RawMessage(run.Output),
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
}

type ApprovalResponse struct {
	ID         uuid.UUID             `json:"id"`
	CompanyID  uuid.UUID             `json:"company_id"`
	AgentRunID uuid.UUID             `json:"agent_run_id"`
	Type       domain.ApprovalType   `json:"type"`
	Status     domain.ApprovalStatus `json:"status"`
	Payload    json.RawMessage       `json:"payload"`
	CreatedAt  time.Time             `json:"created_at"`
	DecidedAt  *time.Time            `json:"decided_at,omitempty"`
}

func ApprovalFromDomain(approval domain.Approval) ApprovalResponse {
	return ApprovalResponse{
		ID:         approval.ID,
		CompanyID:  approval.CompanyID,
		AgentRunID: approval.AgentRunID,
		Type:       approval.Type,
		Status:     approval.Status,
		Payload:    json.RawMessage(approval.Payload),
		CreatedAt:  approval.CreatedAt,
		DecidedAt:  approval.DecidedAt,
	}
}
