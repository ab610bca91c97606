package domain

import (
	"github.com/google/uuid"
)

// RunStatusEvent is published to Redis Pub/Sub whenever a run changes
// status. The review UI subscribes to surface waiting approvals promptly.
type RunStatusEvent struct {
	RunID      uuid.UUID  `json:"run_id"`
	CompanyID  uuid.UUID  `json:"company_id"`
	Kind       RunKind    `json:"kind"`
	Status     RunStatus  `json:"status"`
	ApprovalID *uuid.UUID `json:"approval_id,omitempty"`
}

// FinalizeJob is the payload of the meeting_finalize queue job. Delivery is
// at-least-once; StartRun tolerates duplicates.
type FinalizeJob struct {
	MeetingID         uuid.UUID `json:"meeting_id"`
	CompanyID         uuid.UUID `json:"company_id"`
	CreatedByPersonID uuid.UUID `json:"created_by_person_id"`
}
