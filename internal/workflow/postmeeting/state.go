package postmeeting

import (
	"encoding/json"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
	"opsdesk/internal/scribe"
)

// Resume is the decision value fed into the await_approval node.
type Resume struct {
	Decision         domain.Decision            `json:"decision"`
	EditedPayload    *scribe.CreateTasksPayload `json:"edited_payload,omitempty"`
	Feedback         string                     `json:"feedback,omitempty"`
	ReviewerPersonID *uuid.UUID                 `json:"reviewer_person_id,omitempty"`
}

// State is the post-meeting workflow's typed state record. It is
// checkpointed as a JSON blob after every node.
type State struct {
	CompanyID         uuid.UUID `json:"company_id"`
	MeetingID         uuid.UUID `json:"meeting_id"`
	CreatedByPersonID uuid.UUID `json:"created_by_person_id"`
	AgentRunID        uuid.UUID `json:"agent_run_id"`

	TranscriptFullText string            `json:"transcript_full_text,omitempty"`
	TranscriptSegments []json.RawMessage `json:"transcript_segments,omitempty"`
	Bookmarks          []scribe.Bookmark `json:"bookmarks,omitempty"`

	Scribe          *scribe.Result             `json:"scribe,omitempty"`
	ApprovalID      uuid.UUID                  `json:"approval_id,omitempty"`
	ApprovalPayload *scribe.CreateTasksPayload `json:"approval_payload,omitempty"`
	Decision        *Resume                    `json:"decision,omitempty"`
}

// Merge folds a node's partial patch into s. Every field is last-write-wins
// when the patch sets it. The transcript segment and bookmark lists replace
// wholesale rather than append, so a resumed run cannot accumulate
// duplicates across checkpoints.
func (s State) Merge(patch State) State {
	if patch.CompanyID != uuid.Nil {
		s.CompanyID = patch.CompanyID
	}
	if patch.MeetingID != uuid.Nil {
		s.MeetingID = patch.MeetingID
	}
	if patch.CreatedByPersonID != uuid.Nil {
		s.CreatedByPersonID = patch.CreatedByPersonID
	}
	if patch.AgentRunID != uuid.Nil {
		s.AgentRunID = patch.AgentRunID
	}
	if patch.TranscriptFullText != "" {
		s.TranscriptFullText = patch.TranscriptFullText
	}
	if patch.TranscriptSegments != nil {
		s.TranscriptSegments = patch.TranscriptSegments
	}
	if patch.Bookmarks != nil {
		s.Bookmarks = patch.Bookmarks
	}
	if patch.Scribe != nil {
		s.Scribe = patch.Scribe
	}
	if patch.ApprovalID != uuid.Nil {
		s.ApprovalID = patch.ApprovalID
	}
	if patch.ApprovalPayload != nil {
		s.ApprovalPayload = patch.ApprovalPayload
	}
	if patch.Decision != nil {
		s.Decision = patch.Decision
	}
	return s
}
