// Package scribe wraps the transcript summarization collaborator: text and
// meeting metadata in, structured minutes and a task proposal out.
package scribe

import (
	"context"
	"encoding/json"
)

type Bookmark struct {
	T    float64 `json:"t"`
	Kind string  `json:"kind"` // Decision, Action or Important
	Note string  `json:"note,omitempty"`
}

type Input struct {
	TranscriptFullText string            `json:"transcript_full_text"`
	Segments           []json.RawMessage `json:"segments,omitempty"`
	Bookmarks          []Bookmark        `json:"bookmarks,omitempty"`
	CompanyID          string            `json:"company_id"`
}

type TaskProposal struct {
	Title         string `json:"title"`
	DescriptionMD string `json:"description_md,omitempty"`
	Priority      string `json:"priority,omitempty"`
	DueAt         string `json:"due_at,omitempty"`
	OwnerPersonID string `json:"owner_person_id,omitempty"`
}

type CreateTasksPayload struct {
	Tasks []TaskProposal `json:"tasks"`
}

type Result struct {
	MinutesMD   string             `json:"minutes_md"`
	Decisions   []json.RawMessage  `json:"decisions"`
	ActionItems []json.RawMessage  `json:"action_items"`
	Risks       []json.RawMessage  `json:"risks"`
	Proposal    CreateTasksPayload `json:"create_tasks_proposal"`
}

// Client generates minutes from a transcript. Implementations may fail with
// domain.ErrUpstreamFailure; callers treat them as opaque.
type Client interface {
	Generate(ctx context.Context, input Input) (*Result, error)
}
