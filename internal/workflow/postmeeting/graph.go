// Package postmeeting defines the post-meeting processing workflow: load
// the meeting and transcript, generate minutes and a task proposal, park on
// a human approval, then apply the decision and persist the outputs.
package postmeeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
	"opsdesk/internal/engine"
	"opsdesk/internal/scribe"
)

const GraphName = "post_meeting"

const (
	NodeLoadContext    = "load_context"
	NodeLoadTranscript = "load_transcript"
	NodeScribeGenerate = "scribe_generate"
	NodeCreateApproval = "create_approval"
	NodeAwaitApproval  = "await_approval"
	NodeApplyDecision  = "apply_decision"
	NodePersistOutputs = "persist_outputs"
)

// InterruptPayload is surfaced to the caller while the thread waits for a
// decision. It is also re-derivable from the Approval row itself.
type InterruptPayload struct {
	ApprovalID uuid.UUID                  `json:"approval_id"`
	Payload    *scribe.CreateTasksPayload `json:"payload"`
}

// Deps are the collaborators the nodes read and write.
type Deps struct {
	Meetings  ports.MeetingRepository
	Approvals ports.ApprovalRepository
	Scribe    scribe.Client
}

// NewGraph builds the fixed node sequence.
func NewGraph(deps Deps) (*engine.Graph[State], error) {
	return engine.NewGraph(GraphName,
		engine.Node[State]{Name: NodeLoadContext, Run: deps.loadContext},
		engine.Node[State]{Name: NodeLoadTranscript, Run: deps.loadTranscript},
		engine.Node[State]{Name: NodeScribeGenerate, Run: deps.scribeGenerate},
		engine.Node[State]{Name: NodeCreateApproval, Run: deps.createApproval},
		engine.Node[State]{
			Name:      NodeAwaitApproval,
			Interrupt: awaitApprovalPayload,
			Resume:    resumeDecision,
		},
		engine.Node[State]{Name: NodeApplyDecision, Run: deps.applyDecision},
		engine.Node[State]{Name: NodePersistOutputs, Run: deps.persistOutputs},
	)
}

func (d Deps) loadContext(ctx context.Context, s State) (State, error) {
	if _, err := d.Meetings.GetMeeting(ctx, s.CompanyID, s.MeetingID); err != nil {
		return State{}, fmt.Errorf("load meeting: %w", err)
	}
	return State{}, nil
}

func (d Deps) loadTranscript(ctx context.Context, s State) (State, error) {
	transcript, err := d.Meetings.LatestTranscript(ctx, s.MeetingID)
	if err != nil {
		return State{}, fmt.Errorf("load transcript: %w", err)
	}

	patch := State{TranscriptFullText: transcript.FullText}
	if len(transcript.Segments) > 0 {
		if err := json.Unmarshal(transcript.Segments, &patch.TranscriptSegments); err != nil {
			return State{}, fmt.Errorf("decode transcript segments: %w", err)
		}
	}

	asset, err := d.Meetings.LatestAsset(ctx, s.MeetingID, domain.AssetTypeBookmarks)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return State{}, fmt.Errorf("load bookmarks: %w", err)
	}
	if asset != nil {
		var meta struct {
			Bookmarks []scribe.Bookmark `json:"bookmarks"`
		}
		if err := json.Unmarshal(asset.Metadata, &meta); err != nil {
			return State{}, fmt.Errorf("decode bookmarks: %w", err)
		}
		patch.Bookmarks = meta.Bookmarks
	}
	return patch, nil
}

func (d Deps) scribeGenerate(ctx context.Context, s State) (State, error) {
	result, err := d.Scribe.Generate(ctx, scribe.Input{
		TranscriptFullText: s.TranscriptFullText,
		Segments:           s.TranscriptSegments,
		Bookmarks:          s.Bookmarks,
		CompanyID:          s.CompanyID.String(),
	})
	if err != nil {
		return State{}, err
	}
	return State{Scribe: result}, nil
}

func (d Deps) createApproval(ctx context.Context, s State) (State, error) {
	if s.Scribe == nil {
		return State{}, fmt.Errorf("scribe result missing")
	}
	payload := s.Scribe.Proposal
	blob, err := json.Marshal(payload)
	if err != nil {
		return State{}, fmt.Errorf("encode proposal: %w", err)
	}

	approval := domain.NewApproval(s.CompanyID, s.AgentRunID, domain.ApprovalCreateTasks, datatypes.JSON(blob))
	if err := d.Approvals.Create(ctx, approval); err != nil {
		return State{}, fmt.Errorf("create approval: %w", err)
	}
	return State{ApprovalID: approval.ID, ApprovalPayload: &payload}, nil
}

func awaitApprovalPayload(s State) any {
	return InterruptPayload{ApprovalID: s.ApprovalID, Payload: s.ApprovalPayload}
}

func resumeDecision(_ context.Context, _ State, decision any) (State, error) {
	resume, err := asResume(decision)
	if err != nil {
		return State{}, err
	}
	if resume.Decision != domain.DecisionApprove && resume.Decision != domain.DecisionReject {
		return State{}, fmt.Errorf("%w: decision must be APPROVE or REJECT", domain.ErrInvalidDecision)
	}
	return State{Decision: &resume}, nil
}

func asResume(decision any) (Resume, error) {
	switch v := decision.(type) {
	case Resume:
		return v, nil
	case *Resume:
		if v != nil {
			return *v, nil
		}
	}
	return Resume{}, fmt.Errorf("%w: unexpected resume payload %T", domain.ErrInvalidDecision, decision)
}

func (d Deps) applyDecision(ctx context.Context, s State) (State, error) {
	if s.Decision == nil {
		return State{}, fmt.Errorf("%w: missing approval decision", domain.ErrInvalidDecision)
	}
	resume := *s.Decision

	if resume.Decision == domain.DecisionReject {
		if err := d.Approvals.Reject(ctx, s.ApprovalID, resume.ReviewerPersonID, optional(resume.Feedback)); err != nil {
			return State{}, fmt.Errorf("reject approval: %w", err)
		}
		return State{}, nil
	}

	payload := s.ApprovalPayload
	if resume.EditedPayload != nil {
		payload = resume.EditedPayload
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return State{}, fmt.Errorf("encode effective payload: %w", err)
	}

	tasks := buildTasks(s, payload)
	if err := d.Approvals.Approve(ctx, s.ApprovalID, datatypes.JSON(blob), resume.ReviewerPersonID, optional(resume.Feedback), tasks); err != nil {
		return State{}, fmt.Errorf("approve: %w", err)
	}
	return State{}, nil
}

func (d Deps) persistOutputs(ctx context.Context, s State) (State, error) {
	if s.Scribe == nil {
		return State{}, fmt.Errorf("scribe result missing")
	}

	output := &domain.MeetingOutput{
		ID:          uuid.New(),
		MeetingID:   s.MeetingID,
		MinutesMD:   s.Scribe.MinutesMD,
		Decisions:   mustJSONArray(s.Scribe.Decisions),
		ActionItems: mustJSONArray(s.Scribe.ActionItems),
		Risks:       mustJSONArray(s.Scribe.Risks),
		CreatedAt:   time.Now(),
	}
	if err := d.Meetings.UpsertOutput(ctx, output); err != nil {
		return State{}, fmt.Errorf("persist outputs: %w", err)
	}
	return State{}, nil
}

func buildTasks(s State, payload *scribe.CreateTasksPayload) []domain.Task {
	if payload == nil {
		return nil
	}
	now := time.Now()
	tasks := make([]domain.Task, 0, len(payload.Tasks))
	for _, proposal := range payload.Tasks {
		task := domain.Task{
			ID:                uuid.New(),
			CompanyID:         s.CompanyID,
			Title:             proposal.Title,
			DescriptionMD:     proposal.DescriptionMD,
			Status:            domain.TaskTodo,
			Priority:          parsePriority(proposal.Priority),
			Source:            domain.TaskSourceMeeting,
			CreatedByPersonID: s.CreatedByPersonID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if owner, err := uuid.Parse(proposal.OwnerPersonID); err == nil {
			task.OwnerPersonID = &owner
		}
		if due, err := time.Parse(time.RFC3339, proposal.DueAt); err == nil {
			task.DueAt = &due
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func parsePriority(p string) domain.TaskPriority {
	switch domain.TaskPriority(p) {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUrgent:
		return domain.TaskPriority(p)
	}
	return domain.PriorityMedium
}

func mustJSONArray(items []json.RawMessage) datatypes.JSON {
	if items == nil {
		return datatypes.JSON([]byte("[]"))
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(blob)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
