// Package service hosts the run supervisor: the boundary between
// transports (HTTP, queue workers) and the workflow engine. It owns run
// records, translates engine outcomes into run status transitions, and
// publishes status events.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
	"opsdesk/internal/engine"
	"opsdesk/internal/metrics"
	"opsdesk/internal/workflow/postmeeting"
)

// JobMeetingFinalize is the queue job that triggers a MEETING_POST run.
const JobMeetingFinalize = "meeting_finalize"

type RunService struct {
	runs      ports.RunRepository
	approvals ports.ApprovalRepository
	meetings  ports.MeetingRepository
	tasks     ports.TaskRepository
	calendar  ports.CalendarRepository

	engine *engine.Engine[postmeeting.State]
	queue  ports.JobQueue
	bus    ports.EventBus

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Deps struct {
	Runs      ports.RunRepository
	Approvals ports.ApprovalRepository
	Meetings  ports.MeetingRepository
	Tasks     ports.TaskRepository
	Calendar  ports.CalendarRepository
	Engine    *engine.Engine[postmeeting.State]
	Queue     ports.JobQueue
	Bus       ports.EventBus
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

func NewRunService(deps Deps) *RunService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &RunService{
		runs:      deps.Runs,
		approvals: deps.Approvals,
		meetings:  deps.Meetings,
		tasks:     deps.Tasks,
		calendar:  deps.Calendar,
		engine:    deps.Engine,
		queue:     deps.Queue,
		bus:       deps.Bus,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

// StartRunInput carries the references a run needs; which ones are
// required depends on the kind.
type StartRunInput struct {
	CompanyID         uuid.UUID
	Kind              domain.RunKind
	MeetingID         uuid.UUID
	CreatedByPersonID uuid.UUID
}

// StartRun creates a run record and drives the workflow for its kind.
// MEETING_POST goes through the durable engine and may come back
// suspended; MEETING_PREP and DAILY_BRIEF are synchronous reads.
func (s *RunService) StartRun(ctx context.Context, in StartRunInput) (*domain.AgentRun, error) {
	refs, err := json.Marshal(map[string]string{
		"meeting_id":           in.MeetingID.String(),
		"created_by_person_id": in.CreatedByPersonID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode input refs: %w", err)
	}

	run := domain.NewAgentRun(in.CompanyID, in.Kind, datatypes.JSON(refs))
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RunsStarted.WithLabelValues(string(in.Kind)).Inc()
	}
	s.publish(ctx, run, nil)
	s.logger.Info("run started", "run_id", run.ID, "kind", run.Kind, "thread_id", run.ThreadID)

	switch in.Kind {
	case domain.RunKindMeetingPost:
		return s.runMeetingPost(ctx, run, in)
	case domain.RunKindMeetingPrep:
		output, err := s.meetingPrepOutput(ctx, in)
		return s.finishSync(ctx, run, output, err)
	case domain.RunKindDailyBrief:
		output, err := s.dailyBriefOutput(ctx, in.CompanyID)
		return s.finishSync(ctx, run, output, err)
	default:
		s.fail(ctx, run, fmt.Errorf("unknown run kind %q", in.Kind))
		return run, fmt.Errorf("unknown run kind %q", in.Kind)
	}
}

func (s *RunService) runMeetingPost(ctx context.Context, run *domain.AgentRun, in StartRunInput) (*domain.AgentRun, error) {
	initial := postmeeting.State{
		CompanyID:         in.CompanyID,
		MeetingID:         in.MeetingID,
		CreatedByPersonID: in.CreatedByPersonID,
		AgentRunID:        run.ID,
	}

	outcome := s.engine.Invoke(ctx, run.ThreadID, initial)
	return s.applyOutcome(ctx, run, outcome)
}

// Decide applies a human decision to a pending approval and resumes the
// suspended run. The PENDING check happens here at the boundary so a
// decided approval never reaches the engine.
func (s *RunService) Decide(ctx context.Context, approvalID uuid.UUID, resume postmeeting.Resume) (*domain.AgentRun, error) {
	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval.Status != domain.ApprovalPending {
		return nil, domain.ErrAlreadyDecided
	}
	if resume.Decision != domain.DecisionApprove && resume.Decision != domain.DecisionReject {
		return nil, fmt.Errorf("%w: decision must be APPROVE or REJECT", domain.ErrInvalidDecision)
	}

	run, err := s.runs.GetByID(ctx, approval.AgentRunID)
	if err != nil {
		return nil, err
	}
	if run.IsFinished() {
		return nil, domain.ErrAlreadyDecided
	}

	outcome := s.engine.Resume(ctx, run.ThreadID, resume)
	if s.metrics != nil && outcome.Status == engine.StatusCompleted {
		s.metrics.Decisions.WithLabelValues(string(resume.Decision)).Inc()
	}
	return s.applyOutcome(ctx, run, outcome)
}

// applyOutcome folds an engine outcome into the run record and publishes
// the transition.
func (s *RunService) applyOutcome(ctx context.Context, run *domain.AgentRun, outcome engine.Outcome[postmeeting.State]) (*domain.AgentRun, error) {
	switch outcome.Status {
	case engine.StatusSuspended:
		run.Status = domain.RunWaitingApproval
		// the interrupt payload is the run's output-so-far while parked
		if outcome.Interrupt != nil {
			if blob, err := json.Marshal(outcome.Interrupt); err == nil {
				run.Output = datatypes.JSON(blob)
			} else {
				s.logger.Error("encode interrupt payload", "run_id", run.ID, "error", err)
			}
		}
		if err := s.runs.UpdateStatus(ctx, run.ID, domain.RunWaitingApproval, run.Output); err != nil {
			return run, err
		}
		var approvalID *uuid.UUID
		if payload, ok := outcome.Interrupt.(postmeeting.InterruptPayload); ok {
			id := payload.ApprovalID
			approvalID = &id
		}
		if s.metrics != nil {
			s.metrics.ApprovalsWait.Inc()
		}
		s.publish(ctx, run, approvalID)
		s.logger.Info("run waiting for approval", "run_id", run.ID, "thread_id", run.ThreadID)
		return run, nil

	case engine.StatusCompleted:
		output, err := json.Marshal(map[string]any{
			"meeting_id":  outcome.State.MeetingID,
			"approval_id": outcome.State.ApprovalID,
		})
		if err != nil {
			return run, fmt.Errorf("encode run output: %w", err)
		}
		run.Status = domain.RunCompleted
		run.Output = datatypes.JSON(output)
		if err := s.runs.UpdateStatus(ctx, run.ID, domain.RunCompleted, run.Output); err != nil {
			return run, err
		}
		if outcome.State.MeetingID != uuid.Nil {
			if err := s.meetings.SetMeetingState(ctx, outcome.State.MeetingID, domain.MeetingReady); err != nil {
				s.logger.Error("mark meeting ready", "meeting_id", outcome.State.MeetingID, "error", err)
			}
		}
		if s.metrics != nil {
			s.metrics.RunsFinished.WithLabelValues(string(run.Kind), string(domain.RunCompleted)).Inc()
		}
		s.publish(ctx, run, nil)
		s.logger.Info("run completed", "run_id", run.ID, "thread_id", run.ThreadID)
		return run, nil

	default:
		s.fail(ctx, run, outcome.Err)
		return run, outcome.Err
	}
}

func (s *RunService) fail(ctx context.Context, run *domain.AgentRun, cause error) {
	run.Status = domain.RunFailed
	if cause != nil {
		if detail, err := json.Marshal(map[string]string{"error": cause.Error()}); err == nil {
			run.Output = datatypes.JSON(detail)
		}
	}
	if err := s.runs.UpdateStatus(ctx, run.ID, domain.RunFailed, run.Output); err != nil {
		s.logger.Error("mark run failed", "run_id", run.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RunsFinished.WithLabelValues(string(run.Kind), string(domain.RunFailed)).Inc()
	}
	s.publish(ctx, run, nil)
	s.logger.Error("run failed", "run_id", run.ID, "error", cause)
}

func (s *RunService) publish(ctx context.Context, run *domain.AgentRun, approvalID *uuid.UUID) {
	if s.bus == nil {
		return
	}
	event := domain.RunStatusEvent{
		RunID:      run.ID,
		CompanyID:  run.CompanyID,
		Kind:       run.Kind,
		Status:     run.Status,
		ApprovalID: approvalID,
	}
	if err := s.bus.PublishRunStatus(ctx, event); err != nil {
		s.logger.Error("publish run status", "run_id", run.ID, "error", err)
	}
}

// finishSync closes out a synchronous run with the output produced by its
// read-only body.
func (s *RunService) finishSync(ctx context.Context, run *domain.AgentRun, output datatypes.JSON, err error) (*domain.AgentRun, error) {
	if err != nil {
		s.fail(ctx, run, err)
		return run, err
	}
	run.Status = domain.RunCompleted
	run.Output = output
	if uerr := s.runs.UpdateStatus(ctx, run.ID, domain.RunCompleted, output); uerr != nil {
		return run, uerr
	}
	if s.metrics != nil {
		s.metrics.RunsFinished.WithLabelValues(string(run.Kind), string(domain.RunCompleted)).Inc()
	}
	s.publish(ctx, run, nil)
	return run, nil
}

func (s *RunService) meetingPrepOutput(ctx context.Context, in StartRunInput) (datatypes.JSON, error) {
	meeting, err := s.meetings.GetMeeting(ctx, in.CompanyID, in.MeetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}

	related, err := s.tasks.SearchByKeyword(ctx, in.CompanyID, meeting.Title, 10)
	if err != nil {
		return nil, err
	}

	var eventStatus string
	if meeting.CalendarEventID != nil {
		if event, eerr := s.calendar.GetEvent(ctx, in.CompanyID, *meeting.CalendarEventID); eerr == nil {
			eventStatus = event.Status
		}
	}

	var lastOutput *domain.MeetingOutput
	if prev, oerr := s.meetings.OutputByMeeting(ctx, in.MeetingID); oerr == nil {
		lastOutput = prev
	}

	blob, err := json.Marshal(map[string]any{
		"meeting_id":    meeting.ID,
		"title":         meeting.Title,
		"starts_at":     meeting.StartsAt,
		"event_status":  eventStatus,
		"related_tasks": taskSummaries(related),
		"last_minutes":  lastMinutes(lastOutput),
	})
	if err != nil {
		return nil, fmt.Errorf("encode prep output: %w", err)
	}
	return datatypes.JSON(blob), nil
}

func (s *RunService) dailyBriefOutput(ctx context.Context, companyID uuid.UUID) (datatypes.JSON, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	eventCount, err := s.calendar.CountEventsBetween(ctx, companyID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.ListOverdue(ctx, companyID, now, 20)
	if err != nil {
		return nil, err
	}
	pending, err := s.approvals.ListByCompany(ctx, companyID, domain.ApprovalPending)
	if err != nil {
		return nil, err
	}

	blob, err := json.Marshal(map[string]any{
		"date":              dayStart.Format("2006-01-02"),
		"events_today":      eventCount,
		"pending_approvals": len(pending),
		"overdue_tasks":     taskSummaries(overdue),
	})
	if err != nil {
		return nil, fmt.Errorf("encode brief output: %w", err)
	}
	return datatypes.JSON(blob), nil
}

type taskSummary struct {
	ID       uuid.UUID           `json:"id"`
	Title    string              `json:"title"`
	Status   domain.TaskStatus   `json:"status"`
	Priority domain.TaskPriority `json:"priority"`
	DueAt    *time.Time          `json:"due_at,omitempty"`
}

func taskSummaries(tasks []domain.Task) []taskSummary {
	out := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskSummary{
			ID:       t.ID,
			Title:    t.Title,
			Status:   t.Status,
			Priority: t.Priority,
			DueAt:    t.DueAt,
		})
	}
	return out
}

func lastMinutes(output *domain.MeetingOutput) string {
	if output == nil {
		return ""
	}
	return output.MinutesMD
}

func (s *RunService) GetRun(ctx context.Context, id uuid.UUID) (*domain.AgentRun, error) {
	return s.runs.GetByID(ctx, id)
}

func (s *RunService) ListApprovals(ctx context.Context, companyID uuid.UUID, status domain.ApprovalStatus) ([]domain.Approval, error) {
	return s.approvals.ListByCompany(ctx, companyID, status)
}

// FinalizeInput is the transcript delivery for a finished meeting.
type FinalizeInput struct {
	CompanyID         uuid.UUID
	MeetingID         uuid.UUID
	CreatedByPersonID uuid.UUID

	Provider   string
	Language   string
	FullText   string
	Segments   json.RawMessage
	Bookmarks  []json.RawMessage
	StorageURL string
}

// FinalizeMeeting stores the transcript and bookmark asset, flips the
// meeting to PROCESSING, and enqueues the post-meeting run. The queue hop
// keeps transcript ingestion fast regardless of model latency.
func (s *RunService) FinalizeMeeting(ctx context.Context, in FinalizeInput) error {
	if _, err := s.meetings.GetMeeting(ctx, in.CompanyID, in.MeetingID); err != nil {
		return err
	}

	transcript := &domain.Transcript{
		ID:        uuid.New(),
		MeetingID: in.MeetingID,
		Provider:  in.Provider,
		FullText:  in.FullText,
		CreatedAt: time.Now(),
	}
	if in.Language != "" {
		lang := in.Language
		transcript.Language = &lang
	}
	if len(in.Segments) > 0 {
		transcript.Segments = datatypes.JSON(in.Segments)
	}

	meta, err := json.Marshal(map[string]any{"bookmarks": in.Bookmarks})
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}
	asset := &domain.MeetingAsset{
		ID:         uuid.New(),
		MeetingID:  in.MeetingID,
		Type:       domain.AssetTypeBookmarks,
		StorageURL: in.StorageURL,
		Metadata:   datatypes.JSON(meta),
		CreatedAt:  time.Now(),
	}

	if err := s.meetings.IngestTranscript(ctx, in.MeetingID, transcript, asset); err != nil {
		return err
	}

	job, err := json.Marshal(domain.FinalizeJob{
		MeetingID:         in.MeetingID,
		CompanyID:         in.CompanyID,
		CreatedByPersonID: in.CreatedByPersonID,
	})
	if err != nil {
		return fmt.Errorf("encode finalize job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, JobMeetingFinalize, job); err != nil {
		return fmt.Errorf("enqueue finalize: %w", err)
	}
	s.logger.Info("meeting finalize queued", "meeting_id", in.MeetingID)
	return nil
}

// HandleFinalizeJob is the queue-side entry point for meeting_finalize.
func (s *RunService) HandleFinalizeJob(ctx context.Context, payload []byte) error {
	var job domain.FinalizeJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode finalize job: %w", err)
	}
	_, err := s.StartRun(ctx, StartRunInput{
		CompanyID:         job.CompanyID,
		Kind:              domain.RunKindMeetingPost,
		MeetingID:         job.MeetingID,
		CreatedByPersonID: job.CreatedByPersonID,
	})
	return err
}
