package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/core/memory"
	"opsdesk/internal/domain"
	"opsdesk/internal/engine"
	"opsdesk/internal/scribe"
	"opsdesk/internal/service"
	"opsdesk/internal/worker"
	"opsdesk/internal/workflow/postmeeting"
)

type harness struct {
	svc       *service.RunService
	runs      *memory.RunRepository
	approvals *memory.ApprovalRepository
	meetings  *memory.MeetingRepository
	tasks     *memory.TaskRepository
	calendar  *memory.CalendarRepository
	queue     *memory.JobQueue
	bus       *memory.EventBus

	companyID uuid.UUID
	meetingID uuid.UUID
	creatorID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		runs:      memory.NewRunRepository(),
		meetings:  memory.NewMeetingRepository(),
		tasks:     memory.NewTaskRepository(),
		calendar:  memory.NewCalendarRepository(),
		queue:     memory.NewJobQueue(16),
		bus:       memory.NewEventBus(),
		companyID: uuid.New(),
		meetingID: uuid.New(),
		creatorID: uuid.New(),
	}
	h.approvals = memory.NewApprovalRepository(h.tasks)

	h.meetings.AddMeeting(domain.Meeting{
		ID:        h.meetingID,
		CompanyID: h.companyID,
		Title:     "Planning",
		StartsAt:  time.Now().Add(-2 * time.Hour),
		EndsAt:    time.Now().Add(-time.Hour),
		State:     domain.MeetingLive,
	})

	graph, err := postmeeting.NewGraph(postmeeting.Deps{
		Meetings:  h.meetings,
		Approvals: h.approvals,
		Scribe:    scribe.NewStubClient(),
	})
	require.NoError(t, err)

	eng := engine.New(graph, memory.NewCheckpointStore(), engine.Options{Namespace: postmeeting.GraphName})

	h.svc = service.NewRunService(service.Deps{
		Runs:      h.runs,
		Approvals: h.approvals,
		Meetings:  h.meetings,
		Tasks:     h.tasks,
		Calendar:  h.calendar,
		Engine:    eng,
		Queue:     h.queue,
		Bus:       h.bus,
	})
	return h
}

func (h *harness) finalize(t *testing.T) {
	t.Helper()
	err := h.svc.FinalizeMeeting(context.Background(), service.FinalizeInput{
		CompanyID:         h.companyID,
		MeetingID:         h.meetingID,
		CreatedByPersonID: h.creatorID,
		Provider:          "whisper",
		FullText:          "We agreed on the Q4 scope. Follow-ups were assigned.",
		Bookmarks: []json.RawMessage{
			json.RawMessage(`{"t":40,"kind":"Action","note":"Draft Q4 scope doc"}`),
		},
	})
	require.NoError(t, err)
}

// drainOne consumes and dispatches a single queued job, standing in for a
// worker goroutine.
func (h *harness) drainOne(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	job, payload, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, service.JobMeetingFinalize, job)
	require.NoError(t, h.svc.HandleFinalizeJob(context.Background(), payload))
}

func (h *harness) pendingApproval(t *testing.T) domain.Approval {
	t.Helper()
	approvals, err := h.svc.ListApprovals(context.Background(), h.companyID, domain.ApprovalPending)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	return approvals[0]
}

func TestFinalizeQueuesAndSuspends(t *testing.T) {
	h := newHarness(t)

	h.finalize(t)

	meeting, err := h.meetings.GetMeeting(context.Background(), h.companyID, h.meetingID)
	require.NoError(t, err)
	require.Equal(t, domain.MeetingProcessing, meeting.State)

	h.drainOne(t)

	approval := h.pendingApproval(t)
	run, err := h.svc.GetRun(context.Background(), approval.AgentRunID)
	require.NoError(t, err)
	require.Equal(t, domain.RunWaitingApproval, run.Status)
	require.Equal(t, domain.RunKindMeetingPost, run.Kind)

	// a parked run carries the interrupt payload as its output-so-far
	require.NotEmpty(t, run.Output)
	var parked struct {
		ApprovalID uuid.UUID `json:"approval_id"`
	}
	require.NoError(t, json.Unmarshal(run.Output, &parked))
	require.Equal(t, approval.ID, parked.ApprovalID)
}

func TestDecideApproveCompletesRun(t *testing.T) {
	h := newHarness(t)
	h.finalize(t)
	h.drainOne(t)
	approval := h.pendingApproval(t)

	reviewer := uuid.New()
	run, err := h.svc.Decide(context.Background(), approval.ID, postmeeting.Resume{
		Decision:         domain.DecisionApprove,
		ReviewerPersonID: &reviewer,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, run.Status)
	require.NotEmpty(t, run.Output)

	meeting, err := h.meetings.GetMeeting(context.Background(), h.companyID, h.meetingID)
	require.NoError(t, err)
	require.Equal(t, domain.MeetingReady, meeting.State)

	tasks := h.tasks.All()
	require.Len(t, tasks, 1)
	require.Equal(t, "Draft Q4 scope doc", tasks[0].Title)
}

func TestDecideIsSingleShot(t *testing.T) {
	h := newHarness(t)
	h.finalize(t)
	h.drainOne(t)
	approval := h.pendingApproval(t)

	_, err := h.svc.Decide(context.Background(), approval.ID, postmeeting.Resume{Decision: domain.DecisionReject})
	require.NoError(t, err)

	_, err = h.svc.Decide(context.Background(), approval.ID, postmeeting.Resume{Decision: domain.DecisionApprove})
	require.ErrorIs(t, err, domain.ErrAlreadyDecided)

	require.Empty(t, h.tasks.All())
}

func TestDecideUnknownApproval(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Decide(context.Background(), uuid.New(), postmeeting.Resume{Decision: domain.DecisionApprove})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecideRejectsBadDecisionValue(t *testing.T) {
	h := newHarness(t)
	h.finalize(t)
	h.drainOne(t)
	approval := h.pendingApproval(t)

	_, err := h.svc.Decide(context.Background(), approval.ID, postmeeting.Resume{Decision: "MAYBE"})
	require.ErrorIs(t, err, domain.ErrInvalidDecision)

	// still pending, a valid decision goes through afterwards
	_, err = h.svc.Decide(context.Background(), approval.ID, postmeeting.Resume{Decision: domain.DecisionApprove})
	require.NoError(t, err)
}

func TestRunStatusEventsPublished(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := h.bus.SubscribeRunStatus(ctx)
	require.NoError(t, err)

	h.finalize(t)
	h.drainOne(t)

	var statuses []domain.RunStatus
	for len(statuses) < 2 {
		select {
		case event := <-events:
			statuses = append(statuses, event.Status)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", statuses)
		}
	}
	require.Equal(t, []domain.RunStatus{domain.RunRunning, domain.RunWaitingApproval}, statuses)
}

func TestDailyBriefRunsSynchronously(t *testing.T) {
	h := newHarness(t)

	due := time.Now().Add(-24 * time.Hour)
	require.NoError(t, h.tasks.CreateAll(context.Background(), []domain.Task{{
		ID:        uuid.New(),
		CompanyID: h.companyID,
		Title:     "Send board update",
		Status:    domain.TaskTodo,
		DueAt:     &due,
	}}))
	h.calendar.AddEvent(domain.CalendarEvent{
		ID:        uuid.New(),
		CompanyID: h.companyID,
		Title:     "Standup",
		StartsAt:  time.Now().Add(time.Minute),
		EndsAt:    time.Now().Add(time.Hour),
		Status:    "CONFIRMED",
	})

	run, err := h.svc.StartRun(context.Background(), service.StartRunInput{
		CompanyID: h.companyID,
		Kind:      domain.RunKindDailyBrief,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, run.Status)

	var output struct {
		EventsToday      int64                    `json:"events_today"`
		PendingApprovals int                      `json:"pending_approvals"`
		OverdueTasks     []map[string]interface{} `json:"overdue_tasks"`
	}
	require.NoError(t, json.Unmarshal(run.Output, &output))
	require.Equal(t, int64(1), output.EventsToday)
	require.Equal(t, 0, output.PendingApprovals)
	require.Len(t, output.OverdueTasks, 1)
}

func TestMeetingPrepRunsSynchronously(t *testing.T) {
	h := newHarness(t)

	run, err := h.svc.StartRun(context.Background(), service.StartRunInput{
		CompanyID:         h.companyID,
		Kind:              domain.RunKindMeetingPrep,
		MeetingID:         h.meetingID,
		CreatedByPersonID: h.creatorID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, run.Status)
	require.Contains(t, string(run.Output), "Planning")
}

func TestFinalizeUnknownMeeting(t *testing.T) {
	h := newHarness(t)

	err := h.svc.FinalizeMeeting(context.Background(), service.FinalizeInput{
		CompanyID:         h.companyID,
		MeetingID:         uuid.New(),
		CreatedByPersonID: h.creatorID,
		Provider:          "whisper",
		FullText:          "hello",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkerDispatchesFinalizeJob(t *testing.T) {
	h := newHarness(t)
	h.finalize(t)

	registry := worker.InitRegistry(h.svc)
	w := worker.NewWorker(h.queue, registry, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.ProcessNextJob(ctx)

	h.pendingApproval(t)
}
