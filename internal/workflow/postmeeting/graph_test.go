package postmeeting_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"opsdesk/internal/core/memory"
	"opsdesk/internal/domain"
	"opsdesk/internal/engine"
	"opsdesk/internal/scribe"
	"opsdesk/internal/workflow/postmeeting"
)

type fixture struct {
	engine    *engine.Engine[postmeeting.State]
	meetings  *memory.MeetingRepository
	approvals *memory.ApprovalRepository
	tasks     *memory.TaskRepository

	companyID uuid.UUID
	meetingID uuid.UUID
	creatorID uuid.UUID
	threadID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		meetings:  memory.NewMeetingRepository(),
		tasks:     memory.NewTaskRepository(),
		companyID: uuid.New(),
		meetingID: uuid.New(),
		creatorID: uuid.New(),
		threadID:  uuid.NewString(),
	}
	f.approvals = memory.NewApprovalRepository(f.tasks)

	f.meetings.AddMeeting(domain.Meeting{
		ID:        f.meetingID,
		CompanyID: f.companyID,
		Title:     "Weekly sync",
		StartsAt:  time.Now().Add(-time.Hour),
		EndsAt:    time.Now(),
		State:     domain.MeetingProcessing,
	})

	transcript := &domain.Transcript{
		ID:        uuid.New(),
		MeetingID: f.meetingID,
		Provider:  "whisper",
		FullText:  "We decided to ship X. Alice will own docs.",
	}
	asset := &domain.MeetingAsset{
		ID:        uuid.New(),
		MeetingID: f.meetingID,
		Type:      domain.AssetTypeBookmarks,
		Metadata:  datatypes.JSON(`{"bookmarks":[{"t":12.5,"kind":"Action","note":"Write docs"},{"t":30,"kind":"Decision","note":"Ship X"}]}`),
	}
	require.NoError(t, f.meetings.IngestTranscript(context.Background(), f.meetingID, transcript, asset))

	graph, err := postmeeting.NewGraph(postmeeting.Deps{
		Meetings:  f.meetings,
		Approvals: f.approvals,
		Scribe:    scribe.NewStubClient(),
	})
	require.NoError(t, err)

	f.engine = engine.New(graph, memory.NewCheckpointStore(), engine.Options{Namespace: postmeeting.GraphName})
	return f
}

func (f *fixture) invoke(t *testing.T) engine.Outcome[postmeeting.State] {
	t.Helper()
	return f.engine.Invoke(context.Background(), f.threadID, postmeeting.State{
		CompanyID:         f.companyID,
		MeetingID:         f.meetingID,
		CreatedByPersonID: f.creatorID,
		AgentRunID:        uuid.New(),
	})
}

func TestRunSuspendsOnApproval(t *testing.T) {
	f := newFixture(t)

	outcome := f.invoke(t)
	require.NoError(t, outcome.Err)
	require.Equal(t, engine.StatusSuspended, outcome.Status)

	payload, ok := outcome.Interrupt.(postmeeting.InterruptPayload)
	require.True(t, ok)
	require.NotEqual(t, uuid.Nil, payload.ApprovalID)
	require.NotNil(t, payload.Payload)
	require.Len(t, payload.Payload.Tasks, 1)
	require.Equal(t, "Write docs", payload.Payload.Tasks[0].Title)

	approval, err := f.approvals.GetByID(context.Background(), payload.ApprovalID)
	require.NoError(t, err)
	require.Equal(t, domain.ApprovalPending, approval.Status)
	require.Equal(t, domain.ApprovalCreateTasks, approval.Type)

	// no side effects before the decision
	require.Empty(t, f.tasks.All())
	require.Equal(t, 0, f.meetings.OutputCount())
}

func TestApproveCreatesTasksAndOutputs(t *testing.T) {
	f := newFixture(t)

	outcome := f.invoke(t)
	require.Equal(t, engine.StatusSuspended, outcome.Status)
	payload := outcome.Interrupt.(postmeeting.InterruptPayload)

	reviewer := uuid.New()
	outcome = f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{
		Decision:         domain.DecisionApprove,
		ReviewerPersonID: &reviewer,
	})
	require.NoError(t, outcome.Err)
	require.Equal(t, engine.StatusCompleted, outcome.Status)

	approval, err := f.approvals.GetByID(context.Background(), payload.ApprovalID)
	require.NoError(t, err)
	require.Equal(t, domain.ApprovalApproved, approval.Status)
	require.Equal(t, &reviewer, approval.ReviewerPersonID)
	require.NotNil(t, approval.DecidedAt)

	tasks := f.tasks.All()
	require.Len(t, tasks, 1)
	require.Equal(t, "Write docs", tasks[0].Title)
	require.Equal(t, domain.TaskSourceMeeting, tasks[0].Source)
	require.Equal(t, f.creatorID, tasks[0].CreatedByPersonID)
	require.Equal(t, f.companyID, tasks[0].CompanyID)

	output, err := f.meetings.OutputByMeeting(context.Background(), f.meetingID)
	require.NoError(t, err)
	require.Contains(t, output.MinutesMD, "We decided to ship X.")
}

func TestRejectSkipsTaskCreation(t *testing.T) {
	f := newFixture(t)

	outcome := f.invoke(t)
	require.Equal(t, engine.StatusSuspended, outcome.Status)
	payload := outcome.Interrupt.(postmeeting.InterruptPayload)

	outcome = f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{
		Decision: domain.DecisionReject,
		Feedback: "tasks are off base",
	})
	require.NoError(t, outcome.Err)
	require.Equal(t, engine.StatusCompleted, outcome.Status)

	approval, err := f.approvals.GetByID(context.Background(), payload.ApprovalID)
	require.NoError(t, err)
	require.Equal(t, domain.ApprovalRejected, approval.Status)
	require.NotNil(t, approval.ReviewerFeedback)
	require.Equal(t, "tasks are off base", *approval.ReviewerFeedback)

	require.Empty(t, f.tasks.All())

	// minutes still land even when the proposal is rejected
	require.Equal(t, 1, f.meetings.OutputCount())
}

func TestApproveWithEditedPayload(t *testing.T) {
	f := newFixture(t)

	outcome := f.invoke(t)
	require.Equal(t, engine.StatusSuspended, outcome.Status)
	payload := outcome.Interrupt.(postmeeting.InterruptPayload)

	owner := uuid.New()
	edited := &scribe.CreateTasksPayload{Tasks: []scribe.TaskProposal{
		{Title: "Write launch docs", Priority: "HIGH", OwnerPersonID: owner.String()},
		{Title: "Schedule retro", DueAt: time.Now().Add(48 * time.Hour).Format(time.RFC3339)},
	}}

	outcome = f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{
		Decision:      domain.DecisionApprove,
		EditedPayload: edited,
	})
	require.NoError(t, outcome.Err)
	require.Equal(t, engine.StatusCompleted, outcome.Status)

	tasks := f.tasks.All()
	require.Len(t, tasks, 2)
	require.Equal(t, "Write launch docs", tasks[0].Title)
	require.Equal(t, domain.PriorityHigh, tasks[0].Priority)
	require.NotNil(t, tasks[0].OwnerPersonID)
	require.Equal(t, owner, *tasks[0].OwnerPersonID)
	require.NotNil(t, tasks[1].DueAt)

	// the stored payload reflects what was actually approved
	approval, err := f.approvals.GetByID(context.Background(), payload.ApprovalID)
	require.NoError(t, err)
	require.Contains(t, string(approval.Payload), "Write launch docs")
}

func TestInvalidDecisionValue(t *testing.T) {
	f := newFixture(t)

	outcome := f.invoke(t)
	require.Equal(t, engine.StatusSuspended, outcome.Status)

	outcome = f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{Decision: "MAYBE"})
	require.Equal(t, engine.StatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, domain.ErrInvalidDecision)

	// the thread is still parked and can take a valid decision afterwards
	outcome = f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{Decision: domain.DecisionApprove})
	require.Equal(t, engine.StatusCompleted, outcome.Status)
}

func TestCompletedThreadStaysCompleted(t *testing.T) {
	f := newFixture(t)

	outcome := f.invoke(t)
	require.Equal(t, engine.StatusSuspended, outcome.Status)
	outcome = f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{Decision: domain.DecisionApprove})
	require.Equal(t, engine.StatusCompleted, outcome.Status)

	// a second decision cannot enter a finished thread
	again := f.engine.Resume(context.Background(), f.threadID, postmeeting.Resume{Decision: domain.DecisionReject})
	require.Equal(t, engine.StatusFailed, again.Status)
	require.ErrorIs(t, again.Err, domain.ErrInvalidDecision)

	// re-invoking is a no-op and outputs stay single
	replay := f.invoke(t)
	require.Equal(t, engine.StatusCompleted, replay.Status)
	require.Equal(t, 1, f.meetings.OutputCount())
	require.Len(t, f.tasks.All(), 1)
}
