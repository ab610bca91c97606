package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/api/handler"
	"opsdesk/internal/core/memory"
	"opsdesk/internal/domain"
	"opsdesk/internal/engine"
	"opsdesk/internal/scribe"
	"opsdesk/internal/service"
	"opsdesk/internal/workflow/postmeeting"
)

type env struct {
	router    *gin.Engine
	queue     *memory.JobQueue
	svc       *service.RunService
	companyID uuid.UUID
	meetingID uuid.UUID
	creatorID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{
		queue:     memory.NewJobQueue(16),
		companyID: uuid.New(),
		meetingID: uuid.New(),
		creatorID: uuid.New(),
	}

	tasks := memory.NewTaskRepository()
	approvals := memory.NewApprovalRepository(tasks)
	meetings := memory.NewMeetingRepository()
	meetings.AddMeeting(domain.Meeting{
		ID:        e.meetingID,
		CompanyID: e.companyID,
		Title:     "Roadmap review",
		StartsAt:  time.Now().Add(-time.Hour),
		EndsAt:    time.Now(),
		State:     domain.MeetingLive,
	})

	graph, err := postmeeting.NewGraph(postmeeting.Deps{
		Meetings:  meetings,
		Approvals: approvals,
		Scribe:    scribe.NewStubClient(),
	})
	require.NoError(t, err)

	e.svc = service.NewRunService(service.Deps{
		Runs:      memory.NewRunRepository(),
		Approvals: approvals,
		Meetings:  meetings,
		Tasks:     tasks,
		Calendar:  memory.NewCalendarRepository(),
		Engine:    engine.New(graph, memory.NewCheckpointStore(), engine.Options{Namespace: postmeeting.GraphName}),
		Queue:     e.queue,
		Bus:       memory.NewEventBus(),
	})

	e.router = gin.New()
	handler.NewRunHandler(e.svc).Register(e.router)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// suspend drives finalize plus the queued job so a PENDING approval exists.
func (e *env) suspend(t *testing.T) uuid.UUID {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/meetings/finalize", gin.H{
		"company_id":           e.companyID,
		"meeting_id":           e.meetingID,
		"created_by_person_id": e.creatorID,
		"provider":             "whisper",
		"full_text":            "We settled the roadmap. Next steps assigned.",
		"bookmarks":            []gin.H{{"t": 10, "kind": "Action", "note": "Publish roadmap"}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, payload, err := e.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, e.svc.HandleFinalizeJob(context.Background(), payload))

	approvals, err := e.svc.ListApprovals(context.Background(), e.companyID, domain.ApprovalPending)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	return approvals[0].ID
}

func TestStartRunEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/runs", gin.H{
		"company_id": e.companyID,
		"kind":       "DAILY_BRIEF",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "COMPLETED", resp.Status)

	rec = e.do(t, http.MethodGet, "/api/v1/runs/"+resp.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartRunRejectsUnknownKind(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/runs", gin.H{
		"company_id": e.companyID,
		"kind":       "COFFEE_RUN",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideEndpoint(t *testing.T) {
	e := newEnv(t)
	approvalID := e.suspend(t)

	path := fmt.Sprintf("/api/v1/approvals/%s/decide", approvalID)
	rec := e.do(t, http.MethodPost, path, gin.H{"decision": "APPROVE"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "COMPLETED", resp.Status)

	// deciding twice is a conflict
	rec = e.do(t, http.MethodPost, path, gin.H{"decision": "REJECT"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecideValidation(t *testing.T) {
	e := newEnv(t)
	approvalID := e.suspend(t)
	path := fmt.Sprintf("/api/v1/approvals/%s/decide", approvalID)

	rec := e.do(t, http.MethodPost, path, gin.H{"decision": "MAYBE"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/decide", uuid.New()), gin.H{"decision": "APPROVE"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListApprovalsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.suspend(t)

	rec := e.do(t, http.MethodGet, "/api/v1/approvals?company_id="+e.companyID.String()+"&status=PENDING", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Approvals []struct {
			Status string `json:"status"`
		} `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Approvals, 1)
	require.Equal(t, "PENDING", resp.Approvals[0].Status)
}

func TestFinalizeUnknownMeetingIs404(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/meetings/finalize", gin.H{
		"company_id":           e.companyID,
		"meeting_id":           uuid.New(),
		"created_by_person_id": e.creatorID,
		"provider":             "whisper",
		"full_text":            "hello",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
