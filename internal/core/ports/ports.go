package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"opsdesk/internal/domain"
)

// CheckpointTuple bundles a checkpoint row with the pending writes that
// target it.
type CheckpointTuple struct {
	Checkpoint    domain.Checkpoint
	PendingWrites []domain.CheckpointWrite
}

// CheckpointStore is append-only persistence of workflow snapshots keyed by
// thread identity. It knows nothing about workflow semantics.
type CheckpointStore interface {
	// GetLatest returns the checkpoint matching checkpointID, or the newest
	// one in the namespace when checkpointID is empty. domain.ErrNotFound
	// when the thread has no checkpoints.
	GetLatest(ctx context.Context, threadID, namespace, checkpointID string) (*CheckpointTuple, error)

	// List returns up to limit checkpoint snapshots, newest first.
	List(ctx context.Context, threadID, namespace string, limit int) ([]domain.Checkpoint, error)

	// Put appends one checkpoint and returns its checkpoint id. An empty
	// parentID starts a lineage; otherwise parentID must still be the
	// newest checkpoint in the namespace (domain.ErrStaleParent if not).
	Put(ctx context.Context, threadID, namespace, parentID string, state, metadata datatypes.JSON) (string, error)

	// PutWrites appends one pending-write row for an existing checkpoint.
	PutWrites(ctx context.Context, threadID, namespace, checkpointID, stepID string, writes datatypes.JSON) error

	// DeleteThread purges all checkpoints and pending writes for the
	// thread. Lineage cleanup only, never part of normal run flow.
	DeleteThread(ctx context.Context, threadID string) error
}

type RunRepository interface {
	Create(ctx context.Context, run *domain.AgentRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AgentRun, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, output datatypes.JSON) error
}

type ApprovalRepository interface {
	Create(ctx context.Context, approval *domain.Approval) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Approval, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, status domain.ApprovalStatus) ([]domain.Approval, error)

	// Approve flips PENDING -> APPROVED and creates the tasks in the same
	// transaction, storing the effective payload. domain.ErrAlreadyDecided
	// if the row is no longer pending.
	Approve(ctx context.Context, id uuid.UUID, payload datatypes.JSON, reviewerID *uuid.UUID, feedback *string, tasks []domain.Task) error

	// Reject flips PENDING -> REJECTED with no side effects.
	Reject(ctx context.Context, id uuid.UUID, reviewerID *uuid.UUID, feedback *string) error
}

type MeetingRepository interface {
	GetMeeting(ctx context.Context, companyID, meetingID uuid.UUID) (*domain.Meeting, error)
	SetMeetingState(ctx context.Context, meetingID uuid.UUID, state domain.MeetingState) error

	LatestTranscript(ctx context.Context, meetingID uuid.UUID) (*domain.Transcript, error)
	LatestAsset(ctx context.Context, meetingID uuid.UUID, assetType string) (*domain.MeetingAsset, error)

	// IngestTranscript flips the meeting to PROCESSING and stores the
	// transcript and bookmark asset in one transaction.
	IngestTranscript(ctx context.Context, meetingID uuid.UUID, transcript *domain.Transcript, asset *domain.MeetingAsset) error

	// UpsertOutput writes the meeting output row, idempotent by meeting id.
	UpsertOutput(ctx context.Context, output *domain.MeetingOutput) error

	OutputByMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.MeetingOutput, error)
}

type TaskRepository interface {
	CreateAll(ctx context.Context, tasks []domain.Task) error
	SearchByKeyword(ctx context.Context, companyID uuid.UUID, keyword string, limit int) ([]domain.Task, error)
	ListOverdue(ctx context.Context, companyID uuid.UUID, now time.Time, limit int) ([]domain.Task, error)
}

type CalendarRepository interface {
	GetEvent(ctx context.Context, companyID, eventID uuid.UUID) (*domain.CalendarEvent, error)
	CountEventsBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) (int64, error)
}

// JobQueue is the at-least-once trigger transport: fire a named job with a
// payload, consume it elsewhere.
type JobQueue interface {
	Enqueue(ctx context.Context, job string, payload []byte) error

	// Dequeue blocks until a job is available.
	Dequeue(ctx context.Context) (job string, payload []byte, err error)
}

// EventBus broadcasts run status transitions for external observers.
type EventBus interface {
	PublishRunStatus(ctx context.Context, event domain.RunStatusEvent) error
	SubscribeRunStatus(ctx context.Context) (<-chan domain.RunStatusEvent, error)
}
