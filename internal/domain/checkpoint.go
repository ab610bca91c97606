package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Checkpoint is one immutable snapshot of workflow state for a thread.
// Rows are append-only: nothing updates or deletes them except an explicit
// thread purge. ParentCheckpointID links snapshots into a singly-linked
// history per thread+namespace; the newest row is the resumable point.
type Checkpoint struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primary_key;"`
	ThreadID           string         `gorm:"type:varchar(64);index;not null"`
	Namespace          string         `gorm:"type:varchar(64);not null;default:''"`
	CheckpointID       string         `gorm:"type:varchar(64);uniqueIndex;not null"`
	ParentCheckpointID *string        `gorm:"type:varchar(64)"`
	State              datatypes.JSON `gorm:"type:jsonb;not null"`
	Metadata           datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt          time.Time      `gorm:"index"`
}

// CheckpointWrite records a node's proposed output for a checkpoint before
// it is folded into the next one. Append-only, always tied to an existing
// checkpoint id; replay reconciles these after a crash between a node
// finishing and its checkpoint committing.
type CheckpointWrite struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;"`
	ThreadID     string         `gorm:"type:varchar(64);index;not null"`
	Namespace    string         `gorm:"type:varchar(64);not null;default:''"`
	CheckpointID string         `gorm:"type:varchar(64);index;not null"`
	StepID       string         `gorm:"type:varchar(100);not null"`
	Writes       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time
}

func (CheckpointWrite) TableName() string { return "checkpoint_writes" }
