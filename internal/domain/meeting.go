package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MeetingState string

const (
	MeetingScheduled  MeetingState = "SCHEDULED"
	MeetingLive       MeetingState = "LIVE"
	MeetingProcessing MeetingState = "PROCESSING"
	MeetingReady      MeetingState = "READY"
)

type Meeting struct {
	ID              uuid.UUID    `gorm:"type:uuid;primary_key;"`
	CompanyID       uuid.UUID    `gorm:"type:uuid;index;not null"`
	CalendarEventID *uuid.UUID   `gorm:"type:uuid"`
	Title           string       `gorm:"type:text;not null"`
	StartsAt        time.Time    `gorm:"not null"`
	EndsAt          time.Time    `gorm:"not null"`
	State           MeetingState `gorm:"type:varchar(20);index;default:'SCHEDULED'"`
	CreatedAt       time.Time
}

type Transcript struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;"`
	MeetingID uuid.UUID      `gorm:"type:uuid;index;not null"`
	Provider  string         `gorm:"type:varchar(50);not null"`
	Language  *string        `gorm:"type:varchar(20)"`
	FullText  string         `gorm:"type:text;not null"`
	Segments  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

const AssetTypeBookmarks = "BOOKMARKS"

type MeetingAsset struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key;"`
	MeetingID  uuid.UUID      `gorm:"type:uuid;index;not null"`
	Type       string         `gorm:"type:varchar(30);not null"`
	StorageURL string         `gorm:"column:storage_url;type:text;not null"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

// MeetingOutput holds the finished minutes for a meeting. One row per
// meeting: persist_outputs upserts on MeetingID so re-running after a
// resume never duplicates it.
type MeetingOutput struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key;"`
	MeetingID   uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null"`
	MinutesMD   string         `gorm:"column:minutes_md;type:text;not null;default:''"`
	Decisions   datatypes.JSON `gorm:"type:jsonb"`
	ActionItems datatypes.JSON `gorm:"type:jsonb"`
	Risks       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

// CalendarEvent is the slice of the scheduling data the prep and brief
// runs read. Rows are written by the out-of-scope calendar sync.
type CalendarEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null"`
	Title     string    `gorm:"type:text;not null"`
	StartsAt  time.Time `gorm:"index;not null"`
	EndsAt    time.Time `gorm:"not null"`
	Status    string    `gorm:"type:varchar(20);not null"`
	UpdatedAt time.Time
}
