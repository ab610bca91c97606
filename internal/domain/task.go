package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskBlocked    TaskStatus = "BLOCKED"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

const (
	TaskSourceManual  = "MANUAL"
	TaskSourceMeeting = "MEETING"
)

type Task struct {
	ID            uuid.UUID    `gorm:"type:uuid;primary_key;"`
	CompanyID     uuid.UUID    `gorm:"type:uuid;index;not null"`
	Title         string       `gorm:"type:text;not null"`
	DescriptionMD string       `gorm:"column:description_md;type:text;not null;default:''"`
	Status        TaskStatus   `gorm:"type:varchar(20);index;default:'TODO'"`
	Priority      TaskPriority `gorm:"type:varchar(10);default:'MEDIUM'"`

	OwnerPersonID *uuid.UUID `gorm:"type:uuid;index"`
	DueAt         *time.Time `gorm:"index"`

	Source            string    `gorm:"type:varchar(20);not null;default:'MANUAL'"`
	CreatedByPersonID uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTask(companyID uuid.UUID, title string, createdBy uuid.UUID) *Task {
	return &Task{
		ID:                uuid.New(),
		CompanyID:         companyID,
		Title:             title,
		Status:            TaskTodo,
		Priority:          PriorityMedium,
		Source:            TaskSourceManual,
		CreatedByPersonID: createdBy,
		CreatedAt:         time.Now(),
	}
}
