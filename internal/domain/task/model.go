package task

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Task is a doctor's personal reminder. StartTime and EndTime are "HH:MM"
// and only meaningful together with DueDate.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    uuid.UUID  `json:"doctorId"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	StartTime   *string    `json:"startTime,omitempty"`
	EndTime     *string    `json:"endTime,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Category    *string    `json:"category,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// HasWindow reports whether the task blocks a time range on its due date.
func (t *Task) HasWindow() bool {
	return t.DueDate != nil && t.StartTime != nil && t.EndTime != nil
}

type Filter struct {
	DoctorID uuid.UUID
	Status   Status
	From     *time.Time
	To       *time.Time
}
