package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Task, int, error)
	// ListWithWindow returns the doctor's open tasks due on any of dates
	// that carry both a start and an end time.
	ListWithWindow(ctx context.Context, doctorID uuid.UUID, dates []time.Time) ([]*Task, error)
}
