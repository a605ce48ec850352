package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/scheduling"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidWindow = errors.New("startTime and endTime must be given together, with a dueDate, and endTime after startTime")
	ErrInvalidStatus = errors.New("status must be PENDING, IN_PROGRESS, COMPLETED or CANCELLED")
	ErrInvalidPrio   = errors.New("priority must be LOW, MEDIUM or HIGH")
)

type Service struct {
	tasks  TaskRepository
	logger zerolog.Logger
}

func NewService(tasks TaskRepository, logger zerolog.Logger) *Service {
	return &Service{tasks: tasks, logger: logger.With().Str("component", "tasks").Logger()}
}

func validPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func validStatus(s Status) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted || s == StatusCancelled
}

func (s *Service) check(t *Task) error {
	if t.Title == "" {
		return ErrTitleRequired
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !validPriority(t.Priority) {
		return ErrInvalidPrio
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if !validStatus(t.Status) {
		return ErrInvalidStatus
	}
	if (t.StartTime == nil) != (t.EndTime == nil) {
		return ErrInvalidWindow
	}
	if t.StartTime != nil {
		if t.DueDate == nil || *t.EndTime <= *t.StartTime {
			return ErrInvalidWindow
		}
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, t *Task) error {
	if err := s.check(t); err != nil {
		return err
	}
	return s.tasks.Create(ctx, t)
}

func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) UpdateTask(ctx context.Context, t *Task) error {
	if err := s.check(t); err != nil {
		return err
	}
	if err := s.tasks.Update(ctx, t); err != nil {
		if db.IsNotFound(err) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}

func (s *Service) ListTasks(ctx context.Context, f Filter, limit, offset int) ([]*Task, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, ErrInvalidStatus
	}
	return s.tasks.List(ctx, f, limit, offset)
}

// FindTimedTasks lists the doctor's tasks with a time window on the given
// dates, whatever their status, in the shape slot creation reports overlaps
// with.
func (s *Service) FindTimedTasks(ctx context.Context, doctorID uuid.UUID, dates []time.Time) ([]scheduling.TaskWindow, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	items, err := s.tasks.ListWithWindow(ctx, doctorID, dates)
	if err != nil {
		return nil, fmt.Errorf("list timed tasks: %w", err)
	}
	out := make([]scheduling.TaskWindow, 0, len(items))
	for _, t := range items {
		if !t.HasWindow() {
			continue
		}
		out = append(out, scheduling.TaskWindow{
			ID:        t.ID,
			Title:     t.Title,
			Date:      *t.DueDate,
			StartTime: *t.StartTime,
			EndTime:   *t.EndTime,
		})
	}
	return out, nil
}
