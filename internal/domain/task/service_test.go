package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/scheduling"
)

func strPtr(s string) *string { return &s }

func dayPtr(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func newTestService() (*Service, *mockTaskRepo) {
	repo := newMockTaskRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestService_CreateTask_Defaults(t *testing.T) {
	svc, _ := newTestService()
	tk := &Task{DoctorID: uuid.New(), Title: "Call lab"}
	if err := svc.CreateTask(context.Background(), tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if tk.Priority != PriorityMedium || tk.Status != StatusPending {
		t.Errorf("expected MEDIUM/PENDING defaults, got %s/%s", tk.Priority, tk.Status)
	}
}

func TestService_CreateTask_Invalid(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		task Task
		want error
	}{
		{"no title", Task{}, ErrTitleRequired},
		{"bad priority", Task{Title: "x", Priority: "URGENT"}, ErrInvalidPrio},
		{"bad status", Task{Title: "x", Status: "DONE"}, ErrInvalidStatus},
		{"start without end", Task{Title: "x", DueDate: dayPtr("2026-03-02"), StartTime: strPtr("09:00")}, ErrInvalidWindow},
		{"window without date", Task{Title: "x", StartTime: strPtr("09:00"), EndTime: strPtr("10:00")}, ErrInvalidWindow},
		{"end before start", Task{Title: "x", DueDate: dayPtr("2026-03-02"), StartTime: strPtr("10:00"), EndTime: strPtr("09:00")}, ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := tt.task
			if err := svc.CreateTask(context.Background(), &tk); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_GetUpdateDelete_NotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.GetTask(ctx, uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("get: expected ErrTaskNotFound, got %v", err)
	}
	if err := svc.UpdateTask(ctx, &Task{ID: uuid.New(), Title: "x"}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("update: expected ErrTaskNotFound, got %v", err)
	}
	if err := svc.DeleteTask(ctx, uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("delete: expected ErrTaskNotFound, got %v", err)
	}
}

func TestService_FindTimedTasks(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doc := uuid.New()
	mon := dayPtr("2026-03-02")

	seed := []*Task{
		{DoctorID: doc, Title: "Rounds", DueDate: mon, StartTime: strPtr("10:00"), EndTime: strPtr("11:00")},
		{DoctorID: doc, Title: "Untimed", DueDate: mon},
		{DoctorID: doc, Title: "Done", DueDate: mon, StartTime: strPtr("12:00"), EndTime: strPtr("13:00"), Status: StatusCompleted},
		{DoctorID: doc, Title: "Other day", DueDate: dayPtr("2026-03-03"), StartTime: strPtr("09:00"), EndTime: strPtr("10:00")},
		{DoctorID: uuid.New(), Title: "Other doctor", DueDate: mon, StartTime: strPtr("09:00"), EndTime: strPtr("10:00")},
	}
	for _, tk := range seed {
		if err := svc.CreateTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.FindTimedTasks(ctx, doc, []time.Time{*mon})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Rounds" || got[0].StartTime != "10:00" || !got[0].Date.Equal(*mon) {
		t.Fatalf("expected Rounds and Done, got %+v", got)
	}
	if got[1].Title != "Done" {
		t.Errorf("expected completed task to be listed, got %q", got[1].Title)
	}

	none, err := svc.FindTimedTasks(ctx, doc, nil)
	if err != nil || none != nil {
		t.Errorf("expected nil for no dates, got %v %v", none, err)
	}
}

func TestService_FindTimedTasks_ClosedTasksStillOverlap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doc := uuid.New()
	mon := dayPtr("2025-03-03")

	for _, st := range []Status{StatusCompleted, StatusCancelled} {
		tk := &Task{DoctorID: doc, Title: string(st), DueDate: mon, StartTime: strPtr("10:00"), EndTime: strPtr("10:30"), Status: st}
		if err := svc.CreateTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	windows, err := svc.FindTimedTasks(ctx, doc, []time.Time{*mon})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info := scheduling.OverlappingTasks(windows, []scheduling.Candidate{{Date: *mon, StartTime: "10:00", EndTime: "11:00"}})
	if info == nil || info.Count != 2 {
		t.Fatalf("expected both closed tasks reported, got %+v", info)
	}
}

func TestService_ListTasks_InvalidStatus(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ListTasks(context.Background(), Filter{Status: "nope"}, 10, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}
