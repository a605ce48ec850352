package task

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockTaskRepo struct {
	store map[uuid.UUID]*Task
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{store: make(map[uuid.UUID]*Task)}
}

func (m *mockTaskRepo) Create(_ context.Context, t *Task) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.store[t.ID] = t
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*Task, error) {
	t, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) Update(_ context.Context, t *Task) error {
	if _, ok := m.store[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = time.Now()
	m.store[t.ID] = t
	return nil
}

func (m *mockTaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.store, id)
	return nil
}

func (m *mockTaskRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Task, int, error) {
	var out []*Task
	for _, t := range m.store {
		if f.DoctorID != uuid.Nil && t.DoctorID != f.DoctorID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.From != nil && (t.DueDate == nil || t.DueDate.Before(*f.From)) {
			continue
		}
		if f.To != nil && (t.DueDate == nil || t.DueDate.After(*f.To)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockTaskRepo) ListWithWindow(_ context.Context, doctorID uuid.UUID, dates []time.Time) ([]*Task, error) {
	var out []*Task
	for _, t := range m.store {
		if t.DoctorID != doctorID || !t.HasWindow() {
			continue
		}
		for _, d := range dates {
			if t.DueDate.Equal(d) {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].StartTime < *out[j].StartTime })
	return out, nil
}
