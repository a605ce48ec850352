package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/events"
)

// -- Mock Slot Repository --

type mockSlotRepo struct {
	store map[uuid.UUID]*Slot
	// beforeCreate runs at the start of CreateMany, standing in for a
	// concurrent writer.
	beforeCreate func()
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{store: make(map[uuid.UUID]*Slot)}
}

func (m *mockSlotRepo) sorted() []*Slot {
	out := make([]*Slot, 0, len(m.store))
	for _, s := range m.store {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (m *mockSlotRepo) FindMany(_ context.Context, f SlotFilter) ([]*Slot, error) {
	var out []*Slot
	for _, s := range m.sorted() {
		if f.DoctorID != uuid.Nil && s.DoctorID != f.DoctorID {
			continue
		}
		if f.From != nil && s.Date.Before(*f.From) || f.To != nil && s.Date.After(*f.To) {
			continue
		}
		switch f.Status {
		case SlotAvailable:
			if !s.IsOpen || s.IsBooked() {
				continue
			}
		case SlotBooked:
			if !s.IsBooked() {
				continue
			}
		case SlotClosed:
			if s.IsOpen {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSlotRepo) FindFirst(_ context.Context, id uuid.UUID) (*Slot, error) {
	s, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockSlotRepo) FindAtStartTimes(_ context.Context, doctorID uuid.UUID, dates []time.Time, startTimes []string) ([]*Slot, error) {
	var out []*Slot
	for _, s := range m.sorted() {
		if s.DoctorID != doctorID {
			continue
		}
		dateOK, startOK := false, false
		for _, d := range dates {
			dateOK = dateOK || d.Equal(s.Date)
		}
		for _, st := range startTimes {
			startOK = startOK || st == s.StartTime
		}
		if dateOK && startOK {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSlotRepo) CreateMany(_ context.Context, slots []*Slot) (int, error) {
	if m.beforeCreate != nil {
		m.beforeCreate()
	}
	for _, s := range slots {
		for _, existing := range m.store {
			if existing.DoctorID == s.DoctorID && existing.Date.Equal(s.Date) && existing.StartTime == s.StartTime {
				return 0, &pgconn.PgError{Code: "23505"}
			}
		}
	}
	for _, s := range slots {
		s.ID = uuid.New()
		m.store[s.ID] = s
	}
	return len(slots), nil
}

func (m *mockSlotRepo) DeleteMany(_ context.Context, ids []uuid.UUID) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := m.store[id]; ok {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSlotRepo) SetOpen(_ context.Context, id uuid.UUID, open bool) (*Slot, error) {
	s, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	s.IsOpen = open
	return s, nil
}

func (m *mockSlotRepo) LockForBooking(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return m.FindFirst(ctx, id)
}

func (m *mockSlotRepo) AdjustBookings(_ context.Context, id uuid.UUID, delta int) error {
	s, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.CurrentBookings = max(s.CurrentBookings+delta, 0)
	return nil
}

// -- Mock Booking Repository --

type mockBookingRepo struct {
	store map[uuid.UUID]*Booking
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{store: make(map[uuid.UUID]*Booking)}
}

func (m *mockBookingRepo) Create(_ context.Context, b *Booking) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.store[b.ID] = b
	return nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error) {
	b, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	b.Status = status
	return m.GetByID(ctx, id)
}

func (m *mockBookingRepo) ListLive(_ context.Context, slotIDs []uuid.UUID) ([]*Booking, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range slotIDs {
		want[id] = true
	}
	var out []*Booking
	for _, b := range m.store {
		if want[b.SlotID] && b.Status != BookingCancelled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) CountLive(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	live, _ := m.ListLive(ctx, slotIDs)
	counts := map[uuid.UUID]int{}
	for _, b := range live {
		counts[b.SlotID]++
	}
	return counts, nil
}

// -- Collaborators --

type mockTasks struct {
	tasks []TaskWindow
	err   error
}

func (m *mockTasks) FindTimedTasks(context.Context, uuid.UUID, []time.Time) ([]TaskWindow, error) {
	return m.tasks, m.err
}

// inlineTx runs fn directly; mocks have no transactions.
type inlineTx struct{ calls int }

func (t *inlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
