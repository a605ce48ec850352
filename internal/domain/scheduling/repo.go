package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SlotRepository interface {
	FindMany(ctx context.Context, f SlotFilter) ([]*Slot, error)
	FindFirst(ctx context.Context, id uuid.UUID) (*Slot, error)
	// FindAtStartTimes returns the doctor's slots on any of dates starting at
	// any of startTimes.
	FindAtStartTimes(ctx context.Context, doctorID uuid.UUID, dates []time.Time, startTimes []string) ([]*Slot, error)
	CreateMany(ctx context.Context, slots []*Slot) (int, error)
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error)
	SetOpen(ctx context.Context, id uuid.UUID, open bool) (*Slot, error)
	// LockForBooking reads the slot and holds a row lock until the
	// surrounding transaction ends.
	LockForBooking(ctx context.Context, id uuid.UUID) (*Slot, error)
	AdjustBookings(ctx context.Context, id uuid.UUID, delta int) error
}

type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error)
	// ListLive returns the non-cancelled bookings of the given slots.
	ListLive(ctx context.Context, slotIDs []uuid.UUID) ([]*Booking, error)
	// CountLive returns the number of non-cancelled bookings per slot.
	CountLive(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// TaskFinder looks up the doctor's tasks that carry a time window on any of
// the given dates.
type TaskFinder interface {
	FindTimedTasks(ctx context.Context, doctorID uuid.UUID, dates []time.Time) ([]TaskWindow, error)
}
