package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/events"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/lock"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/telemetry"
)

var (
	ErrInvalidDuration         = errors.New("Duration must be 30 or 60 minutes")
	ErrNoSlotsGenerated        = errors.New("No valid time slots generated")
	ErrNoRecurringDates        = errors.New("No slots to create for the selected days")
	ErrInvalidDateRange        = errors.New("endDate must not be before startDate")
	ErrInvalidMode             = errors.New("mode must be single or recurring")
	ErrSlotNotFound            = errors.New("slot not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrSlotClosed              = errors.New("slot is closed")
	ErrSlotFull                = errors.New("slot is fully booked")
	ErrInvalidStatusTransition = errors.New("invalid booking status transition")
	ErrSlotsBusy               = errors.New("another slot update for this doctor is in progress, retry shortly")
)

// CreateSlotsRequest is a validated slot-creation command.
type CreateSlotsRequest struct {
	DoctorID         uuid.UUID
	Mode             Mode
	Date             time.Time
	StartDate        time.Time
	EndDate          time.Time
	DaysOfWeek       []int
	StartTime        string
	EndTime          string
	Duration         int
	BreakStart       string
	BreakEnd         string
	BasePrice        decimal.Decimal
	Discount         *decimal.Decimal
	DiscountType     *DiscountType
	MaxBookings      int
	ReplaceConflicts bool
}

type CreateSlotsResult struct {
	Count     int        `json:"count"`
	Replaced  int        `json:"replaced"`
	TasksInfo *TasksInfo `json:"tasksInfo"`
	Slots     []*Slot    `json:"-"`
}

type Service struct {
	slots    SlotRepository
	bookings BookingRepository
	tasks    TaskFinder
	tx       db.TxRunner
	locker   lock.Locker
	events   events.Publisher
	logger   zerolog.Logger
}

func NewService(slots SlotRepository, bookings BookingRepository, tasks TaskFinder, tx db.TxRunner,
	locker lock.Locker, pub events.Publisher, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = lock.Nop{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{slots: slots, bookings: bookings, tasks: tasks, tx: tx, locker: locker, events: pub, logger: logger}
}

// Plan expands a request into the candidate slots it would create, without
// touching storage.
func (s *Service) Plan(req CreateSlotsRequest) ([]*Slot, error) {
	if !allowedDurations[req.Duration] {
		return nil, ErrInvalidDuration
	}
	times, err := GenerateTimeSlots(req.StartTime, req.EndTime, req.Duration, req.BreakStart, req.BreakEnd)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, ErrNoSlotsGenerated
	}

	var dates []time.Time
	switch req.Mode {
	case ModeSingle, "":
		dates = []time.Time{NormalizeDate(req.Date)}
	case ModeRecurring:
		if NormalizeDate(req.EndDate).Before(NormalizeDate(req.StartDate)) {
			return nil, ErrInvalidDateRange
		}
		dates = ExpandDates(req.StartDate, req.EndDate, req.DaysOfWeek)
		if len(dates) == 0 {
			return nil, ErrNoRecurringDates
		}
	default:
		return nil, ErrInvalidMode
	}

	maxBookings := req.MaxBookings
	if maxBookings <= 0 {
		maxBookings = 1
	}
	final := FinalPrice(req.BasePrice, req.Discount, req.DiscountType)

	slots := make([]*Slot, 0, len(dates)*len(times))
	for _, d := range dates {
		for _, t := range times {
			slots = append(slots, &Slot{
				DoctorID:     req.DoctorID,
				Date:         d,
				StartTime:    t.StartTime,
				EndTime:      t.EndTime,
				Duration:     req.Duration,
				BasePrice:    req.BasePrice,
				Discount:     req.Discount,
				DiscountType: req.DiscountType,
				FinalPrice:   final,
				MaxBookings:  maxBookings,
				IsOpen:       true,
			})
		}
	}
	return slots, nil
}

// CreateSlots creates the planned batch for one doctor. Existing slots at
// the same (date, start time) either abort the whole batch with a
// *ConflictError or, with ReplaceConflicts, are deleted in the same
// transaction as the insert.
func (s *Service) CreateSlots(ctx context.Context, req CreateSlotsRequest) (*CreateSlotsResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scheduling.CreateSlots")
	defer span.End()

	planned, err := s.Plan(req)
	if err != nil {
		return nil, err
	}
	candidates, dates, startTimes := candidatesOf(planned)
	span.SetAttributes(
		attribute.String("doctor.id", req.DoctorID.String()),
		attribute.Int("slots.planned", len(planned)),
		attribute.Bool("slots.replace_conflicts", req.ReplaceConflicts),
	)

	result := &CreateSlotsResult{Slots: planned}
	key := fmt.Sprintf("slots:%s:%s", db.TenantFromContext(ctx), req.DoctorID)
	err = s.locker.WithLock(ctx, key, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			existing, err := s.slots.FindAtStartTimes(ctx, req.DoctorID, dates, startTimes)
			if err != nil {
				return fmt.Errorf("find conflicting slots: %w", err)
			}
			conflicts := matchConflicts(existing, candidates)
			if len(conflicts) > 0 && !req.ReplaceConflicts {
				return s.conflictError(ctx, conflicts)
			}
			if len(conflicts) > 0 {
				ids := make([]uuid.UUID, len(conflicts))
				for i, c := range conflicts {
					ids[i] = c.ID
				}
				if result.Replaced, err = s.slots.DeleteMany(ctx, ids); err != nil {
					return fmt.Errorf("delete conflicting slots: %w", err)
				}
			}
			if result.Count, err = s.slots.CreateMany(ctx, planned); err != nil {
				return fmt.Errorf("create slots: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		err = s.translateWriteError(ctx, err, req.DoctorID, dates, startTimes, candidates)
		var ce *ConflictError
		if !errors.As(err, &ce) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create slots failed")
		}
		return nil, err
	}

	result.TasksInfo = s.overlappingTasks(ctx, req.DoctorID, dates, candidates)

	evType := events.SlotsCreated
	if result.Replaced > 0 {
		evType = events.SlotsReplaced
	}
	events.PublishBestEffort(ctx, s.events, s.logger, events.Event{
		Type: evType,
		Key:  req.DoctorID.String(),
		Payload: map[string]any{
			"tenantId": db.TenantFromContext(ctx),
			"doctorId": req.DoctorID,
			"count":    result.Count,
			"replaced": result.Replaced,
			"dates":    formatDates(dates),
		},
	})
	return result, nil
}

func (s *Service) conflictError(ctx context.Context, conflicts []*Slot) error {
	ids := make([]uuid.UUID, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.ID
	}
	live, err := s.bookings.CountLive(ctx, ids)
	if err != nil {
		return fmt.Errorf("count bookings on conflicting slots: %w", err)
	}
	return &ConflictError{Report: newConflictReport(conflicts, live)}
}

// translateWriteError maps storage races onto domain errors. A unique
// violation means a concurrent writer inserted one of our slots after the
// conflict check; it is reported as an ordinary conflict.
func (s *Service) translateWriteError(ctx context.Context, err error, doctorID uuid.UUID, dates []time.Time, startTimes []string, candidates []Candidate) error {
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return ErrSlotsBusy
	case db.IsUniqueViolation(err), db.IsSerializationFailure(err):
		existing, qerr := s.slots.FindAtStartTimes(ctx, doctorID, dates, startTimes)
		if qerr != nil {
			return fmt.Errorf("%w (re-reading conflicts: %v)", err, qerr)
		}
		conflicts := matchConflicts(existing, candidates)
		if len(conflicts) == 0 {
			return ErrSlotsBusy
		}
		if cerr := s.conflictError(ctx, conflicts); cerr != nil {
			return cerr
		}
	}
	return err
}

// overlappingTasks is advisory: a lookup failure is logged and dropped.
func (s *Service) overlappingTasks(ctx context.Context, doctorID uuid.UUID, dates []time.Time, candidates []Candidate) *TasksInfo {
	if s.tasks == nil {
		return nil
	}
	tasks, err := s.tasks.FindTimedTasks(ctx, doctorID, dates)
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("task overlap lookup failed")
		return nil
	}
	return OverlappingTasks(tasks, candidates)
}

func candidatesOf(slots []*Slot) ([]Candidate, []time.Time, []string) {
	candidates := make([]Candidate, len(slots))
	seenDate := map[time.Time]bool{}
	seenStart := map[string]bool{}
	var dates []time.Time
	var starts []string
	for i, sl := range slots {
		candidates[i] = Candidate{Date: sl.Date, StartTime: sl.StartTime, EndTime: sl.EndTime}
		if !seenDate[sl.Date] {
			seenDate[sl.Date] = true
			dates = append(dates, sl.Date)
		}
		if !seenStart[sl.StartTime] {
			seenStart[sl.StartTime] = true
			starts = append(starts, sl.StartTime)
		}
	}
	sort.Strings(starts)
	return candidates, dates, starts
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(dateLayout)
	}
	return out
}

// ListSlots returns slots matching f with their live bookings attached.
func (s *Service) ListSlots(ctx context.Context, f SlotFilter) ([]*Slot, error) {
	slots, err := s.slots.FindMany(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return []*Slot{}, nil
	}
	ids := make([]uuid.UUID, len(slots))
	byID := make(map[uuid.UUID]*Slot, len(slots))
	for i, sl := range slots {
		ids[i] = sl.ID
		byID[sl.ID] = sl
	}
	bookings, err := s.bookings.ListLive(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if sl := byID[b.SlotID]; sl != nil {
			sl.Bookings = append(sl.Bookings, b)
		}
	}
	return slots, nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	sl, err := s.slots.FindFirst(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return sl, nil
}

// DeleteSlot removes a slot administratively. Its bookings go with it.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	sl, err := s.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.slots.DeleteMany(ctx, []uuid.UUID{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotFound
	}
	events.PublishBestEffort(ctx, s.events, s.logger, events.Event{
		Type:    events.SlotDeleted,
		Key:     sl.DoctorID.String(),
		Payload: map[string]any{"tenantId": db.TenantFromContext(ctx), "slotId": id, "doctorId": sl.DoctorID},
	})
	return nil
}

func (s *Service) SetSlotOpen(ctx context.Context, id uuid.UUID, open bool) (*Slot, error) {
	sl, err := s.slots.SetOpen(ctx, id, open)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return sl, nil
}

// NewBooking is a patient's request for a slot.
type NewBooking struct {
	PatientName  string
	PatientEmail string
	PatientPhone *string
	Notes        *string
}

// CreateBooking reserves one place on a slot. The slot row is locked for the
// duration of the transaction so concurrent bookings cannot overfill it.
func (s *Service) CreateBooking(ctx context.Context, slotID uuid.UUID, nb NewBooking) (*Booking, error) {
	var booking *Booking
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sl, err := s.slots.LockForBooking(ctx, slotID)
		if err != nil {
			if db.IsNotFound(err) {
				return ErrSlotNotFound
			}
			return err
		}
		if !sl.IsOpen {
			return ErrSlotClosed
		}
		if sl.IsBooked() {
			return ErrSlotFull
		}
		booking = &Booking{
			SlotID:       sl.ID,
			DoctorID:     sl.DoctorID,
			PatientName:  nb.PatientName,
			PatientEmail: nb.PatientEmail,
			PatientPhone: nb.PatientPhone,
			Notes:        nb.Notes,
			Status:       BookingPending,
			FinalPrice:   sl.FinalPrice,
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return s.slots.AdjustBookings(ctx, sl.ID, 1)
	})
	if err != nil {
		return nil, err
	}
	events.PublishBestEffort(ctx, s.events, s.logger, events.Event{
		Type:    events.BookingCreated,
		Key:     booking.DoctorID.String(),
		Payload: booking,
	})
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) ListBookings(ctx context.Context, slotID uuid.UUID) ([]*Booking, error) {
	bookings, err := s.bookings.ListLive(ctx, []uuid.UUID{slotID})
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []*Booking{}
	}
	return bookings, nil
}

// UpdateBookingStatus moves a booking along its lifecycle. Cancelling frees
// the place on the slot.
func (s *Service) UpdateBookingStatus(ctx context.Context, id uuid.UUID, next BookingStatus) (*Booking, error) {
	var updated *Booking
	var previous BookingStatus
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, next)
		}
		previous = current.Status
		if updated, err = s.bookings.UpdateStatus(ctx, id, next); err != nil {
			return err
		}
		if next == BookingCancelled {
			return s.slots.AdjustBookings(ctx, current.SlotID, -1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.PublishBestEffort(ctx, s.events, s.logger, events.Event{
		Type: events.BookingStatusChange,
		Key:  updated.DoctorID.String(),
		Payload: map[string]any{
			"bookingId": updated.ID,
			"slotId":    updated.SlotID,
			"from":      previous,
			"to":        updated.Status,
		},
	})
	return updated, nil
}
