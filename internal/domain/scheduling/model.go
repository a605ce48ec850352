package scheduling

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Mode string

const (
	ModeSingle    Mode = "single"
	ModeRecurring Mode = "recurring"
)

// Durations accepted for generated slots.
var allowedDurations = map[int]bool{30: true, 60: true}

// Slot is one bookable time window for one doctor on one calendar date.
type Slot struct {
	ID              uuid.UUID        `json:"id"`
	DoctorID        uuid.UUID        `json:"doctorId"`
	Date            time.Time        `json:"date"`
	StartTime       string           `json:"startTime"`
	EndTime         string           `json:"endTime"`
	Duration        int              `json:"duration"`
	BasePrice       decimal.Decimal  `json:"basePrice"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	DiscountType    *DiscountType    `json:"discountType,omitempty"`
	FinalPrice      decimal.Decimal  `json:"finalPrice"`
	CurrentBookings int              `json:"currentBookings"`
	MaxBookings     int              `json:"maxBookings"`
	IsOpen          bool             `json:"isOpen"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`

	// Bookings holds the live bookings when listed with them.
	Bookings []*Booking `json:"bookings,omitempty"`
}

// IsBooked is derived from the counters and never stored.
func (s *Slot) IsBooked() bool { return s.CurrentBookings >= s.MaxBookings }

func (s *Slot) MarshalJSON() ([]byte, error) {
	type plain Slot
	return json.Marshal(struct {
		*plain
		IsBooked bool `json:"isBooked"`
	}{(*plain)(s), s.IsBooked()})
}

// SlotStatus filters listings by derived state.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotClosed    SlotStatus = "closed"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case "", SlotAvailable, SlotBooked, SlotClosed:
		return true
	}
	return false
}

// SlotFilter selects slots for listing. A zero DoctorID means every doctor.
type SlotFilter struct {
	DoctorID uuid.UUID
	From     *time.Time
	To       *time.Time
	Status   SlotStatus
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingNoShow    BookingStatus = "NO_SHOW"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingNoShow},
}

// CanTransitionTo reports whether a booking in status s may move to next.
// COMPLETED, CANCELLED and NO_SHOW are terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking ties a patient to exactly one slot.
type Booking struct {
	ID           uuid.UUID       `json:"id"`
	SlotID       uuid.UUID       `json:"slotId"`
	DoctorID     uuid.UUID       `json:"doctorId"`
	PatientName  string          `json:"patientName"`
	PatientEmail string          `json:"patientEmail"`
	PatientPhone *string         `json:"patientPhone,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	Status       BookingStatus   `json:"status"`
	FinalPrice   decimal.Decimal `json:"finalPrice"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TimeSlot is a generated time-of-day interval, "HH:MM" on both ends.
type TimeSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}
