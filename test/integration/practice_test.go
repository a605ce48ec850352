package integration

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/accounting"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/analytics"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/scheduling"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/task"
)

const defaultCacheTTL = time.Hour

var clinicDay = time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

func morningRequest(doctorID uuid.UUID, replace bool) scheduling.CreateSlotsRequest {
	return scheduling.CreateSlotsRequest{
		DoctorID:         doctorID,
		Mode:             scheduling.ModeSingle,
		Date:             clinicDay,
		StartTime:        "09:00",
		EndTime:          "11:00",
		Duration:         60,
		BasePrice:        decimal.NewFromInt(500),
		MaxBookings:      1,
		ReplaceConflicts: replace,
	}
}

func TestCreateSlots_ConflictThenReplace(t *testing.T) {
	ctx := newTenant(t, "slots")
	p := newPractice()
	doctorID := uuid.New()

	first, err := p.scheduling.CreateSlots(ctx, morningRequest(doctorID, false))
	if err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	if first.Count != 2 {
		t.Fatalf("expected 2 slots, got %d", first.Count)
	}

	booking, err := p.scheduling.CreateBooking(ctx, first.Slots[0].ID, scheduling.NewBooking{
		PatientName:  "Ana Ruiz",
		PatientEmail: "ana@example.com",
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	_, err = p.scheduling.CreateSlots(ctx, morningRequest(doctorID, false))
	var ce *scheduling.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Report.Count != 2 {
		t.Errorf("expected 2 conflicts, got %d", ce.Report.Count)
	}
	booked := 0
	for _, c := range ce.Report.Slots {
		if c.HasBookings {
			booked++
		}
	}
	if booked != 1 {
		t.Errorf("expected 1 conflicting slot with bookings, got %d", booked)
	}

	replaced, err := p.scheduling.CreateSlots(ctx, morningRequest(doctorID, true))
	if err != nil {
		t.Fatalf("CreateSlots with replace: %v", err)
	}
	if replaced.Replaced != 2 || replaced.Count != 2 {
		t.Errorf("expected 2 replaced and 2 created, got %d and %d", replaced.Replaced, replaced.Count)
	}
	if _, err := p.scheduling.GetBooking(ctx, booking.ID); !errors.Is(err, scheduling.ErrBookingNotFound) {
		t.Errorf("expected booking removed with its slot, got %v", err)
	}

	slots, err := p.scheduling.ListSlots(ctx, scheduling.SlotFilter{DoctorID: doctorID})
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Errorf("expected 2 slots after replacement, got %d", len(slots))
	}
}

func TestCreateBooking_Capacity(t *testing.T) {
	ctx := newTenant(t, "booking")
	p := newPractice()

	res, err := p.scheduling.CreateSlots(ctx, morningRequest(uuid.New(), false))
	if err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	slotID := res.Slots[0].ID
	nb := scheduling.NewBooking{PatientName: "Luis Mora", PatientEmail: "luis@example.com"}

	b, err := p.scheduling.CreateBooking(ctx, slotID, nb)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if !b.FinalPrice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected booking to carry final price 500, got %s", b.FinalPrice)
	}
	if _, err := p.scheduling.CreateBooking(ctx, slotID, nb); !errors.Is(err, scheduling.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}

	if _, err := p.scheduling.UpdateBookingStatus(ctx, b.ID, scheduling.BookingCancelled); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if _, err := p.scheduling.CreateBooking(ctx, slotID, nb); err != nil {
		t.Errorf("expected the cancelled place to be free, got %v", err)
	}
}

func TestCreateSlots_ReportsOverlappingTasks(t *testing.T) {
	ctx := newTenant(t, "tasks")
	p := newPractice()
	doctorID := uuid.New()
	due := clinicDay

	err := p.tasks.CreateTask(ctx, &task.Task{
		DoctorID:  doctorID,
		Title:     "Call lab",
		DueDate:   &due,
		StartTime: ptrStr("09:30"),
		EndTime:   ptrStr("10:00"),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	res, err := p.scheduling.CreateSlots(ctx, morningRequest(doctorID, false))
	if err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	if res.TasksInfo == nil || res.TasksInfo.Count != 1 {
		t.Fatalf("expected one overlapping task, got %+v", res.TasksInfo)
	}
	if res.TasksInfo.Tasks[0].Title != "Call lab" {
		t.Errorf("unexpected task %q", res.TasksInfo.Tasks[0].Title)
	}
}

func TestUpdateLedgerEntry_MirrorsSale(t *testing.T) {
	ctx := newTenant(t, "ledger")
	p := newPractice()
	doctorID := uuid.New()

	sale := &accounting.Sale{
		DoctorID:   doctorID,
		ClientName: "Clinica Norte",
		SaleDate:   clinicDay,
		Total:      decimal.NewFromInt(1000),
	}
	if err := p.accounting.CreateSale(ctx, sale); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	entry := &accounting.LedgerEntry{
		DoctorID:  doctorID,
		EntryType: accounting.EntryIncome,
		Concept:   "Consultation package",
		EntryDate: clinicDay,
		Amount:    decimal.NewFromInt(1000),
		SaleID:    &sale.ID,
	}
	if err := p.accounting.CreateLedgerEntry(ctx, entry); err != nil {
		t.Fatalf("CreateLedgerEntry: %v", err)
	}

	entry.AmountPaid = decimal.NewFromInt(400)
	res, err := p.accounting.UpdateLedgerEntry(ctx, entry)
	if err != nil {
		t.Fatalf("UpdateLedgerEntry: %v", err)
	}
	if res.Mirrored != "sale" || res.MirrorError != "" {
		t.Fatalf("expected clean sale mirror, got %q %q", res.Mirrored, res.MirrorError)
	}

	got, err := p.accounting.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if got.PaymentStatus != accounting.PaymentPartial {
		t.Errorf("expected PARTIAL, got %s", got.PaymentStatus)
	}
	if !got.AmountPaid.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected amount paid 400, got %s", got.AmountPaid)
	}
}

func TestPracticeSummary_ServedFromCache(t *testing.T) {
	ctx := newTenant(t, "analytics")
	p := newPractice()
	doctorID := uuid.New()

	if _, err := p.scheduling.CreateSlots(ctx, morningRequest(doctorID, false)); err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	from, to := clinicDay, clinicDay.AddDate(0, 0, 6)

	payload, cached, err := p.analytics.PracticeSummary(ctx, doctorID, from, to)
	if err != nil {
		t.Fatalf("PracticeSummary: %v", err)
	}
	if cached {
		t.Error("expected first call to compute")
	}
	var sum analytics.Summary
	if err := json.Unmarshal(payload, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Slots.Slots != 2 {
		t.Errorf("expected 2 slots in summary, got %d", sum.Slots.Slots)
	}

	if _, cached, err = p.analytics.PracticeSummary(ctx, doctorID, from, to); err != nil {
		t.Fatalf("PracticeSummary: %v", err)
	}
	if !cached {
		t.Error("expected second call to be served from cache")
	}
}
