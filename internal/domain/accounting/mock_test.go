package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/events"
)

type mockSaleRepo struct {
	store    map[uuid.UUID]*Sale
	applyErr error
}

func newMockSaleRepo() *mockSaleRepo { return &mockSaleRepo{store: make(map[uuid.UUID]*Sale)} }

func (m *mockSaleRepo) Create(_ context.Context, s *Sale) error {
	s.ID = uuid.New()
	m.store[s.ID] = s
	return nil
}

func (m *mockSaleRepo) GetByID(_ context.Context, id uuid.UUID) (*Sale, error) {
	s, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockSaleRepo) Update(_ context.Context, s *Sale) error {
	if _, ok := m.store[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.store[s.ID] = s
	return nil
}

func (m *mockSaleRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Sale, int, error) {
	var out []*Sale
	for _, s := range m.store {
		if (f.DoctorID == uuid.Nil || s.DoctorID == f.DoctorID) &&
			(f.PaymentStatus == "" || s.PaymentStatus == f.PaymentStatus) {
			out = append(out, s)
		}
	}
	return page(out, limit, offset), len(out), nil
}

func (m *mockSaleRepo) ApplyPayment(_ context.Context, id uuid.UUID, p Payment) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	s, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Total, s.AmountPaid, s.PaymentStatus = p.Total, p.AmountPaid, p.Status
	return nil
}

type mockPurchaseRepo struct {
	store map[uuid.UUID]*Purchase
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{store: make(map[uuid.UUID]*Purchase)}
}

func (m *mockPurchaseRepo) Create(_ context.Context, p *Purchase) error {
	p.ID = uuid.New()
	m.store[p.ID] = p
	return nil
}

func (m *mockPurchaseRepo) GetByID(_ context.Context, id uuid.UUID) (*Purchase, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockPurchaseRepo) Update(_ context.Context, p *Purchase) error {
	if _, ok := m.store[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockPurchaseRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Purchase, int, error) {
	var out []*Purchase
	for _, p := range m.store {
		if f.DoctorID == uuid.Nil || p.DoctorID == f.DoctorID {
			out = append(out, p)
		}
	}
	return page(out, limit, offset), len(out), nil
}

func (m *mockPurchaseRepo) ApplyPayment(_ context.Context, id uuid.UUID, p Payment) error {
	pu, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	pu.Total, pu.AmountPaid, pu.PaymentStatus = p.Total, p.AmountPaid, p.Status
	return nil
}

type mockLedgerRepo struct {
	store    map[uuid.UUID]*LedgerEntry
	writeErr error
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{store: make(map[uuid.UUID]*LedgerEntry)}
}

func (m *mockLedgerRepo) Create(_ context.Context, e *LedgerEntry) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	e.ID = uuid.New()
	m.store[e.ID] = e
	return nil
}

func (m *mockLedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*LedgerEntry, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *mockLedgerRepo) Update(_ context.Context, e *LedgerEntry) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.store[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.store[e.ID] = e
	return nil
}

func (m *mockLedgerRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.store, id)
	return nil
}

func (m *mockLedgerRepo) List(_ context.Context, f Filter, limit, offset int) ([]*LedgerEntry, int, error) {
	var out []*LedgerEntry
	for _, e := range m.store {
		if (f.DoctorID == uuid.Nil || e.DoctorID == f.DoctorID) &&
			(f.EntryType == "" || e.EntryType == f.EntryType) {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), len(out), nil
}

func (m *mockLedgerRepo) Totals(_ context.Context, doctorID uuid.UUID, from, to time.Time) (*Totals, error) {
	var t Totals
	for _, e := range m.store {
		if e.DoctorID != doctorID || e.EntryDate.Before(from) || e.EntryDate.After(to) {
			continue
		}
		if e.EntryType == EntryIncome {
			t.Income = t.Income.Add(e.Amount)
			t.IncomeCollected = t.IncomeCollected.Add(e.AmountPaid)
		} else {
			t.Expense = t.Expense.Add(e.Amount)
			t.ExpensePaid = t.ExpensePaid.Add(e.AmountPaid)
		}
	}
	return &t, nil
}

func page[T any](items []*T, limit, offset int) []*T {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var errStore = errors.New("connection reset")
