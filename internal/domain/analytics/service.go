package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/accounting"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
)

var ErrInvalidRange = errors.New("endDate must not be before startDate")

// LedgerTotaler is the accounting view the summary needs.
type LedgerTotaler interface {
	LedgerTotals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*accounting.Totals, error)
}

type Service struct {
	cache  CacheRepository
	stats  StatsRepository
	ledger LedgerTotaler
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(cache CacheRepository, stats StatsRepository, ledger LedgerTotaler, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		cache:  cache,
		stats:  stats,
		ledger: ledger,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "analytics").Logger(),
	}
}

// GetOrCompute returns the cached payload for q, or runs compute and stores
// its result for the configured TTL. Expired entries count as misses. Cache
// failures are logged and never fail the request.
func (s *Service) GetOrCompute(ctx context.Context, q Query, compute func(context.Context) (any, error)) (json.RawMessage, bool, error) {
	key := q.Key()
	e, err := s.cache.Hit(ctx, key, s.now())
	switch {
	case err == nil:
		return e.Payload, true, nil
	case !db.IsNotFound(err):
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("analytics cache read failed")
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", key, err)
	}

	entry := &CacheEntry{
		Key:       key,
		Type:      q.Type,
		Slug:      q.Slug,
		Metric:    q.Metric,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Payload:   payload,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("analytics cache write failed")
	}
	return payload, false, nil
}

// PracticeSummary returns the doctor's overview for [from, to], served
// through the cache.
func (s *Service) PracticeSummary(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (json.RawMessage, bool, error) {
	if to.Before(from) {
		return nil, false, ErrInvalidRange
	}
	q := Query{Type: "practice", Slug: doctorID.String(), Metric: "summary", StartDate: from, EndDate: to}
	return s.GetOrCompute(ctx, q, func(ctx context.Context) (any, error) {
		return s.computeSummary(ctx, doctorID, from, to)
	})
}

func (s *Service) computeSummary(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*Summary, error) {
	slots, err := s.stats.SlotStats(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("slot stats: %w", err)
	}
	bookings, revenue, err := s.stats.BookingsByStatus(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("booking stats: %w", err)
	}
	totals, err := s.ledger.LedgerTotals(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}

	utilization := decimal.Zero
	if slots.Capacity > 0 {
		utilization = decimal.NewFromInt(int64(slots.Booked)).
			Div(decimal.NewFromInt(int64(slots.Capacity))).Round(4)
	}
	return &Summary{
		DoctorID:    doctorID,
		StartDate:   from.Format("2006-01-02"),
		EndDate:     to.Format("2006-01-02"),
		Slots:       *slots,
		Utilization: utilization,
		Bookings:    bookings,
		Revenue:     revenue,
		Income:      totals.Income,
		Expense:     totals.Expense,
		Collected:   totals.IncomeCollected,
		Net:         totals.Income.Sub(totals.Expense),
		GeneratedAt: s.now().UTC(),
	}, nil
}
