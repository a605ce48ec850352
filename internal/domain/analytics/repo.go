package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CacheRepository interface {
	// Hit returns the entry for key with its hit counter incremented, or
	// pgx.ErrNoRows when it is missing or expired at now.
	Hit(ctx context.Context, key string, now time.Time) (*CacheEntry, error)
	// Put stores e, replacing any entry under the same key and resetting hits.
	Put(ctx context.Context, e *CacheEntry) error
}

type StatsRepository interface {
	SlotStats(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*SlotStats, error)
	// BookingsByStatus also returns the summed final price of live bookings.
	BookingsByStatus(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[string]int, decimal.Decimal, error)
}
