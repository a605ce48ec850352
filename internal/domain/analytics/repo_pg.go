package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
)

type cacheRepoPG struct{ pool *pgxpool.Pool }

func NewCacheRepoPG(pool *pgxpool.Pool) CacheRepository { return &cacheRepoPG{pool: pool} }

func (r *cacheRepoPG) Hit(ctx context.Context, key string, now time.Time) (*CacheEntry, error) {
	var e CacheEntry
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		UPDATE analytics_cache SET hits = hits + 1
		WHERE cache_key = $1 AND expires_at > $2
		RETURNING cache_key, type, slug, metric, start_date, end_date, payload, hits, expires_at, created_at`,
		key, now,
	).Scan(&e.Key, &e.Type, &e.Slug, &e.Metric, &e.StartDate, &e.EndDate, &e.Payload, &e.Hits, &e.ExpiresAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *cacheRepoPG) Put(ctx context.Context, e *CacheEntry) error {
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO analytics_cache (cache_key, type, slug, metric, start_date, end_date, payload, hits, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload, hits = 0, expires_at = EXCLUDED.expires_at, created_at = NOW()
		RETURNING created_at`,
		e.Key, e.Type, e.Slug, e.Metric, e.StartDate, e.EndDate, e.Payload, e.ExpiresAt,
	).Scan(&e.CreatedAt)
}

type statsRepoPG struct{ pool *pgxpool.Pool }

func NewStatsRepoPG(pool *pgxpool.Pool) StatsRepository { return &statsRepoPG{pool: pool} }

func (r *statsRepoPG) SlotStats(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*SlotStats, error) {
	var s SlotStats
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_open),
			COALESCE(SUM(max_bookings), 0),
			COALESCE(SUM(current_bookings), 0),
			COUNT(*) FILTER (WHERE current_bookings >= max_bookings)
		FROM appointment_slots
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3`,
		doctorID, from, to,
	).Scan(&s.Slots, &s.OpenSlots, &s.Capacity, &s.Booked, &s.FullyBooked)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *statsRepoPG) BookingsByStatus(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[string]int, decimal.Decimal, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx, `
		SELECT b.status, COUNT(*), COALESCE(SUM(b.final_price), 0)
		FROM bookings b JOIN appointment_slots s ON s.id = b.slot_id
		WHERE s.doctor_id = $1 AND s.date BETWEEN $2 AND $3
		GROUP BY b.status`,
		doctorID, from, to)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	revenue := decimal.Zero
	for rows.Next() {
		var (
			status string
			n      int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &n, &sum); err != nil {
			return nil, decimal.Zero, err
		}
		counts[status] = n
		if status != "CANCELLED" {
			revenue = revenue.Add(sum)
		}
	}
	return counts, revenue, rows.Err()
}
