package analytics

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CacheEntry is a stored query result. Entries are recomputable, so
// concurrent writers for the same key simply overwrite each other.
type CacheEntry struct {
	Key       string          `json:"key"`
	Type      string          `json:"type"`
	Slug      string          `json:"slug"`
	Metric    string          `json:"metric"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	Payload   json.RawMessage `json:"payload"`
	Hits      int             `json:"hits"`
	ExpiresAt time.Time       `json:"expiresAt"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Query identifies one cacheable computation.
type Query struct {
	Type      string
	Slug      string
	Metric    string
	StartDate time.Time
	EndDate   time.Time
}

// Key is the cache key: type, slug, metric and the date range joined by ':'.
func (q Query) Key() string {
	return strings.Join([]string{
		q.Type, q.Slug, q.Metric,
		q.StartDate.Format("2006-01-02"), q.EndDate.Format("2006-01-02"),
	}, ":")
}

type SlotStats struct {
	Slots       int `json:"slots"`
	OpenSlots   int `json:"openSlots"`
	Capacity    int `json:"capacity"`
	Booked      int `json:"booked"`
	FullyBooked int `json:"fullyBooked"`
}

// Summary is the practice overview for one doctor and date range.
type Summary struct {
	DoctorID    uuid.UUID       `json:"doctorId"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	Slots       SlotStats       `json:"slots"`
	Utilization decimal.Decimal `json:"utilization"`
	Bookings    map[string]int  `json:"bookings"`
	Revenue     decimal.Decimal `json:"revenue"`
	Income      decimal.Decimal `json:"income"`
	Expense     decimal.Decimal `json:"expense"`
	Collected   decimal.Decimal `json:"collected"`
	Net         decimal.Decimal `json:"net"`
	GeneratedAt time.Time       `json:"generatedAt"`
}
