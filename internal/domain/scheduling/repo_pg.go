package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
)

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, doctor_id, date, start_time, end_time, duration,
	base_price, discount, discount_type, final_price,
	current_bookings, max_bookings, is_open, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.EndTime, &s.Duration,
		&s.BasePrice, &s.Discount, &s.DiscountType, &s.FinalPrice,
		&s.CurrentBookings, &s.MaxBookings, &s.IsOpen, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]*Slot, error) {
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) FindMany(ctx context.Context, f SlotFilter) ([]*Slot, error) {
	query := `SELECT ` + slotCols + ` FROM appointment_slots WHERE 1=1`
	var args []any
	idx := 1

	if f.DoctorID != uuid.Nil {
		query += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, f.DoctorID)
		idx++
	}
	if f.From != nil {
		query += fmt.Sprintf(` AND date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		query += fmt.Sprintf(` AND date <= $%d`, idx)
		args = append(args, *f.To)
		idx++
	}
	switch f.Status {
	case SlotAvailable:
		query += ` AND is_open AND current_bookings < max_bookings`
	case SlotBooked:
		query += ` AND current_bookings >= max_bookings`
	case SlotClosed:
		query += ` AND NOT is_open`
	}
	query += ` ORDER BY date, start_time`

	rows, err := db.Resolve(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *slotRepoPG) FindFirst(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT `+slotCols+` FROM appointment_slots WHERE id = $1`, id))
}

func (r *slotRepoPG) FindAtStartTimes(ctx context.Context, doctorID uuid.UUID, dates []time.Time, startTimes []string) ([]*Slot, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx, `
		SELECT `+slotCols+` FROM appointment_slots
		WHERE doctor_id = $1 AND date = ANY($2) AND start_time = ANY($3)
		ORDER BY date, start_time`,
		doctorID, dates, startTimes)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// CreateMany bulk-loads slots with COPY. Ids and timestamps are assigned
// here so callers get them back on the passed slots.
func (r *slotRepoPG) CreateMany(ctx context.Context, slots []*Slot) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(slots))
	for i, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt, s.UpdatedAt = now, now
		var discountType *string
		if s.DiscountType != nil {
			t := string(*s.DiscountType)
			discountType = &t
		}
		rows[i] = []any{s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime, int32(s.Duration),
			numeric(&s.BasePrice), numeric(s.Discount), discountType, numeric(&s.FinalPrice),
			int32(s.CurrentBookings), int32(s.MaxBookings), s.IsOpen, s.CreatedAt, s.UpdatedAt}
	}
	n, err := db.Resolve(ctx, r.pool).CopyFrom(ctx,
		pgx.Identifier{"appointment_slots"},
		[]string{"id", "doctor_id", "date", "start_time", "end_time", "duration",
			"base_price", "discount", "discount_type", "final_price",
			"current_bookings", "max_bookings", "is_open", "created_at", "updated_at"},
		pgx.CopyFromRows(rows))
	return int(n), err
}

// numeric converts to the binary-encodable pgx type COPY needs; nil is NULL.
func numeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func (r *slotRepoPG) DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `DELETE FROM appointment_slots WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *slotRepoPG) SetOpen(ctx context.Context, id uuid.UUID, open bool) (*Slot, error) {
	return scanSlot(db.Resolve(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment_slots SET is_open = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+slotCols, id, open))
}

func (r *slotRepoPG) LockForBooking(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT `+slotCols+` FROM appointment_slots WHERE id = $1 FOR UPDATE`, id))
}

func (r *slotRepoPG) AdjustBookings(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `
		UPDATE appointment_slots
		SET current_bookings = GREATEST(current_bookings + $2, 0), updated_at = NOW()
		WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

const bookingCols = `b.id, b.slot_id, s.doctor_id, b.patient_name, b.patient_email,
	b.patient_phone, b.notes, b.status, b.final_price, b.created_at, b.updated_at`

const bookingFrom = ` FROM bookings b JOIN appointment_slots s ON s.id = b.slot_id`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.DoctorID, &b.PatientName, &b.PatientEmail,
		&b.PatientPhone, &b.Notes, &b.Status, &b.FinalPrice, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO bookings (id, slot_id, patient_name, patient_email, patient_phone, notes, status, final_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		b.ID, b.SlotID, b.PatientName, b.PatientEmail, b.PatientPhone, b.Notes, b.Status, b.FinalPrice,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bookingCols+bookingFrom+` WHERE b.id = $1`, id))
}

func (r *bookingRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error) {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

func (r *bookingRepoPG) ListLive(ctx context.Context, slotIDs []uuid.UUID) ([]*Booking, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Resolve(ctx, r.pool).Query(ctx,
		`SELECT `+bookingCols+bookingFrom+`
		WHERE b.slot_id = ANY($1) AND b.status <> 'CANCELLED'
		ORDER BY b.created_at`, slotIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *bookingRepoPG) CountLive(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(slotIDs))
	if len(slotIDs) == 0 {
		return counts, nil
	}
	rows, err := db.Resolve(ctx, r.pool).Query(ctx, `
		SELECT slot_id, COUNT(*) FROM bookings
		WHERE slot_id = ANY($1) AND status <> 'CANCELLED'
		GROUP BY slot_id`, slotIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
