package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
)

// whereClause builds the shared filter for the three money tables. dateCol
// names the table's business date column.
func whereClause(f Filter, dateCol string) (string, []any) {
	where := ` WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(cond, len(args))
	}
	if f.DoctorID != uuid.Nil {
		add(` AND doctor_id = $%d`, f.DoctorID)
	}
	if f.From != nil {
		add(` AND `+dateCol+` >= $%d`, *f.From)
	}
	if f.To != nil {
		add(` AND `+dateCol+` <= $%d`, *f.To)
	}
	if f.PaymentStatus != "" {
		add(` AND payment_status = $%d`, f.PaymentStatus)
	}
	if f.EntryType != "" {
		add(` AND entry_type = $%d`, f.EntryType)
	}
	return where, args
}

func listPage[T any](ctx context.Context, q db.Querier, table, cols, order string, where string, args []any,
	limit, offset int, scan func(pgx.Row) (*T, error)) ([]*T, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	rows, err := q.Query(ctx, `SELECT `+cols+` FROM `+table+where+
		fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, order, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*T
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func expectOne(err error, rows int64) error {
	if err != nil {
		return err
	}
	if rows == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// =========== Sale Repository ===========

type saleRepoPG struct{ pool *pgxpool.Pool }

func NewSaleRepoPG(pool *pgxpool.Pool) SaleRepository { return &saleRepoPG{pool: pool} }

const saleCols = `id, doctor_id, client_name, folio, sale_date, total, amount_paid,
	payment_status, notes, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.DoctorID, &s.ClientName, &s.Folio, &s.SaleDate, &s.Total, &s.AmountPaid,
		&s.PaymentStatus, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepoPG) Create(ctx context.Context, s *Sale) error {
	s.ID = uuid.New()
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO sales (id, doctor_id, client_name, folio, sale_date, total, amount_paid, payment_status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		s.ID, s.DoctorID, s.ClientName, s.Folio, s.SaleDate, s.Total, s.AmountPaid, s.PaymentStatus, s.Notes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *saleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return scanSale(db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+saleCols+` FROM sales WHERE id = $1`, id))
}

func (r *saleRepoPG) Update(ctx context.Context, s *Sale) error {
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		UPDATE sales SET client_name=$2, folio=$3, sale_date=$4, total=$5, amount_paid=$6,
			payment_status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.ClientName, s.Folio, s.SaleDate, s.Total, s.AmountPaid, s.PaymentStatus, s.Notes,
	).Scan(&s.UpdatedAt)
}

func (r *saleRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Sale, int, error) {
	f.EntryType = ""
	where, args := whereClause(f, "sale_date")
	return listPage(ctx, db.Resolve(ctx, r.pool), "sales", saleCols, "sale_date DESC, created_at DESC",
		where, args, limit, offset, scanSale)
}

func (r *saleRepoPG) ApplyPayment(ctx context.Context, id uuid.UUID, p Payment) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `
		UPDATE sales SET total=$2, amount_paid=$3, payment_status=$4, updated_at=NOW()
		WHERE id = $1`, id, p.Total, p.AmountPaid, p.Status)
	return expectOne(err, tag.RowsAffected())
}

// =========== Purchase Repository ===========

type purchaseRepoPG struct{ pool *pgxpool.Pool }

func NewPurchaseRepoPG(pool *pgxpool.Pool) PurchaseRepository { return &purchaseRepoPG{pool: pool} }

const purchaseCols = `id, doctor_id, supplier_name, folio, purchase_date, total, amount_paid,
	payment_status, notes, created_at, updated_at`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.DoctorID, &p.SupplierName, &p.Folio, &p.PurchaseDate, &p.Total, &p.AmountPaid,
		&p.PaymentStatus, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepoPG) Create(ctx context.Context, p *Purchase) error {
	p.ID = uuid.New()
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO purchases (id, doctor_id, supplier_name, folio, purchase_date, total, amount_paid, payment_status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.SupplierName, p.Folio, p.PurchaseDate, p.Total, p.AmountPaid, p.PaymentStatus, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *purchaseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return scanPurchase(db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+purchaseCols+` FROM purchases WHERE id = $1`, id))
}

func (r *purchaseRepoPG) Update(ctx context.Context, p *Purchase) error {
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		UPDATE purchases SET supplier_name=$2, folio=$3, purchase_date=$4, total=$5, amount_paid=$6,
			payment_status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.SupplierName, p.Folio, p.PurchaseDate, p.Total, p.AmountPaid, p.PaymentStatus, p.Notes,
	).Scan(&p.UpdatedAt)
}

func (r *purchaseRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Purchase, int, error) {
	f.EntryType = ""
	where, args := whereClause(f, "purchase_date")
	return listPage(ctx, db.Resolve(ctx, r.pool), "purchases", purchaseCols, "purchase_date DESC, created_at DESC",
		where, args, limit, offset, scanPurchase)
}

func (r *purchaseRepoPG) ApplyPayment(ctx context.Context, id uuid.UUID, p Payment) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `
		UPDATE purchases SET total=$2, amount_paid=$3, payment_status=$4, updated_at=NOW()
		WHERE id = $1`, id, p.Total, p.AmountPaid, p.Status)
	return expectOne(err, tag.RowsAffected())
}

// =========== Ledger Repository ===========

type ledgerRepoPG struct{ pool *pgxpool.Pool }

func NewLedgerRepoPG(pool *pgxpool.Pool) LedgerRepository { return &ledgerRepoPG{pool: pool} }

const ledgerCols = `id, doctor_id, entry_type, concept, entry_date, amount, amount_paid,
	payment_status, sale_id, purchase_id, created_at, updated_at`

func scanLedger(row pgx.Row) (*LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(&e.ID, &e.DoctorID, &e.EntryType, &e.Concept, &e.EntryDate, &e.Amount, &e.AmountPaid,
		&e.PaymentStatus, &e.SaleID, &e.PurchaseID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ledgerRepoPG) Create(ctx context.Context, e *LedgerEntry) error {
	e.ID = uuid.New()
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ledger_entries (id, doctor_id, entry_type, concept, entry_date, amount, amount_paid,
			payment_status, sale_id, purchase_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		e.ID, e.DoctorID, e.EntryType, e.Concept, e.EntryDate, e.Amount, e.AmountPaid,
		e.PaymentStatus, e.SaleID, e.PurchaseID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *ledgerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error) {
	return scanLedger(db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+ledgerCols+` FROM ledger_entries WHERE id = $1`, id))
}

func (r *ledgerRepoPG) Update(ctx context.Context, e *LedgerEntry) error {
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		UPDATE ledger_entries SET entry_type=$2, concept=$3, entry_date=$4, amount=$5, amount_paid=$6,
			payment_status=$7, sale_id=$8, purchase_id=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, e.EntryType, e.Concept, e.EntryDate, e.Amount, e.AmountPaid,
		e.PaymentStatus, e.SaleID, e.PurchaseID,
	).Scan(&e.UpdatedAt)
}

func (r *ledgerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	return expectOne(err, tag.RowsAffected())
}

func (r *ledgerRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*LedgerEntry, int, error) {
	where, args := whereClause(f, "entry_date")
	return listPage(ctx, db.Resolve(ctx, r.pool), "ledger_entries", ledgerCols, "entry_date DESC, created_at DESC",
		where, args, limit, offset, scanLedger)
}

func (r *ledgerRepoPG) Totals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*Totals, error) {
	var t Totals
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'EXPENSE'), 0),
			COALESCE(SUM(amount_paid) FILTER (WHERE entry_type = 'INCOME'), 0),
			COALESCE(SUM(amount_paid) FILTER (WHERE entry_type = 'EXPENSE'), 0)
		FROM ledger_entries
		WHERE doctor_id = $1 AND entry_date BETWEEN $2 AND $3`,
		doctorID, from, to,
	).Scan(&t.Income, &t.Expense, &t.IncomeCollected, &t.ExpensePaid)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
