package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
)

type taskRepoPG struct{ pool *pgxpool.Pool }

func NewTaskRepoPG(pool *pgxpool.Pool) TaskRepository { return &taskRepoPG{pool: pool} }

const taskCols = `id, doctor_id, title, description, due_date, start_time, end_time,
	priority, status, category, created_at, updated_at`

func (r *taskRepoPG) scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.DoctorID, &t.Title, &t.Description, &t.DueDate, &t.StartTime, &t.EndTime,
		&t.Priority, &t.Status, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepoPG) collect(rows pgx.Rows) ([]*Task, error) {
	defer rows.Close()
	var items []*Task
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *taskRepoPG) Create(ctx context.Context, t *Task) error {
	t.ID = uuid.New()
	return db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tasks (id, doctor_id, title, description, due_date, start_time, end_time, priority, status, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		t.ID, t.DoctorID, t.Title, t.Description, t.DueDate, t.StartTime, t.EndTime, t.Priority, t.Status, t.Category,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *taskRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return r.scanTask(db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = $1`, id))
}

func (r *taskRepoPG) Update(ctx context.Context, t *Task) error {
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		UPDATE tasks SET title=$2, description=$3, due_date=$4, start_time=$5, end_time=$6,
			priority=$7, status=$8, category=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Title, t.Description, t.DueDate, t.StartTime, t.EndTime, t.Priority, t.Status, t.Category,
	).Scan(&t.UpdatedAt)
	return err
}

func (r *taskRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *taskRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Task, int, error) {
	where := ` WHERE 1=1`
	var args []any
	idx := 1

	if f.DoctorID != uuid.Nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND due_date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND due_date <= $%d`, idx)
		args = append(args, *f.To)
		idx++
	}

	q := db.Resolve(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taskCols + ` FROM tasks` + where +
		fmt.Sprintf(` ORDER BY due_date NULLS LAST, start_time NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *taskRepoPG) ListWithWindow(ctx context.Context, doctorID uuid.UUID, dates []time.Time) ([]*Task, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx, `
		SELECT `+taskCols+` FROM tasks
		WHERE doctor_id = $1 AND due_date = ANY($2)
			AND start_time IS NOT NULL AND end_time IS NOT NULL
		ORDER BY due_date, start_time`,
		doctorID, dates)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}
