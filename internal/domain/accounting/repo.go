package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SaleRepository interface {
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	Update(ctx context.Context, s *Sale) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Sale, int, error)
	// ApplyPayment overwrites the money columns only.
	ApplyPayment(ctx context.Context, id uuid.UUID, p Payment) error
}

type PurchaseRepository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error)
	Update(ctx context.Context, p *Purchase) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Purchase, int, error)
	ApplyPayment(ctx context.Context, id uuid.UUID, p Payment) error
}

type LedgerRepository interface {
	Create(ctx context.Context, e *LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	Update(ctx context.Context, e *LedgerEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*LedgerEntry, int, error)
	Totals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*Totals, error)
}
