package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/events"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/telemetry"
)

var (
	ErrSaleNotFound     = errors.New("sale not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrEntryNotFound    = errors.New("ledger entry not found")
	ErrNegativeAmount   = errors.New("amounts must not be negative")
	ErrInvalidEntryType = errors.New("entryType must be INCOME or EXPENSE")
	ErrInvalidLink      = errors.New("an INCOME entry may link a sale and an EXPENSE entry a purchase, not both")
	ErrLinkNotFound     = errors.New("linked sale or purchase not found for this doctor")
	ErrNameRequired     = errors.New("clientName or supplierName is required")
	ErrConceptRequired  = errors.New("concept is required")
)

type Service struct {
	sales     SaleRepository
	purchases PurchaseRepository
	ledger    LedgerRepository
	pub       events.Publisher
	logger    zerolog.Logger
}

func NewService(sales SaleRepository, purchases PurchaseRepository, ledger LedgerRepository,
	pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		sales:     sales,
		purchases: purchases,
		ledger:    ledger,
		pub:       pub,
		logger:    logger.With().Str("component", "accounting").Logger(),
	}
}

func checkMoney(total, paid decimal.Decimal) error {
	if total.IsNegative() || paid.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// folio returns a document number when the caller did not supply one.
func folio(prefix string, date time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

// -- Sale --

func (s *Service) prepareSale(sl *Sale) error {
	if strings.TrimSpace(sl.ClientName) == "" {
		return ErrNameRequired
	}
	if err := checkMoney(sl.Total, sl.AmountPaid); err != nil {
		return err
	}
	if sl.Folio == "" {
		sl.Folio = folio("VTA", sl.SaleDate)
	}
	sl.PaymentStatus = ResolvePaymentStatus(sl.AmountPaid, sl.Total)
	return nil
}

func (s *Service) CreateSale(ctx context.Context, sl *Sale) error {
	if err := s.prepareSale(sl); err != nil {
		return err
	}
	return s.sales.Create(ctx, sl)
}

func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	sl, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSaleNotFound)
	}
	return sl, nil
}

func (s *Service) UpdateSale(ctx context.Context, sl *Sale) error {
	if err := s.prepareSale(sl); err != nil {
		return err
	}
	return notFound(s.sales.Update(ctx, sl), ErrSaleNotFound)
}

func (s *Service) ListSales(ctx context.Context, f Filter, limit, offset int) ([]*Sale, int, error) {
	return s.sales.List(ctx, f, limit, offset)
}

// -- Purchase --

func (s *Service) preparePurchase(p *Purchase) error {
	if strings.TrimSpace(p.SupplierName) == "" {
		return ErrNameRequired
	}
	if err := checkMoney(p.Total, p.AmountPaid); err != nil {
		return err
	}
	if p.Folio == "" {
		p.Folio = folio("CMP", p.PurchaseDate)
	}
	p.PaymentStatus = ResolvePaymentStatus(p.AmountPaid, p.Total)
	return nil
}

func (s *Service) CreatePurchase(ctx context.Context, p *Purchase) error {
	if err := s.preparePurchase(p); err != nil {
		return err
	}
	return s.purchases.Create(ctx, p)
}

func (s *Service) GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	p, err := s.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPurchaseNotFound)
	}
	return p, nil
}

func (s *Service) UpdatePurchase(ctx context.Context, p *Purchase) error {
	if err := s.preparePurchase(p); err != nil {
		return err
	}
	return notFound(s.purchases.Update(ctx, p), ErrPurchaseNotFound)
}

func (s *Service) ListPurchases(ctx context.Context, f Filter, limit, offset int) ([]*Purchase, int, error) {
	return s.purchases.List(ctx, f, limit, offset)
}

// -- Ledger --

// prepareEntry checks the entry and that any linked record belongs to the
// same doctor, then derives its payment status.
func (s *Service) prepareEntry(ctx context.Context, e *LedgerEntry) error {
	if strings.TrimSpace(e.Concept) == "" {
		return ErrConceptRequired
	}
	if e.EntryType != EntryIncome && e.EntryType != EntryExpense {
		return ErrInvalidEntryType
	}
	if err := checkMoney(e.Amount, e.AmountPaid); err != nil {
		return err
	}
	if e.SaleID != nil && (e.PurchaseID != nil || e.EntryType != EntryIncome) ||
		e.PurchaseID != nil && e.EntryType != EntryExpense {
		return ErrInvalidLink
	}
	switch {
	case e.SaleID != nil:
		sl, err := s.sales.GetByID(ctx, *e.SaleID)
		if err != nil && !db.IsNotFound(err) {
			return err
		}
		if sl == nil || sl.DoctorID != e.DoctorID {
			return ErrLinkNotFound
		}
	case e.PurchaseID != nil:
		p, err := s.purchases.GetByID(ctx, *e.PurchaseID)
		if err != nil && !db.IsNotFound(err) {
			return err
		}
		if p == nil || p.DoctorID != e.DoctorID {
			return ErrLinkNotFound
		}
	}
	e.PaymentStatus = ResolvePaymentStatus(e.AmountPaid, e.Amount)
	return nil
}

func (s *Service) CreateLedgerEntry(ctx context.Context, e *LedgerEntry) error {
	if err := s.prepareEntry(ctx, e); err != nil {
		return err
	}
	return linkViolation(s.ledger.Create(ctx, e))
}

func (s *Service) GetLedgerEntry(ctx context.Context, id uuid.UUID) (*LedgerEntry, error) {
	e, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrEntryNotFound)
	}
	return e, nil
}

func (s *Service) DeleteLedgerEntry(ctx context.Context, id uuid.UUID) error {
	return notFound(s.ledger.Delete(ctx, id), ErrEntryNotFound)
}

func (s *Service) ListLedgerEntries(ctx context.Context, f Filter, limit, offset int) ([]*LedgerEntry, int, error) {
	return s.ledger.List(ctx, f, limit, offset)
}

func (s *Service) LedgerTotals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*Totals, error) {
	return s.ledger.Totals(ctx, doctorID, from, to)
}

// LedgerUpdate is the outcome of UpdateLedgerEntry. MirrorError is set when
// the entry was saved but its linked sale or purchase could not be updated.
type LedgerUpdate struct {
	Entry       *LedgerEntry `json:"data"`
	Mirrored    string       `json:"mirrored,omitempty"`
	MirrorError string       `json:"mirrorError,omitempty"`
}

// UpdateLedgerEntry saves the entry with a re-derived payment status and
// copies amount, amount paid and status onto the linked sale or purchase.
// The copy is not rolled back into the entry update: a failure is logged and
// reported in the result.
func (s *Service) UpdateLedgerEntry(ctx context.Context, e *LedgerEntry) (*LedgerUpdate, error) {
	if err := s.prepareEntry(ctx, e); err != nil {
		return nil, err
	}
	if err := s.ledger.Update(ctx, e); err != nil {
		return nil, notFound(linkViolation(err), ErrEntryNotFound)
	}

	res := &LedgerUpdate{Entry: e}
	if kind, err := s.mirror(ctx, e); kind != "" {
		res.Mirrored = kind
		if err != nil {
			s.logger.Warn().Err(err).
				Str("ledger_entry_id", e.ID.String()).
				Str("mirror", kind).
				Msg("ledger mirror sync failed")
			res.MirrorError = err.Error()
		}
	}

	events.PublishBestEffort(ctx, s.pub, s.logger, events.Event{
		Type: events.LedgerUpdated,
		Key:  e.DoctorID.String(),
		Payload: map[string]any{
			"tenant":        db.TenantFromContext(ctx),
			"entryId":       e.ID,
			"doctorId":      e.DoctorID,
			"amount":        e.Amount,
			"amountPaid":    e.AmountPaid,
			"paymentStatus": e.PaymentStatus,
			"saleId":        e.SaleID,
			"purchaseId":    e.PurchaseID,
			"mirrorError":   res.MirrorError,
		},
	})
	return res, nil
}

// mirror returns "sale" or "purchase" for the record it tried to update,
// or "" when the entry is not linked.
func (s *Service) mirror(ctx context.Context, e *LedgerEntry) (string, error) {
	var kind string
	switch {
	case e.SaleID != nil:
		kind = "sale"
	case e.PurchaseID != nil:
		kind = "purchase"
	default:
		return "", nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "accounting.mirror_ledger")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.entry_id", e.ID.String()), attribute.String("mirror.kind", kind))

	p := Payment{Total: e.Amount, AmountPaid: e.AmountPaid, Status: e.PaymentStatus}
	var err error
	if kind == "sale" {
		err = s.sales.ApplyPayment(ctx, *e.SaleID, p)
	} else {
		err = s.purchases.ApplyPayment(ctx, *e.PurchaseID, p)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mirror failed")
		return kind, fmt.Errorf("update linked %s: %w", kind, err)
	}
	return kind, nil
}

// linkViolation maps a foreign key failure, a linked sale or purchase deleted
// after the link check, onto ErrLinkNotFound.
func linkViolation(err error) error {
	if db.IsForeignKeyViolation(err) {
		return ErrLinkNotFound
	}
	return err
}

func notFound(err, sentinel error) error {
	if err != nil && db.IsNotFound(err) {
		return sentinel
	}
	return err
}
