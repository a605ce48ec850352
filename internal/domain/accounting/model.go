package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPartial || s == PaymentPaid
}

// ResolvePaymentStatus derives the status of a record from what has been
// paid against its total. Nothing paid is PENDING even when total is zero.
func ResolvePaymentStatus(amountPaid, total decimal.Decimal) PaymentStatus {
	switch {
	case amountPaid.IsZero():
		return PaymentPending
	case amountPaid.GreaterThanOrEqual(total):
		return PaymentPaid
	default:
		return PaymentPartial
	}
}

type EntryType string

const (
	EntryIncome  EntryType = "INCOME"
	EntryExpense EntryType = "EXPENSE"
)

type Sale struct {
	ID            uuid.UUID       `json:"id"`
	DoctorID      uuid.UUID       `json:"doctorId"`
	ClientName    string          `json:"clientName"`
	Folio         string          `json:"folio"`
	SaleDate      time.Time       `json:"saleDate"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Purchase struct {
	ID            uuid.UUID       `json:"id"`
	DoctorID      uuid.UUID       `json:"doctorId"`
	SupplierName  string          `json:"supplierName"`
	Folio         string          `json:"folio"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// LedgerEntry is a bookkeeping line. An INCOME entry may mirror a sale and
// an EXPENSE entry a purchase.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	DoctorID      uuid.UUID       `json:"doctorId"`
	EntryType     EntryType       `json:"entryType"`
	Concept       string          `json:"concept"`
	EntryDate     time.Time       `json:"entryDate"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	SaleID        *uuid.UUID      `json:"saleId,omitempty"`
	PurchaseID    *uuid.UUID      `json:"purchaseId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Payment is the money state copied from a ledger entry onto its mirror.
type Payment struct {
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Status     PaymentStatus
}

type Filter struct {
	DoctorID      uuid.UUID
	From          *time.Time
	To            *time.Time
	PaymentStatus PaymentStatus
	EntryType     EntryType
}

// Totals sums ledger amounts for a doctor over a date range.
type Totals struct {
	Income          decimal.Decimal `json:"income"`
	Expense         decimal.Decimal `json:"expense"`
	IncomeCollected decimal.Decimal `json:"incomeCollected"`
	ExpensePaid     decimal.Decimal `json:"expensePaid"`
}
