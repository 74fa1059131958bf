package finance

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the side of the cash ledger a transaction lands on.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Category groups transactions by origin.
type Category string

const (
	CategorySales      Category = "sales"
	CategoryPayroll    Category = "payroll"
	CategoryPurchase   Category = "purchase"
	CategoryAdjustment Category = "adjustment"
	CategoryOther      Category = "other"
)

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	switch c {
	case CategorySales, CategoryPayroll, CategoryPurchase, CategoryAdjustment, CategoryOther:
		return true
	}
	return false
}

// RefKind tags what a transaction points back to.
type RefKind string

const (
	RefNone    RefKind = "none"
	RefSale    RefKind = "sale"
	RefPayroll RefKind = "payroll"
)

// Transaction is one row of the cash ledger. Amounts are stored as exact
// decimals; a transaction is append-only once written.
type Transaction struct {
	ID          int64           `json:"id"`
	Kind        Kind            `json:"kind"`
	Category    Category        `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	RefKind     RefKind         `json:"ref_kind"`
	RefID       int64           `json:"ref_id,omitempty"`
	ActorID     int64           `json:"actor_id,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecordInput describes a transaction to append.
type RecordInput struct {
	Kind        Kind
	Category    Category
	Amount      decimal.Decimal
	Description string
	RefKind     RefKind
	RefID       int64
	ActorID     int64
	OccurredAt  time.Time
}

// ListFilter filters transaction listings.
type ListFilter struct {
	Kind     Kind
	Category Category
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// Summary aggregates the ledger over a period.
type Summary struct {
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

var (
	// ErrInvalidAmount indicates a zero or negative amount.
	ErrInvalidAmount = errors.New("finance: amount must be positive")
	// ErrUnknownKind indicates an unrecognized transaction kind.
	ErrUnknownKind = errors.New("finance: unknown transaction kind")
	// ErrUnknownCategory indicates an unrecognized category.
	ErrUnknownCategory = errors.New("finance: unknown category")
	// ErrDuplicateRef indicates the referenced document already has a
	// transaction in this category.
	ErrDuplicateRef = errors.New("finance: transaction already recorded for reference")
)
