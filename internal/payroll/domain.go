package payroll

import (
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks a payroll record from draft to payout.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
)

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusPaid:
		return true
	}
	return false
}

// CanTransition reports whether a status change is allowed. Paid is terminal
// and no step may be skipped.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDraft:
		return to == StatusApproved
	case StatusApproved:
		return to == StatusPaid
	}
	return false
}

// Payroll is one employee's pay for one period (YYYY-MM). NetAmount is
// derived: base plus allowance minus deduction.
type Payroll struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	EmployeeName string          `json:"employee_name"`
	Period       string          `json:"period"`
	BaseSalary   decimal.Decimal `json:"base_salary"`
	Allowance    decimal.Decimal `json:"allowance"`
	Deduction    decimal.Decimal `json:"deduction"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	Status       Status          `json:"status"`
	Note         string          `json:"note,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	ApprovedBy   int64           `json:"approved_by,omitempty"`
	PaidBy       int64           `json:"paid_by,omitempty"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateInput describes a new draft payroll.
type CreateInput struct {
	UserID       int64
	EmployeeName string
	Period       string
	BaseSalary   decimal.Decimal
	Allowance    decimal.Decimal
	Deduction    decimal.Decimal
	Note         string
	ActorID      int64
}

// UpdateInput changes amounts on a draft. Nil fields are left as they are.
type UpdateInput struct {
	BaseSalary *decimal.Decimal
	Allowance  *decimal.Decimal
	Deduction  *decimal.Decimal
	Note       *string
	ActorID    int64
}

// ListFilter filters payroll listings.
type ListFilter struct {
	Period  string
	Status  Status
	UserID  int64
	Page    int
	PerPage int
}

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidPeriod reports whether the period is a YYYY-MM month.
func ValidPeriod(period string) bool {
	return periodPattern.MatchString(period)
}

var (
	// ErrNotFound indicates the payroll record does not exist.
	ErrNotFound = errors.New("payroll: record not found")
	// ErrNotDraft indicates amount edits after the draft was approved.
	ErrNotDraft = errors.New("payroll: only drafts can be edited")
	// ErrInvalidTransition indicates a forbidden status change.
	ErrInvalidTransition = errors.New("payroll: invalid status transition")
	// ErrInvalidPeriod indicates a malformed period.
	ErrInvalidPeriod = errors.New("payroll: period must be YYYY-MM")
	// ErrInvalidAmount indicates a negative amount or non-positive net.
	ErrInvalidAmount = errors.New("payroll: amounts must be non negative and net positive")
	// ErrDuplicatePeriod indicates the employee already has a record for the
	// period.
	ErrDuplicatePeriod = errors.New("payroll: record already exists for employee and period")
)
