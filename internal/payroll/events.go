package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaidEvent is emitted after a payroll commits into paid. Handlers run
// outside the payroll transaction; a failed handler never rolls the payout
// back.
type PaidEvent struct {
	PayrollID    int64
	UserID       int64
	EmployeeName string
	Period       string
	NetAmount    decimal.Decimal
	ActorID      int64
	PaidAt       time.Time
}

// IntegrationHandler receives payout events, typically to post the matching
// expense transaction.
type IntegrationHandler interface {
	HandlePayrollPaid(ctx context.Context, evt PaidEvent) error
}
