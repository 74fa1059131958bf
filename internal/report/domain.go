package report

import (
	"errors"
	"time"
)

// Kind selects what a report covers.
type Kind string

const (
	KindSalesDaily   Kind = "sales_daily"
	KindSalesMonthly Kind = "sales_monthly"
	KindStock        Kind = "stock"
	KindFinance      Kind = "finance"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindSalesDaily, KindSalesMonthly, KindStock, KindFinance:
		return true
	}
	return false
}

// Status tracks a report from request to rendered PDF. A request needs an
// approval before any rendering happens.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Report is one report request plus its rendered artifact.
type Report struct {
	ID          int64      `json:"id"`
	Kind        Kind       `json:"kind"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	Status      Status     `json:"status"`
	RequestedBy int64      `json:"requested_by"`
	ReviewedBy  int64      `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
	Error       string     `json:"error,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	RenderedAt  *time.Time `json:"rendered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RequestInput describes a new report request.
type RequestInput struct {
	Kind        Kind
	PeriodStart time.Time
	PeriodEnd   time.Time
	ActorID     int64
}

// ListFilter filters report listings.
type ListFilter struct {
	Kind    Kind
	Status  Status
	Page    int
	PerPage int
}

var (
	// ErrNotFound indicates the report does not exist.
	ErrNotFound = errors.New("report: report not found")
	// ErrUnknownKind indicates an unrecognized report kind.
	ErrUnknownKind = errors.New("report: unknown report kind")
	// ErrInvalidPeriod indicates an empty or inverted period.
	ErrInvalidPeriod = errors.New("report: period end must be after period start")
	// ErrNotPending indicates a review decision on an already reviewed report.
	ErrNotPending = errors.New("report: report is not pending review")
	// ErrNotApproved indicates rendering was attempted before approval.
	ErrNotApproved = errors.New("report: report is not approved")
	// ErrNotReady indicates a download before the PDF exists.
	ErrNotReady = errors.New("report: report has no rendered document")
)
