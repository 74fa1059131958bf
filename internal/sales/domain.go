package sales

import (
	"errors"
	"time"
)

// SaleStatus tracks a sale through checkout. In-store sales usually jump
// straight from pending to completed; online pickup orders walk the whole
// chain.
type SaleStatus string

const (
	// StatusPending is a sale being assembled or an unpaid online order.
	StatusPending SaleStatus = "pending"
	// StatusPaid means payment is received but goods not yet handed over.
	StatusPaid SaleStatus = "paid"
	// StatusReady means an online order is packed and waiting for pickup.
	StatusReady SaleStatus = "ready"
	// StatusCompleted means goods left the shop: stock is deducted and the
	// financial transaction posted.
	StatusCompleted SaleStatus = "completed"
	// StatusCancelled voids the sale before completion.
	StatusCancelled SaleStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s SaleStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var allowedTransitions = map[SaleStatus][]SaleStatus{
	StatusPending: {StatusPaid, StatusCompleted, StatusCancelled},
	StatusPaid:    {StatusReady, StatusCompleted, StatusCancelled},
	StatusReady:   {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a status change is allowed. Completed and
// cancelled are terminal.
func (s SaleStatus) CanTransition(to SaleStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Editable reports whether line items may still change.
func (s SaleStatus) Editable() bool {
	return s == StatusPending || s == StatusPaid
}

// SaleChannel distinguishes walk-in sales from online pickup orders.
type SaleChannel string

const (
	ChannelStore  SaleChannel = "store"
	ChannelOnline SaleChannel = "online"
)

// Valid reports whether the channel is known.
func (c SaleChannel) Valid() bool {
	switch c {
	case ChannelStore, ChannelOnline:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentDebit    PaymentMethod = "debit"
)

// Valid reports whether the payment method is known.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentTransfer, PaymentQRIS, PaymentDebit:
		return true
	}
	return false
}

// Sale is one transaction (penjualan). Total, TotalCost and TotalProfit are
// denormalized caches over the lines; the lines are the source of truth and
// the totals are recomputed after every line mutation.
type Sale struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Channel       SaleChannel   `json:"channel"`
	Status        SaleStatus    `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Total         float64       `json:"total"`
	TotalCost     float64       `json:"total_cost"`
	TotalProfit   float64       `json:"total_profit"`
	Note          string        `json:"note,omitempty"`
	CreatedBy     int64         `json:"created_by"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Lines         []SaleLine    `json:"lines,omitempty"`
}

// SaleLine is one line item (detail penjualan). CostBasis is the product's
// cost price as read at the latest recomputation, not frozen at sale time.
type SaleLine struct {
	ID           int64     `json:"id"`
	SaleID       int64     `json:"sale_id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Qty          float64   `json:"qty"`
	UnitPrice    float64   `json:"unit_price"`
	Subtotal     float64   `json:"subtotal"`
	CostBasis    float64   `json:"cost_basis"`
	SubtotalCost float64   `json:"subtotal_cost"`
	Profit       float64   `json:"profit"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProductBasis is the slice of the product row the rollup needs.
type ProductBasis struct {
	ID        int64
	Name      string
	CostPrice float64
	SellPrice float64
	Stock     float64
	IsActive  bool
}

// CreateSaleInput describes a new sale with its initial lines.
type CreateSaleInput struct {
	CustomerName  string
	CustomerPhone string
	Channel       SaleChannel
	PaymentMethod PaymentMethod
	Note          string
	ActorID       int64
	Lines         []LineInput
}

// LineInput describes one requested line. A zero UnitPrice means "use the
// product's current sell price".
type LineInput struct {
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// ListFilter filters sale listings.
type ListFilter struct {
	Status  SaleStatus
	Channel SaleChannel
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

var (
	// ErrNotFound indicates the sale does not exist.
	ErrNotFound = errors.New("sales: sale not found")
	// ErrLineNotFound indicates the line does not exist on the sale.
	ErrLineNotFound = errors.New("sales: line not found")
	// ErrNotEditable indicates line edits after the sale left pending/paid.
	ErrNotEditable = errors.New("sales: sale can no longer be edited")
	// ErrInvalidTransition indicates a forbidden status change.
	ErrInvalidTransition = errors.New("sales: invalid status transition")
	// ErrEmptySale indicates completion was requested without any lines.
	ErrEmptySale = errors.New("sales: sale has no lines")
	// ErrInvalidLine indicates a non-positive quantity or price.
	ErrInvalidLine = errors.New("sales: line quantity must be positive and price non negative")
	// ErrProductInactive indicates the product cannot be sold.
	ErrProductInactive = errors.New("sales: product is not active")
)
