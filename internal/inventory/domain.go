package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported stock ledger movements.
type MovementType string

const (
	// MovementInitial seeds the ledger when a product starts with stock.
	MovementInitial MovementType = "initial"
	// MovementIn represents goods received from a supplier.
	MovementIn MovementType = "in"
	// MovementOut represents goods leaving through a sale.
	MovementOut MovementType = "out"
	// MovementAdjustment is a manual signed correction of the on-hand quantity.
	MovementAdjustment MovementType = "adjustment"
	// MovementCorrection fixes an earlier bookkeeping mistake.
	MovementCorrection MovementType = "correction"
	// MovementReturn represents goods returned by a customer.
	MovementReturn MovementType = "return"
	// MovementDamage writes off damaged or spoiled goods.
	MovementDamage MovementType = "damage"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementInitial, MovementIn, MovementOut, MovementAdjustment, MovementCorrection, MovementReturn, MovementDamage:
		return true
	}
	return false
}

// direction returns +1 for additive types, -1 for subtractive types and 0 for
// types whose quantity carries its own sign.
func (t MovementType) direction() int {
	switch t {
	case MovementInitial, MovementIn, MovementReturn:
		return 1
	case MovementOut, MovementDamage:
		return -1
	default:
		return 0
	}
}

// RefKind tags the record that caused a movement.
type RefKind string

const (
	RefNone       RefKind = ""
	RefSale       RefKind = "sale"
	RefProduct    RefKind = "product"
	RefAdjustment RefKind = "adjustment"
)

// MovementRef is a typed reference to the causing record.
type MovementRef struct {
	Kind RefKind `json:"kind,omitempty"`
	ID   int64   `json:"id,omitempty"`
}

// Movement is one immutable stock ledger entry. Entries are append-only:
// nothing updates or deletes them after commit.
type Movement struct {
	ID          int64          `json:"id"`
	ProductID   int64          `json:"product_id"`
	ActorID     int64          `json:"actor_id"`
	Type        MovementType   `json:"type"`
	Qty         float64        `json:"qty"`
	StockBefore float64        `json:"stock_before"`
	StockAfter  float64        `json:"stock_after"`
	UnitCost    float64        `json:"unit_cost"`
	UnitPrice   float64        `json:"unit_price"`
	Note        string         `json:"note,omitempty"`
	Ref         MovementRef    `json:"ref"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// MovementInput describes a requested stock movement. Qty is a positive
// magnitude for directional types; adjustment and correction quantities carry
// their own sign.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Qty       float64
	UnitPrice float64
	Note      string
	ActorID   int64
	Ref       MovementRef
	Meta      map[string]any
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	ProductID int64
	Type      MovementType
	From      time.Time
	To        time.Time
	Limit     int
}

// Product is the slice of the product row the ledger needs: identity plus the
// stock aggregate the ledger keeps in lockstep with its entries.
type Product struct {
	ID        int64
	Name      string
	Stock     float64
	CostPrice float64
	SellPrice float64
}

// InsufficientStockError rejects a subtractive movement that would drive
// stock negative. The whole operation aborts: no ledger entry, no stock update.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   float64
	Available   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: stok %q tidak mencukupi: diminta %g, tersedia %g (kurang %g)",
		e.ProductName, e.Requested, e.Available, e.Shortfall())
}

// Shortfall returns how many units were missing.
func (e *InsufficientStockError) Shortfall() float64 {
	return e.Requested - e.Available
}

var (
	// ErrInvalidQuantity indicates a zero or wrongly signed quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")
	// ErrUnknownMovementType indicates an unsupported movement type.
	ErrUnknownMovementType = errors.New("inventory: unknown movement type")
	// ErrProductNotFound indicates the referenced product row is missing.
	ErrProductNotFound = errors.New("inventory: product not found")
)
