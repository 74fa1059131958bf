package sales

import (
	"context"
	"time"
)

// CompletedEvent is emitted after a sale commits into completed. Handlers
// run outside the sale's transaction; a failed handler never rolls the sale
// back.
type CompletedEvent struct {
	SaleID        int64
	Number        string
	Total         float64
	TotalCost     float64
	TotalProfit   float64
	PaymentMethod PaymentMethod
	ActorID       int64
	CompletedAt   time.Time
}

// IntegrationHandler receives completion events, typically to post the
// matching financial transaction.
type IntegrationHandler interface {
	HandleSaleCompleted(ctx context.Context, evt CompletedEvent) error
}
