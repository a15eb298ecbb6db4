// Package engine implements the order book, matching engine, event bus, and
// handle that together form a single-symbol CLOB core.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side represents the direction of a trading order (buy or sell).
type Side string

const (
	// Buy represents a buy order (bid) - an order to purchase an asset.
	Buy Side = "buy"
	// Sell represents a sell order (ask) - an order to sell an asset.
	Sell Side = "sell"
)

// Status represents the current execution state of an order.
type Status string

const (
	// New indicates the order has been accepted but not yet matched.
	New Status = "new"
	// PartiallyFilled indicates the order has traded but still has quantity remaining.
	PartiallyFilled Status = "partially_filled"
	// Filled indicates the order has no remaining quantity.
	Filled Status = "filled"
	// Cancelled is reserved for a cancellation API this implementation does not expose.
	Cancelled Status = "cancelled"
)

// OrderRequest is what a caller submits to the engine. The engine assigns
// the ID, timestamp, and initial status.
type OrderRequest struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Order is the fundamental unit of trading in the engine. RemainingQuantity
// only ever decreases; Quantity records the original size for reporting.
type Order struct {
	ID                uuid.UUID
	Side              Side
	Price             decimal.Decimal
	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal
	Status            Status
	SubmittedAt       time.Time

	// seq breaks ties between orders submitted within the same clock tick,
	// preserving strict FIFO arrival order independent of time.Time resolution.
	seq uint64
}

// Trade is a single execution resulting from matching an incoming order
// against a resting one. Price is always the maker's (resting) price.
type Trade struct {
	ID           uuid.UUID
	TakerOrderID uuid.UUID
	MakerOrderID uuid.UUID
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	TakerSide    Side
	ExecutedAt   time.Time
}

// DepthLevel is one aggregated price level: total resting quantity and how
// many distinct orders make it up.
type DepthLevel struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	OrderCount int
}
