package engine

import "github.com/shopspring/decimal"

// EventKind distinguishes the payloads an EngineEvent can carry.
type EventKind int

const (
	// EventTrade carries a Trade.
	EventTrade EventKind = iota
	// EventOrderBookUpdate carries an OrderBookUpdate snapshot.
	EventOrderBookUpdate
	// EventLagged tells a subscriber it missed events; see Lagged.
	EventLagged
	// EventClosed is the terminal event a subscriber sees when the bus shuts down.
	EventClosed
)

// OrderBookUpdate is the named-fields event shape: best bid/ask plus
// top-of-book depth on both sides, published after every processed request.
type OrderBookUpdate struct {
	BestBid  decimal.Decimal
	HasBid   bool
	BestAsk  decimal.Decimal
	HasAsk   bool
	BidDepth []DepthLevel
	AskDepth []DepthLevel
}

// Lagged tells a subscriber how many events it missed because its buffer was full.
type Lagged struct {
	Skipped int
}

// EngineEvent is the one type that ever crosses the event bus. Exactly one
// of its fields is meaningful, selected by Kind.
type EngineEvent struct {
	Kind     EventKind
	Trade    Trade
	Snapshot OrderBookUpdate
	Lag      Lagged
}
