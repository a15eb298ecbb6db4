package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// MatchingEngine is the single goroutine allowed to touch an OrderBook. It
// pulls requests off a bounded channel one at a time, matches each against
// the book, and publishes what happened onto an EventBus, in that order, with
// no other request interleaved in between.
type MatchingEngine struct {
	book        *OrderBook
	requests    <-chan *Order
	bus         *EventBus
	snapshot    *snapshotCache
	depthLevels int
	log         zerolog.Logger
}

// NewMatchingEngine builds an engine for symbol. requests is the inbound
// order queue (see EngineBuilder for how it is sized); bus is where
// resulting events are published; snap is the RWMutex-guarded cache kept in
// sync for read-only collaborators (see snapshot.go); depthLevels is how
// many price levels each published snapshot carries per side.
func NewMatchingEngine(symbol string, requests <-chan *Order, bus *EventBus, snap *snapshotCache, depthLevels int, log zerolog.Logger) *MatchingEngine {
	if depthLevels <= 0 {
		depthLevels = 10
	}
	return &MatchingEngine{
		book:        NewOrderBook(symbol),
		requests:    requests,
		bus:         bus,
		snapshot:    snap,
		depthLevels: depthLevels,
		log:         log.With().Str("symbol", symbol).Logger(),
	}
}

// Run is the engine's event loop. It returns once ctx is cancelled (after
// finishing any in-flight request) or the request channel is closed, and
// closes the event bus on its way out.
func (m *MatchingEngine) Run(ctx context.Context) {
	m.log.Info().Msg("matching engine started")
	defer func() {
		m.bus.Close()
		m.log.Info().Msg("matching engine shut down")
	}()

	for {
		select {
		case req, ok := <-m.requests:
			if !ok {
				return
			}
			m.process(req)
		case <-ctx.Done():
			return
		}
	}
}

// process matches one order and publishes the resulting trades followed by
// exactly one order book snapshot.
func (m *MatchingEngine) process(order *Order) {
	now := time.Now()
	m.log.Debug().
		Str("order_id", order.ID.String()).
		Str("side", string(order.Side)).
		Str("price", order.Price.String()).
		Str("quantity", order.Quantity.String()).
		Msg("processing order")

	trades := m.book.Match(order, now)

	for _, t := range trades {
		m.log.Debug().
			Str("trade_id", t.ID.String()).
			Str("price", t.Price.String()).
			Str("quantity", t.Quantity.String()).
			Msg("trade executed")
		m.bus.Publish(EngineEvent{Kind: EventTrade, Trade: t})
	}

	update := m.buildSnapshot()
	m.snapshot.set(update)
	m.bus.Publish(EngineEvent{Kind: EventOrderBookUpdate, Snapshot: update})
}

func (m *MatchingEngine) buildSnapshot() OrderBookUpdate {
	bid, hasBid := m.book.BestBid()
	ask, hasAsk := m.book.BestAsk()
	return OrderBookUpdate{
		BestBid:  bid,
		HasBid:   hasBid,
		BestAsk:  ask,
		HasAsk:   hasAsk,
		BidDepth: m.book.Depth(Buy, m.depthLevels),
		AskDepth: m.book.Depth(Sell, m.depthLevels),
	}
}
