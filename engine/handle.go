package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrEngineClosed is returned by Submit once the engine's request channel
// has been closed (engine shutting down).
var ErrEngineClosed = errors.New("engine: closed")

// EngineHandle is the only object handed out to collaborators outside the
// core. It never exposes the OrderBook or the engine's internals, only
// Submit, Subscribe, Snapshot and Shutdown.
type EngineHandle struct {
	// mu serializes Shutdown's close of the request channel against
	// in-flight Submit sends: Shutdown takes the write lock, so it cannot
	// close the channel while any Submit still holds a read lock mid-send.
	mu       sync.RWMutex
	requests chan<- *Order
	bus      *EventBus
	snapshot *snapshotCache
	closed   bool
}

// EngineBuilder wires up a MatchingEngine and its handle with bounded
// channel capacities.
type EngineBuilder struct {
	Symbol         string
	OrderQueueSize int
	EventBusBuffer int
	DepthLevels    int
	Logger         zerolog.Logger
}

// NewEngineBuilder returns a builder with the defaults: a 10000 deep
// order queue, 1000 deep per-subscriber event buffers, 10 depth levels per
// published snapshot side.
func NewEngineBuilder(symbol string) *EngineBuilder {
	return &EngineBuilder{
		Symbol:         symbol,
		OrderQueueSize: 10000,
		EventBusBuffer: 1000,
		DepthLevels:    10,
		Logger:         zerolog.Nop(),
	}
}

// Build constructs the engine and its handle. The caller is responsible for
// running engine.Run(ctx) in its own goroutine.
func (b *EngineBuilder) Build() (*MatchingEngine, *EngineHandle) {
	requests := make(chan *Order, b.OrderQueueSize)
	bus := NewEventBus(b.EventBusBuffer)
	snap := newSnapshotCache()

	eng := NewMatchingEngine(b.Symbol, requests, bus, snap, b.DepthLevels, b.Logger)
	handle := &EngineHandle{requests: requests, bus: bus, snapshot: snap}
	return eng, handle
}

// Submit builds an Order from req and enqueues it for matching. It returns
// ErrEngineClosed if Shutdown has already been called; otherwise it blocks
// under back-pressure until the send succeeds or ctx is cancelled. A Submit
// that is already blocked is not released by Shutdown.
func (h *EngineHandle) Submit(ctx context.Context, req OrderRequest) (*Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrEngineClosed
	}

	order := &Order{
		ID:                uuid.New(),
		Side:              req.Side,
		Price:             req.Price,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		Status:            New,
		SubmittedAt:       time.Now(),
	}

	select {
	case h.requests <- order:
		return order, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe returns a new receiver on the engine's event bus.
func (h *EngineHandle) Subscribe() *Subscription {
	return h.bus.Subscribe()
}

// Snapshot returns the most recently published order book state without
// going through the bus or the engine loop.
func (h *EngineHandle) Snapshot() OrderBookUpdate {
	return h.snapshot.Get()
}

// Shutdown closes the inbound request channel, letting the engine drain
// in-flight requests and exit its Run loop. It waits for in-flight Submit
// calls to resolve before closing, so callers should bound their Submit
// contexts. Safe to call more than once.
func (h *EngineHandle) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.requests)
}
