package persistence

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mkhoshkam/clob/engine"
)

// MockJournaler logs trades instead of writing them to a database. It is
// what runs when DATABASE_URL is unset.
type MockJournaler struct {
	log zerolog.Logger
}

// NewMockJournaler builds a logging-only journaler.
func NewMockJournaler(log zerolog.Logger) *MockJournaler {
	return &MockJournaler{log: log}
}

// Run subscribes to the engine's bus and logs every trade until ctx is
// cancelled or the bus closes.
func (m *MockJournaler) Run(ctx context.Context, handle *engine.EngineHandle) {
	sub := handle.Subscribe()
	defer sub.Unsubscribe()

	m.log.Info().Msg("mock trade journaler started (no database)")

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if ev.Kind == engine.EventTrade {
				t := ev.Trade
				m.log.Info().
					Str("trade_id", t.ID.String()).
					Str("price", t.Price.String()).
					Str("quantity", t.Quantity.String()).
					Str("side", string(t.TakerSide)).
					Msg("trade executed (mock journaler)")
			}
			if ev.Kind == engine.EventClosed {
				return
			}
		case <-ctx.Done():
			m.log.Info().Msg("mock journaler shutting down")
			return
		}
	}
}
