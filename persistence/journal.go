// Package persistence journals trades produced by the engine, either to a
// real Postgres database or, when none is configured, to the log.
package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mkhoshkam/clob/engine"
)

const (
	flushBatchSize = 100
	flushInterval  = 100 * time.Millisecond
)

// TradeJournaler batches Trade events and writes them to Postgres: flush
// at 100 buffered trades or every 100ms, whichever comes first.
type TradeJournaler struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewTradeJournaler opens a connection pool to databaseURL.
func NewTradeJournaler(ctx context.Context, databaseURL string, log zerolog.Logger) (*TradeJournaler, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &TradeJournaler{pool: pool, log: log}, nil
}

// Migrate creates the trades/orders tables and the timestamp index if they
// do not already exist.
func (j *TradeJournaler) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			taker_order_id UUID NOT NULL,
			maker_order_id UUID NOT NULL,
			price NUMERIC NOT NULL,
			quantity NUMERIC NOT NULL,
			taker_side VARCHAR(4) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			side VARCHAR(4) NOT NULL,
			price NUMERIC NOT NULL,
			quantity NUMERIC NOT NULL,
			remaining_quantity NUMERIC NOT NULL,
			status VARCHAR(20) NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := j.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	j.log.Info().Msg("database migrations completed")
	return nil
}

// Run subscribes to the engine's bus and journals trades until ctx is
// cancelled or the bus closes, flushing any remaining buffered trades
// before it returns.
func (j *TradeJournaler) Run(ctx context.Context, handle *engine.EngineHandle) {
	sub := handle.Subscribe()
	defer sub.Unsubscribe()

	buffer := make([]engine.Trade, 0, flushBatchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	j.log.Info().Msg("trade journaler started")

	// On shutdown ctx is usually cancelled before the bus closes, so the
	// final flush gets its own deadline.
	finalFlush := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		j.flush(flushCtx, &buffer)
		cancel()
	}

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				finalFlush()
				return
			}
			switch ev.Kind {
			case engine.EventTrade:
				buffer = append(buffer, ev.Trade)
				if len(buffer) >= flushBatchSize {
					j.flush(ctx, &buffer)
				}
			case engine.EventLagged:
				j.log.Warn().Int("skipped", ev.Lag.Skipped).Msg("journaler lagged behind event bus")
			case engine.EventClosed:
				finalFlush()
				return
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				j.flush(ctx, &buffer)
			}
		case <-ctx.Done():
			// ctx is already cancelled; give the final flush its own deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			j.flush(flushCtx, &buffer)
			cancel()
			return
		}
	}
}

func (j *TradeJournaler) flush(ctx context.Context, buffer *[]engine.Trade) {
	if len(*buffer) == 0 {
		return
	}
	trades := *buffer
	*buffer = (*buffer)[:0]

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(
			`INSERT INTO trades (id, taker_order_id, maker_order_id, price, quantity, taker_side, executed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.TakerOrderID, t.MakerOrderID, t.Price.String(), t.Quantity.String(), string(t.TakerSide), t.ExecutedAt,
		)
	}
	if err := j.pool.SendBatch(ctx, batch).Close(); err != nil {
		j.log.Error().Err(err).Int("count", len(trades)).Msg("failed to persist trade batch")
		return
	}
	j.log.Debug().Int("count", len(trades)).Msg("flushed trades to database")
}

// Close releases the underlying connection pool.
func (j *TradeJournaler) Close() {
	j.pool.Close()
}
