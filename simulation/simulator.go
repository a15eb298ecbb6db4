// Package simulation generates synthetic order flow against an engine
// handle and reports latency/throughput metrics.
package simulation

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkhoshkam/clob/engine"
)

// Config controls one simulation run.
type Config struct {
	NumOrders          uint64
	BasePrice          decimal.Decimal
	PriceVariance      decimal.Decimal
	MinQuantity        decimal.Decimal
	MaxQuantity        decimal.Decimal
	DelayBetweenOrders time.Duration
}

// DefaultConfig returns the stock simulation parameters: 1000 orders
// around a base price of 100.00 with +/-5.00 variance, and quantities
// between 0.0100 and 1.0000.
func DefaultConfig() Config {
	return Config{
		NumOrders:          1000,
		BasePrice:          decimal.NewFromFloat(100.00),
		PriceVariance:      decimal.NewFromFloat(5.00),
		MinQuantity:        decimal.NewFromFloat(0.0100),
		MaxQuantity:        decimal.NewFromFloat(1.0000),
		DelayBetweenOrders: 100 * time.Microsecond,
	}
}

// Metrics is what a run reports. TradesExecuted and TotalVolumeTraded
// are accumulated from observed bus events.
type Metrics struct {
	OrdersSubmitted     uint64
	TradesExecuted      uint64
	AvgLatency          time.Duration
	MinLatency          time.Duration
	MaxLatency          time.Duration
	ThroughputPerSecond float64
	Duration            time.Duration
	CurrentSpread       *decimal.Decimal
	TotalVolumeTraded   decimal.Decimal
}

// Simulator drives a handle with synthetic order flow.
type Simulator struct {
	handle *engine.EngineHandle
	log    zerolog.Logger
}

// New builds a Simulator bound to handle.
func New(handle *engine.EngineHandle, log zerolog.Logger) *Simulator {
	return &Simulator{handle: handle, log: log}
}

// Run executes one simulation and returns its metrics. It subscribes to
// the bus for the duration of the run solely to count trades and volume.
func (s *Simulator) Run(ctx context.Context, cfg Config) Metrics {
	sub := s.handle.Subscribe()
	defer sub.Unsubscribe()

	var tradesExecuted uint64
	totalVolume := decimal.Zero
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.Events {
			if ev.Kind == engine.EventTrade {
				tradesExecuted++
				totalVolume = totalVolume.Add(ev.Trade.Quantity)
			}
		}
	}()

	start := time.Now()
	latencies := make([]time.Duration, 0, cfg.NumOrders)

	s.log.Info().
		Uint64("num_orders", cfg.NumOrders).
		Str("base_price", cfg.BasePrice.String()).
		Str("variance", cfg.PriceVariance.String()).
		Msg("starting simulation")

	priceOffset := normalizedRange(cfg.PriceVariance.Neg(), cfg.PriceVariance)
	quantityRange := normalizedRange(cfg.MinQuantity, cfg.MaxQuantity)

	for i := uint64(0); i < cfg.NumOrders; i++ {
		side := engine.Buy
		if rand.IntN(2) == 0 {
			side = engine.Sell
		}

		price := cfg.BasePrice.Add(priceOffset.sample())
		quantity := quantityRange.sample()
		if !quantity.IsPositive() {
			quantity = cfg.MinQuantity
		}

		orderStart := time.Now()
		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		_, err := s.handle.Submit(reqCtx, engine.OrderRequest{Side: side, Price: price, Quantity: quantity})
		cancel()
		latencies = append(latencies, time.Since(orderStart))

		if err != nil {
			s.log.Warn().Err(err).Msg("simulation order rejected")
			break
		}

		if cfg.DelayBetweenOrders > 0 {
			time.Sleep(cfg.DelayBetweenOrders)
		}
		if (i+1)%100 == 0 {
			s.log.Debug().Uint64("completed", i+1).Uint64("total", cfg.NumOrders).Msg("simulation progress")
		}
	}

	totalDuration := time.Since(start)

	sub.Unsubscribe()
	<-done

	metrics := Metrics{
		OrdersSubmitted:     cfg.NumOrders,
		TradesExecuted:      tradesExecuted,
		AvgLatency:          averageDuration(latencies),
		MinLatency:          minDuration(latencies),
		MaxLatency:          maxDuration(latencies),
		ThroughputPerSecond: float64(cfg.NumOrders) / totalDuration.Seconds(),
		Duration:            totalDuration,
		TotalVolumeTraded:   totalVolume,
	}

	if snap := s.handle.Snapshot(); snap.HasBid && snap.HasAsk {
		spread := snap.BestAsk.Sub(snap.BestBid)
		metrics.CurrentSpread = &spread
	}

	s.log.Info().
		Uint64("orders", cfg.NumOrders).
		Dur("duration", totalDuration).
		Float64("throughput_per_sec", metrics.ThroughputPerSecond).
		Uint64("trades_executed", tradesExecuted).
		Msg("simulation complete")

	return metrics
}

// decimalRange samples uniformly between min and max. Both bounds are
// normalized to a shared scale first; sampling raw mantissas is only
// correct when the bounds happen to share one.
type decimalRange struct {
	minMantissa int64
	maxMantissa int64
	scale       int32
}

func normalizedRange(min, max decimal.Decimal) decimalRange {
	minR, maxR := decimal.RescalePair(min, max)
	return decimalRange{minMantissa: minR.CoefficientInt64(), maxMantissa: maxR.CoefficientInt64(), scale: minR.Exponent()}
}

func (r decimalRange) sample() decimal.Decimal {
	lo, hi := r.minMantissa, r.maxMantissa
	if hi < lo {
		lo, hi = hi, lo
	}
	span := hi - lo + 1
	m := lo
	if span > 0 {
		m = lo + rand.Int64N(span)
	}
	return decimal.New(m, r.scale)
}

func averageDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

func minDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	m := ds[0]
	for _, d := range ds[1:] {
		if d < m {
			m = d
		}
	}
	return m
}

func maxDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	m := ds[0]
	for _, d := range ds[1:] {
		if d > m {
			m = d
		}
	}
	return m
}
