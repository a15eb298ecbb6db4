package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestOrder(side Side, price, qty string) *Order {
	return &Order{
		ID:                uuid.New(),
		Side:              side,
		Price:             decimal.RequireFromString(price),
		Quantity:          decimal.RequireFromString(qty),
		RemainingQuantity: decimal.RequireFromString(qty),
		Status:            New,
	}
}

func TestNewOrderBookIsEmpty(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	if _, ok := ob.BestBid(); ok {
		t.Fatal("expected no best bid on an empty book")
	}
	if _, ok := ob.BestAsk(); ok {
		t.Fatal("expected no best ask on an empty book")
	}
}

// A non-crossing order rests without producing a trade.
func TestRestingOrderProducesNoTrade(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	sell := newTestOrder(Sell, "100", "10")

	trades := ob.Match(sell, time.Now())
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
	ask, ok := ob.BestAsk()
	if !ok || !ask.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected best ask 100, got %v (ok=%v)", ask, ok)
	}
	if sell.Status != New {
		t.Fatalf("expected resting order status New, got %s", sell.Status)
	}
}

// One resting order plus a crossing order produces one trade at the
// resting (maker) price.
func TestSingleCrossProducesOneTradeAtMakerPrice(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	sell := newTestOrder(Sell, "100", "10")
	ob.Match(sell, time.Now())

	buy := newTestOrder(Buy, "100", "10")
	trades := ob.Match(buy, time.Now())

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	trade := trades[0]
	if !trade.Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected trade price 100 (maker price), got %s", trade.Price)
	}
	if trade.MakerOrderID != sell.ID || trade.TakerOrderID != buy.ID {
		t.Fatal("expected maker=sell, taker=buy")
	}
	if trade.TakerSide != Buy {
		t.Fatalf("expected taker side buy, got %s", trade.TakerSide)
	}
}

// An exact-quantity match fully fills both sides and rests nothing.
func TestExactMatchFillsBothSides(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	sell := newTestOrder(Sell, "100", "10")
	ob.Match(sell, time.Now())

	buy := newTestOrder(Buy, "100", "10")
	ob.Match(buy, time.Now())

	if sell.Status != Filled || buy.Status != Filled {
		t.Fatalf("expected both orders filled, got sell=%s buy=%s", sell.Status, buy.Status)
	}
	if !sell.RemainingQuantity.IsZero() || !buy.RemainingQuantity.IsZero() {
		t.Fatal("expected zero remaining quantity on both sides")
	}
	if _, ok := ob.BestAsk(); ok {
		t.Fatal("expected no resting ask after an exact match")
	}
}

// A crossing order larger than the best level sweeps multiple price
// levels in price order.
func TestSweepAcrossMultipleLevels(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	ob.Match(newTestOrder(Sell, "100", "5"), time.Now())
	ob.Match(newTestOrder(Sell, "101", "5"), time.Now())

	buy := newTestOrder(Buy, "101", "8")
	trades := ob.Match(buy, time.Now())

	if len(trades) != 2 {
		t.Fatalf("expected 2 trades sweeping both levels, got %d", len(trades))
	}
	if !trades[0].Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected first fill at the better price 100, got %s", trades[0].Price)
	}
	if !trades[1].Price.Equal(decimal.RequireFromString("101")) {
		t.Fatalf("expected second fill at 101, got %s", trades[1].Price)
	}
	if buy.Status != Filled {
		t.Fatalf("expected incoming order filled, got %s", buy.Status)
	}
}

// Two orders resting at the same price trade in arrival order (FIFO).
func TestFIFOWithinPriceLevel(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	first := newTestOrder(Sell, "100", "5")
	second := newTestOrder(Sell, "100", "5")
	ob.Match(first, time.Now())
	ob.Match(second, time.Now())

	buy := newTestOrder(Buy, "100", "5")
	trades := ob.Match(buy, time.Now())

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].MakerOrderID != first.ID {
		t.Fatal("expected the earlier resting order to trade first")
	}
}

// A partially filled order keeps its original priority (its arrival
// sequence is not reset), so it does not lose its place in line to later
// arrivals at the same price.
func TestPartialFillKeepsPriority(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	early := newTestOrder(Sell, "100", "10")
	ob.Match(early, time.Now())

	// Partially fill `early`.
	ob.Match(newTestOrder(Buy, "100", "4"), time.Now())
	if early.Status != PartiallyFilled {
		t.Fatalf("expected early order partially filled, got %s", early.Status)
	}

	late := newTestOrder(Sell, "100", "10")
	ob.Match(late, time.Now())

	buy := newTestOrder(Buy, "100", "6")
	trades := ob.Match(buy, time.Now())

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].MakerOrderID != early.ID {
		t.Fatal("expected the partially filled earlier order to trade before the later one")
	}
}

// A taker larger than all crossing liquidity consumes it and rests the
// remainder on its own side at its limit price.
func TestTakerResidualRestsOnOwnSide(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	ob.Match(newTestOrder(Sell, "100", "5"), time.Now())

	buy := newTestOrder(Buy, "105", "10")
	trades := ob.Match(buy, time.Now())

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if !trades[0].Price.Equal(decimal.RequireFromString("100")) || !trades[0].Quantity.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("expected a 5@100 fill, got %s@%s", trades[0].Quantity, trades[0].Price)
	}
	if _, ok := ob.BestAsk(); ok {
		t.Fatal("expected the ask side to be emptied")
	}
	bid, ok := ob.BestBid()
	if !ok || !bid.Equal(decimal.RequireFromString("105")) {
		t.Fatalf("expected the residual resting at the taker's limit 105, got %v (ok=%v)", bid, ok)
	}
	if buy.Status != PartiallyFilled {
		t.Fatalf("expected the taker partially filled, got %s", buy.Status)
	}
}

func TestSpreadRequiresBothSides(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	if _, ok := ob.Spread(); ok {
		t.Fatal("expected no spread on an empty book")
	}

	ob.Match(newTestOrder(Sell, "101", "10"), time.Now())
	if _, ok := ob.Spread(); ok {
		t.Fatal("expected no spread with only one side resting")
	}

	ob.Match(newTestOrder(Buy, "100", "10"), time.Now())
	spread, ok := ob.Spread()
	if !ok || !spread.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("expected spread 1, got %v (ok=%v)", spread, ok)
	}
}

// Incoming quantity is conserved: every unit either trades or rests.
func TestMatchedQuantityIsConserved(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	ob.Match(newTestOrder(Sell, "100", "5"), time.Now())
	ob.Match(newTestOrder(Sell, "101", "5"), time.Now())
	ob.Match(newTestOrder(Sell, "102", "5"), time.Now())

	buy := newTestOrder(Buy, "102", "12")
	trades := ob.Match(buy, time.Now())

	if len(trades) != 3 {
		t.Fatalf("expected 3 trades across the swept levels, got %d", len(trades))
	}
	traded := decimal.Zero
	for _, tr := range trades {
		traded = traded.Add(tr.Quantity)
	}
	if !traded.Add(buy.RemainingQuantity).Equal(buy.Quantity) {
		t.Fatalf("quantity not conserved: traded %s + remaining %s != incoming %s",
			traded, buy.RemainingQuantity, buy.Quantity)
	}

	depth := ob.Depth(Sell, 10)
	if len(depth) != 1 || !depth[0].Price.Equal(decimal.RequireFromString("102")) ||
		!depth[0].Quantity.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("expected the last level left with 3 at 102, got %+v", depth)
	}
}

func TestZeroRemainingOrderNeverRests(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	ob.Match(newTestOrder(Sell, "100", "10"), time.Now())
	buy := newTestOrder(Buy, "100", "10")
	ob.Match(buy, time.Now())

	if ob.bids.Len() != 0 {
		t.Fatal("a fully filled incoming order must never be pushed onto the book")
	}
}

func TestDepthAggregatesByPriceLevel(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	ob.Match(newTestOrder(Sell, "100", "5"), time.Now())
	ob.Match(newTestOrder(Sell, "100", "5"), time.Now())
	ob.Match(newTestOrder(Sell, "101", "3"), time.Now())

	depth := ob.Depth(Sell, 10)
	if len(depth) != 2 {
		t.Fatalf("expected 2 aggregated levels, got %d", len(depth))
	}
	if !depth[0].Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected best ask level first, got %s", depth[0].Price)
	}
	if !depth[0].Quantity.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected aggregated quantity 10 at 100, got %s", depth[0].Quantity)
	}
	if depth[0].OrderCount != 2 {
		t.Fatalf("expected 2 orders at the 100 level, got %d", depth[0].OrderCount)
	}
}

func TestDepthRespectsLevelLimit(t *testing.T) {
	ob := NewOrderBook("BTC/USD")
	for _, p := range []string{"100", "101", "102"} {
		ob.Match(newTestOrder(Sell, p, "1"), time.Now())
	}
	depth := ob.Depth(Sell, 2)
	if len(depth) != 2 {
		t.Fatalf("expected depth capped at 2 levels, got %d", len(depth))
	}
}
