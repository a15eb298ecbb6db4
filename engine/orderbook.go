package engine

import (
	"container/heap"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// orderHeap is a slice of Order pointers implementing heap.Interface. It is
// the base type for both bid and ask heaps; Less is supplied by the
// embedding type to give each side its own price ordering.
type orderHeap []*Order

func (h orderHeap) Len() int      { return len(h) }
func (h orderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *orderHeap) Push(x interface{}) {
	*h = append(*h, x.(*Order))
}

func (h *orderHeap) Pop() interface{} {
	n := len(*h)
	x := (*h)[n-1]
	(*h)[n-1] = nil
	*h = (*h)[:n-1]
	return x
}

// bidHeap is a max-heap by price: the highest bid is the best bid. Within a
// price, the order with the lower seq (earlier arrival) sorts first.
type bidHeap struct{ orderHeap }

func (h bidHeap) Less(i, j int) bool {
	if !h.orderHeap[i].Price.Equal(h.orderHeap[j].Price) {
		return h.orderHeap[i].Price.GreaterThan(h.orderHeap[j].Price)
	}
	return h.orderHeap[i].seq < h.orderHeap[j].seq
}

// askHeap is a min-heap by price: the lowest ask is the best ask. Within a
// price, the order with the lower seq (earlier arrival) sorts first.
type askHeap struct{ orderHeap }

func (h askHeap) Less(i, j int) bool {
	if !h.orderHeap[i].Price.Equal(h.orderHeap[j].Price) {
		return h.orderHeap[i].Price.LessThan(h.orderHeap[j].Price)
	}
	return h.orderHeap[i].seq < h.orderHeap[j].seq
}

// OrderBook holds one symbol's resting orders in price-time priority. It is
// owned by exactly one goroutine (the MatchingEngine's event loop) and takes
// no locks of its own: single-writer ownership is what makes the hot path
// lock-free, not careful locking.
type OrderBook struct {
	Symbol  string
	bids    *bidHeap
	asks    *askHeap
	nextSeq uint64
}

// NewOrderBook creates an empty order book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	b := &bidHeap{}
	a := &askHeap{}
	heap.Init(b)
	heap.Init(a)
	return &OrderBook{Symbol: symbol, bids: b, asks: a}
}

// min returns the smaller of two decimals.
func min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Match matches order against the resting opposite side, resting whatever
// remains on order's own side, and returns the trades produced. order's
// Status and RemainingQuantity are updated in place. now is the timestamp
// stamped onto resulting trades.
func (ob *OrderBook) Match(order *Order, now time.Time) []Trade {
	order.seq = ob.nextSeq
	ob.nextSeq++

	var trades []Trade

	if order.Side == Buy {
		for ob.asks.Len() > 0 && order.RemainingQuantity.IsPositive() {
			top := ob.asks.orderHeap[0]
			if top.Price.GreaterThan(order.Price) {
				break
			}
			heap.Pop(ob.asks)

			qty := min(order.RemainingQuantity, top.RemainingQuantity)
			trades = append(trades, ob.execute(order, top, top.Price, qty, now))

			if top.RemainingQuantity.IsPositive() {
				heap.Push(ob.asks, top)
			}
		}
		if order.RemainingQuantity.IsPositive() {
			ob.addOrder(order)
		}
	} else {
		for ob.bids.Len() > 0 && order.RemainingQuantity.IsPositive() {
			top := ob.bids.orderHeap[0]
			if top.Price.LessThan(order.Price) {
				break
			}
			heap.Pop(ob.bids)

			qty := min(order.RemainingQuantity, top.RemainingQuantity)
			trades = append(trades, ob.execute(order, top, top.Price, qty, now))

			if top.RemainingQuantity.IsPositive() {
				heap.Push(ob.bids, top)
			}
		}
		if order.RemainingQuantity.IsPositive() {
			ob.addOrder(order)
		}
	}

	if order.RemainingQuantity.IsZero() {
		order.Status = Filled
	} else if order.RemainingQuantity.LessThan(order.Quantity) {
		order.Status = PartiallyFilled
	}

	return trades
}

// execute applies one fill of qty at price between the incoming taker order
// and a resting maker order, updating both in place and returning the Trade.
func (ob *OrderBook) execute(taker, maker *Order, price, qty decimal.Decimal, now time.Time) Trade {
	taker.RemainingQuantity = taker.RemainingQuantity.Sub(qty)
	maker.RemainingQuantity = maker.RemainingQuantity.Sub(qty)

	if maker.RemainingQuantity.IsZero() {
		maker.Status = Filled
	} else {
		maker.Status = PartiallyFilled
	}

	trade := Trade{
		ID:           uuid.New(),
		TakerOrderID: taker.ID,
		MakerOrderID: maker.ID,
		Price:        price,
		Quantity:     qty,
		TakerSide:    taker.Side,
		ExecutedAt:   now,
	}
	return trade
}

// addOrder rests order on its own side without matching it. The caller has
// already assigned order.seq, so time priority is preserved.
func (ob *OrderBook) addOrder(order *Order) {
	if order.Side == Buy {
		heap.Push(ob.bids, order)
	} else {
		heap.Push(ob.asks, order)
	}
}

// BestBid returns the highest resting bid price, if any.
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	if ob.bids.Len() == 0 {
		return decimal.Decimal{}, false
	}
	return ob.bids.orderHeap[0].Price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if ob.asks.Len() == 0 {
		return decimal.Decimal{}, false
	}
	return ob.asks.orderHeap[0].Price, true
}

// Spread returns best ask minus best bid when both sides have liquidity.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	if !hasBid || !hasAsk {
		return decimal.Decimal{}, false
	}
	return ask.Sub(bid), true
}

// Depth aggregates resting orders on side into up to levels price levels,
// ordered from best to worst.
func (ob *OrderBook) Depth(side Side, levels int) []DepthLevel {
	if levels <= 0 {
		return nil
	}

	var h orderHeap
	if side == Buy {
		h = ob.bids.orderHeap
	} else {
		h = ob.asks.orderHeap
	}
	if len(h) == 0 {
		return nil
	}

	sorted := make([]*Order, len(h))
	copy(sorted, h)
	if side == Buy {
		sortOrders(sorted, func(a, b *Order) bool { return a.Price.GreaterThan(b.Price) })
	} else {
		sortOrders(sorted, func(a, b *Order) bool { return a.Price.LessThan(b.Price) })
	}

	var out []DepthLevel
	i := 0
	for i < len(sorted) && len(out) < levels {
		price := sorted[i].Price
		qty := decimal.Zero
		count := 0
		for i < len(sorted) && sorted[i].Price.Equal(price) {
			qty = qty.Add(sorted[i].RemainingQuantity)
			count++
			i++
		}
		out = append(out, DepthLevel{Price: price, Quantity: qty, OrderCount: count})
	}
	return out
}

// sortOrders is a small insertion sort: order books rarely have enough
// distinct resting orders at snapshot time for anything fancier to matter,
// and it keeps this package free of a sort.Slice closure allocation per call.
func sortOrders(o []*Order, less func(a, b *Order) bool) {
	for i := 1; i < len(o); i++ {
		for j := i; j > 0 && less(o[j], o[j-1]); j-- {
			o[j], o[j-1] = o[j-1], o[j]
		}
	}
}
