package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mkhoshkam/clob/engine"
)

var upgrader = websocket.Upgrader{
	// The API already applies a permissive CORS policy to every route; the
	// WebSocket upgrade follows the same origin policy rather than its own.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the tagged-union wire shape sent to market data
// subscribers, discriminated by Type.
type wsMessage struct {
	Type string `json:"type"`

	Message string `json:"message,omitempty"`

	Price     string `json:"price,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
	Side      string `json:"side,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	BestBid *string          `json:"best_bid,omitempty"`
	BestAsk *string          `json:"best_ask,omitempty"`
	Bids    []depthLevelJSON `json:"bids,omitempty"`
	Asks    []depthLevelJSON `json:"asks,omitempty"`
}

// marketStream upgrades to a WebSocket, subscribes to the engine's event
// bus, and forwards trade and order-book events as JSON frames until the
// client disconnects.
func (s *Server) marketStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.handle.Subscribe()
	defer sub.Unsubscribe()

	if err := conn.WriteJSON(wsMessage{Type: "connected", Message: "connected to CLOB market data feed"}); err != nil {
		return
	}

	done := make(chan struct{})
	go s.readLoop(conn, done)

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			msg, skip := toWsMessage(ev)
			if skip {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop drains incoming client frames so gorilla/websocket's default
// ping handler can fire (it replies with Pong automatically) and detects
// Close frames or read errors.
func (s *Server) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func toWsMessage(ev engine.EngineEvent) (wsMessage, bool) {
	switch ev.Kind {
	case engine.EventTrade:
		t := ev.Trade
		return wsMessage{
			Type:      "trade",
			Price:     t.Price.String(),
			Quantity:  t.Quantity.String(),
			Side:      string(t.TakerSide),
			Timestamp: t.ExecutedAt.UnixMilli(),
		}, false
	case engine.EventOrderBookUpdate:
		resp := snapshotToResponse(ev.Snapshot)
		return wsMessage{
			Type:    "order_book",
			BestBid: resp.BestBid,
			BestAsk: resp.BestAsk,
			Bids:    resp.Bids,
			Asks:    resp.Asks,
		}, false
	case engine.EventLagged:
		// A lagged subscriber is not forwarded stale data; the next
		// order_book snapshot supersedes whatever it missed.
		return wsMessage{}, true
	default:
		return wsMessage{}, true
	}
}
