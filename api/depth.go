package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkhoshkam/clob/engine"
)

type depthLevelJSON [2]string

type orderBookResponse struct {
	BestBid *string          `json:"best_bid"`
	BestAsk *string          `json:"best_ask"`
	Bids    []depthLevelJSON `json:"bids"`
	Asks    []depthLevelJSON `json:"asks"`
}

// getOrderBook serves the snapshot cache directly: it never goes through
// the engine loop, so a slow caller can never stall matching.
func (s *Server) getOrderBook(c *gin.Context) {
	snap := s.handle.Snapshot()
	c.JSON(http.StatusOK, snapshotToResponse(snap))
}

func snapshotToResponse(snap engine.OrderBookUpdate) orderBookResponse {
	// Empty sides serialize as [] rather than null.
	resp := orderBookResponse{Bids: []depthLevelJSON{}, Asks: []depthLevelJSON{}}
	if snap.HasBid {
		v := snap.BestBid.String()
		resp.BestBid = &v
	}
	if snap.HasAsk {
		v := snap.BestAsk.String()
		resp.BestAsk = &v
	}
	for _, lvl := range snap.BidDepth {
		resp.Bids = append(resp.Bids, depthLevelJSON{lvl.Price.String(), lvl.Quantity.String()})
	}
	for _, lvl := range snap.AskDepth {
		resp.Asks = append(resp.Asks, depthLevelJSON{lvl.Price.String(), lvl.Quantity.String()})
	}
	return resp
}
