package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mkhoshkam/clob/engine"
)

// submitOrderRequest is the wire shape for POST /api/orders. Price and
// quantity travel as strings so precision survives JSON round-tripping
// losslessly.
type submitOrderRequest struct {
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type submitOrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}

// submitOrder validates side, then price, then quantity before handing
// the request to the engine.
func (s *Server) submitOrder(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, submitOrderResponse{Success: false, Message: "invalid request body"})
		return
	}

	var side engine.Side
	switch strings.ToLower(req.Side) {
	case "buy":
		side = engine.Buy
	case "sell":
		side = engine.Sell
	default:
		c.JSON(http.StatusBadRequest, submitOrderResponse{Success: false, Message: "invalid side, must be 'buy' or 'sell'"})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		c.JSON(http.StatusBadRequest, submitOrderResponse{Success: false, Message: "price must be a positive decimal"})
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		c.JSON(http.StatusBadRequest, submitOrderResponse{Success: false, Message: "quantity must be a positive decimal"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	order, err := s.handle.Submit(ctx, engine.OrderRequest{Side: side, Price: price, Quantity: quantity})
	if err != nil {
		s.log.Warn().Err(err).Msg("order submission failed")
		c.JSON(http.StatusServiceUnavailable, submitOrderResponse{Success: false, Message: "engine unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, submitOrderResponse{
		Success: true,
		Message: "order submitted",
		OrderID: order.ID.String(),
	})
}
