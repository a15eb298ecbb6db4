// Package api exposes the engine over REST and WebSocket, translating
// between wire shapes and engine.EngineHandle calls. It never touches the
// engine's internals directly.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mkhoshkam/clob/engine"
)

// Server wraps a gin.Engine wired to one EngineHandle.
type Server struct {
	router *gin.Engine
	handle *engine.EngineHandle
	log    zerolog.Logger
}

// NewServer builds the router and registers every route in §6 of the
// engine's external interface contract.
func NewServer(handle *engine.EngineHandle, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(permissiveCORS())

	s := &Server{router: router, handle: handle, log: log}

	router.GET("/api/health", s.health)
	router.POST("/api/orders", s.submitOrder)
	router.GET("/api/orderbook", s.getOrderBook)
	router.GET("/ws/market", s.marketStream)

	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "clob-engine"})
}

// permissiveCORS allows any origin, method, and header. This is a
// market-data demo service, not a production origin policy.
func permissiveCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
