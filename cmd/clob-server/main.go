// Command clob-server runs the CLOB engine behind a REST + WebSocket API,
// with an optional Postgres trade journaler.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mkhoshkam/clob/api"
	"github.com/mkhoshkam/clob/engine"
	"github.com/mkhoshkam/clob/internal/logging"
	"github.com/mkhoshkam/clob/persistence"
)

func main() {
	log := logging.New("clob-engine", envOr("LOG_LEVEL", "info"))
	log.Info().Msg("starting CLOB engine")

	symbol := envOr("SYMBOL", "BTC/USD")
	builder := engine.NewEngineBuilder(symbol)
	builder.OrderQueueSize = envIntOr("ORDER_QUEUE_SIZE", builder.OrderQueueSize)
	builder.EventBusBuffer = envIntOr("EVENT_BUS_BUFFER", builder.EventBusBuffer)
	builder.DepthLevels = envIntOr("DEPTH_LEVELS", builder.DepthLevels)
	builder.Logger = log

	eng, handle := builder.Build()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx)
	}()

	journalerDone := make(chan struct{})
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		journaler, err := persistence.NewTradeJournaler(ctx, dbURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := journaler.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		go func() {
			defer close(journalerDone)
			journaler.Run(ctx, handle)
			journaler.Close()
		}()
	} else {
		mock := persistence.NewMockJournaler(log)
		go func() {
			defer close(journalerDone)
			mock.Run(ctx, handle)
		}()
	}

	server := api.NewServer(handle, log)
	addr := ":" + envOr("PORT", "8080")
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	handle.Shutdown()
	<-engineDone
	<-journalerDone
	log.Info().Msg("clob engine stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
