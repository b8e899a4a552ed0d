// Command gateway serves draft WebSocket streams and state snapshots apart
// from the engine. Events arrive over JetStream and snapshots come from the
// Redis projection.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/gateway"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/projection"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	port := getEnv("GATEWAY_PORT", "8081")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("redis", redisAddr).Msg("failed to ping redis")
	}

	log.Info().
		Str("nats_url", natsURL).
		Str("redis", redisAddr).
		Str("port", port).
		Msg("starting draft gateway")

	jsCfg := gateway.DefaultJetStreamConsumerConfig()
	jsCfg.URL = natsURL
	jsCfg.ConsumerName = getEnv("GATEWAY_CONSUMER", jsCfg.ConsumerName)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig = &jsCfg

	provider := gateway.NewProjectionStateProvider(projection.NewRedis(rdb, 0))
	gatewayService, err := gateway.NewService(ctx, gatewayConfig, provider, clockwork.NewRealClock())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		stats := gatewayService.Stats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"draft-gateway","connections":%d,"drafts":%d}`,
			stats.TotalConnections, stats.ActiveDrafts)
	})

	// No WriteTimeout: it would cut long-lived WebSocket connections.
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}
	log.Info().Msg("draft gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
