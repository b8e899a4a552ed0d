// Command outbox relays committed draft events from the Postgres outbox to
// the DRAFT_EVENTS JetStream stream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dynasty-draft/go/internal/dbconfig"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().Str("dsn", cfg.Redacted()).Msg("connected to database")

	store := outbox.NewStore(db, outbox.DefaultListenerConfig().NotifyChannel)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = getEnv("NATS_URL", jsCfg.URL)
	publisher, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	metrics := outbox.NewCountingMetrics()
	listener, err := outbox.NewListener(db, publisher, metrics, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	health := outbox.NewHealthChecker(db, store.Pending, listener, publisher, metrics, 5*time.Minute)
	mux := http.NewServeMux()
	mux.Handle("/health", health)
	server := &http.Server{
		Addr:              ":" + getEnv("RELAY_HEALTH_PORT", "8082"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health endpoint listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health endpoint failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting outbox relay")
		errCh <- listener.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		// Start closes the pq listener on its way out.
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("stop listener")
		}
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("listener exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health endpoint shutdown failed")
	}

	processed, last := listener.Stats()
	log.Info().
		Uint64("processed", processed).
		Time("last_event", last).
		Msg("outbox relay stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
