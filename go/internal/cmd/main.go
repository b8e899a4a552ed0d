// Command cmd runs the draft server: the engine, its RPC surface and the
// in-process gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
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
		log.Warn().Err(err).Msg("invalid LOG_LEVEL, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config, err := loadConfig(getEnv("DRAFT_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway failed")
		}
	}()

	server := setupServer(":"+getEnv("PORT", "8080"), services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// Drafts flush their pending events before the sinks are closed.
	services.Close()
	<-gatewayDone

	log.Info().Msg("shutdown complete")
}
