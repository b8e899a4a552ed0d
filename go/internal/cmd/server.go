package main

import (
	"encoding/json"
	"net/http"

	"github.com/mcdev12/dynasty-draft/go/internal/draft"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(addr string, services *Services) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: newHandler(services),
	}
}

func newHandler(services *Services) http.Handler {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, services)
	setupHealthCheck(mux, services)

	// Serve HTTP/2 without TLS so connect clients can use either protocol.
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func registerServices(mux *http.ServeMux, services *Services) {
	draftPath, draftHandler := draft.NewDraftServiceHandler(services.Draft)
	mux.Handle(draftPath, draftHandler)

	services.Gateway.RegisterRoutes(mux)
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(services.Metrics.Snapshot()); err != nil {
			log.Error().Err(err).Msg("failed to write metrics response")
		}
	})
}
