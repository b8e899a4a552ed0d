package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/autopick"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/gateway"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/orchestrator"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/outbox"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/pool"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/projection"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// playerStore is both the engine's view of the pool and the RPC catalog.
type playerStore interface {
	engine.PlayerPool
	draft.PlayerCatalog
}

type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Draft        *draft.Service
	Gateway      *gateway.Service
	Metrics      *outbox.CountingMetrics

	closers []func()
}

// setupServices wires the engine and everything that consumes its events:
// store → sinks → orchestrator → RPC service and gateway.
func setupServices(ctx context.Context, config *Config) (*Services, error) {
	clock := clockwork.NewRealClock()
	s := &Services{Metrics: outbox.NewCountingMetrics()}

	var (
		players playerStore
		sinks   events.MultiSink
	)

	switch config.Store.Driver {
	case "postgres":
		database, pgPool, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pgPool.Close, func() { database.Close() })

		store, err := setupStore(ctx, database, config.Store.NotifyChannel)
		if err != nil {
			s.Close()
			return nil, err
		}
		sinks = append(sinks, store)
		players = pool.NewPostgresPool(pgPool)
	default:
		memory := pool.NewMemoryPool()
		sinks = append(sinks, memory)
		players = memory
	}

	if config.Projection.Address != "" {
		proj, err := setupProjection(ctx, config.Projection)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = proj.client.Close() })
		sinks = append(sinks, proj.sink)
	}

	// The gateway is created after the orchestrator it reads from, but it
	// exists before the server accepts any request that could emit events.
	var gw *gateway.Service
	sinks = append(sinks, events.SinkFunc(func(ctx context.Context, evt events.Envelope) error {
		if gw == nil {
			return nil
		}
		return gw.Sink().Publish(ctx, evt)
	}))

	resolver := autopick.NewResolver(players, setupRecommender(config, players))
	s.Orchestrator = orchestrator.NewOrchestrator(clock, players, resolver, sinks, s.Metrics, config.orchestratorConfig())
	s.closers = append(s.closers, func() { _ = s.Orchestrator.Close() })

	var err error
	gw, err = gateway.NewService(ctx, gateway.DefaultConfig(), gateway.NewEngineStateProvider(s.Orchestrator), clock)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	s.Gateway = gw
	s.Draft = draft.NewService(s.Orchestrator, players)

	log.Info().
		Str("store", config.Store.Driver).
		Bool("projection", config.Projection.Address != "").
		Bool("remote_recommender", config.Recommender.URL != "").
		Msg("services configured")
	return s, nil
}

// Close releases resources in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func setupStore(ctx context.Context, database *sql.DB, channel string) (*outbox.Store, error) {
	store := outbox.NewStore(database, channel)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

type redisProjection struct {
	client *redis.Client
	sink   *projection.Redis
}

func setupProjection(ctx context.Context, cfg ProjectionConfig) (*redisProjection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}
	return &redisProjection{client: client, sink: projection.NewRedis(client, cfg.TTL)}, nil
}

// setupRecommender asks the remote scorer first when one is configured. The
// in-memory pool knows consensus ranks; otherwise picks fall back to random.
func setupRecommender(config *Config, players playerStore) autopick.Recommender {
	var chain autopick.Fallback
	if config.Recommender.URL != "" {
		chain = append(chain, autopick.NewRemoteRecommender(http.DefaultClient, config.Recommender.URL, config.Recommender.Timeout))
	}
	if memory, ok := players.(*pool.MemoryPool); ok {
		chain = append(chain, autopick.NewRankedStrategy(memory.Rank))
	}
	chain = append(chain, autopick.NewRandomStrategy(config.Engine.Seed))
	return chain
}
