package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/mcdev12/dynasty-draft/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

// setupDatabase opens the database/sql handle used by the outbox store and
// the pgx pool used for player pool reads. Both point at the same database.
func setupDatabase(ctx context.Context) (*sql.DB, *pgxpool.Pool, error) {
	dbConfig := dbconfig.NewConfigFromEnv()
	dsn := dbConfig.DSN()

	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pgPool.Ping(ctx); err != nil {
		pgPool.Close()
		database.Close()
		return nil, nil, fmt.Errorf("failed to ping pgx pool: %w", err)
	}

	log.Info().Str("dsn", dbConfig.Redacted()).Msg("connected to database")
	return database, pgPool, nil
}
