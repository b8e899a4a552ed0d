// Command seed_pool loads a JSON list of players into one draft's pool.
//
//	go run ./go/internal/tools/seed_pool -draft <uuid> -file players.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/dynasty-draft/go/internal/dbconfig"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/pool"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/mcdev12/dynasty-draft/go/internal/sqlutil"
)

// seedPlayer matches the layout of the players file.
type seedPlayer struct {
	ID         *uuid.UUID `json:"id"`
	ExternalID string     `json:"external_id"`
	FullName   string     `json:"full_name"`
	Position   string     `json:"position"`
	Rank       int        `json:"rank"`
}

func main() {
	draftFlag := flag.String("draft", os.Getenv("DRAFT_ID"), "draft ID to seed")
	file := flag.String("file", "go/internal/assets/players.json", "players JSON file")
	flag.Parse()

	ctx := context.Background()

	draftID, err := uuid.Parse(*draftFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid draft ID %q: %v\n", *draftFlag, err)
		os.Exit(1)
	}

	// 1) Load players
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}
	var seeds []seedPlayer
	if err := json.Unmarshal(data, &seeds); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal players: %v\n", err)
		os.Exit(1)
	}

	players := make([]models.Player, 0, len(seeds))
	for _, s := range seeds {
		p := models.Player{
			ExternalID: s.ExternalID,
			FullName:   s.FullName,
			Position:   s.Position,
			Rank:       s.Rank,
		}
		switch {
		case s.ID != nil:
			p.ID = *s.ID
		case s.ExternalID != "":
			// Stable across runs so reseeding updates rather than duplicates.
			p.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.ExternalID))
		default:
			p.ID = uuid.New()
		}
		players = append(players, p)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Exec(ctx, sqlutil.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Seed the pool
	if err := pool.NewPostgresPool(db).Register(ctx, draftID, players); err != nil {
		fmt.Fprintf(os.Stderr, "seed pool: %v\n", err)
		os.Exit(1)
	}

	available, err := pool.NewPostgresPool(db).ListAvailablePlayers(ctx, draftID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count pool: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pool seed: draft=%s total=%d available=%d\n", draftID, len(players), len(available))
}
