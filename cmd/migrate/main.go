package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/ridepass/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|seed|down>")
	}

	cfg, err := config.Load("ridepass-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		runFiles(ctx, pool, "migrations/001_schema.sql")
	case "seed":
		runFiles(ctx, pool, "migrations/001_schema.sql", "migrations/002_seed.sql")
	case "down":
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS providers, hotspots"); err != nil {
			log.Fatalf("down: %v", err)
		}
		log.Println("tables dropped")
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runFiles(ctx context.Context, pool *pgxpool.Pool, files ...string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}
