package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chatify-realtime/config"
	"chatify-realtime/internal/repository"
	"chatify-realtime/pkg/database"
	"chatify-realtime/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `
Chatify Realtime - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create the document schema and apply extra SQL migrations
  down        Drop the document schema
  status      Show database connection status and document count
  reset       Drop the schema and re-create it (DANGEROUS)
  truncate    Delete every document (DANGEROUS)

Flags:
  -migrations string   Directory of extra .sql migrations (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go reset
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Directory of extra .sql migrations")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	l := logger.New(cfg.LogMode)
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		runMigrationsUp(ctx, pool, *migrationsDir, l)
	case "down":
		runMigrationsDown(ctx, pool)
	case "status":
		showStatus(ctx, pool)
	case "reset":
		runMigrationsDown(ctx, pool)
		runMigrationsUp(ctx, pool, *migrationsDir, l)
	case "truncate":
		runTruncate(ctx, pool)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, pool *pgxpool.Pool, migrationsDir string, l *logger.Logger) {
	log.Println("Running migrations UP...")

	if err := repository.InitSchema(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if info, err := os.Stat(migrationsDir); err == nil && info.IsDir() {
		if err := database.ApplyRawMigrations(ctx, pool, migrationsDir, l); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	log.Println("Migrations completed successfully")
}

func runMigrationsDown(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Rolling back migrations...")

	if err := repository.DropSchema(ctx, pool); err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}

	log.Println("Rollback completed successfully")
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Checking database status...")

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	var count int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM documents").Scan(&count); err != nil {
		log.Printf("Table documents is not readable: %v", err)
		return
	}
	log.Printf("Table %-20s exists (%d rows)", "documents", count)
}

func runTruncate(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("WARNING: This will TRUNCATE the documents table!")

	if _, err := pool.Exec(ctx, "TRUNCATE documents"); err != nil {
		log.Fatalf("Truncate failed: %v", err)
	}

	log.Println("All documents truncated")
}
