package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/orgball2608/ephemeral-feed/internal/migrations"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/pressly/goose/v3"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|status|reset|create <name>]")
	}

	command := os.Args[1]

	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <name>")
		}
		createMigration(os.Args[2])
		return
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := migrations.Open(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	provider, err := migrations.NewProvider(db)
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	ctx := context.Background()

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Printf("Applied %d migrations\n", len(results))
	case "down":
		if _, err := provider.Down(ctx); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		fmt.Println("Migration rollback successful")
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		for _, s := range statuses {
			fmt.Printf("%-8s %s\n", s.State, filepath.Base(s.Source.Path))
		}
	case "reset":
		if _, err := provider.DownTo(ctx, 0); err != nil {
			log.Fatalf("Failed to reset migrations: %v", err)
		}
		fmt.Println("All migrations have been rolled back")
	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func createMigration(name string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}

	migrationsDir := filepath.Join(wd, "internal", "migrations")
	fmt.Printf("Creating migration in: %s\n", migrationsDir)

	if err := goose.Create(nil, migrationsDir, name, "go"); err != nil {
		log.Fatalf("Failed to create migration: %v", err)
	}
}
