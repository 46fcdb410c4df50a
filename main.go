package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"swagclan/cmd"
	"swagclan/database"
	"swagclan/repository"
)

func main() {
	// Check for maintenance subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error:", err)
			}
			return
		case "import-files":
			if err := handleImportCommand(); err != nil {
				log.Fatal("Import error:", err)
			}
			return
		}
	}

	// Normal bot operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Run the application
	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error:", err)
	}
}

// databaseURL reads the database location without requiring the bot configuration
func databaseURL() (string, error) {
	base := os.Getenv("DATABASE_URL")
	if base == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return database.ConstructDatabaseURL(base, os.Getenv("DATABASE_NAME")), nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: swagclan migrate [up|down|status] [args...]")
	}

	url, err := databaseURL()
	if err != nil {
		return err
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp(url)
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(url, steps)
	case "status":
		return database.MigrateStatus(url)
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleImportCommand copies file documents of both kinds into the database
func handleImportCommand() error {
	url, err := databaseURL()
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	sources := []struct {
		dir  string
		kind repository.DocumentKind
	}{
		{dir: envOrDefault("SETTINGS_DIR", "data/settings"), kind: repository.DocumentKindSettings},
		{dir: envOrDefault("STORAGE_DIR", "data/storage"), kind: repository.DocumentKindStorage},
	}

	for _, src := range sources {
		store, err := repository.NewFileStore(src.dir)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", src.dir, err)
		}
		result, err := repository.ImportFiles(ctx, db, store, src.kind)
		if err != nil {
			return err
		}
		log.Printf("Imported %d %s documents from %s (%d skipped)", result.Imported, src.kind, src.dir, result.Skipped)
	}
	return nil
}
