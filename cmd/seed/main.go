package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gearbox-rental-backend/internal/catalog"
	"gearbox-rental-backend/internal/config"
	"gearbox-rental-backend/internal/logger"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	catalogPath := flag.String("catalog", "config/catalog.dev.yaml", "Path to the catalog YAML")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("Seeding requires the postgres driver, got %q", cfg.Database.Driver)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	seed, err := catalog.Load(*catalogPath)
	if err != nil {
		log.Fatalf("Failed to read catalog: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	if err := catalog.ApplyPostgres(context.Background(), db, seed); err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	logger.Info("Catalog successfully seeded", "file", *catalogPath)
}
