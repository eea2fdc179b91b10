package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/logging"
	"github.com/Rrens/support-chat/internal/repository/mongo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	source := flag.String("source", "", "migration source URL (defaults to mongo.migrations_path)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if _, err := logging.Setup(cfg.Logging, false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Store.Driver != config.DriverMongo {
		log.Info().Str("store", cfg.Store.Driver).Msg("Schema is created on startup for this store, nothing to migrate")
		return
	}

	sourceURL := cfg.Mongo.MigrationsPath
	if *source != "" {
		sourceURL = *source
	}

	log.Info().Str("database", cfg.Mongo.Database).Str("source", sourceURL).Msg("Applying migrations")

	if err := mongo.RunMigrations(cfg.Mongo.URI, cfg.Mongo.Database, sourceURL); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
