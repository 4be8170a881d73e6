package main

import (
	"os"

	"delivery_ops/internal/config"
	"delivery_ops/internal/database"
	"delivery_ops/internal/migrations"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Migrates the schema and creates default data without starting the server.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.Initialize(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := migrations.RunMigrations(db, migrations.Options{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		SeedDemoData:  cfg.SeedDemoData,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	log.Info().Str("action", "init_db_done").Msg("Database initialized")
}
