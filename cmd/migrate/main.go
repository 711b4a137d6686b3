package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"landr/internal/pkg/logger"
	"landr/internal/platform/config"
	"landr/internal/platform/database"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	dbPath := flag.String("db", "", "Database path (overrides config)")
	status := flag.Bool("status", false, "List pending migrations without applying them")

	flag.Parse()

	cfg, err := config.Load(*configPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(config.LoggingConfig{Level: cfg.Logging.Level, Format: "text"})

	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	if *status {
		pending, err := database.Pending(db)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read migration state")
		}
		if len(pending) == 0 {
			fmt.Println("Database is up to date")
			return
		}
		for _, v := range pending {
			fmt.Println("pending:", v)
		}
		return
	}

	applied, err := database.Migrate(db)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	fmt.Printf("Migration completed successfully (%d applied)\n", len(applied))
}
