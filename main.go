package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"speedrun-bot/bot"
	"speedrun-bot/config"
	"speedrun-bot/handlers"
	"speedrun-bot/model"
	"speedrun-bot/speedrun"
	"speedrun-bot/utils"
	"speedrun-bot/utils/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	utils.SetupLogger(cfg.Env.LogLevel)

	stores, err := openStores(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening storage")
	}

	client := speedrun.NewClient(config.SpeedrunOptions(cfg.Speedrun)...)

	b, err := bot.New(cfg, client, stores)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating bot")
	}

	handlers.Register(b)

	if err := b.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Error running bot")
	}
}

// openStores creates the configured persistence backend for posted runs and
// poll watermarks.
func openStores(cfg model.StorageConfig) (bot.Stores, error) {
	switch cfg.Driver {
	case model.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), os.ModePerm); err != nil {
			return bot.Stores{}, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := database.Open(cfg.DBPath)
		if err != nil {
			return bot.Stores{}, err
		}
		log.Info().Msgf("[Storage] Using sqlite database %s", cfg.DBPath)
		return bot.Stores{PostedRuns: store, Watermarks: store, Closer: store}, nil
	default:
		for _, path := range []string{cfg.PostedRunsPath, cfg.WatermarksPath} {
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return bot.Stores{}, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		store := utils.NewFileStore(cfg.PostedRunsPath, cfg.WatermarksPath)
		log.Info().Msgf("[Storage] Using JSON files %s and %s", cfg.PostedRunsPath, cfg.WatermarksPath)
		return bot.Stores{PostedRuns: store, Watermarks: store}, nil
	}
}
