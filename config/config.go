package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"speedrun-bot/model"
	"speedrun-bot/speedrun"
	"speedrun-bot/utils"
	"speedrun-bot/verified"
)

// Load loads the configuration from environment variables and the TOML file
// named by CONFIG_PATH.
func Load() (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("[Config] .env file not found, relying on environment variables")
	}

	var e model.Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	if e.LogChannelID == "" {
		log.Warn().Msg("[Config] LOG_CHANNEL_ID not set, channel logging will be disabled")
	}

	cfg, err := LoadFile(e.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Env = e
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verified_runs.enabled", false)
	v.SetDefault("verified_runs.poll_frequency", int(verified.DefaultPollInterval/time.Second))
	v.SetDefault("storage.driver", model.StorageJSON)
	v.SetDefault("storage.posted_runs_path", utils.DefaultPostedRunsPath)
	v.SetDefault("storage.watermarks_path", utils.DefaultWatermarksPath)
	v.SetDefault("storage.db_path", "data/speedrun_bot.db")
	v.SetDefault("speedrun.base_url", speedrun.DefaultBaseURL)
	v.SetDefault("speedrun.requests_per_minute", speedrun.DefaultRequestsPerMinute)
	v.SetDefault("speedrun.timeout", "30s")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
}

// LoadFile reads the TOML feature configuration. A missing file yields the
// defaults.
func LoadFile(path string) (*model.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		log.Warn().Msgf("[Config] %s not found, using defaults", path)
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config file %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the sections that have no per-entry isolation. Watched
// leaderboards and personal best channels are checked one by one when they
// are used.
func Validate(cfg *model.Config) error {
	if cfg.VerifiedRuns.PollFrequency <= 0 {
		return fmt.Errorf("invalid config: verified_runs.poll_frequency must be positive, got %d", cfg.VerifiedRuns.PollFrequency)
	}
	for name, section := range map[string]any{
		"storage":  &cfg.Storage,
		"speedrun": &cfg.Speedrun,
	} {
		vd := validate.Struct(section)
		if !vd.Validate() {
			return fmt.Errorf("invalid config section %s: %w", name, vd.Errors)
		}
	}
	if _, err := utils.ParseDuration(cfg.Speedrun.Timeout); err != nil {
		return fmt.Errorf("invalid config: speedrun.timeout: %w", err)
	}
	return nil
}

// Leaderboards converts the configured watched leaderboards. Invalid
// entries are left out and reported together in the returned error.
func Leaderboards(cfg model.VerifiedRunsConfig) ([]verified.LeaderboardConfig, error) {
	color := utils.ParseHexColor(cfg.EmbedColor)
	defaultInterval := time.Duration(cfg.PollFrequency) * time.Second

	var leaderboards []verified.LeaderboardConfig
	var errs []error
	for i, entry := range cfg.Leaderboards {
		leaderboard, err := leaderboard(entry, defaultInterval, color)
		if err != nil {
			errs = append(errs, fmt.Errorf("verified_runs.leaderboards[%d] (%s): %w", i, entry.GameName, err))
			continue
		}
		leaderboards = append(leaderboards, leaderboard)
	}
	return leaderboards, errors.Join(errs...)
}

func leaderboard(entry model.LeaderboardConfig, defaultInterval time.Duration, color int) (verified.LeaderboardConfig, error) {
	vd := validate.Struct(&entry)
	if !vd.Validate() {
		return verified.LeaderboardConfig{}, vd.Errors
	}

	leaderboard := verified.LeaderboardConfig{
		GameName:     entry.GameName,
		GameID:       entry.SrcID,
		ChannelID:    entry.ChannelID,
		PollInterval: defaultInterval,
		Variants:     entry.Variants,
		Color:        color,
	}
	if entry.StartTimestamp != "" {
		start, err := time.Parse(time.RFC3339, entry.StartTimestamp)
		if err != nil {
			return verified.LeaderboardConfig{}, fmt.Errorf("start_timestamp: %w", err)
		}
		leaderboard.Start = &start
	}
	if entry.PollInterval != "" {
		interval, err := utils.ParseDuration(entry.PollInterval)
		if err != nil {
			return verified.LeaderboardConfig{}, fmt.Errorf("poll_interval: %w", err)
		}
		if interval <= 0 {
			return verified.LeaderboardConfig{}, fmt.Errorf("poll_interval must be positive")
		}
		leaderboard.PollInterval = interval
	}
	return leaderboard, nil
}

// PersonalBests returns the enabled, valid personal best channels. Invalid
// entries are left out and reported together in the returned error.
func PersonalBests(entries []model.PersonalBestConfig) ([]model.PersonalBestConfig, error) {
	var enabled []model.PersonalBestConfig
	var errs []error
	for i, entry := range entries {
		if !entry.Enabled {
			continue
		}
		vd := validate.Struct(&entry)
		if !vd.Validate() {
			errs = append(errs, fmt.Errorf("personal_bests[%d]: %w", i, vd.Errors))
			continue
		}
		enabled = append(enabled, entry)
	}
	return enabled, errors.Join(errs...)
}

// SpeedrunOptions builds the leaderboard client options from the config.
func SpeedrunOptions(cfg model.SpeedrunConfig) []speedrun.Option {
	opts := []speedrun.Option{
		speedrun.WithBaseURL(cfg.BaseURL),
		speedrun.WithRequestsPerMinute(cfg.RequestsPerMinute),
	}
	if timeout, err := utils.ParseDuration(cfg.Timeout); err == nil {
		opts = append(opts, speedrun.WithHTTPClient(utils.NewHTTPClient(timeout)))
	}
	return opts
}
