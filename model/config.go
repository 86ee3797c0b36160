package model

// Env holds process settings read from the environment.
type Env struct {
	BotToken                 string `env:"BOT_TOKEN,required,notEmpty"`
	AppID                    string `env:"APP_ID"`
	LogChannelID             string `env:"LOG_CHANNEL_ID"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
	ConfigPath               string `env:"CONFIG_PATH" envDefault:"data/config.toml"`
	DisableCommandUnregister bool   `env:"DISABLE_COMMAND_UNREGISTER"`
}

// Config is the bot configuration: environment plus the TOML feature file.
type Config struct {
	Env Env `mapstructure:"-"`

	VerifiedRuns  VerifiedRunsConfig   `mapstructure:"verified_runs"`
	PersonalBests []PersonalBestConfig `mapstructure:"personal_bests"`
	Storage       StorageConfig        `mapstructure:"storage"`
	Speedrun      SpeedrunConfig       `mapstructure:"speedrun"`
	Metrics       MetricsConfig        `mapstructure:"metrics"`
}

type VerifiedRunsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// PollFrequency is the default poll interval in seconds.
	PollFrequency int                 `mapstructure:"poll_frequency" validate:"min:1"`
	EmbedColor    string              `mapstructure:"embed_color"`
	Leaderboards  []LeaderboardConfig `mapstructure:"leaderboards"`
}

// LeaderboardConfig describes one watched game.
type LeaderboardConfig struct {
	GameName  string `mapstructure:"game_name" validate:"required"`
	SrcID     string `mapstructure:"src_id" validate:"required"`
	ChannelID string `mapstructure:"channel_id" validate:"required"`
	// StartTimestamp is RFC3339. Empty means "now".
	StartTimestamp string `mapstructure:"start_timestamp"`
	// PollInterval overrides poll_frequency, e.g. "90s" or "1d".
	PollInterval string   `mapstructure:"poll_interval"`
	Variants     []string `mapstructure:"variants"`
}

type PersonalBestConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ChannelID    string `mapstructure:"channel_id" validate:"required"`
	EmojiID      string `mapstructure:"emoji_id" validate:"required"`
	CreateThread bool   `mapstructure:"create_thread"`
}

const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

type StorageConfig struct {
	Driver         string `mapstructure:"driver" validate:"in:json,sqlite"`
	PostedRunsPath string `mapstructure:"posted_runs_path"`
	WatermarksPath string `mapstructure:"watermarks_path"`
	DBPath         string `mapstructure:"db_path"`
}

type SpeedrunConfig struct {
	BaseURL           string `mapstructure:"base_url" validate:"fullUrl"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"min:0"`
	Timeout           string `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
