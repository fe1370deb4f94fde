package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
	Feed          FeedConfig     `mapstructure:"feed" yaml:"feed"`
	LiveTail      LiveTailConfig `mapstructure:"livetail" yaml:"livetail"`
	Render        RenderConfig   `mapstructure:"render" yaml:"render"`
	Display       DisplayConfig  `mapstructure:"display" yaml:"display"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr                   string `mapstructure:"addr" yaml:"addr"`
	BaseURL                string `mapstructure:"base_url" yaml:"base_url"`
	BasePath               string `mapstructure:"base_path" yaml:"base_path"`
	History                int    `mapstructure:"history" yaml:"history"`
	MaxBodyBytes           int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// FeedConfig selects where clients fetch job logs from.
type FeedConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	Transport      string `mapstructure:"transport" yaml:"transport"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// LiveTailConfig controls the polling cadence.
type LiveTailConfig struct {
	IntervalMS int     `mapstructure:"interval_ms" yaml:"interval_ms"`
	Jitter     float64 `mapstructure:"jitter" yaml:"jitter"`
}

// RenderConfig controls output rendering.
type RenderConfig struct {
	Format       string `mapstructure:"format" yaml:"format"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	TimeBudgetMS int    `mapstructure:"time_budget_ms" yaml:"time_budget_ms"`
}

// DisplayConfig selects the persisted display profile.
type DisplayConfig struct {
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// LoggingConfig controls request logging.
type LoggingConfig struct {
	DisableRequestLogs bool `mapstructure:"disable_request_logs" yaml:"disable_request_logs"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".joblog", "state"),
		HTTP: HTTPConfig{
			Addr:                   ":27580",
			BaseURL:                "",
			BasePath:               "",
			History:                200000,
			MaxBodyBytes:           16 << 20,
			ShutdownTimeoutSeconds: 10,
		},
		Feed: FeedConfig{
			URL:            "http://127.0.0.1:27580",
			Transport:      "http",
			TimeoutSeconds: 30,
		},
		LiveTail: LiveTailConfig{
			IntervalMS: 3000,
			Jitter:     0,
		},
		Render: RenderConfig{
			Format:       "html",
			Theme:        "",
			TimeBudgetMS: 1000,
		},
		Display: DisplayConfig{
			Profile: "default",
		},
		Logging: LoggingConfig{
			DisableRequestLogs: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".joblog", "config.yaml"), nil
}
