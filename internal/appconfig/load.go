package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/joblog/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.history", cfg.HTTP.History)
	v.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	v.SetDefault("http.shutdown_timeout_seconds", cfg.HTTP.ShutdownTimeoutSeconds)
	v.SetDefault("feed.url", cfg.Feed.URL)
	v.SetDefault("feed.transport", cfg.Feed.Transport)
	v.SetDefault("feed.timeout_seconds", cfg.Feed.TimeoutSeconds)
	v.SetDefault("livetail.interval_ms", cfg.LiveTail.IntervalMS)
	v.SetDefault("livetail.jitter", cfg.LiveTail.Jitter)
	v.SetDefault("render.format", cfg.Render.Format)
	v.SetDefault("render.theme", cfg.Render.Theme)
	v.SetDefault("render.time_budget_ms", cfg.Render.TimeBudgetMS)
	v.SetDefault("display.profile", cfg.Display.Profile)
	v.SetDefault("logging.disable_request_logs", cfg.Logging.DisableRequestLogs)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		// IsSet also reports keys that only carry a default.
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return err
	}
	switch cfg.Feed.Transport {
	case "http", "ws", "file":
	default:
		return fmt.Errorf("unsupported feed.transport %q", cfg.Feed.Transport)
	}
	if cfg.LiveTail.IntervalMS <= 0 {
		return fmt.Errorf("livetail.interval_ms must be > 0")
	}
	if cfg.LiveTail.Jitter < 0 || cfg.LiveTail.Jitter > 1 {
		return fmt.Errorf("livetail.jitter must be within [0,1]")
	}
	if cfg.Render.TimeBudgetMS <= 0 {
		return fmt.Errorf("render.time_budget_ms must be > 0")
	}
	if cfg.Render.Theme != "" {
		if _, ok := schema.NormalizeThemeName(cfg.Render.Theme); !ok {
			return fmt.Errorf("unknown render.theme %q", cfg.Render.Theme)
		}
	}
	if cfg.HTTP.History <= 0 {
		return fmt.Errorf("http.history must be > 0")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Feed.URL = expandEnv(cfg.Feed.URL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
