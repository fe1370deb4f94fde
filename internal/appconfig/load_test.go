package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
state_dir: /tmp/joblog
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.Transport != "http" || cfg.Render.TimeBudgetMS != 1000 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesAndExpands(t *testing.T) {
	t.Setenv("JOBLOG_HOST", "ci.example")
	path := writeConfig(t, `
config_version: 1
state_dir: /var/lib/joblog
feed:
  url: https://$JOBLOG_HOST
  transport: ws
livetail:
  interval_ms: 500
  jitter: 0.2
render:
  theme: Tokyo-Midnight
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.URL != "https://ci.example" {
		t.Fatalf("expected expanded feed url, got %q", cfg.Feed.URL)
	}
	if cfg.Feed.Transport != "ws" || cfg.LiveTail.IntervalMS != 500 || cfg.LiveTail.Jitter != 0.2 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.HTTP.History != 200000 {
		t.Fatalf("expected default history, got %d", cfg.HTTP.History)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"http.base_url":         "http:\n  base_url: example.com\n",
		"feed.transport":        "feed:\n  transport: carrier-pigeon\n",
		"livetail.interval_ms":  "livetail:\n  interval_ms: 0\n",
		"livetail.jitter":       "livetail:\n  jitter: 2\n",
		"render.time_budget_ms": "render:\n  time_budget_ms: -1\n",
		"render.theme":          "render:\n  theme: solarized\n",
		"http.history":          "http:\n  history: 0\n",
	}
	for want, body := range cases {
		path := writeConfig(t, "config_version: 1\n"+body)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s error, got %v", want, err)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
