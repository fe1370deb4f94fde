package appconfig

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.LiveTail.IntervalMS != 3000 {
		t.Fatalf("expected 3s poll interval, got %dms", cfg.LiveTail.IntervalMS)
	}
	if cfg.Display.Profile != "default" {
		t.Fatalf("expected default profile, got %q", cfg.Display.Profile)
	}
}
