package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version without dirty suffix, got %q", got)
	}
	if got := Read().Version; got != "v1.2.3+dirty" {
		t.Fatalf("expected dirty suffix in Read, got %q", got)
	}
}

func TestPseudoVersionFromVCS(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "pkt.systems/joblog", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	got := fromBuildInfo(info, true)
	if got.Version != "v0.0.0-20250102030405-1234567890ab+dirty" {
		t.Fatalf("unexpected pseudo version: %q", got.Version)
	}
	if clean := fromBuildInfo(info, false); strings.HasSuffix(clean.Version, "+dirty") {
		t.Fatalf("expected no dirty suffix, got %q", clean.Version)
	}
	if s := got.String(); !strings.Contains(s, "(1234567890ab, 2025-01-02T03:04:05Z, modified)") {
		t.Fatalf("unexpected string: %q", s)
	}
}

func TestNilBuildInfo(t *testing.T) {
	got := fromBuildInfo(nil, true)
	if got.Module != defaultModule || got.Version != "v0.0.0-unknown" {
		t.Fatalf("unexpected info: %+v", got)
	}
}
