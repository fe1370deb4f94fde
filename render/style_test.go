package render

import (
	"reflect"
	"testing"

	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/schema"
)

func TestPresentDefaults(t *testing.T) {
	d := DefaultStyle()
	if !d.ShowLog || d.Message != "" || d.Dark || !d.Wrap || d.Timestamps || !d.Sticky || !d.Live || d.Polling {
		t.Fatalf("unexpected default style: %+v", d)
	}
	want := []string{"job-log", "job-log--wrap", "job-log--sticky"}
	if !reflect.DeepEqual(d.Classes, want) {
		t.Fatalf("got classes %v want %v", d.Classes, want)
	}
}

func TestPresentClasses(t *testing.T) {
	d := Present(displaystate.Snapshot{Dark: true, Timestamps: true, Wrap: true, Fetching: schema.FetchInProgress})
	want := []string{"job-log", "job-log--dark", "job-log--wrap", "job-log--timestamps", "job-log--live"}
	if !reflect.DeepEqual(d.Classes, want) {
		t.Fatalf("got classes %v want %v", d.Classes, want)
	}
	if !d.Polling {
		t.Fatalf("expected polling while in progress")
	}
}

func TestPresentTerminalConditions(t *testing.T) {
	cases := []struct {
		name  string
		state displaystate.Snapshot
		want  string
	}{
		{name: "failure with message", state: displaystate.Snapshot{Fetching: schema.FetchFailure, FailureMessage: "boom"}, want: "boom"},
		{name: "failure fallback", state: displaystate.Snapshot{Fetching: schema.FetchFailure}, want: MessageFailure},
		{name: "dont start", state: displaystate.Snapshot{Fetching: schema.FetchDontStart}, want: MessageDontStart},
		{name: "trimmed", state: displaystate.Snapshot{Fetching: schema.FetchFinished, TrimmedLogs: true}, want: MessageTrimmedLogs},
	}
	for _, tc := range cases {
		d := Present(tc.state)
		if d.ShowLog || d.Message != tc.want {
			t.Fatalf("%s: unexpected decision %+v", tc.name, d)
		}
	}
	if d := Present(displaystate.Snapshot{Fetching: schema.FetchFinished}); !d.ShowLog {
		t.Fatalf("finished fetch must keep the log visible")
	}
}
