package render

import (
	"testing"
	"time"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/schema"
)

func buildDoc(events ...schema.Event) Document {
	b := core.NewBuilder("job-1")
	b.Apply(events...)
	return Snapshot(b, time.Unix(1000, 0))
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00"},
		{in: -5 * time.Second, want: "00:00"},
		{in: 65 * time.Second, want: "01:05"},
		{in: 59*time.Minute + 59*time.Second, want: "59:59"},
		{in: time.Hour + 2*time.Minute + 5*time.Second, want: "1:02:05"},
		{in: 12 * time.Hour, want: "12:00:00"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Fatalf("FormatDuration(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildBlockStates(t *testing.T) {
	doc := buildDoc(
		schema.CommandStarted{Timestamp: 900, Directive: "checkout"},
		schema.CommandFinished{Timestamp: 905, Directive: "checkout", StartedAt: 900, FinishedAt: 905},
		schema.CommandStarted{Timestamp: 905, Directive: "make"},
		schema.CommandOutput{Timestamp: 907, Output: "boom\n"},
		schema.CommandFinished{Timestamp: 910, Directive: "make", ExitCode: 2, StartedAt: 905, FinishedAt: 910},
		schema.CommandStarted{Timestamp: 990, Directive: "deploy"},
	)
	if len(doc.Blocks) != 3 || doc.FirstFailure != 1 || doc.JobFinished {
		t.Fatalf("unexpected document: %+v", doc)
	}
	passed, failed, running := doc.Blocks[0], doc.Blocks[1], doc.Blocks[2]
	if passed.Status != BlockPassed || passed.StatusLabel != "Passed in" || passed.StatusClass != "bg-green" || passed.Duration != "00:05" {
		t.Fatalf("unexpected passed block: %+v", passed)
	}
	if !passed.Empty || passed.Spinner {
		t.Fatalf("expected empty passed block without spinner: %+v", passed)
	}
	if failed.Status != BlockFailed || failed.StatusClass != "bg-red" || !failed.Open {
		t.Fatalf("unexpected failed block: %+v", failed)
	}
	if failed.Lines[0].Timestamp != "00:02" {
		t.Fatalf("expected timestamp relative to command start, got %q", failed.Lines[0].Timestamp)
	}
	if running.Status != BlockRunning || running.StatusLabel != "Running" || running.StatusClass != "bg-indigo" {
		t.Fatalf("unexpected running block: %+v", running)
	}
	if !running.Open || !running.Spinner || running.Duration != "00:10" {
		t.Fatalf("expected open ticking running block: %+v", running)
	}
}

func TestBuildAfterJobFinished(t *testing.T) {
	doc := buildDoc(
		schema.CommandStarted{Timestamp: 1, Directive: "true"},
		schema.CommandFinished{Timestamp: 2, Directive: "true", StartedAt: 1, FinishedAt: 2},
		schema.CommandStarted{Timestamp: 2, Directive: "sleep 100"},
		schema.JobFinished{Timestamp: 3, Result: schema.JobStopped},
	)
	if !doc.JobFinished || doc.State != schema.JobStateFinished || doc.Result != schema.JobStopped {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Blocks[0].Open {
		t.Fatalf("expected passed block collapsed once the job finished")
	}
	trimmed := doc.Blocks[1]
	if trimmed.Status != BlockFetching || trimmed.StatusLabel != "Fetching" || trimmed.StatusClass != "bg-gray" || !trimmed.Trimmed {
		t.Fatalf("unexpected unfinished block: %+v", trimmed)
	}
	if trimmed.Open {
		t.Fatalf("expected unfinished block collapsed after job end")
	}
}

func TestBuildPassedBlockOpenWhileJobRuns(t *testing.T) {
	doc := buildDoc(
		schema.CommandStarted{Timestamp: 1, Directive: "true"},
		schema.CommandFinished{Timestamp: 2, Directive: "true", StartedAt: 1, FinishedAt: 2},
	)
	if doc.Blocks[0].Open {
		t.Fatalf("passed block must be collapsed")
	}
}
