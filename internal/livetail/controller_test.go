package livetail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/internal/eventlog"
	"pkt.systems/joblog/schema"
)

type step struct {
	page schema.FeedPage
	err  error
	// before runs inside Fetch, before the page is returned.
	before func()
}

type scriptedFetcher struct {
	mu     sync.Mutex
	steps  []step
	afters []int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error) {
	f.mu.Lock()
	f.afters = append(f.afters, after)
	if len(f.steps) == 0 {
		f.mu.Unlock()
		return schema.FeedPage{JobID: jobID, Offset: after}, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	f.mu.Unlock()
	if s.before != nil {
		s.before()
	}
	return s.page, s.err
}

func (f *scriptedFetcher) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.afters...)
}

func records(t *testing.T, events ...schema.Event) []schema.RawRecord {
	t.Helper()
	out, err := eventlog.ToRecords(events...)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func newController(fetcher Fetcher) (*Controller, *core.Builder, *displaystate.Store) {
	builder := core.NewBuilder("job-1")
	display := displaystate.New(nil, nil)
	c := New(Config{JobID: "job-1", Interval: time.Millisecond}, fetcher, builder, display, nil)
	return c, builder, display
}

func runWithTimeout(t *testing.T, c *Controller) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Run(ctx)
}

func TestControllerRunsUntilJobFinished(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{page: schema.FeedPage{Offset: 0, JobState: schema.JobStateRunning, Records: records(t,
			schema.CommandStarted{Timestamp: 1, Directive: "make"},
			schema.CommandOutput{Timestamp: 2, Output: "par"},
		)}},
		{page: schema.FeedPage{Offset: 2, JobState: schema.JobStateRunning, Records: records(t,
			schema.CommandOutput{Timestamp: 3, Output: "tial\n"},
			schema.CommandFinished{Timestamp: 4, Directive: "make", StartedAt: 1, FinishedAt: 4},
		)}},
		{page: schema.FeedPage{Offset: 4, JobState: schema.JobStateFinished, Records: records(t,
			schema.JobFinished{Timestamp: 5, Result: schema.JobPassed},
		)}},
	}}
	c, builder, display := newController(fetcher)
	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := fetcher.calls(); len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Fatalf("unexpected fetch cursors %v", got)
	}
	snap := display.Snapshot()
	if snap.Fetching != schema.FetchFinished || snap.State != schema.JobStateFinished {
		t.Fatalf("unexpected display state %+v", snap)
	}
	builder.View(func(job *core.JobOutput) {
		cmd, _ := job.Command(0)
		if job.NumberOfLines() != 1 || cmd.Lines()[0].Output != "partial" {
			t.Fatalf("unexpected job output")
		}
	})
}

func TestControllerRetriesAfterFetchError(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{err: errors.New("connection reset")},
		{page: schema.FeedPage{Offset: 0, Done: true, JobState: schema.JobStateFinished}},
	}}
	c, _, display := newController(fetcher)
	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	if c.Errors() != 1 || c.Polls() != 2 {
		t.Fatalf("expected one error over two polls, got %d/%d", c.Errors(), c.Polls())
	}
	if display.Snapshot().Fetching != schema.FetchFinished {
		t.Fatalf("expected finished after retry")
	}
}

func TestPollWrapsFetchError(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{err: errors.New("timeout")}}}
	c, _, display := newController(fetcher)
	done, err := c.Poll(context.Background())
	var fetchErr *FetchError
	if done || !errors.As(err, &fetchErr) || fetchErr.Cursor != 0 {
		t.Fatalf("expected FetchError, got done=%v err=%v", done, err)
	}
	if display.Snapshot().Fetching != schema.FetchInProgress {
		t.Fatalf("transient errors keep the in-progress indicator")
	}
}

func TestControllerStopsOnBackendFailure(t *testing.T) {
	for _, status := range []schema.FetchStatus{schema.FetchFailure, schema.FetchDontStart} {
		fetcher := &scriptedFetcher{steps: []step{
			{page: schema.FeedPage{Status: status, FailureMessage: "no runner"}},
		}}
		c, _, display := newController(fetcher)
		if err := runWithTimeout(t, c); err != nil {
			t.Fatalf("run: %v", err)
		}
		snap := display.Snapshot()
		if snap.Fetching != status || snap.FailureMessage != "no runner" {
			t.Fatalf("unexpected display state %+v", snap)
		}
		if len(fetcher.calls()) != 1 {
			t.Fatalf("expected polling to stop permanently")
		}
		if err := runWithTimeout(t, c); err != nil || len(fetcher.calls()) != 1 {
			t.Fatalf("a stopped view must not fetch again")
		}
	}
}

func TestControllerStopsOnTrimmedLogs(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{page: schema.FeedPage{Trimmed: true}}}}
	c, _, display := newController(fetcher)
	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !display.Snapshot().TrimmedLogs {
		t.Fatalf("expected trimmed_logs set")
	}
}

func TestControllerLiveOffIsSoftCancel(t *testing.T) {
	var display *displaystate.Store
	resumed := make(chan struct{})
	fetcher := &scriptedFetcher{}
	fetcher.steps = []step{
		{
			page: schema.FeedPage{Offset: 0, Records: records(t,
				schema.CommandStarted{Timestamp: 1, Directive: "make"},
				schema.CommandOutput{Timestamp: 2, Output: "line\n"},
			)},
			before: func() { _ = display.SetBool(schema.DisplayLive, false) },
		},
		{
			page:   schema.FeedPage{Offset: 2, Done: true},
			before: func() { close(resumed) },
		},
	}
	c, builder, d := newController(fetcher)
	display = d

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for builder.Cursor() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("in-flight fetch was not applied")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(fetcher.calls()); n != 1 {
		t.Fatalf("expected no fetch while live is off, got %d", n)
	}
	if err := display.SetBool(schema.DisplayLive, true); err != nil {
		t.Fatalf("set live: %v", err)
	}
	select {
	case <-resumed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected polling to resume when live turns on")
	}
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestControllerDiscardsRedeliveredRecords(t *testing.T) {
	first := records(t,
		schema.CommandStarted{Timestamp: 1, Directive: "make"},
		schema.CommandOutput{Timestamp: 2, Output: "a\n"},
	)
	second := records(t,
		schema.CommandStarted{Timestamp: 1, Directive: "make"},
		schema.CommandOutput{Timestamp: 2, Output: "a\n"},
		schema.CommandOutput{Timestamp: 3, Output: "b\n"},
	)
	fetcher := &scriptedFetcher{steps: []step{
		{page: schema.FeedPage{Offset: 0, Records: first}},
		{page: schema.FeedPage{Offset: 0, Records: second, Done: true}},
	}}
	c, builder, _ := newController(fetcher)
	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	builder.View(func(job *core.JobOutput) {
		if job.NumberOfLines() != 2 {
			t.Fatalf("expected 2 lines after redelivery, got %d", job.NumberOfLines())
		}
	})
}

func TestControllerHonoursContext(t *testing.T) {
	fetcher := &scriptedFetcher{}
	c, _, _ := newController(fetcher)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNextIntervalJitter(t *testing.T) {
	c := New(Config{Interval: time.Second, Jitter: 0.5}, &scriptedFetcher{}, core.NewBuilder("j"), displaystate.New(nil, nil), nil)
	for i := 0; i < 100; i++ {
		d := c.nextInterval()
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("interval %s outside jitter bounds", d)
		}
	}
}
