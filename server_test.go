package joblog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/joblog/internal/eventbus"
	"pkt.systems/joblog/internal/eventlog"
	"pkt.systems/joblog/internal/livetail"
	"pkt.systems/joblog/schema"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	pages []schema.FeedPage
	errs  []error
	calls []int
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ schema.JobID, after int) (schema.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, after)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return schema.FeedPage{}, err
		}
	}
	if len(f.pages) == 0 {
		return schema.FeedPage{Offset: after}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

var _ livetail.Fetcher = (*scriptedFetcher)(nil)

func records(t *testing.T, events ...schema.Event) []schema.RawRecord {
	t.Helper()
	out, err := eventlog.ToRecords(events...)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	return out
}

func TestNewRequiresAService(t *testing.T) {
	if _, err := New(ServerConfig{}, ServerDeps{}); err == nil {
		t.Fatalf("expected error without services")
	}
	if _, err := New(ServerConfig{}, ServerDeps{}, WithMirror(Mirror{JobID: "job-1"})); err == nil {
		t.Fatalf("expected error for mirror without fetcher")
	}
}

func TestMirrorRepublishesUpstream(t *testing.T) {
	all := records(t,
		schema.JobStarted{Timestamp: 1},
		schema.CommandStarted{Timestamp: 2, Directive: "make"},
		schema.CommandOutput{Timestamp: 3, Output: "built\n"},
		schema.CommandFinished{Timestamp: 4, Directive: "make", ExitCode: 0, StartedAt: 2, FinishedAt: 4},
		schema.JobFinished{Timestamp: 5, Result: schema.JobPassed},
	)
	fetcher := &scriptedFetcher{
		errs: []error{errors.New("upstream down")},
		pages: []schema.FeedPage{
			{Offset: 0, Records: append(all[:2:2], nil)},
			{Offset: 2, Records: append([]schema.RawRecord{all[2]}, all[3:]...)},
			{Offset: 5, Done: true, JobState: schema.JobStateFinished},
		},
	}
	srv, err := New(ServerConfig{MirrorInterval: time.Millisecond}, ServerDeps{},
		WithMirror(Mirror{JobID: "job-1", Fetcher: fetcher}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	events, cancel := srv.Events().Subscribe("job-1")
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	fetcher.mu.Lock()
	calls := append([]int(nil), fetcher.calls...)
	fetcher.mu.Unlock()
	want := []int{0, 0, 3, 5}
	if len(calls) != len(want) {
		t.Fatalf("unexpected fetch cursors %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("unexpected fetch cursors %v, want %v", calls, want)
		}
	}

	hub := srv.(*compositeServer).hub
	page, ok := hub.Replay("job-1", 0)
	if !ok {
		t.Fatalf("expected mirrored job")
	}
	// position 2 arrived undecodable and its redelivery is skipped
	if len(page.Records) != 4 || !page.Done {
		t.Fatalf("unexpected mirrored page: records=%d done=%v", len(page.Records), page.Done)
	}

	var batches int
	for {
		select {
		case ev := <-events:
			if ev.Type == eventbus.EventBatch {
				batches++
			}
			continue
		default:
		}
		break
	}
	if batches == 0 {
		t.Fatalf("expected batches on the event bus")
	}
}

func TestStopCancelsMirrors(t *testing.T) {
	fetcher := &scriptedFetcher{}
	srv, err := New(ServerConfig{MirrorInterval: time.Millisecond}, ServerDeps{},
		WithMirror(Mirror{JobID: "job-1", Fetcher: fetcher}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
