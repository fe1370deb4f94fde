// Package livetail polls a job feed and folds new records into a builder.
package livetail

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// DefaultInterval is the pause between polls.
const DefaultInterval = 3 * time.Second

// Fetcher returns the records of a job starting at stream position after.
type Fetcher interface {
	Fetch(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error) {
	return f(ctx, jobID, after)
}

// FetchError wraps a transient transport failure.
type FetchError struct {
	JobID  schema.JobID
	Cursor int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch job %s after %d: %v", e.JobID, e.Cursor, e.Err)
}

// Unwrap returns the transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config controls polling.
type Config struct {
	JobID    schema.JobID
	Interval time.Duration
	// Jitter spreads each interval by up to this fraction either way.
	Jitter float64
}

// Controller drives the fetch/apply loop of one job view.
type Controller struct {
	cfg     Config
	fetcher Fetcher
	builder *core.Builder
	display *displaystate.Store
	log     pslog.Logger
	wake    chan struct{}

	mu       sync.Mutex
	failures int
	polls    int
}

// New returns a controller. display receives fetching, failure_msg,
// trimmed_logs and state updates and gates polling through live.
func New(cfg Config, fetcher Fetcher, builder *core.Builder, display *displaystate.Store, logger pslog.Logger) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Controller{
		cfg:     cfg,
		fetcher: fetcher,
		builder: builder,
		display: display,
		log:     logger.With("job", string(cfg.JobID)),
		wake:    make(chan struct{}, 1),
	}
}

// Run polls until the job finishes, the backend stops the view or ctx ends.
// Fetch errors are logged and retried on the next tick. Turning live off
// lets an in-flight fetch complete but schedules no new one until live is
// turned back on.
func (c *Controller) Run(ctx context.Context) error {
	stop := c.display.Watch(func(key schema.DisplayKey, value string) {
		if key == schema.DisplayLive && value == "true" {
			select {
			case c.wake <- struct{}{}:
			default:
			}
		}
	})
	defer stop()

	if status := schema.FetchStatus(c.display.String(schema.DisplayFetching)); status.Terminal() {
		c.log.Debug("live tail not started", "fetching", string(status))
		return nil
	}
	c.log.Info("live tail started", "interval", c.cfg.Interval.String(), "cursor", c.builder.Cursor())
	for {
		if c.display.Bool(schema.DisplayLive) {
			done, err := c.Poll(ctx)
			if done {
				c.log.Info("live tail stopped", "fetching", c.display.String(schema.DisplayFetching), "cursor", c.builder.Cursor())
				return nil
			}
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
		timer := time.NewTimer(c.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Poll performs one fetch and applies the page. It reports done when
// polling must stop for good.
func (c *Controller) Poll(ctx context.Context) (bool, error) {
	if schema.FetchStatus(c.display.String(schema.DisplayFetching)) == schema.FetchReady {
		c.set(schema.DisplayFetching, string(schema.FetchInProgress))
	}
	cursor := c.builder.Cursor()
	c.mu.Lock()
	c.polls++
	c.mu.Unlock()

	page, err := c.fetcher.Fetch(ctx, c.cfg.JobID, cursor)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.mu.Lock()
		c.failures++
		c.mu.Unlock()
		c.log.Warn("live tail fetch failed", "cursor", cursor, "err", err)
		return false, &FetchError{JobID: c.cfg.JobID, Cursor: cursor, Err: err}
	}

	switch page.Status {
	case schema.FetchFailure, schema.FetchDontStart:
		c.set(schema.DisplayFailureMessage, page.FailureMessage)
		c.set(schema.DisplayFetching, string(page.Status))
		c.log.Warn("live tail stopped by backend", "status", string(page.Status), "message", page.FailureMessage)
		return true, nil
	}
	if page.Trimmed {
		c.set(schema.DisplayTrimmedLogs, "true")
		c.set(schema.DisplayFetching, string(schema.FetchFinished))
		c.log.Warn("live tail stopped on trimmed logs", "cursor", cursor)
		return true, nil
	}

	batch := c.builder.ApplyRecords(page.Offset, page.Records)
	if page.JobState != "" {
		c.set(schema.DisplayJobState, string(page.JobState))
	}
	if batch.JobFinished || page.Done {
		c.set(schema.DisplayFetching, string(schema.FetchFinished))
		return true, nil
	}
	return false, nil
}

// Errors returns the number of failed fetches.
func (c *Controller) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Polls returns the number of fetches issued.
func (c *Controller) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

func (c *Controller) set(key schema.DisplayKey, value string) {
	if err := c.display.Set(key, value); err != nil {
		c.log.Warn("display state update failed", "key", string(key), "err", err)
	}
}

func (c *Controller) nextInterval() time.Duration {
	if c.cfg.Jitter == 0 {
		return c.cfg.Interval
	}
	spread := (rand.Float64()*2 - 1) * c.cfg.Jitter
	d := time.Duration(float64(c.cfg.Interval) * (1 + spread))
	if d <= 0 {
		return c.cfg.Interval
	}
	return d
}
