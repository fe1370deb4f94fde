// Package eventbus fans job updates out to the views watching a job.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventBatch carries a builder batch summary.
	EventBatch EventType = "batch"
	// EventDisplay carries a display state change.
	EventDisplay EventType = "display"
)

// Event is what subscribers receive. Views treat every event as a redraw
// hint and re-read the builder and display store themselves.
type Event struct {
	Type  EventType
	JobID schema.JobID
	Batch schema.BatchApplied
	Key   schema.DisplayKey
	Value string
}

// Bus fans events out to per-job subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    map[schema.JobID]map[chan Event]struct{}
	log     pslog.Logger
	depth   int
	dropped atomic.Int64
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.JobID]map[chan Event]struct{}),
		log:   logger,
		depth: 64,
	}
}

// Subscribe registers a subscriber for the job and returns a channel + cancel.
func (b *Bus) Subscribe(jobID schema.JobID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	jobSubs := b.subs[jobID]
	if jobSubs == nil {
		jobSubs = make(map[chan Event]struct{})
		b.subs[jobID] = jobSubs
	}
	jobSubs[ch] = struct{}{}
	count := len(jobSubs)
	b.mu.Unlock()
	b.log.With("job", jobID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[jobID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, jobID)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.With("job", jobID).Debug("eventbus unsubscribe")
		})
	}
}

// OnBatch implements core.EventSink.
func (b *Bus) OnBatch(batch schema.BatchApplied) {
	b.publish(Event{Type: EventBatch, JobID: batch.JobID, Batch: batch})
}

// DisplayWatcher returns a displaystate.WatchFunc publishing changes for jobID.
func (b *Bus) DisplayWatcher(jobID schema.JobID) func(schema.DisplayKey, string) {
	return func(key schema.DisplayKey, value string) {
		b.publish(Event{Type: EventDisplay, JobID: jobID, Key: key, Value: value})
	}
}

// Dropped returns how many deliveries were skipped on full subscribers.
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Subscribers returns the number of subscribers of jobID.
func (b *Bus) Subscribers(jobID schema.JobID) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs[event.JobID] {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.dropped.Add(int64(dropped))
		b.log.With("job", event.JobID).Trace("eventbus dropped", "count", dropped)
	}
}
