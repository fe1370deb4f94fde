package httpapi

import (
	"context"
	"sync"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// maxPageRecords caps the records returned by one Replay.
const maxPageRecords = 5000

// Hub keeps the ingested record stream of every job. Positions are feed
// positions: the n-th accepted record of a job has position n. Only the
// newest historySize records are retained for replay; the builder folds
// every record so the rendered view stays complete.
type Hub struct {
	mu          sync.Mutex
	jobs        map[schema.JobID]*jobHub
	historySize int
	sink        core.EventSink
	log         pslog.Logger
}

type jobHub struct {
	publishMu sync.Mutex
	builder   *core.Builder
	base      int
	history   []schema.RawRecord
	state     schema.JobState
	done      bool
	subs      map[chan struct{}]struct{}
}

// PublishResult reports where accepted records landed.
type PublishResult struct {
	Offset int `json:"offset"`
	Next   int `json:"next"`
}

// NewHub constructs a hub with the given history size. sink, when set, is
// attached to every job builder.
func NewHub(historySize int, sink core.EventSink, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		jobs:        make(map[schema.JobID]*jobHub),
		historySize: historySize,
		sink:        sink,
		log:         logger,
	}
}

// Publish appends records to the job stream, creating the job on first use.
func (h *Hub) Publish(jobID schema.JobID, records []schema.RawRecord) PublishResult {
	h.mu.Lock()
	jh := h.getOrCreateLocked(jobID)
	h.mu.Unlock()
	jh.publishMu.Lock()
	defer jh.publishMu.Unlock()

	h.mu.Lock()
	offset := jh.next()
	jh.history = append(jh.history, records...)
	if over := len(jh.history) - h.historySize; over > 0 {
		jh.history = append([]schema.RawRecord(nil), jh.history[over:]...)
		jh.base += over
	}
	if len(records) > 0 && jh.state == schema.JobStatePending {
		jh.state = schema.JobStateRunning
	}
	builder := jh.builder
	h.mu.Unlock()

	batch := builder.ApplyRecords(offset, records)

	h.mu.Lock()
	if batch.JobFinished {
		jh.state = schema.JobStateFinished
		jh.done = true
	}
	result := PublishResult{Offset: offset, Next: jh.next()}
	h.wakeLocked(jh)
	h.mu.Unlock()

	h.log.With("job", string(jobID)).Trace("hub publish", "offset", offset, "records", len(records))
	return result
}

// Finish marks the job done without a job_finished record, e.g. when the
// producer disconnected for good.
func (h *Hub) Finish(jobID schema.JobID, state schema.JobState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	jh := h.jobs[jobID]
	if jh == nil {
		return false
	}
	if state == "" {
		state = schema.JobStateFinished
	}
	jh.state = state
	jh.done = true
	h.wakeLocked(jh)
	h.log.With("job", string(jobID)).Info("hub job finished", "state", string(state))
	return true
}

// Replay returns the records from position after. When after predates the
// retained history the page is flagged trimmed.
func (h *Hub) Replay(jobID schema.JobID, after int) (schema.FeedPage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	jh := h.jobs[jobID]
	if jh == nil {
		return schema.FeedPage{}, false
	}
	if after < 0 {
		after = 0
	}
	page := schema.FeedPage{JobID: jobID, Offset: after, JobState: jh.state}
	next := jh.next()
	if after < jh.base {
		page.Trimmed = true
		page.Offset = jh.base
	}
	if page.Offset < next {
		start := page.Offset - jh.base
		end := len(jh.history)
		if end-start > maxPageRecords {
			end = start + maxPageRecords
		}
		page.Records = append([]schema.RawRecord(nil), jh.history[start:end]...)
	}
	page.Done = jh.done && page.Next() >= next
	return page, true
}

// Subscribe returns a channel that receives a signal whenever the job
// changes. The channel has room for one pending signal; readers re-read
// the stream with Replay.
func (h *Hub) Subscribe(jobID schema.JobID) (<-chan struct{}, func()) {
	h.mu.Lock()
	jh := h.getOrCreateLocked(jobID)
	ch := make(chan struct{}, 1)
	jh.subs[ch] = struct{}{}
	count := len(jh.subs)
	h.mu.Unlock()
	log := h.log.With("job", string(jobID))
	log.Debug("hub subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(jh.subs, ch)
			remaining := len(jh.subs)
			h.mu.Unlock()
			log.Debug("hub unsubscribe", "subs", remaining)
		})
	}
}

// Builder returns the builder folding the job stream.
func (h *Hub) Builder(jobID schema.JobID) (*core.Builder, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	jh := h.jobs[jobID]
	if jh == nil {
		return nil, false
	}
	return jh.builder, true
}

// Jobs returns the known job IDs.
func (h *Hub) Jobs() []schema.JobID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]schema.JobID, 0, len(h.jobs))
	for id := range h.jobs {
		out = append(out, id)
	}
	return out
}

func (h *Hub) wakeLocked(jh *jobHub) {
	for sub := range jh.subs {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) getOrCreateLocked(jobID schema.JobID) *jobHub {
	jh := h.jobs[jobID]
	if jh == nil {
		opts := []core.BuilderOption{core.WithLogger(h.log)}
		if h.sink != nil {
			opts = append(opts, core.WithEventSink(h.sink))
		}
		jh = &jobHub{
			builder: core.NewBuilder(jobID, opts...),
			state:   schema.JobStatePending,
			subs:    make(map[chan struct{}]struct{}),
		}
		h.jobs[jobID] = jh
	}
	return jh
}

func (jh *jobHub) next() int {
	return jh.base + len(jh.history)
}
