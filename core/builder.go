package core

import (
	"context"
	"sync"

	"pkt.systems/joblog/internal/eventlog"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// AnomalyKind names a protocol irregularity the builder tolerated.
type AnomalyKind string

const (
	// AnomalyOutputAfterFinish is output routed to a finished command.
	AnomalyOutputAfterFinish AnomalyKind = "output_after_finish"
	// AnomalyFinishWithoutCommand is a finish event no command could claim.
	AnomalyFinishWithoutCommand AnomalyKind = "finish_without_command"
	// AnomalyFinishOutOfOrder is a finish event that did not match the current command,
	// or one whose finish time precedes an earlier finish.
	AnomalyFinishOutOfOrder AnomalyKind = "finish_out_of_order"
	// AnomalyCursorGap is a batch starting beyond the resumption cursor.
	AnomalyCursorGap AnomalyKind = "cursor_gap"
	// AnomalyDuplicateFinish is a repeated finish for a finished command.
	AnomalyDuplicateFinish AnomalyKind = "duplicate_finish"
)

// Stats counts what the builder did with the events it saw.
type Stats struct {
	Applied      int
	Skipped      int
	DecodeErrors int
	Anomalies    map[AnomalyKind]int
}

// Builder folds an ordered event stream into a JobOutput. It is safe for
// concurrent use: Apply* take the write lock and View takes the read lock,
// so a render never observes half of a batch.
type Builder struct {
	mu             sync.RWMutex
	job            *JobOutput
	current        *Command
	cursor         int
	lastFinishedAt int64
	stats          Stats
	log            pslog.Logger
	sink           EventSink
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(logger pslog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.log = logger
		}
	}
}

// WithEventSink sets the sink notified after each batch.
func WithEventSink(sink EventSink) BuilderOption {
	return func(b *Builder) {
		b.sink = sink
	}
}

// NewBuilder returns a builder for an empty job.
func NewBuilder(jobID schema.JobID, opts ...BuilderOption) *Builder {
	b := &Builder{
		job:   NewJobOutput(jobID),
		stats: Stats{Anomalies: make(map[AnomalyKind]int)},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = pslog.Ctx(context.Background())
	}
	b.log = b.log.With("job", string(jobID))
	return b
}

// Cursor returns the next expected stream position.
func (b *Builder) Cursor() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cursor
}

// Stats returns a copy of the builder counters.
func (b *Builder) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.stats
	out.Anomalies = make(map[AnomalyKind]int, len(b.stats.Anomalies))
	for kind, count := range b.stats.Anomalies {
		out.Anomalies[kind] = count
	}
	return out
}

// View calls fn with the job under the read lock. fn must not retain job
// pointers past its return while the builder keeps applying events.
func (b *Builder) View(fn func(job *JobOutput)) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn(b.job)
}

// Apply applies events at the current cursor.
func (b *Builder) Apply(events ...schema.Event) schema.BatchApplied {
	b.mu.Lock()
	batch := b.applyEvents(b.cursor, events)
	b.mu.Unlock()
	b.notify(batch)
	return batch
}

// ApplyFrom applies events whose first element sits at stream position
// offset. Positions below the cursor were already applied and are skipped.
func (b *Builder) ApplyFrom(offset int, events []schema.Event) schema.BatchApplied {
	b.mu.Lock()
	batch := b.applyEvents(offset, events)
	b.mu.Unlock()
	b.notify(batch)
	return batch
}

func (b *Builder) applyEvents(offset int, events []schema.Event) schema.BatchApplied {
	batch := b.beginBatch(offset)
	for i, event := range events {
		pos := offset + i
		if pos < b.cursor {
			batch.Skipped++
			continue
		}
		b.applyEvent(event)
		batch.Applied++
		b.cursor = pos + 1
	}
	return b.endBatch(batch)
}

// ApplyRecords decodes and applies raw records at stream position offset.
// Undecodable records are logged, counted and consumed.
func (b *Builder) ApplyRecords(offset int, records []schema.RawRecord) schema.BatchApplied {
	b.mu.Lock()
	batch := b.beginBatch(offset)
	for i, record := range records {
		pos := offset + i
		if pos < b.cursor {
			batch.Skipped++
			continue
		}
		b.cursor = pos + 1
		if record == nil {
			batch.DecodeErrors++
			continue
		}
		event, err := eventlog.Decode(record)
		if err != nil {
			batch.DecodeErrors++
			b.log.Warn("event decode failed", "position", pos, "err", err)
			continue
		}
		b.applyEvent(event)
		batch.Applied++
	}
	batch = b.endBatch(batch)
	b.mu.Unlock()
	b.notify(batch)
	return batch
}

func (b *Builder) beginBatch(offset int) schema.BatchApplied {
	if offset > b.cursor {
		b.anomaly(AnomalyCursorGap, "offset", offset, "cursor", b.cursor)
		b.cursor = offset
	}
	return schema.BatchApplied{JobID: b.job.jobID}
}

func (b *Builder) endBatch(batch schema.BatchApplied) schema.BatchApplied {
	b.stats.Applied += batch.Applied
	b.stats.Skipped += batch.Skipped
	b.stats.DecodeErrors += batch.DecodeErrors
	batch.Cursor = b.cursor
	batch.NumberOfLines = b.job.numberOfLines
	batch.Commands = len(b.job.commands)
	batch.JobFinished = b.job.finished
	if batch.Applied > 0 || batch.DecodeErrors > 0 {
		b.log.Debug("batch applied", "cursor", batch.Cursor, "applied", batch.Applied, "skipped", batch.Skipped, "decode_errors", batch.DecodeErrors, "lines", batch.NumberOfLines)
	}
	return batch
}

func (b *Builder) notify(batch schema.BatchApplied) {
	if b.sink == nil {
		return
	}
	b.sink.OnBatch(batch)
}

func (b *Builder) applyEvent(event schema.Event) {
	switch e := event.(type) {
	case schema.JobStarted:
	case schema.CommandStarted:
		cmd := b.job.appendCommand()
		cmd.start(e.Timestamp, e.Directive)
		b.current = cmd
		b.log.Trace("command started", "command", cmd.index, "directive", cmd.directive)
	case schema.CommandOutput:
		b.applyOutput(e)
	case schema.CommandFinished:
		b.applyFinish(e)
	case schema.JobFinished:
		if b.job.finish(e) {
			b.log.Info("job finished", "result", string(e.Result), "commands", len(b.job.commands), "lines", b.job.numberOfLines)
		}
	}
}

func (b *Builder) applyOutput(event schema.CommandOutput) {
	cmd := b.current
	if cmd == nil {
		cmd = b.synthesize()
	}
	added, err := cmd.appendOutput(event, b.job)
	if err != nil {
		b.anomaly(AnomalyOutputAfterFinish, "command", cmd.index, "directive", cmd.directive)
		return
	}
	if added > 0 {
		b.log.Trace("output appended", "command", cmd.index, "lines", added)
	}
}

func (b *Builder) applyFinish(event schema.CommandFinished) {
	cmd := b.routeFinish(event)
	if cmd == nil {
		return
	}
	if cmd.directive == "" {
		cmd.directive = event.Directive
	}
	if cmd.startedAt == 0 {
		cmd.startedAt = event.StartedAt
	}
	if cmd.status == schema.CommandPending {
		cmd.status = schema.CommandRunning
	}
	if event.FinishedAt < b.lastFinishedAt {
		b.anomaly(AnomalyFinishOutOfOrder, "command", cmd.index, "finished_at", event.FinishedAt, "previous", b.lastFinishedAt)
	}
	if event.FinishedAt > b.lastFinishedAt {
		b.lastFinishedAt = event.FinishedAt
	}
	cmd.finish(event.FinishedAt, event.ExitCode)
	b.log.Trace("command finished", "command", cmd.index, "exit_code", event.ExitCode)
}

// routeFinish picks the command a finish event belongs to. It returns nil
// when the event repeats an applied finish.
func (b *Builder) routeFinish(event schema.CommandFinished) *Command {
	cur := b.current
	if cur != nil && !cur.IsFinished() && (cur.directive == event.Directive || cur.directive == "") {
		return cur
	}
	for i := len(b.job.commands) - 1; i >= 0; i-- {
		cmd := b.job.commands[i]
		if cmd.IsFinished() || cmd.directive != event.Directive {
			continue
		}
		if cmd.startedAt == 0 || cmd.startedAt == event.StartedAt {
			if cmd != cur {
				b.anomaly(AnomalyFinishOutOfOrder, "command", cmd.index, "directive", event.Directive)
			}
			return cmd
		}
	}
	if len(b.job.commands) == 0 {
		return b.synthesize()
	}
	for i := len(b.job.commands) - 1; i >= 0; i-- {
		cmd := b.job.commands[i]
		if cmd.IsFinished() && cmd.directive == event.Directive && cmd.startedAt == event.StartedAt && cmd.finishedAt == event.FinishedAt {
			b.anomaly(AnomalyDuplicateFinish, "command", cmd.index, "directive", event.Directive)
			return nil
		}
	}
	if cur != nil && !cur.IsFinished() {
		b.anomaly(AnomalyFinishOutOfOrder, "command", cur.index, "directive", cur.directive, "finish_directive", event.Directive)
		return cur
	}
	b.anomaly(AnomalyFinishWithoutCommand, "directive", event.Directive)
	return b.synthesize()
}

func (b *Builder) synthesize() *Command {
	cmd := b.job.appendCommand()
	cmd.synthesized = true
	b.current = cmd
	return cmd
}

func (b *Builder) anomaly(kind AnomalyKind, kv ...any) {
	b.stats.Anomalies[kind]++
	b.log.Warn("event stream anomaly", append([]any{"anomaly", string(kind)}, kv...)...)
}
