package schema

import "encoding/json"

// EventKind is the value of the "event" discriminator on a job log record.
type EventKind string

const (
	// EventJobStarted marks the beginning of a job log.
	EventJobStarted EventKind = "job_started"
	// EventCommandStarted marks the start of a command block.
	EventCommandStarted EventKind = "cmd_started"
	// EventCommandOutput carries raw output bytes of the running command.
	EventCommandOutput EventKind = "cmd_output"
	// EventCommandFinished marks the end of a command block.
	EventCommandFinished EventKind = "cmd_finished"
	// EventJobFinished marks the end of the job.
	EventJobFinished EventKind = "job_finished"
)

// Event is one decoded job log record.
type Event interface {
	Kind() EventKind
	EventTimestamp() int64
}

// RawRecord is an undecoded job log record as delivered by the feed.
type RawRecord map[string]json.RawMessage

// JobStarted is emitted once before any command runs.
type JobStarted struct {
	Timestamp int64 `json:"timestamp"`
}

// CommandStarted opens a new command block.
type CommandStarted struct {
	Timestamp int64  `json:"timestamp"`
	Directive string `json:"directive"`
}

// CommandOutput carries raw output. Output may hold several physical lines,
// CRLF sequences, ANSI escapes, or a partial line.
type CommandOutput struct {
	Timestamp int64  `json:"timestamp"`
	Output    string `json:"output"`
}

// CommandFinished closes a command block.
type CommandFinished struct {
	Timestamp  int64  `json:"timestamp"`
	Directive  string `json:"directive"`
	ExitCode   int    `json:"exit_code"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
}

// JobFinished closes the job log.
type JobFinished struct {
	Timestamp int64     `json:"timestamp"`
	Result    JobResult `json:"result"`
}

// Kind implements Event.
func (JobStarted) Kind() EventKind { return EventJobStarted }

// Kind implements Event.
func (CommandStarted) Kind() EventKind { return EventCommandStarted }

// Kind implements Event.
func (CommandOutput) Kind() EventKind { return EventCommandOutput }

// Kind implements Event.
func (CommandFinished) Kind() EventKind { return EventCommandFinished }

// Kind implements Event.
func (JobFinished) Kind() EventKind { return EventJobFinished }

// EventTimestamp implements Event.
func (e JobStarted) EventTimestamp() int64 { return e.Timestamp }

// EventTimestamp implements Event.
func (e CommandStarted) EventTimestamp() int64 { return e.Timestamp }

// EventTimestamp implements Event.
func (e CommandOutput) EventTimestamp() int64 { return e.Timestamp }

// EventTimestamp implements Event.
func (e CommandFinished) EventTimestamp() int64 { return e.Timestamp }

// EventTimestamp implements Event.
func (e JobFinished) EventTimestamp() int64 { return e.Timestamp }

// BatchApplied is published after a batch of events has been folded into a job.
type BatchApplied struct {
	JobID         JobID
	Cursor        int
	Applied       int
	Skipped       int
	DecodeErrors  int
	NumberOfLines int
	Commands      int
	JobFinished   bool
}
