package core

import (
	"errors"
	"time"

	"pkt.systems/joblog/schema"
)

// errCommandFinished is returned when output reaches a command in a terminal state.
var errCommandFinished = errors.New("command already finished")

// LogLine is one physical line of command output.
type LogLine struct {
	// Number is global to the job, assigned once, never reused.
	Number int
	// Output is the raw text with ANSI escapes preserved.
	Output string
	// Timestamp is the epoch second of the output event that opened the line.
	Timestamp int64
	// Complete is false while the line still waits for its newline.
	Complete bool
	// CommandStartedAt is the owning command's start, filled on read.
	CommandStartedAt int64
}

// TimestampRelativeToCommandStartedAt returns the line's offset from the
// start of its command in seconds, never negative.
func (l LogLine) TimestampRelativeToCommandStartedAt() int64 {
	if l.CommandStartedAt <= 0 {
		return 0
	}
	delta := l.Timestamp - l.CommandStartedAt
	if delta < 0 {
		return 0
	}
	return delta
}

// lineNumberer hands out job-global line numbers.
type lineNumberer interface {
	nextLineNumber() int
}

// Command is one directive's execution inside a job.
type Command struct {
	index              int
	directive          string
	status             schema.CommandStatus
	startedAt          int64
	finishedAt         int64
	exitCode           *int
	startingLineNumber int
	synthesized        bool
	lines              []LogLine
}

func newCommand(index int, startingLineNumber int) *Command {
	return &Command{
		index:              index,
		status:             schema.CommandPending,
		startingLineNumber: startingLineNumber,
	}
}

// start moves a pending command to running.
func (c *Command) start(timestamp int64, directive string) {
	if c.status != schema.CommandPending {
		return
	}
	c.status = schema.CommandRunning
	if directive != "" {
		c.directive = directive
	}
	if c.startedAt == 0 {
		c.startedAt = timestamp
	}
}

// appendOutput splits event output into lines. The first fragment extends a
// trailing incomplete line instead of opening a new one.
func (c *Command) appendOutput(event schema.CommandOutput, numbers lineNumberer) (int, error) {
	if c.IsFinished() {
		return 0, errCommandFinished
	}
	if c.status == schema.CommandPending {
		c.start(event.Timestamp, "")
	}
	fragments := SplitOutput(event.Output)
	added := 0
	for i, fragment := range fragments {
		if i == 0 && len(c.lines) > 0 {
			last := &c.lines[len(c.lines)-1]
			if !last.Complete {
				last.Output += fragment.Text
				last.Complete = fragment.Complete
				continue
			}
		}
		c.lines = append(c.lines, LogLine{
			Number:    numbers.nextLineNumber(),
			Output:    fragment.Text,
			Timestamp: event.Timestamp,
			Complete:  fragment.Complete,
		})
		added++
	}
	return added, nil
}

// finish records the exit code. It reports false when the command was
// already finished, leaving it untouched.
func (c *Command) finish(finishedAt int64, exitCode int) bool {
	if c.IsFinished() {
		return false
	}
	code := exitCode
	c.exitCode = &code
	c.finishedAt = finishedAt
	if exitCode == 0 {
		c.status = schema.CommandPassed
	} else {
		c.status = schema.CommandFailed
	}
	return true
}

// Index is the ordinal of the command within its job.
func (c *Command) Index() int { return c.index }

// Directive is the shell command text.
func (c *Command) Directive() string { return c.directive }

// Status returns the lifecycle state.
func (c *Command) Status() schema.CommandStatus { return c.status }

// StartedAt returns the start epoch second, zero when unknown.
func (c *Command) StartedAt() int64 { return c.startedAt }

// FinishedAt returns the finish epoch second, zero while running.
func (c *Command) FinishedAt() int64 { return c.finishedAt }

// ExitCode returns the exit code once finished.
func (c *Command) ExitCode() (int, bool) {
	if c.exitCode == nil {
		return 0, false
	}
	return *c.exitCode, true
}

// StartingLineNumber is the number the command's first output line gets.
func (c *Command) StartingLineNumber() int { return c.startingLineNumber }

// Synthesized reports whether the command was created without a start event.
func (c *Command) Synthesized() bool { return c.synthesized }

// IsFetching reports whether the command has not reached a terminal state.
func (c *Command) IsFetching() bool { return !c.IsFinished() }

// IsFinished reports whether the command passed or failed.
func (c *Command) IsFinished() bool {
	return c.status == schema.CommandPassed || c.status == schema.CommandFailed
}

// IsPassed reports whether the command finished with exit code 0.
func (c *Command) IsPassed() bool { return c.status == schema.CommandPassed }

// IsFailed reports whether the command finished with a non-zero exit code.
func (c *Command) IsFailed() bool { return c.status == schema.CommandFailed }

// HasEmptyOutput reports whether no output line was produced.
func (c *Command) HasEmptyOutput() bool { return len(c.lines) == 0 }

// LineCount returns the number of lines owned by the command.
func (c *Command) LineCount() int { return len(c.lines) }

// Lines returns a copy of the command's lines.
func (c *Command) Lines() []LogLine {
	out := make([]LogLine, len(c.lines))
	copy(out, c.lines)
	for i := range out {
		out[i].CommandStartedAt = c.startedAt
	}
	return out
}

// EachLine calls fn for every line without copying the slice.
func (c *Command) EachLine(fn func(LogLine)) {
	for _, line := range c.lines {
		line.CommandStartedAt = c.startedAt
		fn(line)
	}
}

// Duration is finishedAt-startedAt once finished, and now-startedAt while
// running. Unknown or negative spans are zero.
func (c *Command) Duration(now time.Time) time.Duration {
	if c.startedAt == 0 {
		return 0
	}
	end := now.Unix()
	if c.IsFinished() {
		end = c.finishedAt
	}
	delta := end - c.startedAt
	if delta <= 0 {
		return 0
	}
	return time.Duration(delta) * time.Second
}
