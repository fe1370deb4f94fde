// Package render turns job output into display trees, HTML and terminal text.
package render

import (
	"strconv"
	"time"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/schema"
)

// BlockStatus is the header state of one command block.
type BlockStatus string

const (
	BlockPassed   BlockStatus = "passed"
	BlockFailed   BlockStatus = "failed"
	BlockRunning  BlockStatus = "running"
	BlockFetching BlockStatus = "fetching"
)

// Document is the display tree of one job.
type Document struct {
	JobID         schema.JobID
	State         schema.JobState
	Result        schema.JobResult
	JobFinished   bool
	NumberOfLines int
	Blocks        []Block
	// FirstFailure is the index of the first failed block, -1 when none failed.
	FirstFailure int
}

// Block is one foldable command.
type Block struct {
	Index              int
	Directive          string
	Open               bool
	Status             BlockStatus
	StatusLabel        string
	StatusClass        string
	Duration           string
	Spinner            bool
	Empty              bool
	Trimmed            bool
	StartingLineNumber int
	Lines              []Line
}

// Line is one rendered output line. Output keeps the raw ANSI text; the
// writers colour and escape it.
type Line struct {
	Number    int
	Output    string
	Timestamp string
}

// Build maps the job to a Document. It only reads job and must run while
// the owning builder holds its read lock (see Snapshot).
func Build(job *core.JobOutput, now time.Time) Document {
	doc := Document{
		JobID:         job.JobID(),
		State:         job.State(),
		Result:        job.Result(),
		JobFinished:   job.Finished(),
		NumberOfLines: job.NumberOfLines(),
		FirstFailure:  -1,
	}
	commands := job.Commands()
	doc.Blocks = make([]Block, 0, len(commands))
	for _, cmd := range commands {
		block := buildBlock(cmd, doc.JobFinished, now)
		if block.Status == BlockFailed && doc.FirstFailure < 0 {
			doc.FirstFailure = block.Index
		}
		doc.Blocks = append(doc.Blocks, block)
	}
	return doc
}

// Snapshot builds a Document under the builder's read lock.
func Snapshot(builder *core.Builder, now time.Time) Document {
	var doc Document
	builder.View(func(job *core.JobOutput) {
		doc = Build(job, now)
	})
	return doc
}

func buildBlock(cmd *core.Command, jobFinished bool, now time.Time) Block {
	block := Block{
		Index:              cmd.Index(),
		Directive:          cmd.Directive(),
		Spinner:            cmd.IsFetching(),
		Empty:              cmd.HasEmptyOutput(),
		StartingLineNumber: cmd.StartingLineNumber(),
		Duration:           FormatDuration(cmd.Duration(now)),
		Open:               (cmd.IsFetching() && !jobFinished) || cmd.IsFailed(),
	}
	switch {
	case cmd.IsPassed():
		block.Status, block.StatusLabel, block.StatusClass = BlockPassed, "Passed in", "bg-green"
	case cmd.IsFailed():
		block.Status, block.StatusLabel, block.StatusClass = BlockFailed, "Failed in", "bg-red"
	case jobFinished:
		block.Status, block.StatusLabel, block.StatusClass = BlockFetching, "Fetching", "bg-gray"
		block.Trimmed = true
	default:
		block.Status, block.StatusLabel, block.StatusClass = BlockRunning, "Running", "bg-indigo"
	}
	block.Lines = make([]Line, 0, cmd.LineCount())
	cmd.EachLine(func(line core.LogLine) {
		block.Lines = append(block.Lines, Line{
			Number:    line.Number,
			Output:    line.Output,
			Timestamp: FormatSeconds(line.TimestampRelativeToCommandStartedAt()),
		})
	})
	return block
}

// FormatDuration renders d as MM:SS, or H:MM:SS from one hour up.
// Zero and negative durations render as 00:00.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(int64(d / time.Second))
}

// FormatSeconds renders a second count like FormatDuration.
func FormatSeconds(seconds int64) string {
	if seconds <= 0 {
		return "00:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	buf := make([]byte, 0, 10)
	if h > 0 {
		buf = strconv.AppendInt(buf, h, 10)
		buf = append(buf, ':')
	}
	buf = appendTwoDigits(buf, m)
	buf = append(buf, ':')
	buf = appendTwoDigits(buf, s)
	return string(buf)
}

func appendTwoDigits(buf []byte, v int64) []byte {
	return append(buf, byte('0'+v/10), byte('0'+v%10))
}
