package core

import "pkt.systems/joblog/schema"

// JobOutput is the ordered set of commands of one job. It owns the
// job-global line counter.
type JobOutput struct {
	jobID         schema.JobID
	commands      []*Command
	numberOfLines int
	finished      bool
	result        schema.JobResult
	finishedAt    int64
}

// NewJobOutput returns an empty job.
func NewJobOutput(jobID schema.JobID) *JobOutput {
	return &JobOutput{jobID: jobID}
}

// JobID returns the job identifier.
func (j *JobOutput) JobID() schema.JobID { return j.jobID }

// Commands returns the commands in arrival order.
func (j *JobOutput) Commands() []*Command {
	out := make([]*Command, len(j.commands))
	copy(out, j.commands)
	return out
}

// Command returns the command at index.
func (j *JobOutput) Command(index int) (*Command, bool) {
	if index < 0 || index >= len(j.commands) {
		return nil, false
	}
	return j.commands[index], true
}

// CommandCount returns the number of commands.
func (j *JobOutput) CommandCount() int { return len(j.commands) }

// NumberOfLines returns the total lines across all commands.
func (j *JobOutput) NumberOfLines() int { return j.numberOfLines }

// Finished reports whether a job_finished event was applied.
func (j *JobOutput) Finished() bool { return j.finished }

// Result returns the job result, empty until finished.
func (j *JobOutput) Result() schema.JobResult { return j.result }

// FinishedAt returns the job finish epoch second.
func (j *JobOutput) FinishedAt() int64 { return j.finishedAt }

// State derives pending/running/finished from the commands seen so far.
func (j *JobOutput) State() schema.JobState {
	switch {
	case j.finished:
		return schema.JobStateFinished
	case len(j.commands) == 0:
		return schema.JobStatePending
	default:
		return schema.JobStateRunning
	}
}

// FirstFailed returns the first failed command, if any.
func (j *JobOutput) FirstFailed() (*Command, bool) {
	for _, cmd := range j.commands {
		if cmd.IsFailed() {
			return cmd, true
		}
	}
	return nil, false
}

// Last returns the most recently appended command.
func (j *JobOutput) Last() (*Command, bool) {
	if len(j.commands) == 0 {
		return nil, false
	}
	return j.commands[len(j.commands)-1], true
}

func (j *JobOutput) nextLineNumber() int {
	j.numberOfLines++
	return j.numberOfLines
}

func (j *JobOutput) appendCommand() *Command {
	cmd := newCommand(len(j.commands), j.numberOfLines+1)
	j.commands = append(j.commands, cmd)
	return cmd
}

func (j *JobOutput) finish(event schema.JobFinished) bool {
	if j.finished {
		return false
	}
	j.finished = true
	j.result = event.Result
	j.finishedAt = event.Timestamp
	return true
}
