package schema

// JobID identifies a CI job whose log is being viewed.
type JobID string

// JobResult is the result string carried by job_finished.
type JobResult string

const (
	// JobPassed marks a job whose commands all passed.
	JobPassed JobResult = "passed"
	// JobFailed marks a job with a failing command.
	JobFailed JobResult = "failed"
	// JobStopped marks a job that was stopped by the system.
	JobStopped JobResult = "stopped"
	// JobCanceled marks a job canceled by a user.
	JobCanceled JobResult = "canceled"
)

// JobState is the coarse backend state of a job (pending, running, finished).
type JobState string

const (
	// JobStatePending indicates the job has not started yet.
	JobStatePending JobState = "pending"
	// JobStateRunning indicates the job is executing.
	JobStateRunning JobState = "running"
	// JobStateFinished indicates the job completed.
	JobStateFinished JobState = "finished"
)

// CommandStatus is the lifecycle state of one command block.
type CommandStatus string

const (
	// CommandPending is a command created without a start event and no output yet.
	CommandPending CommandStatus = "pending"
	// CommandRunning is a started command that has not finished.
	CommandRunning CommandStatus = "running"
	// CommandPassed is a command that finished with exit code 0.
	CommandPassed CommandStatus = "passed"
	// CommandFailed is a command that finished with a non-zero exit code.
	CommandFailed CommandStatus = "failed"
)

// ThemeName identifies a terminal colour theme.
type ThemeName string
