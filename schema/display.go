package schema

// DisplayKey names one entry of the live display state.
type DisplayKey string

const (
	// DisplayDark selects the dark theme.
	DisplayDark DisplayKey = "dark"
	// DisplayWrap wraps long output lines.
	DisplayWrap DisplayKey = "wrap"
	// DisplaySticky keeps the running command header pinned.
	DisplaySticky DisplayKey = "sticky"
	// DisplayTimestamps shows per-line relative timestamps.
	DisplayTimestamps DisplayKey = "timestamps"
	// DisplayLive enables live-tail polling.
	DisplayLive DisplayKey = "live"
	// DisplayFetching holds the FetchStatus of the live-tail controller.
	DisplayFetching DisplayKey = "fetching"
	// DisplayFailureMessage holds the backend supplied failure message.
	DisplayFailureMessage DisplayKey = "failure_msg"
	// DisplayTrimmedLogs is set when the backend reports truncated logs.
	DisplayTrimmedLogs DisplayKey = "trimmed_logs"
	// DisplayJobState mirrors the backend job state string.
	DisplayJobState DisplayKey = "state"
)

// FetchStatus is the state of the live-tail controller.
type FetchStatus string

const (
	// FetchReady means no fetch has been issued yet.
	FetchReady FetchStatus = "ready"
	// FetchInProgress means the controller is polling.
	FetchInProgress FetchStatus = "in_progress"
	// FetchFinished means the job finished and polling stopped.
	FetchFinished FetchStatus = "finished"
	// FetchDontStart means the backend refused to serve the log.
	FetchDontStart FetchStatus = "dont_start"
	// FetchFailure means the backend reported a terminal failure.
	FetchFailure FetchStatus = "failure"
)

// Terminal reports whether the status stops polling permanently.
func (s FetchStatus) Terminal() bool {
	switch s {
	case FetchFinished, FetchDontStart, FetchFailure:
		return true
	default:
		return false
	}
}

// ValidFetchStatus reports whether value is a known FetchStatus.
func ValidFetchStatus(value string) bool {
	switch FetchStatus(value) {
	case FetchReady, FetchInProgress, FetchFinished, FetchDontStart, FetchFailure:
		return true
	default:
		return false
	}
}

// PersistedDisplayKeys are the preference keys that survive reloads.
var PersistedDisplayKeys = []DisplayKey{
	DisplayDark,
	DisplayWrap,
	DisplaySticky,
	DisplayTimestamps,
	DisplayLive,
}

// BoolDisplayKeys are the keys holding "true"/"false".
var BoolDisplayKeys = []DisplayKey{
	DisplayDark,
	DisplayWrap,
	DisplaySticky,
	DisplayTimestamps,
	DisplayLive,
	DisplayTrimmedLogs,
}

// IsBoolDisplayKey reports whether key holds a boolean.
func IsBoolDisplayKey(key DisplayKey) bool {
	for _, k := range BoolDisplayKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsPersistedDisplayKey reports whether key is written to durable storage.
func IsPersistedDisplayKey(key DisplayKey) bool {
	for _, k := range PersistedDisplayKeys {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultDisplayState returns the initial value of every display key.
func DefaultDisplayState() map[DisplayKey]string {
	return map[DisplayKey]string{
		DisplayDark:           "false",
		DisplayWrap:           "true",
		DisplaySticky:         "true",
		DisplayTimestamps:     "false",
		DisplayLive:           "true",
		DisplayFetching:       string(FetchReady),
		DisplayFailureMessage: "",
		DisplayTrimmedLogs:    "false",
		DisplayJobState:       string(JobStatePending),
	}
}
