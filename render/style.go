package render

import (
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/schema"
)

// Messages shown instead of the log when the backend stops the view.
const (
	MessageDontStart   = "The job log is not available."
	MessageFailure     = "Fetching the job log failed."
	MessageTrimmedLogs = "This job produced more output than can be displayed. The log was trimmed."
)

// StyleDecision is the presentation derived from display state.
type StyleDecision struct {
	Dark       bool
	Wrap       bool
	Timestamps bool
	Sticky     bool
	Live       bool
	// ShowLog is false when a backend-reported condition hides the log.
	ShowLog bool
	Message string
	// Polling is true while the live-tail controller is fetching.
	Polling bool
	// Classes are the container classes for the HTML view.
	Classes []string
}

// Present maps a display snapshot to a StyleDecision.
func Present(state displaystate.Snapshot) StyleDecision {
	d := StyleDecision{
		Dark:       state.Dark,
		Wrap:       state.Wrap,
		Timestamps: state.Timestamps,
		Sticky:     state.Sticky,
		Live:       state.Live,
		ShowLog:    true,
		Polling:    state.Fetching == schema.FetchInProgress,
	}
	switch {
	case state.Fetching == schema.FetchFailure:
		d.ShowLog = false
		d.Message = messageOr(state.FailureMessage, MessageFailure)
	case state.Fetching == schema.FetchDontStart:
		d.ShowLog = false
		d.Message = messageOr(state.FailureMessage, MessageDontStart)
	case state.TrimmedLogs:
		d.ShowLog = false
		d.Message = MessageTrimmedLogs
	}
	d.Classes = append(d.Classes, "job-log")
	if d.Dark {
		d.Classes = append(d.Classes, "job-log--dark")
	}
	if d.Wrap {
		d.Classes = append(d.Classes, "job-log--wrap")
	}
	if d.Timestamps {
		d.Classes = append(d.Classes, "job-log--timestamps")
	}
	if d.Sticky {
		d.Classes = append(d.Classes, "job-log--sticky")
	}
	if d.Polling {
		d.Classes = append(d.Classes, "job-log--live")
	}
	return d
}

// DefaultStyle is the presentation of a fresh store.
func DefaultStyle() StyleDecision {
	return Present(displaystate.New(nil, nil).Snapshot())
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
