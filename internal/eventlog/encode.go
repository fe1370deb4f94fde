package eventlog

import (
	"encoding/json"
	"fmt"

	"pkt.systems/joblog/schema"
)

type wireJobStarted struct {
	Event schema.EventKind `json:"event"`
	schema.JobStarted
}

type wireCommandStarted struct {
	Event schema.EventKind `json:"event"`
	schema.CommandStarted
}

type wireCommandOutput struct {
	Event schema.EventKind `json:"event"`
	schema.CommandOutput
}

type wireCommandFinished struct {
	Event schema.EventKind `json:"event"`
	schema.CommandFinished
}

type wireJobFinished struct {
	Event schema.EventKind `json:"event"`
	schema.JobFinished
}

// Encode returns the wire form of an event.
func Encode(event schema.Event) ([]byte, error) {
	switch e := event.(type) {
	case schema.JobStarted:
		return json.Marshal(wireJobStarted{Event: e.Kind(), JobStarted: e})
	case schema.CommandStarted:
		return json.Marshal(wireCommandStarted{Event: e.Kind(), CommandStarted: e})
	case schema.CommandOutput:
		return json.Marshal(wireCommandOutput{Event: e.Kind(), CommandOutput: e})
	case schema.CommandFinished:
		return json.Marshal(wireCommandFinished{Event: e.Kind(), CommandFinished: e})
	case schema.JobFinished:
		return json.Marshal(wireJobFinished{Event: e.Kind(), JobFinished: e})
	default:
		return nil, fmt.Errorf("encode %T: %w", event, schema.ErrUnknownEvent)
	}
}

// ToRecord converts an event into its raw record form.
func ToRecord(event schema.Event) (schema.RawRecord, error) {
	data, err := Encode(event)
	if err != nil {
		return nil, err
	}
	return ParseRecord(data)
}

// ToRecords converts events into raw records, stopping at the first failure.
func ToRecords(events ...schema.Event) ([]schema.RawRecord, error) {
	out := make([]schema.RawRecord, 0, len(events))
	for _, event := range events {
		record, err := ToRecord(event)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}
