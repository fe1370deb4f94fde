package eventlog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"pkt.systems/joblog/schema"
)

// Decode validates a raw record and returns the matching Event variant.
// Failures are *schema.DecodeError; a failed record never yields a partial event.
func Decode(raw schema.RawRecord) (schema.Event, error) {
	if raw == nil {
		return nil, schema.NewDecodeError("", "event", "is missing")
	}
	kindValue, err := requiredString(raw, "", "event")
	if err != nil {
		return nil, err
	}
	kind := schema.EventKind(kindValue)
	switch kind {
	case schema.EventJobStarted:
		ts, err := requiredInt(raw, kind, "timestamp")
		if err != nil {
			return nil, err
		}
		return schema.JobStarted{Timestamp: ts}, nil
	case schema.EventCommandStarted:
		ts, err := requiredInt(raw, kind, "timestamp")
		if err != nil {
			return nil, err
		}
		directive, err := requiredString(raw, kind, "directive")
		if err != nil {
			return nil, err
		}
		return schema.CommandStarted{Timestamp: ts, Directive: directive}, nil
	case schema.EventCommandOutput:
		ts, err := requiredInt(raw, kind, "timestamp")
		if err != nil {
			return nil, err
		}
		output, err := presentString(raw, kind, "output")
		if err != nil {
			return nil, err
		}
		return schema.CommandOutput{Timestamp: ts, Output: output}, nil
	case schema.EventCommandFinished:
		ts, err := requiredInt(raw, kind, "timestamp")
		if err != nil {
			return nil, err
		}
		directive, err := requiredString(raw, kind, "directive")
		if err != nil {
			return nil, err
		}
		exitCode, err := requiredInt(raw, kind, "exit_code", "exitCode")
		if err != nil {
			return nil, err
		}
		startedAt, err := requiredInt(raw, kind, "started_at", "startedAt")
		if err != nil {
			return nil, err
		}
		finishedAt, err := requiredInt(raw, kind, "finished_at", "finishedAt")
		if err != nil {
			return nil, err
		}
		return schema.CommandFinished{
			Timestamp:  ts,
			Directive:  directive,
			ExitCode:   int(exitCode),
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
		}, nil
	case schema.EventJobFinished:
		ts, err := requiredInt(raw, kind, "timestamp")
		if err != nil {
			return nil, err
		}
		result, err := requiredString(raw, kind, "result")
		if err != nil {
			return nil, err
		}
		return schema.JobFinished{Timestamp: ts, Result: schema.JobResult(result)}, nil
	default:
		return nil, schema.NewUnknownEventError(kind)
	}
}

// DecodeLine decodes one JSON object into an Event.
func DecodeLine(line []byte) (schema.Event, error) {
	raw, err := ParseRecord(line)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// ParseRecord parses a JSON object into a RawRecord without validating fields.
func ParseRecord(line []byte) (schema.RawRecord, error) {
	var raw schema.RawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, schema.NewDecodeError("", "record", "is not a JSON object: "+err.Error())
	}
	if raw == nil {
		return nil, schema.NewDecodeError("", "record", "is null")
	}
	return raw, nil
}

// lookup returns the first present, non-null value among names.
func lookup(raw schema.RawRecord, names ...string) (json.RawMessage, string, bool) {
	for _, name := range names {
		value, ok := raw[name]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return trimmed, name, true
	}
	return nil, "", false
}

func requiredString(raw schema.RawRecord, kind schema.EventKind, names ...string) (string, error) {
	value, err := presentString(raw, kind, names...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", schema.NewDecodeError(kind, names[0], "is blank")
	}
	return value, nil
}

// presentString requires the field but accepts the empty string.
func presentString(raw schema.RawRecord, kind schema.EventKind, names ...string) (string, error) {
	value, _, ok := lookup(raw, names...)
	if !ok {
		return "", schema.NewDecodeError(kind, names[0], "is missing")
	}
	var out string
	if err := json.Unmarshal(value, &out); err != nil {
		return "", schema.NewDecodeError(kind, names[0], "is not a string")
	}
	return out, nil
}

// requiredInt accepts JSON numbers and numeric strings. Zero is a present value.
func requiredInt(raw schema.RawRecord, kind schema.EventKind, names ...string) (int64, error) {
	value, _, ok := lookup(raw, names...)
	if !ok {
		return 0, schema.NewDecodeError(kind, names[0], "is missing")
	}
	text := string(value)
	if value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return 0, schema.NewDecodeError(kind, names[0], "is not a string")
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, schema.NewDecodeError(kind, names[0], "is blank")
		}
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, schema.NewDecodeError(kind, names[0], "is not an integer")
	}
	return int64(f), nil
}
