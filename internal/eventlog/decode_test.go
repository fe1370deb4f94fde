package eventlog

import (
	"errors"
	"testing"

	"pkt.systems/joblog/schema"
)

func TestDecodeCommandStarted(t *testing.T) {
	event, err := DecodeLine([]byte(`{"event":"cmd_started","timestamp":1700000000,"directive":"make test"}`))
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	started, ok := event.(schema.CommandStarted)
	if !ok {
		t.Fatalf("unexpected event type %T", event)
	}
	if started.Timestamp != 1700000000 || started.Directive != "make test" {
		t.Fatalf("unexpected event: %+v", started)
	}
}

func TestDecodeRejectsBlankDirective(t *testing.T) {
	_, err := DecodeLine([]byte(`{"event":"cmd_started","timestamp":1,"directive":"   "}`))
	var decodeErr *schema.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Field != "directive" {
		t.Fatalf("expected directive field, got %q", decodeErr.Field)
	}
	if !errors.Is(err, schema.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestDecodeCommandOutputAcceptsEmptyOutput(t *testing.T) {
	event, err := DecodeLine([]byte(`{"event":"cmd_output","timestamp":5,"output":""}`))
	if err != nil {
		t.Fatalf("empty output should decode: %v", err)
	}
	if out := event.(schema.CommandOutput); out.Output != "" || out.Timestamp != 5 {
		t.Fatalf("unexpected event: %+v", out)
	}
}

func TestDecodeCommandOutputRequiresOutputField(t *testing.T) {
	_, err := DecodeLine([]byte(`{"event":"cmd_output","timestamp":5}`))
	var decodeErr *schema.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Field != "output" {
		t.Fatalf("expected output DecodeError, got %v", err)
	}
}

func TestDecodeCommandFinishedDistinguishesZeroFromAbsent(t *testing.T) {
	event, err := DecodeLine([]byte(`{"event":"cmd_finished","timestamp":9,"directive":"true","exit_code":0,"started_at":3,"finished_at":9}`))
	if err != nil {
		t.Fatalf("zero exit code should decode: %v", err)
	}
	finished := event.(schema.CommandFinished)
	if finished.ExitCode != 0 || finished.StartedAt != 3 || finished.FinishedAt != 9 {
		t.Fatalf("unexpected event: %+v", finished)
	}

	cases := []struct {
		name string
		line string
	}{
		{name: "absent", line: `{"event":"cmd_finished","timestamp":9,"directive":"true","started_at":3,"finished_at":9}`},
		{name: "null", line: `{"event":"cmd_finished","timestamp":9,"directive":"true","exit_code":null,"started_at":3,"finished_at":9}`},
		{name: "blank", line: `{"event":"cmd_finished","timestamp":9,"directive":"true","exit_code":"","started_at":3,"finished_at":9}`},
	}
	for _, tc := range cases {
		_, err := DecodeLine([]byte(tc.line))
		var decodeErr *schema.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%s: expected DecodeError, got %v", tc.name, err)
		}
		if decodeErr.Field != "exit_code" {
			t.Fatalf("%s: expected exit_code field, got %q", tc.name, decodeErr.Field)
		}
	}
}

func TestDecodeAcceptsCamelCaseAndNumericStrings(t *testing.T) {
	event, err := DecodeLine([]byte(`{"event":"cmd_finished","timestamp":"9","directive":"ls","exitCode":"2","startedAt":3,"finishedAt":9.0}`))
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	finished := event.(schema.CommandFinished)
	if finished.ExitCode != 2 || finished.Timestamp != 9 || finished.FinishedAt != 9 {
		t.Fatalf("unexpected event: %+v", finished)
	}
}

func TestDecodeJobFinishedRequiresResult(t *testing.T) {
	_, err := DecodeLine([]byte(`{"event":"job_finished","timestamp":9}`))
	var decodeErr *schema.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Field != "result" {
		t.Fatalf("expected result DecodeError, got %v", err)
	}
	event, err := DecodeLine([]byte(`{"event":"job_finished","timestamp":9,"result":"passed"}`))
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if event.(schema.JobFinished).Result != schema.JobPassed {
		t.Fatalf("unexpected result: %+v", event)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := DecodeLine([]byte(`{"event":"cmd_paused","timestamp":1}`))
	if !errors.Is(err, schema.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := DecodeLine([]byte(`{"event":`))
	if !errors.Is(err, schema.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error for nil record")
	}
}

func TestEncodeRoundTripsThroughDecode(t *testing.T) {
	events := []schema.Event{
		schema.JobStarted{Timestamp: 1},
		schema.CommandStarted{Timestamp: 2, Directive: "echo <hi>"},
		schema.CommandOutput{Timestamp: 3, Output: "hi\r\n"},
		schema.CommandFinished{Timestamp: 4, Directive: "echo <hi>", ExitCode: 0, StartedAt: 2, FinishedAt: 4},
		schema.JobFinished{Timestamp: 5, Result: schema.JobPassed},
	}
	records, err := ToRecords(events...)
	if err != nil {
		t.Fatalf("ToRecords: %v", err)
	}
	for i, record := range records {
		got, err := Decode(record)
		if err != nil {
			t.Fatalf("Decode(%d): %v", i, err)
		}
		if got != events[i] {
			t.Fatalf("event %d: got %+v, want %+v", i, got, events[i])
		}
	}
}
