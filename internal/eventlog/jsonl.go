package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"pkt.systems/joblog/schema"
)

// Stream reads newline-delimited JSON records. Blank lines are skipped and do
// not consume a stream position.
type Stream struct {
	reader   *bufio.Reader
	position int
	pending  []byte
}

// LineError reports a line that could not be decoded. The stream stays usable.
type LineError struct {
	line     []byte
	position int
	err      error
}

func (e *LineError) Error() string {
	if e == nil || e.err == nil {
		return "jsonl decode error"
	}
	return e.err.Error()
}

func (e *LineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Line returns the raw line that failed to decode.
func (e *LineError) Line() []byte {
	if e == nil {
		return nil
	}
	return e.line
}

// Position returns the stream position of the failed line.
func (e *LineError) Position() int {
	if e == nil {
		return 0
	}
	return e.position
}

// NewStream wraps r in a JSONL stream.
func NewStream(r io.Reader) *Stream {
	return &Stream{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Position returns the position the next record will have.
func (s *Stream) Position() int {
	return s.position
}

// NextRecord returns the next raw record. A line that is not a JSON object is
// returned as *LineError after consuming its position. A final line without a
// trailing newline is held back until more data arrives or the reader hits EOF,
// so followers of a growing file never see half-written records.
func (s *Stream) NextRecord(ctx context.Context) (schema.RawRecord, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		chunk, err := s.reader.ReadBytes('\n')
		if len(chunk) > 0 {
			s.pending = append(s.pending, chunk...)
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		complete := len(s.pending) > 0 && s.pending[len(s.pending)-1] == '\n'
		if !complete && err == nil {
			continue
		}
		if !complete && err == io.EOF {
			return nil, io.EOF
		}
		line := bytes.TrimSpace(s.pending)
		s.pending = s.pending[:0]
		if len(line) == 0 {
			continue
		}
		position := s.position
		s.position++
		record, parseErr := ParseRecord(line)
		if parseErr != nil {
			return nil, &LineError{line: append([]byte(nil), line...), position: position, err: parseErr}
		}
		return record, nil
	}
}

// Flush returns a trailing record that was never newline terminated. It is
// used once the producer is known to be done.
func (s *Stream) Flush() (schema.RawRecord, bool, error) {
	line := bytes.TrimSpace(s.pending)
	s.pending = s.pending[:0]
	if len(line) == 0 {
		return nil, false, nil
	}
	position := s.position
	s.position++
	record, err := ParseRecord(line)
	if err != nil {
		return nil, true, &LineError{line: append([]byte(nil), line...), position: position, err: err}
	}
	return record, true, nil
}

// Next returns the next decoded event. Validation failures are returned as
// *LineError wrapping a *schema.DecodeError.
func (s *Stream) Next(ctx context.Context) (schema.Event, error) {
	record, err := s.NextRecord(ctx)
	if err != nil {
		return nil, err
	}
	event, decodeErr := Decode(record)
	if decodeErr != nil {
		return nil, &LineError{position: s.position - 1, err: decodeErr}
	}
	return event, nil
}

// ReadAll drains r and returns every record, including a trailing record
// without a newline. Lines that are not JSON objects are collected as errors.
func ReadAll(ctx context.Context, r io.Reader) ([]schema.RawRecord, []error, error) {
	stream := NewStream(r)
	var records []schema.RawRecord
	var lineErrs []error
	for {
		record, err := stream.NextRecord(ctx)
		if err == nil {
			records = append(records, record)
			continue
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			lineErrs = append(lineErrs, lineErr)
			records = append(records, nil)
			continue
		}
		if !errors.Is(err, io.EOF) {
			return records, lineErrs, err
		}
		break
	}
	record, ok, err := stream.Flush()
	if ok {
		if err != nil {
			lineErrs = append(lineErrs, err)
			records = append(records, nil)
		} else {
			records = append(records, record)
		}
	}
	return records, lineErrs, nil
}
