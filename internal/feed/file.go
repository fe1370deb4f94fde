package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"pkt.systems/joblog/internal/eventlog"
	"pkt.systems/joblog/schema"
)

// FileFetcher reads a JSONL event log. With Follow set it behaves like
// tail -f and returns the records appended since the previous call;
// otherwise the first call drains the file and reports the feed done.
type FileFetcher struct {
	Path   string
	Follow bool

	mu     sync.Mutex
	file   *os.File
	stream *eventlog.Stream
	done   bool
}

// NewFileFetcher returns a fetcher for path.
func NewFileFetcher(path string, follow bool) *FileFetcher {
	return &FileFetcher{Path: path, Follow: follow}
}

// Fetch implements livetail.Fetcher. Undecodable lines are returned as nil
// records so positions stay aligned.
func (f *FileFetcher) Fetch(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stream == nil {
		file, err := os.Open(f.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && f.Follow {
				return schema.FeedPage{JobID: jobID, Offset: after}, nil
			}
			return schema.FeedPage{}, err
		}
		f.file = file
		f.stream = eventlog.NewStream(file)
	}
	page := schema.FeedPage{JobID: jobID, Offset: f.stream.Position(), Done: f.done}
	if f.done {
		return page, nil
	}
	for {
		record, err := f.stream.NextRecord(ctx)
		if err == nil {
			page.Records = append(page.Records, record)
			continue
		}
		var lineErr *eventlog.LineError
		if errors.As(err, &lineErr) {
			page.Records = append(page.Records, nil)
			continue
		}
		if !errors.Is(err, io.EOF) {
			return page, fmt.Errorf("read %s: %w", f.Path, err)
		}
		break
	}
	if !f.Follow {
		if record, ok, err := f.stream.Flush(); ok {
			if err != nil {
				record = nil
			}
			page.Records = append(page.Records, record)
		}
		f.done = true
		page.Done = true
		page.JobState = schema.JobStateFinished
	}
	return page, nil
}

// Close releases the file.
func (f *FileFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.stream = nil
	return err
}
