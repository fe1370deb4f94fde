package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"pkt.systems/joblog/schema"
)

// WSFetcher subscribes to {BaseURL}/api/jobs/{id}/ws and buffers the pages the
// server pushes. Fetch never blocks on the socket: it hands out whatever has
// arrived since the previous call and redials lazily once the buffer is
// drained and the connection is gone.
type WSFetcher struct {
	BaseURL string
	Dialer  *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pages   []schema.FeedPage
	readErr error
}

// NewWSFetcher returns a websocket fetcher. baseURL may use http(s) or ws(s).
func NewWSFetcher(baseURL string) *WSFetcher {
	return &WSFetcher{BaseURL: strings.TrimRight(baseURL, "/"), Dialer: websocket.DefaultDialer}
}

// Fetch implements livetail.Fetcher.
func (f *WSFetcher) Fetch(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error) {
	f.mu.Lock()
	if f.readErr != nil {
		err := f.readErr
		f.readErr = nil
		f.pages = nil
		f.mu.Unlock()
		return schema.FeedPage{}, err
	}
	needDial := f.conn == nil && len(f.pages) == 0
	f.mu.Unlock()

	if needDial {
		page, err := f.dial(ctx, jobID, after)
		if err != nil || page != nil {
			if page != nil {
				return *page, nil
			}
			return schema.FeedPage{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return mergePages(jobID, after, &f.pages), nil
}

func (f *WSFetcher) dial(ctx context.Context, jobID schema.JobID, after int) (*schema.FeedPage, error) {
	endpoint := wsURL(f.BaseURL) + WSPath(jobID) + "?after=" + strconv.Itoa(after)
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			switch {
			case resp.StatusCode == http.StatusNotFound:
				return &schema.FeedPage{
					JobID:          jobID,
					Offset:         after,
					Status:         schema.FetchDontStart,
					FailureMessage: schema.ErrJobNotFound.Error(),
				}, nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return nil, fmt.Errorf("%w: %s", schema.ErrFetchRejected, resp.Status)
			}
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	go f.read(conn)
	return nil, nil
}

func (f *WSFetcher) read(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			var page schema.FeedPage
			if uerr := json.Unmarshal(data, &page); uerr != nil {
				err = fmt.Errorf("decode feed frame: %w", uerr)
			} else {
				f.mu.Lock()
				f.pages = append(f.pages, page)
				f.mu.Unlock()
				continue
			}
		}
		_ = conn.Close()
		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				f.readErr = err
			}
		}
		f.mu.Unlock()
		return
	}
}

// Close drops the connection. A later Fetch dials again.
func (f *WSFetcher) Close() error {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.pages = nil
	f.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

// mergePages folds the contiguous run of buffered pages starting at or before
// after into one page and leaves the rest buffered.
func mergePages(jobID schema.JobID, after int, pages *[]schema.FeedPage) schema.FeedPage {
	merged := schema.FeedPage{JobID: jobID, Offset: after}
	buffered := *pages
	if len(buffered) == 0 {
		return merged
	}
	merged.Offset = buffered[0].Offset
	used := 0
	for i, page := range buffered {
		if i > 0 && page.Offset != merged.Next() {
			break
		}
		merged.Records = append(merged.Records, page.Records...)
		if page.JobState != "" {
			merged.JobState = page.JobState
		}
		if page.Status != "" {
			merged.Status = page.Status
			merged.FailureMessage = page.FailureMessage
		}
		merged.Trimmed = merged.Trimmed || page.Trimmed
		merged.Done = merged.Done || page.Done
		used++
	}
	*pages = append(buffered[:0:0], buffered[used:]...)
	return merged
}

func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
