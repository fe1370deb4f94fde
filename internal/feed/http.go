// Package feed holds the transports the live-tail controller fetches from.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pkt.systems/joblog/schema"
)

// DefaultTimeout bounds a single HTTP fetch.
const DefaultTimeout = 30 * time.Second

// EventsPath returns the feed path of a job.
func EventsPath(jobID schema.JobID) string {
	return "/api/jobs/" + url.PathEscape(string(jobID)) + "/events"
}

// WSPath returns the websocket path of a job.
func WSPath(jobID schema.JobID) string {
	return "/api/jobs/" + url.PathEscape(string(jobID)) + "/ws"
}

// HTTPFetcher polls GET {BaseURL}/api/jobs/{id}/events?after=N.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher returns a fetcher with a client bounded by timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Fetch implements livetail.Fetcher. A 404 is reported as a dont_start page
// so the view stops; other non-2xx answers are errors and get retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, jobID schema.JobID, after int) (schema.FeedPage, error) {
	endpoint := strings.TrimRight(f.BaseURL, "/") + EventsPath(jobID) + "?after=" + strconv.Itoa(after)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return schema.FeedPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return schema.FeedPage{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return schema.FeedPage{
			JobID:          jobID,
			Offset:         after,
			Status:         schema.FetchDontStart,
			FailureMessage: schema.ErrJobNotFound.Error(),
		}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return schema.FeedPage{}, fmt.Errorf("%w: %s: %s", schema.ErrFetchRejected, resp.Status, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return schema.FeedPage{}, fmt.Errorf("feed responded %s", resp.Status)
	}

	var page schema.FeedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return schema.FeedPage{}, fmt.Errorf("decode feed page: %w", err)
	}
	if page.JobID == "" {
		page.JobID = jobID
	}
	return page, nil
}
