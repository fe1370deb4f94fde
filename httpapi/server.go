// Package httpapi serves job log ingestion, the record feed and the
// server-rendered log view.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/internal/eventlog"
	"pkt.systems/joblog/internal/logx"
	"pkt.systems/joblog/render"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

const (
	defaultMaxBodyBytes = 16 << 20
	wsWriteTimeout      = 10 * time.Second
	maxJobIDLength      = 128
)

// Server serves the HTTP API and UI.
type Server struct {
	cfg      Config
	hub      *Hub
	log      pslog.Logger
	basePath string
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer constructs an HTTP server over hub.
func NewServer(cfg Config, hub *Hub, logger pslog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Server{
		cfg:      cfg,
		hub:      hub,
		log:      logger,
		basePath: normalizeBasePath(cfg.BasePath),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(Assets()))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/jobs/{id}/events", s.withJob(s.handleIngest))
	mux.HandleFunc("GET /api/jobs/{id}/events", s.withJob(s.handleEvents))
	mux.HandleFunc("GET /api/jobs/{id}/ws", s.withJob(s.handleWS))
	mux.HandleFunc("GET /api/jobs/{id}/stream", s.withJob(s.handleStream))
	mux.HandleFunc("POST /api/jobs/{id}/finish", s.withJob(s.handleFinish))
	mux.HandleFunc("GET /jobs/{id}", s.withJob(s.handlePage))
	mux.HandleFunc("GET /api/prefs", s.handlePrefs)
	mux.HandleFunc("POST /api/prefs", s.handlePrefs)
	mux.HandleFunc("DELETE /api/prefs", s.handlePrefs)

	handler := withRequestLogging(mux, s.log, s.cfg.DisableRequestLogs)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

type jobHandler func(http.ResponseWriter, *http.Request, schema.JobID)

func (s *Server) withJob(next jobHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := parseJobID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ctx := logx.ContextWithJobLogger(r.Context(), logx.WithJob(r.Context(), jobID), jobID)
		next(w, r.WithContext(ctx), jobID)
	}
}

func parseJobID(raw string) (schema.JobID, error) {
	if raw == "" || len(raw) > maxJobIDLength {
		return "", fmt.Errorf("%w: %q", schema.ErrInvalidJob, raw)
	}
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return "", fmt.Errorf("%w: %q", schema.ErrInvalidJob, raw)
		}
	}
	return schema.JobID(raw), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": len(s.hub.Jobs())})
}

type recordError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type ingestResponse struct {
	Accepted int           `json:"accepted"`
	Offset   int           `json:"offset"`
	Next     int           `json:"next"`
	Errors   []recordError `json:"errors,omitempty"`
}

// handleIngest accepts JSONL or a JSON array of records. Valid records are
// published even when others are rejected.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, jobID schema.JobID) {
	log := logx.WithJob(r.Context(), jobID)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	candidates, rejected, err := parseRecords(r, body)
	if err != nil {
		log.Warn("http ingest decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	accepted := make([]schema.RawRecord, 0, len(candidates))
	for i, record := range candidates {
		if record == nil {
			continue
		}
		if _, err := eventlog.Decode(record); err != nil {
			rejected = append(rejected, recordError{Index: i, Error: err.Error()})
			continue
		}
		accepted = append(accepted, record)
	}
	result := s.hub.Publish(jobID, accepted)
	resp := ingestResponse{Accepted: len(accepted), Offset: result.Offset, Next: result.Next, Errors: rejected}
	status := http.StatusOK
	if len(rejected) > 0 {
		status = http.StatusBadRequest
		log.Warn("http ingest rejected records", "rejected", len(rejected), "accepted", len(accepted))
	} else {
		log.Debug("http ingest", "accepted", len(accepted), "next", result.Next)
	}
	writeJSON(w, status, resp)
}

// parseRecords splits the body into raw records. Lines that are not JSON
// objects come back as nil entries plus a recordError.
func parseRecords(r *http.Request, body []byte) ([]schema.RawRecord, []recordError, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []schema.RawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, nil, fmt.Errorf("decode record array: %w", err)
		}
		var rejected []recordError
		for i, record := range records {
			if record == nil {
				rejected = append(rejected, recordError{Index: i, Error: "record is null"})
			}
		}
		return records, rejected, nil
	}
	records, lineErrs, err := eventlog.ReadAll(r.Context(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	var rejected []recordError
	if len(lineErrs) > 0 {
		for i, record := range records {
			if record == nil && len(rejected) < len(lineErrs) {
				rejected = append(rejected, recordError{Index: i, Error: lineErrs[len(rejected)].Error()})
			}
		}
	}
	return records, rejected, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, jobID schema.JobID) {
	after, err := parseAfter(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, ok := s.hub.Replay(jobID, after)
	if !ok {
		writeError(w, http.StatusNotFound, schema.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request, jobID schema.JobID) {
	state := schema.JobState(r.URL.Query().Get("state"))
	switch state {
	case "", schema.JobStateFinished, schema.JobStateRunning, schema.JobStatePending:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown job state %q", state))
		return
	}
	if !s.hub.Finish(jobID, state) {
		writeError(w, http.StatusNotFound, schema.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWS pushes FeedPage frames from ?after=N until the job is done or
// its history was trimmed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, jobID schema.JobID) {
	after, err := parseAfter(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := s.hub.Replay(jobID, after); !ok {
		writeError(w, http.StatusNotFound, schema.ErrJobNotFound)
		return
	}
	log := logx.WithJob(r.Context(), jobID)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("http ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	wake, unsubscribe := s.hub.Subscribe(jobID)
	defer unsubscribe()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Info("http ws opened", "after", after)
	frames := 0
	first := true
	for {
		page, _ := s.hub.Replay(jobID, after)
		if first || len(page.Records) > 0 || page.Done || page.Trimmed {
			data, err := json.Marshal(page)
			if err != nil {
				log.Error("http ws encode failed", "err", err)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("http ws write failed", "err", err)
				return
			}
			frames++
			first = false
			after = page.Next()
		}
		if page.Done || page.Trimmed {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
				time.Now().Add(time.Second))
			log.Info("http ws closed", "frames", frames, "cursor", after)
			return
		}
		if len(page.Records) == maxPageRecords {
			continue
		}
		select {
		case <-wake:
		case <-closed:
			log.Info("http ws client closed", "frames", frames, "cursor", after)
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleStream is the server-sent events variant of the feed. The event id
// is the cursor after the page so Last-Event-ID resumes where it stopped.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, jobID schema.JobID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	cursor := r.Header.Get("Last-Event-ID")
	if cursor == "" {
		cursor = r.URL.Query().Get("after")
	}
	after, err := parseAfter(cursor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := s.hub.Replay(jobID, after); !ok {
		writeError(w, http.StatusNotFound, schema.ErrJobNotFound)
		return
	}
	log := logx.WithJob(r.Context(), jobID)
	wake, unsubscribe := s.hub.Subscribe(jobID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	log.Info("http stream opened", "after", after)
	for {
		page, _ := s.hub.Replay(jobID, after)
		if len(page.Records) > 0 || page.Done || page.Trimmed {
			if err := writeSSEvent(w, page); err != nil {
				log.Error("http stream encode failed", "err", err)
				return
			}
			flusher.Flush()
			after = page.Next()
		}
		if page.Done || page.Trimmed {
			log.Info("http stream closed", "cursor", after)
			return
		}
		if len(page.Records) == maxPageRecords {
			continue
		}
		select {
		case <-wake:
		case <-r.Context().Done():
			log.Info("http stream client closed", "cursor", after)
			return
		}
	}
}

// handlePage renders the log view with display state from cookies. Query
// parameters named after a preference key update the cookie first.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request, jobID schema.JobID) {
	log := logx.WithJob(r.Context(), jobID)
	store := displaystate.New(newCookieBackend(w, r, s.cookiePath()), log)
	if err := applyPrefQuery(store, r); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	builder, ok := s.hub.Builder(jobID)
	status := http.StatusOK
	var doc render.Document
	if !ok {
		status = http.StatusNotFound
		doc = render.Document{JobID: jobID, State: schema.JobStatePending, FirstFailure: -1}
		_ = store.Set(schema.DisplayFetching, string(schema.FetchDontStart))
		_ = store.Set(schema.DisplayFailureMessage, "Job "+string(jobID)+" was not found.")
	} else {
		doc = render.Snapshot(builder, s.now())
		page, _ := s.hub.Replay(jobID, 0)
		_ = store.Set(schema.DisplayJobState, string(page.JobState))
		fetching := schema.FetchInProgress
		if page.JobState == schema.JobStateFinished || doc.JobFinished {
			fetching = schema.FetchFinished
		}
		_ = store.Set(schema.DisplayFetching, string(fetching))
	}
	style := render.Present(store.Snapshot())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	opts := render.PageOptions{
		RefreshSeconds: s.cfg.RefreshSeconds,
		Scripts:        []string{s.basePath + "/assets/" + ScriptAsset},
	}
	if err := render.WritePage(w, doc, style, opts); err != nil {
		log.Debug("http page write failed", "err", err)
	}
}

func applyPrefQuery(store *displaystate.Store, r *http.Request) error {
	query := r.URL.Query()
	for _, key := range schema.PersistedDisplayKeys {
		value := query.Get(string(key))
		if value == "" {
			continue
		}
		if err := store.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// handlePrefs reads (GET), updates (POST) or resets (DELETE) the
// cookie-backed display preferences.
func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	log := pslog.Ctx(r.Context())
	store := displaystate.New(newCookieBackend(w, r, s.cookiePath()), log)
	switch r.Method {
	case http.MethodPost:
		var payload map[string]bool
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		keys := make(map[schema.DisplayKey]bool, len(payload))
		for name, value := range payload {
			key, err := displaystate.ParseKey(name)
			if err != nil || !schema.IsPersistedDisplayKey(key) {
				writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s", schema.ErrInvalidDisplayKey, name))
				return
			}
			keys[key] = value
		}
		for _, key := range schema.PersistedDisplayKeys {
			if value, ok := keys[key]; ok {
				if err := store.SetBool(key, value); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
			}
		}
	case http.MethodDelete:
		if err := store.Reset(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, prefsPayload(store.Preferences()))
}

func prefsPayload(values map[schema.DisplayKey]bool) map[string]bool {
	out := make(map[string]bool, len(values))
	for key, value := range values {
		out[string(key)] = value
	}
	return out
}

func (s *Server) cookiePath() string {
	if s.basePath == "" {
		return "/"
	}
	return s.basePath + "/"
}

func parseAfter(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.Atoi(raw)
	if err != nil || after < 0 {
		return 0, fmt.Errorf("invalid cursor %q", raw)
	}
	return after, nil
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, page schema.FeedPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "id: %d\n", page.Next())
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	return nil
}
