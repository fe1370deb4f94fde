// Package joblog composes the job log HTTP service and its upstream mirrors.
package joblog

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/httpapi"
	"pkt.systems/joblog/internal/eventbus"
	"pkt.systems/joblog/internal/livetail"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

// Server composes the HTTP service and the feed mirrors.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Events returns the bus every applied batch is published on.
	Events() *eventbus.Bus
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	HTTP           httpapi.Config
	MirrorInterval time.Duration
}

// Mirror pulls an upstream job feed into the local hub.
type Mirror struct {
	JobID   schema.JobID
	Fetcher livetail.Fetcher
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	Logger pslog.Logger
	// EventSink is notified of every batch next to the internal bus.
	EventSink core.EventSink
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	mirrors    []Mirror
}

// WithHTTP enables the HTTP API/UI server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithMirror mirrors an upstream job feed into the hub.
func WithMirror(m Mirror) ServerOption {
	return func(o *serverOptions) { o.mirrors = append(o.mirrors, m) }
}

// New constructs a composable joblog server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && len(options.mirrors) == 0 {
		return nil, errors.New("no services enabled")
	}
	for _, m := range options.mirrors {
		if m.JobID == "" || m.Fetcher == nil {
			return nil, errors.New("mirror requires a job id and a fetcher")
		}
	}
	if cfg.MirrorInterval <= 0 {
		cfg.MirrorInterval = livetail.DefaultInterval
	}

	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(logger)
	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}
	hub := httpapi.NewHub(cfg.HTTP.History, sink, logger)

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, hub, logger)
	}
	return &compositeServer{
		cfg:     cfg,
		options: options,
		hub:     hub,
		bus:     bus,
		httpSrv: httpSrv,
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	hub     *httpapi.Hub
	bus     *eventbus.Bus
	httpSrv *httpapi.Server
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

func (s *compositeServer) Events() *eventbus.Bus {
	return s.bus
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(s.ctx)
	s.group = group
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"mirrors", len(s.options.mirrors),
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
	)
	if s.httpSrv != nil {
		handler := s.httpSrv.Handler()
		group.Go(func() error {
			if err := httpapi.ListenAndServe(groupCtx, s.cfg.HTTP.Addr, handler, s.cfg.HTTP.ShutdownTimeout); err != nil {
				log.Error("http server failed", "err", err)
				return err
			}
			return nil
		})
	}
	for _, m := range s.options.mirrors {
		group.Go(func() error {
			return s.runMirror(groupCtx, m)
		})
	}
	return nil
}

// runMirror polls the upstream feed and republishes records into the hub
// until the upstream job is done or ctx ends. Fetch errors are retried.
func (s *compositeServer) runMirror(ctx context.Context, m Mirror) error {
	log := s.logger.With("job", string(m.JobID), "mirror", true)
	cursor := 0
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		page, err := m.Fetcher.Fetch(ctx, m.JobID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("mirror fetch failed", "err", err, "cursor", cursor)
			timer.Reset(s.cfg.MirrorInterval)
			continue
		}
		records := page.Records
		if skip := cursor - page.Offset; skip > 0 {
			if skip >= len(records) {
				records = nil
			} else {
				records = records[skip:]
			}
		}
		valid := records[:0:0]
		for _, record := range records {
			if record != nil {
				valid = append(valid, record)
			}
		}
		if len(valid) > 0 {
			s.hub.Publish(m.JobID, valid)
		}
		if next := page.Next(); next > cursor {
			cursor = next
		}
		if page.Done || page.Trimmed || page.Status.Terminal() {
			// Publish creates the job when upstream never sent a record.
			s.hub.Publish(m.JobID, nil)
			s.hub.Finish(m.JobID, schema.JobStateFinished)
			log.Info("mirror finished", "cursor", cursor, "status", string(page.Status), "trimmed", page.Trimmed)
			return nil
		}
		timer.Reset(s.cfg.MirrorInterval)
	}
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	group := s.group
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}
	err := group.Wait()
	if err != nil {
		pslog.Ctx(s.ctx).Error("server stopped", "err", err)
	}
	return err
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	group := s.group
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
