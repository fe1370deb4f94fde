package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/internal/appconfig"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/internal/eventbus"
	"pkt.systems/joblog/internal/feed"
	"pkt.systems/joblog/internal/livetail"
	"pkt.systems/joblog/internal/logx"
	"pkt.systems/joblog/render"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

type tailOptions struct {
	configPath string
	jobID      string
	url        string
	wsURL      string
	file       string
	follow     bool
	profile    string
	theme      string
	color      string
	interval   time.Duration
	width      int
	noJump     bool
}

func newTailCmd() *cobra.Command {
	var opts tailOptions
	cmd := &cobra.Command{
		Use:   "tail --job ID [--url URL | --ws URL | --file PATH]",
		Short: "Follow a job log until the job finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config path")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "job id to follow")
	cmd.Flags().StringVar(&opts.url, "url", "", "poll the HTTP feed at this base URL")
	cmd.Flags().StringVar(&opts.wsURL, "ws", "", "stream the websocket feed at this base URL")
	cmd.Flags().StringVar(&opts.file, "file", "", "read a JSONL job log file")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "keep reading --file as it grows")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "display profile (default from config)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "terminal theme")
	cmd.Flags().StringVar(&opts.color, "color", colorAuto, "colour output: auto, always or never")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "terminal width (0 detects)")
	cmd.Flags().BoolVar(&opts.noJump, "no-jump", false, "do not jump to the first failed command when the job fails")
	_ = cmd.MarkFlagRequired("job")
	cmd.MarkFlagsMutuallyExclusive("url", "ws", "file")
	return cmd
}

func runTail(ctx context.Context, opts tailOptions, out io.Writer) error {
	cfg, err := appconfig.Load(opts.configPath)
	if err != nil {
		return err
	}
	jobID := schema.JobID(strings.TrimSpace(opts.jobID))
	if jobID == "" {
		return errors.New("--job is required")
	}
	theme, err := resolveTheme(opts.theme, cfg)
	if err != nil {
		return err
	}
	fetcher, closeFetcher, err := tailFetcher(opts, cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	viewerID := uuid.NewString()
	logger := logx.WithJobViewer(ctx, jobID, viewerID)
	// builder and controller add the job field themselves
	viewerLog := pslog.Ctx(ctx).With("viewer", viewerID)
	bus := eventbus.New(logger)
	builder := core.NewBuilder(jobID, core.WithLogger(viewerLog), core.WithEventSink(bus))
	display, err := openDisplay(cfg, opts.profile, logger)
	if err != nil {
		return err
	}
	stopWatch := display.Watch(bus.DisplayWatcher(jobID))
	defer stopWatch()
	events, unsubscribe := bus.Subscribe(jobID)
	defer unsubscribe()

	interval := opts.interval
	if interval <= 0 {
		interval = time.Duration(cfg.LiveTail.IntervalMS) * time.Millisecond
	}
	controller := livetail.New(livetail.Config{
		JobID:    jobID,
		Interval: interval,
		Jitter:   cfg.LiveTail.Jitter,
	}, fetcher, builder, display, viewerLog)

	tty, width, height := terminalInfo(out)
	if opts.width > 0 {
		width = opts.width
	}
	view := &tailView{
		out:     out,
		builder: builder,
		display: display,
		tty:     tty,
		height:  height,
		jump:    !opts.noJump,
		color:   useColor(opts.color, tty),
		term: render.TerminalOptions{
			Width: width,
			Theme: theme,
			Color: useColor(opts.color, tty),
		},
		viewport: core.NewViewport(0),
	}

	logger.Info("tail start", "interval", interval.String(), "tty", tty)
	g, gctx := errgroup.WithContext(ctx)
	drawCtx, stopDraw := context.WithCancel(gctx)
	defer stopDraw()
	g.Go(func() error {
		defer stopDraw()
		err := controller.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return view.loop(drawCtx, events)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("tail stop",
		"fetching", display.String(schema.DisplayFetching),
		"polls", controller.Polls(),
		"fetch_errors", controller.Errors(),
		"cursor", builder.Cursor(),
		"dropped_events", bus.Dropped(),
	)
	return nil
}

func tailFetcher(opts tailOptions, cfg appconfig.Config) (livetail.Fetcher, func(), error) {
	timeout := time.Duration(cfg.Feed.TimeoutSeconds) * time.Second
	switch {
	case opts.file != "":
		f := feed.NewFileFetcher(opts.file, opts.follow)
		return f, func() { _ = f.Close() }, nil
	case opts.wsURL != "":
		f := feed.NewWSFetcher(opts.wsURL)
		return f, func() { _ = f.Close() }, nil
	case opts.url != "":
		return feed.NewHTTPFetcher(opts.url, timeout), func() {}, nil
	}
	return feedFetcher(cfg.Feed.Transport, cfg.Feed.URL, timeout, opts.follow)
}

// feedFetcher builds a fetcher for a configured transport.
func feedFetcher(transport, target string, timeout time.Duration, follow bool) (livetail.Fetcher, func(), error) {
	if strings.TrimSpace(target) == "" {
		return nil, nil, errors.New("feed url is empty")
	}
	switch transport {
	case "ws":
		f := feed.NewWSFetcher(target)
		return f, func() { _ = f.Close() }, nil
	case "file":
		f := feed.NewFileFetcher(target, follow)
		return f, func() { _ = f.Close() }, nil
	case "http", "":
		return feed.NewHTTPFetcher(target, timeout), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown feed transport %q", transport)
}

// tailView redraws the job after every applied batch or display change.
// On a terminal it repaints a viewport; otherwise it streams new lines.
type tailView struct {
	out      io.Writer
	builder  *core.Builder
	display  *displaystate.Store
	tty      bool
	height   int
	jump     bool
	color    bool
	term     render.TerminalOptions
	viewport *core.Viewport

	jumped   bool
	headers  int
	footers  int
	printed  int
	finished bool
	message  bool
}

func (v *tailView) loop(ctx context.Context, events <-chan eventbus.Event) error {
	if err := v.draw(false); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return v.draw(true)
		case _, ok := <-events:
			if !ok {
				return v.draw(true)
			}
			drainEvents(events)
			if err := v.draw(false); err != nil {
				return err
			}
		}
	}
}

func drainEvents(events <-chan eventbus.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (v *tailView) draw(final bool) error {
	doc := render.Snapshot(v.builder, time.Now())
	style := render.Present(v.display.Snapshot())
	if v.tty {
		return v.repaint(doc, style, final)
	}
	return v.stream(doc, style, final)
}

func (v *tailView) repaint(doc render.Document, style render.StyleDecision, final bool) error {
	frame := render.Terminal(doc, style, v.term)
	v.viewport.Replace(frame.Rows)
	limit := v.height - 1
	if limit < 1 {
		limit = 0
	}
	if v.jump && !v.jumped && doc.JobFinished {
		if row, ok := frame.FirstFailureRow(doc); ok {
			v.viewport.JumpTo(row, limit)
		}
		v.jumped = true
	}
	view := v.viewport.Snapshot(limit)
	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J")
	for _, row := range view.Rows {
		b.WriteString(row)
		b.WriteString("\r\n")
	}
	b.WriteString(v.statusLine(doc, view))
	if final {
		b.WriteString("\r\n")
	}
	_, err := io.WriteString(v.out, b.String())
	return err
}

func (v *tailView) statusLine(doc render.Document, view core.ViewportView) string {
	parts := []string{
		string(doc.JobID),
		v.display.String(schema.DisplayFetching),
		fmt.Sprintf("%d lines", doc.NumberOfLines),
	}
	if doc.JobFinished && doc.Result != "" {
		parts = append(parts, string(doc.Result))
	}
	if !v.display.Bool(schema.DisplayLive) {
		parts = append(parts, "paused")
	}
	if !view.AtBottom {
		parts = append(parts, fmt.Sprintf("row %d/%d", view.Start+1, view.TotalRows))
	}
	return strings.Join(parts, "  ")
}

// stream writes the lines that became printable since the last call. A line
// is printable once it is complete or its command finished.
func (v *tailView) stream(doc render.Document, style render.StyleDecision, final bool) error {
	var b strings.Builder
	if !style.ShowLog {
		if !v.message {
			b.WriteString(style.Message)
			b.WriteByte('\n')
			v.message = true
		}
		_, err := io.WriteString(v.out, b.String())
		return err
	}
	now := time.Now()
	v.builder.View(func(job *core.JobOutput) {
		for _, cmd := range job.Commands() {
			if cmd.Index() < v.footers {
				continue
			}
			if cmd.Index() >= v.headers {
				b.WriteString("==> ")
				b.WriteString(cmd.Directive())
				b.WriteByte('\n')
				v.headers = cmd.Index() + 1
			}
			blocked := false
			cmd.EachLine(func(line core.LogLine) {
				if blocked || line.Number <= v.printed {
					return
				}
				if !line.Complete && !cmd.IsFinished() && !final {
					blocked = true
					return
				}
				if style.Timestamps {
					b.WriteString(render.FormatSeconds(line.TimestampRelativeToCommandStartedAt()))
					b.WriteString("  ")
				}
				if v.color {
					b.WriteString(line.Output)
					b.WriteString("\x1b[0m")
				} else {
					b.WriteString(render.PlainText(line.Output))
				}
				b.WriteByte('\n')
				v.printed = line.Number
			})
			if blocked {
				return
			}
			if !cmd.IsFinished() {
				if !final {
					return
				}
				v.footers = cmd.Index() + 1
				continue
			}
			b.WriteString("<== ")
			b.WriteString(string(cmd.Status()))
			if code, ok := cmd.ExitCode(); ok {
				fmt.Fprintf(&b, " (exit %d)", code)
			}
			b.WriteString(" ")
			b.WriteString(render.FormatDuration(cmd.Duration(now)))
			b.WriteByte('\n')
			v.footers = cmd.Index() + 1
		}
	})
	if doc.JobFinished && !v.finished {
		fmt.Fprintf(&b, "job %s finished: %s\n", doc.JobID, doc.Result)
		v.finished = true
	}
	if b.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(v.out, b.String())
	return err
}
