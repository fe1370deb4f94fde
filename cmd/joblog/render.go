package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/joblog/core"
	"pkt.systems/joblog/internal/appconfig"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/internal/eventlog"
	"pkt.systems/joblog/render"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

type renderOptions struct {
	configPath string
	jobID      string
	format     string
	out        string
	theme      string
	profile    string
	color      string
	now        int64
	width      int
	fragment   bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render FILE|-",
		Short: "Render a recorded job log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			name := args[0]
			if name != "-" {
				f, err := os.Open(name)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
				if opts.jobID == "" {
					opts.jobID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
				}
			}
			return runRender(cmd.Context(), opts, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config path")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "job id shown in the output (defaults to the file name)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: html, ansi or plain (default from config)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write output to a file instead of stdout")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "terminal theme for ansi output")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "display profile (default from config)")
	cmd.Flags().StringVar(&opts.color, "color", colorAuto, "colour ansi output: auto, always or never")
	cmd.Flags().Int64Var(&opts.now, "now", 0, "unix time used for running command durations")
	cmd.Flags().IntVar(&opts.width, "width", 0, "terminal width for ansi output (0 detects)")
	cmd.Flags().BoolVar(&opts.fragment, "fragment", false, "write only the job markup for html output")
	return cmd
}

func runRender(ctx context.Context, opts renderOptions, in io.Reader, stdout io.Writer) error {
	logger := pslog.Ctx(ctx)
	cfg, err := appconfig.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.format == "" {
		opts.format = cfg.Render.Format
	}
	format, err := render.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	theme, err := resolveTheme(opts.theme, cfg)
	if err != nil {
		return err
	}
	jobID := schema.JobID(opts.jobID)
	if jobID == "" {
		jobID = "stdin"
	}
	builder := core.NewBuilder(jobID, core.WithLogger(logger))
	logger = logger.With("job", string(jobID), "format", string(format))

	records, lineErrs, err := eventlog.ReadAll(ctx, in)
	if err != nil {
		return err
	}
	for _, lineErr := range lineErrs {
		logger.Warn("job log line skipped", "err", lineErr)
	}
	builder.ApplyRecords(0, records)

	display, err := openDisplay(cfg, opts.profile, logger)
	if err != nil {
		return err
	}
	now := time.Now()
	if opts.now > 0 {
		now = time.Unix(opts.now, 0)
	}

	start := time.Now()
	doc := render.Snapshot(builder, now)
	setSession(display, schema.DisplayFetching, string(schema.FetchFinished), logger)
	setSession(display, schema.DisplayJobState, string(doc.State), logger)
	style := render.Present(display.Snapshot())

	tty, width, _ := terminalInfo(stdout)
	if opts.out != "" {
		tty = false
	}
	if opts.width > 0 {
		width = opts.width
	}
	renderer, err := render.ForFormat(format, render.TerminalOptions{
		Width: width,
		Theme: theme,
		Color: useColor(opts.color, tty),
	})
	if err != nil {
		return err
	}
	if html, ok := renderer.(render.HTMLRenderer); ok {
		html.Fragment = opts.fragment
		renderer = html
	}
	var buf bytes.Buffer
	if err := renderer.Render(&buf, doc, style); err != nil {
		return err
	}
	elapsed := time.Since(start)

	stats := builder.Stats()
	logger.Info("job log rendered",
		"records", len(records),
		"commands", len(doc.Blocks),
		"lines", doc.NumberOfLines,
		"decode_errors", stats.DecodeErrors,
		"bytes", buf.Len(),
		"duration_ms", elapsed.Milliseconds(),
	)
	if budget := time.Duration(cfg.Render.TimeBudgetMS) * time.Millisecond; elapsed > budget {
		logger.Warn("render exceeded time budget", "budget_ms", cfg.Render.TimeBudgetMS, "duration_ms", elapsed.Milliseconds())
	}

	if opts.out == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	if err := writeFileAtomic(opts.out, buf.Bytes()); err != nil {
		return err
	}
	logger.Info("job log written", "path", opts.out)
	return nil
}

func resolveTheme(name string, cfg appconfig.Config) (schema.ThemeName, error) {
	if name == "" {
		name = cfg.Render.Theme
	}
	if name == "" {
		return "", nil
	}
	theme, ok := schema.NormalizeThemeName(name)
	if !ok {
		return "", fmt.Errorf("unknown theme %q", name)
	}
	return theme, nil
}

func setSession(display *displaystate.Store, key schema.DisplayKey, value string, logger pslog.Logger) {
	if err := display.Set(key, value); err != nil {
		logger.Warn("display state update failed", "key", string(key), "err", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
