package main

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/joblog"
	"pkt.systems/joblog/httpapi"
	"pkt.systems/joblog/internal/appconfig"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

//go:embed assets/LOGO.txt
var serveLogo string

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var noBanner bool
	var mirrors []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the job log HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner && serveLogo != "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveLogo)
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			opts := []joblog.ServerOption{joblog.WithHTTP()}
			for _, raw := range mirrors {
				m, err := parseMirror(raw, cfg)
				if err != nil {
					return err
				}
				logger.Info("mirror configured", "job", string(m.JobID), "mirror", raw)
				opts = append(opts, joblog.WithMirror(m))
			}

			srv, err := joblog.New(joblog.ServerConfig{
				HTTP:           toHTTPConfig(cfg),
				MirrorInterval: time.Duration(cfg.LiveTail.IntervalMS) * time.Millisecond,
			}, joblog.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}
			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}
			return srv.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config path")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable the startup banner")
	cmd.Flags().StringArrayVar(&mirrors, "mirror", nil, "mirror an upstream job feed as JOB=URL (repeatable)")
	return cmd
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	refresh := cfg.LiveTail.IntervalMS / 1000
	if refresh < 1 {
		refresh = 1
	}
	return httpapi.Config{
		Addr:               cfg.HTTP.Addr,
		BaseURL:            cfg.HTTP.BaseURL,
		BasePath:           cfg.HTTP.BasePath,
		History:            cfg.HTTP.History,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		RefreshSeconds:     refresh,
		ShutdownTimeout:    time.Duration(cfg.HTTP.ShutdownTimeoutSeconds) * time.Second,
		DisableRequestLogs: cfg.Logging.DisableRequestLogs,
	}
}

// parseMirror reads JOB=URL. The URL uses the configured feed transport
// unless it carries a ws:// or wss:// scheme.
func parseMirror(raw string, cfg appconfig.Config) (joblog.Mirror, error) {
	job, target, ok := strings.Cut(raw, "=")
	job = strings.TrimSpace(job)
	target = strings.TrimSpace(target)
	if !ok || job == "" || target == "" {
		return joblog.Mirror{}, fmt.Errorf("invalid mirror %q (want JOB=URL)", raw)
	}
	transport := cfg.Feed.Transport
	switch {
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		transport = "ws"
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		if transport == "file" {
			transport = "http"
		}
	default:
		transport = "file"
	}
	fetcher, _, err := feedFetcher(transport, target, time.Duration(cfg.Feed.TimeoutSeconds)*time.Second, true)
	if err != nil {
		return joblog.Mirror{}, err
	}
	return joblog.Mirror{JobID: schema.JobID(job), Fetcher: fetcher}, nil
}
