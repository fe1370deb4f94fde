package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"pkt.systems/joblog/internal/appconfig"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/internal/logx"
	"pkt.systems/joblog/internal/persist"
	"pkt.systems/pslog"
)

const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

func displayDir(cfg appconfig.Config) string {
	return filepath.Join(cfg.StateDir, "display")
}

// openDisplay returns a display store backed by the profile file.
func openDisplay(cfg appconfig.Config, profile string, logger pslog.Logger) (*displaystate.Store, error) {
	if strings.TrimSpace(profile) == "" {
		profile = cfg.Display.Profile
	}
	logger = logx.WithProfile(logger, profile)
	store, err := persist.NewStoreWithLogger(displayDir(cfg), logger)
	if err != nil {
		return nil, err
	}
	return displaystate.New(displaystate.NewFileBackend(store, profile), logger), nil
}

// terminalInfo reports whether w is a terminal and its size.
func terminalInfo(w io.Writer) (tty bool, width, height int) {
	f, ok := w.(*os.File)
	if !ok {
		return false, 0, 0
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return false, 0, 0
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		return true, 0, 0
	}
	return true, width, height
}

func useColor(mode string, tty bool) bool {
	switch mode {
	case colorAlways:
		return true
	case colorNever:
		return false
	default:
		return tty && os.Getenv("NO_COLOR") == ""
	}
}
