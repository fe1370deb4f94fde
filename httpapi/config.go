package httpapi

import "time"

// Config defines HTTP service settings.
type Config struct {
	Addr     string
	BaseURL  string
	BasePath string
	// History is the number of records retained per job for replay.
	History      int
	MaxBodyBytes int64
	// RefreshSeconds drives the meta refresh of live job pages.
	RefreshSeconds     int
	ShutdownTimeout    time.Duration
	DisableRequestLogs bool
}
