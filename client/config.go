package client

import (
	"context"
	"net/http"
	"time"
)

// Default operational settings, matching the platform's observed behavior.
const (
	DefaultQuality           = "480p30"
	DefaultPollInterval      = 60 * time.Second
	DefaultLiveCheckInterval = 60 * time.Second
	DefaultDownloadDir       = "kick_vod_downloads"

	// stateFileName is the shared progress file inside the download dir.
	stateFileName = "_state.json"
)

// AuthenticatedFetcher executes fetches in a context carrying the platform's
// anti-bot clearance, typically a real browser. When absent, every
// resolution path degrades to direct HTTP and may fail against bot defenses.
type AuthenticatedFetcher interface {
	FetchJSON(ctx context.Context, url string) ([]byte, error)
	FetchPage(ctx context.Context, url string) (string, error)
}

// StepEvent is an observational progress notification. It has no
// control-flow impact.
type StepEvent struct {
	Channel string
	Stage   string // poll | resolve | download | archive
	Phase   string // start | progress | success | failure | skip
	Detail  string
}

// Config holds configuration for the archiving client. All fields are
// optional except Channels for Run.
type Config struct {
	// Channels are the channel names to watch in Run.
	Channels []string

	// Quality is the preferred variant substring, e.g. "480p30".
	// Defaults to DefaultQuality.
	Quality string

	// PollInterval paces re-polls right after activity was observed.
	PollInterval time.Duration

	// LiveCheckInterval paces re-polls while a channel is idle.
	LiveCheckInterval time.Duration

	// DownloadDir is the root output directory. Defaults to
	// DefaultDownloadDir under the working directory.
	DownloadDir string

	// StatePath overrides the processed-state file location. Defaults to
	// "_state.json" inside DownloadDir.
	StatePath string

	// HTTPClient is the base client for direct requests. If nil, a fresh
	// http.Client is used.
	HTTPClient *http.Client

	// Fetcher is the authenticated-fetch capability. May be nil; resolution
	// then degrades to direct HTTP. When the implementation also solves the
	// platform's bot challenge (see transport.Solver), blocked direct
	// requests escalate through it.
	Fetcher AuthenticatedFetcher

	// FFmpegPath overrides the transcoder binary. Defaults to "ffmpeg" in
	// PATH.
	FFmpegPath string

	// MetricsAddr, when non-empty, serves Prometheus metrics and a health
	// endpoint on this address during Run.
	MetricsAddr string

	// Logger receives diagnostics. If nil, logging is discarded.
	Logger Logger

	// OnStepEvent receives step/status events. May be nil.
	OnStepEvent func(StepEvent)
}

func (c Config) withDefaults() Config {
	if c.Quality == "" {
		c.Quality = DefaultQuality
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LiveCheckInterval <= 0 {
		c.LiveCheckInterval = DefaultLiveCheckInterval
	}
	if c.DownloadDir == "" {
		c.DownloadDir = DefaultDownloadDir
	}
	return c
}
