// Package client is the high-level facade of the VOD archiving engine: it
// wires the transport, resolver, segment acquirer, assembler and state store
// together and runs one worker per configured channel.
package client

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/famomatic/kickvod/internal/archive"
	"github.com/famomatic/kickvod/internal/platform/metrics"
	"github.com/famomatic/kickvod/internal/resolver"
	"github.com/famomatic/kickvod/internal/segments"
	"github.com/famomatic/kickvod/internal/state"
	"github.com/famomatic/kickvod/internal/transport"
	"github.com/famomatic/kickvod/internal/types"
	"github.com/famomatic/kickvod/internal/worker"
)

// Client is the high-level archiving client.
type Client struct {
	config    Config
	transport *transport.Client
	resolver  *resolver.Resolver
	acquirer  *segments.Acquirer
	assembler *archive.Assembler
	store     *state.Store
	metrics   *metrics.Metrics
	logger    Logger
}

// New creates a new archiving client.
func New(config Config) *Client {
	config = config.withDefaults()

	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	// A fetcher that can also solve the bot challenge doubles as the
	// transport's escalation path.
	var solver transport.Solver
	if s, ok := config.Fetcher.(transport.Solver); ok {
		solver = s
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	tp := transport.NewWithHTTPClient(httpClient, solver)

	statePath := config.StatePath
	if statePath == "" {
		statePath = filepath.Join(config.DownloadDir, stateFileName)
	}

	return &Client{
		config:    config,
		transport: tp,
		resolver:  resolver.New(tp, config.Fetcher, logger),
		acquirer:  segments.New(tp, logger),
		assembler: archive.New(archive.NewFFmpegTranscoder(config.FFmpegPath), logger),
		store:     state.NewStore(statePath),
		metrics:   metrics.New(),
		logger:    logger,
	}
}

// RunSummary describes how a Run ended.
type RunSummary struct {
	// Interrupted is true when Run stopped on operator cancellation rather
	// than every worker terminating on its own.
	Interrupted bool
	// WorkerErrors holds the fatal error of each worker that failed, keyed
	// by channel.
	WorkerErrors map[string]error
}

// Run watches every configured channel until ctx is canceled, archiving each
// unprocessed video as it appears. Workers run concurrently and
// independently; cancellation lets in-flight work finalize before Run
// returns.
func (c *Client) Run(ctx context.Context) (RunSummary, error) {
	if len(c.config.Channels) == 0 {
		return RunSummary{}, ErrNoChannels
	}
	if c.config.Fetcher == nil {
		c.logger.Warnf("no authenticated fetcher configured; resolution degrades to direct HTTP")
	}

	if c.config.MetricsAddr != "" {
		c.serveMetrics(ctx)
	}

	workers := make([]*worker.Worker, 0, len(c.config.Channels))
	for _, channel := range c.config.Channels {
		workers = append(workers, worker.New(
			worker.Config{
				Channel:           channel,
				Quality:           c.config.Quality,
				PollInterval:      c.config.PollInterval,
				LiveCheckInterval: c.config.LiveCheckInterval,
				DownloadDir:       c.config.DownloadDir,
			},
			worker.Deps{
				Resolver:  c.resolver,
				Acquirer:  c.acquirer,
				Assembler: c.assembler,
				Store:     c.store,
				Metrics:   c.metrics,
				Logger:    c.logger,
				OnEvent:   c.emitWorkerEvent,
			},
		))
	}

	summary := worker.NewScheduler(workers, c.logger).Run(ctx)
	return RunSummary{
		Interrupted:  summary.Interrupted,
		WorkerErrors: summary.WorkerErrors,
	}, nil
}

// IsChannelLive reports whether channel is currently broadcasting. Ambiguous
// signals resolve to false.
func (c *Client) IsChannelLive(ctx context.Context, channel string) bool {
	return c.resolver.IsChannelLive(ctx, channel)
}

// ResolveLive returns a variant playlist URL for a channel's current
// broadcast.
func (c *Client) ResolveLive(ctx context.Context, channel string) (string, error) {
	url, err := c.resolver.LiveM3U8(ctx, channel, c.config.Quality)
	if err != nil {
		return "", mapError(err)
	}
	return url, nil
}

func (c *Client) emitWorkerEvent(e worker.Event) {
	if c.config.OnStepEvent == nil {
		return
	}
	c.config.OnStepEvent(StepEvent(e))
}

// serveMetrics exposes /metrics and /healthz until ctx is canceled.
func (c *Client) serveMetrics(ctx context.Context) {
	srv := &http.Server{Addr: c.config.MetricsAddr, Handler: c.metrics.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Warnf("metrics server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, types.ErrNoVideos):
		return ErrNoVideos
	case errors.Is(err, types.ErrNoPlaylist):
		return ErrNoPlaylist
	case errors.Is(err, types.ErrNotLive):
		return ErrNotLive
	}
	return err
}
