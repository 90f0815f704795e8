// Package worker drives the per-channel control loop: poll the channel's
// video list, resolve playlists for unprocessed videos, download and archive
// them, and record completion durably.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/famomatic/kickvod/internal/archive"
	"github.com/famomatic/kickvod/internal/platform/metrics"
	"github.com/famomatic/kickvod/internal/resolver"
	"github.com/famomatic/kickvod/internal/segments"
	"github.com/famomatic/kickvod/internal/state"
	"github.com/famomatic/kickvod/internal/types"
)

// Event is an observational step/status notification. It carries no
// control-flow significance.
type Event struct {
	Channel string
	Stage   string // poll | resolve | download | archive
	Phase   string // start | progress | success | failure | skip
	Detail  string
}

// Logger is the subset of logging the worker needs.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}

// Config are the per-channel settings, already validated by the caller.
type Config struct {
	Channel           string
	Quality           string
	PollInterval      time.Duration
	LiveCheckInterval time.Duration
	DownloadDir       string
}

// Deps are the collaborators a Worker drives. Metrics, Logger and OnEvent
// may be nil.
type Deps struct {
	Resolver  *resolver.Resolver
	Acquirer  *segments.Acquirer
	Assembler *archive.Assembler
	Store     *state.Store
	Metrics   *metrics.Metrics
	Logger    Logger
	OnEvent   func(Event)
}

// Worker archives one channel. Videos within a channel are processed
// strictly sequentially.
type Worker struct {
	cfg  Config
	deps Deps
}

// New returns a Worker for cfg.
func New(cfg Config, deps Deps) *Worker {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	return &Worker{cfg: cfg, deps: deps}
}

// Run polls the channel until ctx is canceled. It returns nil on
// cancellation; only unrecoverable local failures (e.g. the download
// directory being unwritable) produce an error.
func (w *Worker) Run(ctx context.Context) error {
	ch := w.cfg.Channel
	if err := os.MkdirAll(w.cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("download dir: %w", err)
	}
	w.deps.Logger.Infof("%s: worker started", ch)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if w.deps.Metrics != nil {
			w.deps.Metrics.IncPollCycle(ch)
		}
		w.emit("poll", "start", "")

		pending, err := w.pendingVideos(ctx)
		if err != nil {
			w.emit("poll", "failure", err.Error())
			w.deps.Logger.Debugf("%s: poll failed: %v", ch, err)
			if !sleep(ctx, w.cfg.LiveCheckInterval) {
				return nil
			}
			continue
		}
		if len(pending) == 0 {
			w.emit("poll", "success", "nothing pending")
			if !sleep(ctx, w.cfg.LiveCheckInterval) {
				return nil
			}
			continue
		}
		w.emit("poll", "success", fmt.Sprintf("%d pending", len(pending)))

		archivedAny := false
		for _, video := range pending {
			if ctx.Err() != nil {
				return nil
			}
			err := w.processVideo(ctx, video)
			switch {
			case err == nil:
				if recordErr := w.record(video.ID); recordErr != nil {
					return recordErr
				}
				archivedAny = true
			case ctx.Err() != nil:
				return nil
			default:
				// Abandon this video for the cycle; it stays unprocessed and
				// is retried on the next poll.
				w.deps.Logger.Warnf("%s: video %s abandoned this cycle: %v", ch, video.ID, err)
			}
		}

		// Shorter pacing after activity, longer while idle.
		interval := w.cfg.LiveCheckInterval
		if archivedAny {
			interval = w.cfg.PollInterval
		}
		if !sleep(ctx, interval) {
			return nil
		}
	}
}

// pendingVideos lists the channel's videos and filters out the already
// processed ones. The degraded path falls back to the latest video only.
func (w *Worker) pendingVideos(ctx context.Context) ([]resolver.Video, error) {
	videos, err := w.deps.Resolver.ChannelVideos(ctx, w.cfg.Channel)
	if err != nil {
		link, linkErr := w.deps.Resolver.LatestVideoLink(ctx, w.cfg.Channel)
		if linkErr != nil {
			return nil, err
		}
		id, idErr := resolver.ExtractVideoID(link)
		if idErr != nil {
			return nil, err
		}
		videos = []resolver.Video{{ID: id, PageURL: link}}
	}

	processed, err := w.deps.Store.Get(w.cfg.Channel)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		done[id] = struct{}{}
	}

	pending := videos[:0]
	for _, v := range videos {
		if _, ok := done[v.ID]; !ok {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// processVideo runs one video through resolve, download, and archive. A nil
// return means the video is fully archived (or found already archived) and
// should be recorded as processed.
func (w *Worker) processVideo(ctx context.Context, video resolver.Video) error {
	ch := w.cfg.Channel
	w.emit("resolve", "start", video.ID)

	// Metadata is advisory: it only feeds the basename, so failures degrade
	// to a timestamp-of-now name instead of abandoning the video.
	meta, err := w.deps.Resolver.VideoMetadata(ctx, video.ID)
	if err != nil {
		w.deps.Logger.Debugf("%s: metadata unavailable for %s: %v", ch, video.ID, err)
		meta = nil
	}
	basename := resolver.BuildBasename(ch, meta, w.cfg.Quality)
	audioPath := filepath.Join(w.cfg.DownloadDir, basename+".mp3")

	if _, err := os.Stat(audioPath); err == nil {
		w.emit("resolve", "skip", basename+" already archived")
		w.deps.Logger.Infof("%s: %s already exists, recording as processed", ch, basename)
		return nil
	}

	master := meta.MasterURL()
	if master == "" {
		master, err = w.deps.Resolver.MasterForVideo(ctx, video.ID)
		if err != nil {
			w.emit("resolve", "failure", err.Error())
			return err
		}
	}
	variant := w.deps.Resolver.DeriveVariant(master, w.cfg.Quality)
	if variant == "" {
		err := fmt.Errorf("video %s: %w: %w", video.ID, types.ErrNoPlaylist, types.ErrRetryable)
		w.emit("resolve", "failure", err.Error())
		return err
	}
	w.emit("resolve", "success", variant)

	w.emit("download", "start", basename)
	workDir := filepath.Join(w.cfg.DownloadDir, basename)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("work dir: %w", err)
	}
	concatPath := filepath.Join(workDir, basename+".ts")
	out, err := os.Create(concatPath)
	if err != nil {
		return fmt.Errorf("concat create: %w", err)
	}
	n, err := w.deps.Acquirer.DownloadAll(ctx, variant, out, func(done, total int) {
		w.emit("download", "progress", fmt.Sprintf("%d/%d", done, total))
	})
	closeErr := out.Close()
	if w.deps.Metrics != nil {
		w.deps.Metrics.AddSegmentsDownloaded(ch, n)
	}
	if err != nil {
		if w.deps.Metrics != nil {
			w.deps.Metrics.IncSegmentFailure(ch)
		}
		w.emit("download", "failure", err.Error())
		return fmt.Errorf("video %s download: %w: %w", video.ID, err, types.ErrRetryable)
	}
	if closeErr != nil {
		return fmt.Errorf("concat close: %w", closeErr)
	}
	w.emit("download", "success", fmt.Sprintf("%d segments", n))

	w.emit("archive", "start", basename)
	if _, err := w.deps.Assembler.Transcode(ctx, concatPath, audioPath); err != nil {
		// The concatenated intermediate stays on disk for manual recovery.
		w.emit("archive", "failure", err.Error())
		return fmt.Errorf("video %s: %w: %w", video.ID, err, types.ErrRetryable)
	}
	w.emit("archive", "success", audioPath)
	w.deps.Logger.Infof("%s: archived %s", ch, audioPath)
	if w.deps.Metrics != nil {
		w.deps.Metrics.IncVideoArchived(ch)
	}
	return nil
}

func (w *Worker) record(videoID string) error {
	if _, err := w.deps.Store.Append(w.cfg.Channel, videoID); err != nil {
		return fmt.Errorf("state append: %w", err)
	}
	return nil
}

func (w *Worker) emit(stage, phase, detail string) {
	if w.deps.OnEvent == nil {
		return
	}
	w.deps.OnEvent(Event{Channel: w.cfg.Channel, Stage: stage, Phase: phase, Detail: detail})
}

// sleep waits for d, returning false when ctx was canceled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
