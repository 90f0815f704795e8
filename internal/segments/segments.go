// Package segments fetches HLS media segments. Bulk mode downloads a
// finished playlist into one stream; streaming mode polls a still-growing
// playlist, persisting each segment individually so interrupted runs resume
// from what is already on disk.
package segments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/famomatic/kickvod/internal/playlist"
	"github.com/famomatic/kickvod/internal/transport"
	"github.com/famomatic/kickvod/internal/types"
)

// MaxFailures is the bulk-mode abort threshold: once this many segment
// fetches have failed the whole video is abandoned.
const MaxFailures = 10

// progressEvery controls how often periodic progress is reported.
const progressEvery = 10

// ErrTooManyFailures reports a bulk download aborted at the failure cap.
var ErrTooManyFailures = errors.New("too many segment failures")

// ProgressFunc receives periodic download progress. total is 0 in streaming
// mode, where the final count is unknown.
type ProgressFunc func(downloaded, total int)

// Logger is the subset of logging the acquirer needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Acquirer downloads segments over the escalating transport. Segments for
// one video download strictly sequentially.
type Acquirer struct {
	transport *transport.Client
	logger    Logger
}

// New returns an Acquirer. logger may be nil.
func New(tp *transport.Client, logger Logger) *Acquirer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Acquirer{transport: tp, logger: logger}
}

// DownloadAll fetches the variant playlist once and appends every listed
// segment to w in playlist order. It aborts with ErrTooManyFailures once
// MaxFailures segment fetches have failed; no partial result should be used
// after an error. Returns the number of segments written.
func (a *Acquirer) DownloadAll(ctx context.Context, variantURL string, w io.Writer, progress ProgressFunc) (int, error) {
	resp, err := a.transport.Get(ctx, variantURL, transport.WithTimeout(transport.PlaylistTimeout))
	if err != nil {
		return 0, fmt.Errorf("playlist fetch: %w: %w", err, types.ErrRetryable)
	}
	if !resp.OK() {
		return 0, fmt.Errorf("playlist fetch: status %d: %w", resp.StatusCode, types.ErrRetryable)
	}
	segs := playlist.ParseSegments(string(resp.Body), variantURL)
	if len(segs) == 0 {
		return 0, fmt.Errorf("no media segments in playlist %s: %w", variantURL, types.ErrRetryable)
	}

	failures := 0
	written := 0
	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		body, err := a.fetchSegment(ctx, seg.URL)
		if err != nil {
			failures++
			a.logger.Warnf("segment %d/%d failed: %v", i+1, len(segs), err)
			if failures >= MaxFailures {
				return written, fmt.Errorf("%w (%d)", ErrTooManyFailures, failures)
			}
			continue
		}
		if _, err := w.Write(body); err != nil {
			return written, fmt.Errorf("segment write: %w", err)
		}
		written++
		if progress != nil && ((i+1)%progressEvery == 0 || i+1 == len(segs)) {
			progress(i+1, len(segs))
		}
	}
	return written, nil
}

// StreamUntilEnd repeatedly fetches the variant playlist and downloads any
// segment not already present in dir, one file per segment. The stream is
// treated as finished when the playlist's segment count stops increasing
// between polls; the end-of-playlist marker is unreliable on this platform
// and is ignored. A nil return (including after cancellation) means the
// caller should finalize whatever was downloaded.
func (a *Acquirer) StreamUntilEnd(ctx context.Context, variantURL, dir string, poll time.Duration, progress ProgressFunc) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("segment dir: %w", err)
	}
	downloaded, err := scanSegmentDir(dir)
	if err != nil {
		return err
	}
	a.logger.Debugf("streaming %s: %d segments already on disk", variantURL, len(downloaded))

	lastCount := -1
	for {
		if ctx.Err() != nil {
			return nil
		}

		resp, err := a.transport.Get(ctx, variantURL, transport.WithTimeout(transport.PlaylistTimeout))
		if err != nil || !resp.OK() {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warnf("playlist poll failed, retrying in %s: %v", poll, pollError(resp, err))
			if !sleep(ctx, poll) {
				return nil
			}
			continue
		}

		segs := playlist.ParseSegments(string(resp.Body), variantURL)
		count := len(segs)

		fresh := 0
		for _, seg := range segs {
			if _, ok := downloaded[seg.LocalName]; ok {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			body, err := a.fetchSegment(ctx, seg.URL)
			if err != nil {
				// Streaming mode favors availability: log and move on.
				a.logger.Warnf("segment %s failed, skipping: %v", seg.LocalName, err)
				continue
			}
			if err := os.WriteFile(filepath.Join(dir, seg.LocalName), body, 0o644); err != nil {
				return fmt.Errorf("segment write %s: %w", seg.LocalName, err)
			}
			downloaded[seg.LocalName] = struct{}{}
			fresh++
			if progress != nil && (fresh%progressEvery == 0) {
				progress(len(downloaded), 0)
			}
		}
		if progress != nil && fresh > 0 {
			progress(len(downloaded), 0)
		}

		if lastCount >= 0 && count <= lastCount {
			a.logger.Debugf("playlist stalled at %d segments, treating stream as ended", count)
			return nil
		}
		lastCount = count

		if !sleep(ctx, poll) {
			return nil
		}
	}
}

func (a *Acquirer) fetchSegment(ctx context.Context, url string) ([]byte, error) {
	resp, err := a.transport.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// scanSegmentDir lists the ".ts" files already present, the resumability
// source of truth.
func scanSegmentDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("segment dir scan: %w", err)
	}
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ts") {
			present[e.Name()] = struct{}{}
		}
	}
	return present, nil
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

func pollError(resp *transport.Response, err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}
