package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/famomatic/kickvod/internal/archive"
	"github.com/famomatic/kickvod/internal/resolver"
)

// StreamOptions controls a one-shot streaming download.
type StreamOptions struct {
	// Basename overrides the derived output base name.
	Basename string
	// PollInterval paces playlist re-fetches. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration
	// WaitForLive blocks until the channel goes live and then keeps
	// retrying resolution until the broadcast's VOD playlist appears,
	// paced by LiveCheckInterval. Without it a failed resolution is
	// returned immediately.
	WaitForLive bool
}

// StreamPlaylist downloads a variant playlist in streaming mode: segments
// are persisted individually, the playlist is re-polled until its segment
// count stops increasing, and whatever was downloaded is assembled into an
// audio file, including on cancellation. Returns the audio file path.
func (c *Client) StreamPlaylist(ctx context.Context, playlistURL string, options StreamOptions) (string, error) {
	basename := options.Basename
	if basename == "" {
		basename = basenameFromPlaylistURL(playlistURL)
	}
	basename = resolver.Sanitize(basename)

	poll := options.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	workDir := filepath.Join(c.config.DownloadDir, basename)
	segmentsDir := filepath.Join(workDir, "segments")
	concatPath := filepath.Join(workDir, basename+".ts")
	audioPath := filepath.Join(c.config.DownloadDir, basename+".mp3")

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("work dir: %w", err)
	}

	c.logger.Infof("streaming %s into %s", playlistURL, segmentsDir)
	err := c.acquirer.StreamUntilEnd(ctx, playlistURL, segmentsDir, poll, func(downloaded, _ int) {
		c.emitStepEvent("download", "progress", fmt.Sprintf("total: %d", downloaded))
	})
	if err != nil {
		return "", err
	}

	// Finalize regardless of how streaming ended; a partial archive beats
	// none.
	out, err := c.assembler.AssembleDir(context.WithoutCancel(ctx), segmentsDir, concatPath, audioPath)
	if err != nil {
		if errors.Is(err, archive.ErrNoSegments) {
			return "", ErrNothingDownloaded
		}
		return "", err
	}
	c.logger.Infof("audio saved: %s", out)
	return out, nil
}

// StreamLatestVOD resolves the newest VOD of channel and streams it. The
// playlist is resolved through the per-video metadata endpoint with a page
// scan as last resort. With WaitForLive set it first waits for the channel
// to go live, then retries resolution until the VOD playlist materializes.
func (c *Client) StreamLatestVOD(ctx context.Context, channel string, options StreamOptions) (string, error) {
	variantURL, meta, err := c.resolveLatestVariant(ctx, channel, options.WaitForLive)
	if err != nil {
		return "", mapError(err)
	}
	if options.Basename == "" {
		options.Basename = resolver.BuildBasename(channel, meta, c.config.Quality)
	}
	return c.StreamPlaylist(ctx, variantURL, options)
}

// resolveLatestVariant resolves the newest VOD's variant playlist, optionally
// gating on liveness and retrying until the playlist appears. A channel's VOD
// typically lists a short while after the broadcast starts, so the retry loop
// bridges that window.
func (c *Client) resolveLatestVariant(ctx context.Context, channel string, wait bool) (string, *resolver.VideoMetadata, error) {
	if wait {
		if err := c.waitForLive(ctx, channel); err != nil {
			return "", nil, err
		}
	}
	for {
		variantURL, meta, err := c.resolveLatest(ctx, channel)
		if err == nil || !wait {
			return variantURL, meta, err
		}
		c.logger.Infof("%s: VOD not yet available, retrying in %s: %v", channel, c.config.LiveCheckInterval, err)
		c.emitStepEvent("resolve", "progress", "VOD not yet available")
		if !sleep(ctx, c.config.LiveCheckInterval) {
			return "", nil, ctx.Err()
		}
	}
}

// waitForLive polls the liveness probe until the channel broadcasts or ctx
// is canceled.
func (c *Client) waitForLive(ctx context.Context, channel string) error {
	for {
		if c.resolver.IsChannelLive(ctx, channel) {
			c.emitStepEvent("poll", "success", channel+" is live")
			return nil
		}
		c.logger.Infof("%s: not live, rechecking in %s", channel, c.config.LiveCheckInterval)
		c.emitStepEvent("poll", "progress", channel+" not live")
		if !sleep(ctx, c.config.LiveCheckInterval) {
			return ctx.Err()
		}
	}
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

// DownloadPlaylist downloads a finished variant playlist in bulk mode into a
// single transport stream and transcodes it. Unlike streaming mode, it
// aborts without an artifact once the segment failure cap is reached.
func (c *Client) DownloadPlaylist(ctx context.Context, playlistURL, basename string) (string, error) {
	if basename == "" {
		basename = basenameFromPlaylistURL(playlistURL)
	}
	basename = resolver.Sanitize(basename)

	workDir := filepath.Join(c.config.DownloadDir, basename)
	concatPath := filepath.Join(workDir, basename+".ts")
	audioPath := filepath.Join(c.config.DownloadDir, basename+".mp3")

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("work dir: %w", err)
	}
	out, err := os.Create(concatPath)
	if err != nil {
		return "", fmt.Errorf("concat create: %w", err)
	}
	n, err := c.acquirer.DownloadAll(ctx, playlistURL, out, func(done, total int) {
		c.emitStepEvent("download", "progress", fmt.Sprintf("%d/%d", done, total))
	})
	closeErr := out.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", fmt.Errorf("concat close: %w", closeErr)
	}
	c.logger.Infof("downloaded %d segments, transcoding", n)

	return c.assembler.Transcode(ctx, concatPath, audioPath)
}

// resolveLatest finds the newest VOD's variant playlist for channel.
func (c *Client) resolveLatest(ctx context.Context, channel string) (string, *resolver.VideoMetadata, error) {
	link, err := c.resolver.LatestVideoLink(ctx, channel)
	if err != nil {
		return "", nil, err
	}
	videoID, err := resolver.ExtractVideoID(link)
	if err != nil {
		return "", nil, err
	}

	meta, metaErr := c.resolver.VideoMetadata(ctx, videoID)
	if metaErr != nil {
		c.logger.Debugf("metadata unavailable for %s: %v", videoID, metaErr)
		meta = nil
	}
	if master := meta.MasterURL(); master != "" {
		return c.resolver.DeriveVariant(master, c.config.Quality), meta, nil
	}

	// Structured APIs failed; scan the VOD page for an embedded playlist.
	variant, err := c.resolver.ResolveFromPage(ctx, link, c.config.Quality)
	if err != nil {
		return "", nil, err
	}
	return variant, meta, nil
}

func (c *Client) emitStepEvent(stage, phase, detail string) {
	if c.config.OnStepEvent == nil {
		return
	}
	c.config.OnStepEvent(StepEvent{Stage: stage, Phase: phase, Detail: detail})
}

// basenameFromPlaylistURL derives a simple identifier from the last path
// parts of a playlist URL.
func basenameFromPlaylistURL(playlistURL string) string {
	parsed, err := url.Parse(playlistURL)
	if err != nil {
		return strings.TrimSuffix(filepath.Base(playlistURL), ".m3u8")
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	ident := parts[len(parts)-1]
	if len(parts) >= 3 {
		ident = strings.Join(parts[len(parts)-3:], "-")
	}
	return strings.TrimSuffix(ident, ".m3u8")
}
