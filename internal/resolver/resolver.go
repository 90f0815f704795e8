// Package resolver discovers playlist URLs for a channel's videos through
// the platform's APIs, degrading to direct HTTP and finally to page scanning
// when the authenticated-fetch capability is unavailable or blocked.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/famomatic/kickvod/internal/browser"
	"github.com/famomatic/kickvod/internal/playlist"
	"github.com/famomatic/kickvod/internal/transport"
	"github.com/famomatic/kickvod/internal/types"
)

const (
	channelAPI       = "https://kick.com/api/v2/channels/%s"
	channelVideosAPI = "https://kick.com/api/v2/channels/%s/videos?cursor=0&sort=date&time=all"
	videoAPI         = "https://kick.com/api/v1/video/%s"
	channelPage      = "https://kick.com/%s"
	videoPage        = "https://kick.com/%s/videos/%s"

	// streamHost is the platform's segment CDN; playlist URLs on it are
	// preferred when scanning pages.
	streamHost = "stream.kick.com"

	// masterSuffix and variantPattern describe the IVS path convention used
	// to derive a variant playlist without fetching the master.
	masterSuffix   = "/media/hls/master.m3u8"
	variantPattern = "/media/hls/%s/playlist.m3u8"
)

// Logger is the subset of logging the resolver needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Resolver locates playlists for channels and videos.
type Resolver struct {
	transport *transport.Client
	fetcher   browser.Fetcher
	logger    Logger
}

// New returns a Resolver. fetcher may be nil; every resolution path then
// degrades to direct HTTP. logger may be nil.
func New(tp *transport.Client, fetcher browser.Fetcher, logger Logger) *Resolver {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Resolver{transport: tp, fetcher: fetcher, logger: logger}
}

// MasterForVideo queries the per-video metadata endpoint and returns the
// master playlist URL from its "source" field.
func (r *Resolver) MasterForVideo(ctx context.Context, videoID string) (string, error) {
	meta, err := r.VideoMetadata(ctx, videoID)
	if err != nil {
		return "", err
	}
	if meta.Source == "" {
		return "", fmt.Errorf("video %s metadata has no source playlist: %w", videoID, types.ErrNoPlaylist)
	}
	return meta.Source, nil
}

// DeriveVariant rewrites a master playlist URL to a variant playlist URL
// using the known IVS path convention, without a network call. When the URL
// does not match the convention or preferred is empty, the input is returned
// unchanged.
func (r *Resolver) DeriveVariant(masterURL, preferred string) string {
	if masterURL == "" || preferred == "" {
		return masterURL
	}
	if strings.Contains(masterURL, masterSuffix) {
		return strings.Replace(masterURL, masterSuffix, fmt.Sprintf(variantPattern, preferred), 1)
	}
	if strings.HasSuffix(masterURL, "master.m3u8") {
		base := masterURL[:strings.LastIndex(masterURL, "/")]
		return fmt.Sprintf("%s/%s/playlist.m3u8", base, preferred)
	}
	return masterURL
}

// PickVariantFromMaster fetches masterURL and selects a variant. When the
// content is not actually a master playlist the input URL is returned
// unchanged. Selection: first variant whose URI contains preferred, else the
// highest-bandwidth variant, ties broken by file order.
func (r *Resolver) PickVariantFromMaster(ctx context.Context, masterURL, preferred string) string {
	resp, err := r.transport.Get(ctx, masterURL, transport.WithTimeout(transport.PlaylistTimeout))
	if err != nil || !resp.OK() {
		return masterURL
	}
	text := string(resp.Body)
	if !playlist.IsMaster(text) {
		return masterURL
	}
	variants := playlist.ParseVariants(text, masterURL)
	if len(variants) == 0 {
		return masterURL
	}
	if preferred != "" {
		for _, v := range variants {
			if strings.Contains(v.URI, preferred) {
				return v.URI
			}
		}
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best.URI
}

// fetchAPI fetches an API URL, preferring the authenticated fetcher and
// degrading to direct HTTP with the given referer.
func (r *Resolver) fetchAPI(ctx context.Context, url, referer string) ([]byte, error) {
	if r.fetcher != nil {
		body, err := r.fetcher.FetchJSON(ctx, url)
		if err == nil {
			return body, nil
		}
		r.logger.Debugf("authenticated fetch failed for %s, degrading to direct HTTP: %v", url, err)
	}
	resp, err := r.transport.Get(ctx, url,
		transport.WithTimeout(transport.PlaylistTimeout),
		transport.WithReferer(referer),
	)
	if err != nil {
		return nil, fmt.Errorf("api fetch %s: %w: %w", url, err, types.ErrRetryable)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("api fetch %s: status %d: %w", url, resp.StatusCode, types.ErrRetryable)
	}
	return resp.Body, nil
}
