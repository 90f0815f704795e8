package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/famomatic/kickvod/internal/transport"
	"github.com/famomatic/kickvod/internal/types"
)

var m3u8Re = regexp.MustCompile(`https?://[^"'\s\\]+\.m3u8`)

// IsChannelLive reports whether the channel is currently broadcasting. Any
// error, non-2xx response, or malformed payload resolves to false; liveness
// ambiguity never blocks progress.
func (r *Resolver) IsChannelLive(ctx context.Context, channel string) bool {
	apiURL := fmt.Sprintf(channelAPI, url.PathEscape(channel))
	body, err := r.fetchAPI(ctx, apiURL, fmt.Sprintf(channelPage, channel))
	if err != nil {
		return false
	}
	var payload struct {
		Livestream json.RawMessage `json:"livestream"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	raw := strings.TrimSpace(string(payload.Livestream))
	return raw != "" && raw != "null"
}

// LiveM3U8 resolves a variant playlist for a channel's current broadcast
// from the channel API's livestream object, falling back to a channel page
// scan when the API yields nothing usable. A channel the API affirmatively
// reports as offline resolves to ErrNotLive without a page scan.
func (r *Resolver) LiveM3U8(ctx context.Context, channel, preferred string) (string, error) {
	apiURL := fmt.Sprintf(channelAPI, url.PathEscape(channel))
	body, err := r.fetchAPI(ctx, apiURL, fmt.Sprintf(channelPage, channel))
	if err == nil {
		var payload struct {
			Livestream json.RawMessage `json:"livestream"`
		}
		if json.Unmarshal(body, &payload) == nil {
			raw := strings.TrimSpace(string(payload.Livestream))
			if raw == "" || raw == "null" {
				return "", fmt.Errorf("channel %s: %w", channel, types.ErrNotLive)
			}
			// Escaped slashes in the raw JSON would hide the URLs from the
			// scan.
			urls := m3u8Re.FindAllString(unescapeJSONURL(raw), -1)
			if candidate := chooseCandidate(urls, preferred); candidate != "" {
				return r.PickVariantFromMaster(ctx, candidate, preferred), nil
			}
		}
	}
	r.logger.Debugf("channel %s: live API yielded no playlist, scanning page", channel)
	return r.ResolveFromPage(ctx, fmt.Sprintf(channelPage, channel), preferred)
}

// ResolveFromPage is the last-resort resolution path: fetch the rendered
// page, scan it for embedded playlist URLs, prefer one on the platform's
// streaming host, and run the candidate through master variant selection.
func (r *Resolver) ResolveFromPage(ctx context.Context, pageURL, preferred string) (string, error) {
	html := r.fetchPage(ctx, pageURL)
	if html == "" {
		return "", fmt.Errorf("page %s unavailable: %w: %w", pageURL, types.ErrNoPlaylist, types.ErrRetryable)
	}
	urls := m3u8Re.FindAllString(unescapeJSONURL(html), -1)
	if len(urls) == 0 {
		return "", fmt.Errorf("no playlist in page %s: %w: %w", pageURL, types.ErrNoPlaylist, types.ErrRetryable)
	}
	candidate := urls[0]
	for _, u := range urls {
		if strings.Contains(u, streamHost) {
			candidate = u
			break
		}
	}
	return r.PickVariantFromMaster(ctx, candidate, preferred), nil
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) string {
	if r.fetcher != nil {
		if html, err := r.fetcher.FetchPage(ctx, pageURL); err == nil && html != "" {
			return html
		}
		r.logger.Debugf("browser page load failed for %s, degrading to direct HTTP", pageURL)
	}
	resp, err := r.transport.Get(ctx, pageURL,
		transport.WithTimeout(transport.PageTimeout),
		transport.WithReferer(pageURL),
	)
	if err != nil || !resp.OK() {
		return ""
	}
	return string(resp.Body)
}

// chooseCandidate prefers a URL containing the preferred variant substring,
// then one on the streaming host, then the first match.
func chooseCandidate(urls []string, preferred string) string {
	if len(urls) == 0 {
		return ""
	}
	if preferred != "" {
		for _, u := range urls {
			if strings.Contains(u, preferred) {
				return u
			}
		}
	}
	for _, u := range urls {
		if strings.Contains(u, streamHost) {
			return u
		}
	}
	return urls[0]
}

// unescapeJSONURL undoes the escaping of URLs lifted out of raw JSON text.
func unescapeJSONURL(raw string) string {
	return strings.ReplaceAll(raw, `\/`, `/`)
}
