package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/famomatic/kickvod/internal/types"
)

// Video is one entry of a channel's video list, newest first.
type Video struct {
	ID      string
	PageURL string
}

// VideoMetadata is the subset of the per-video metadata endpoint this
// package consumes.
type VideoMetadata struct {
	Source     string `json:"source"`
	CreatedAt  string `json:"created_at"`
	Livestream struct {
		StartTime string `json:"start_time"`
	} `json:"livestream"`
}

// MasterURL returns the master playlist URL from the metadata's source
// field, tolerating a nil receiver.
func (m *VideoMetadata) MasterURL() string {
	if m == nil {
		return ""
	}
	return m.Source
}

// ChannelVideos lists a channel's videos newest-first, deduplicated by id.
// The degraded direct-HTTP path tolerates error payloads and non-list shapes
// by returning ErrNoVideos rather than failing hard.
func (r *Resolver) ChannelVideos(ctx context.Context, channel string) ([]Video, error) {
	apiURL := fmt.Sprintf(channelVideosAPI, url.PathEscape(channel))
	referer := fmt.Sprintf(channelPage, channel)
	body, err := r.fetchAPI(ctx, apiURL, referer)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		Video struct {
			UUID string `json:"uuid"`
		} `json:"video"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		// Error payloads come back as objects, not lists.
		r.logger.Debugf("channel %s video list is not a list: %v", channel, err)
		return nil, fmt.Errorf("channel %s: %w", channel, types.ErrNoVideos)
	}

	seen := make(map[string]struct{}, len(entries))
	videos := make([]Video, 0, len(entries))
	for _, e := range entries {
		id := e.Video.UUID
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			r.logger.Warnf("channel %s: skipping malformed video id %q", channel, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		videos = append(videos, Video{ID: id, PageURL: fmt.Sprintf(videoPage, channel, id)})
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channel, types.ErrNoVideos)
	}
	return videos, nil
}

// LatestVideoLink returns the newest video's page URL for a channel.
func (r *Resolver) LatestVideoLink(ctx context.Context, channel string) (string, error) {
	videos, err := r.ChannelVideos(ctx, channel)
	if err != nil {
		return "", err
	}
	return videos[0].PageURL, nil
}

// VideoMetadata fetches the per-video metadata record.
func (r *Resolver) VideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	apiURL := fmt.Sprintf(videoAPI, url.PathEscape(videoID))
	referer := "https://kick.com/video/" + videoID
	body, err := r.fetchAPI(ctx, apiURL, referer)
	if err != nil {
		return nil, err
	}
	var meta VideoMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("video %s metadata malformed: %w", videoID, types.ErrRetryable)
	}
	return &meta, nil
}

// ExtractVideoID recovers the video identifier from a video page URL's
// trailing path segment and validates its shape.
func ExtractVideoID(pageURL string) (string, error) {
	trimmed := strings.TrimRight(pageURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", fmt.Errorf("no video id in url %q: %w", pageURL, types.ErrPermanent)
	}
	id := trimmed[idx+1:]
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("malformed video id %q: %w", id, types.ErrPermanent)
	}
	return id, nil
}

var (
	variantLabelRe = regexp.MustCompile(`^(\d+p)`)
	unsafeRe       = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)
)

// timestamp layouts seen in the metadata endpoint.
var metadataTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// BuildBasename builds a descriptive output basename of the form
// "channel_YYYY-MM-DD_HH-MM_480p". The timestamp comes from metadata when
// parseable, else the current UTC time. meta may be nil.
func BuildBasename(channel string, meta *VideoMetadata, preferred string) string {
	stamp := ""
	if meta != nil {
		raw := meta.CreatedAt
		if raw == "" {
			raw = meta.Livestream.StartTime
		}
		for _, layout := range metadataTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				stamp = t.Format("2006-01-02_15-04")
				break
			}
		}
	}
	if stamp == "" {
		stamp = time.Now().UTC().Format("2006-01-02_15-04")
	}

	label := "480p"
	if preferred != "" {
		if m := variantLabelRe.FindStringSubmatch(preferred); m != nil {
			label = m[1]
		} else {
			label = preferred
		}
	}

	return Sanitize(fmt.Sprintf("%s_%s_%s", channel, stamp, label))
}

// Sanitize strips filesystem-unsafe runes from a basename.
func Sanitize(name string) string {
	return unsafeRe.ReplaceAllString(name, "_")
}
