package types

import "errors"

var (
	// ErrRetryable tags failures scoped to the current poll cycle; the video
	// is not marked processed and is retried on the next cycle.
	ErrRetryable = errors.New("retryable failure")

	// ErrPermanent tags failures that will not succeed on retry.
	ErrPermanent = errors.New("permanent failure")

	// ErrNoVideos indicates a channel currently has no listed videos.
	ErrNoVideos = errors.New("no videos found")

	// ErrNoPlaylist indicates no playlist URL could be resolved for a video.
	ErrNoPlaylist = errors.New("no playlist found")

	// ErrNotLive indicates the channel is not currently broadcasting.
	ErrNotLive = errors.New("channel not live")
)

// IsRetryable reports whether err is tagged as retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
