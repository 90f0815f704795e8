package client

import "errors"

var (
	// ErrNoChannels indicates Run was called without configured channels.
	ErrNoChannels = errors.New("no channels configured")
	// ErrNoVideos indicates a channel has no listed videos.
	ErrNoVideos = errors.New("no videos found")
	// ErrNoPlaylist indicates no playlist URL could be resolved.
	ErrNoPlaylist = errors.New("no playlist found")
	// ErrNotLive indicates the channel is not currently broadcasting.
	ErrNotLive = errors.New("channel not live")
	// ErrNothingDownloaded indicates a streaming run produced no segments.
	ErrNothingDownloaded = errors.New("nothing downloaded")
)
