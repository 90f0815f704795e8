package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famomatic/kickvod/internal/types"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultQuality, cfg.Quality)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultLiveCheckInterval, cfg.LiveCheckInterval)
	assert.Equal(t, DefaultDownloadDir, cfg.DownloadDir)
}

func TestConfigDefaultsKeepExplicitValues(t *testing.T) {
	cfg := Config{Quality: "720p60", DownloadDir: "/tmp/vods"}.withDefaults()
	assert.Equal(t, "720p60", cfg.Quality)
	assert.Equal(t, "/tmp/vods", cfg.DownloadDir)
}

func TestRunWithoutChannels(t *testing.T) {
	c := New(Config{DownloadDir: t.TempDir()})
	_, err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrNoChannels)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{fmt.Errorf("channel x: %w", types.ErrNoVideos), ErrNoVideos},
		{fmt.Errorf("video y: %w", types.ErrNoPlaylist), ErrNoPlaylist},
		{fmt.Errorf("channel x: %w", types.ErrNotLive), ErrNotLive},
		{nil, nil},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapError(c.in))
	}

	// Unrecognized errors pass through unwrapped.
	plain := errors.New("disk full")
	assert.Equal(t, plain, mapError(plain))
}

func TestBasenameFromPlaylistURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{
			"https://stream.kick.com/ivs/v1/abc/media/hls/480p30/playlist.m3u8",
			"hls-480p30-playlist",
		},
		{"https://h/playlist.m3u8", "playlist"},
		{"https://h/a/b.m3u8", "b"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, basenameFromPlaylistURL(c.in))
	}
}
