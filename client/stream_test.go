package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	streamTestVideoID = "11111111-2222-4333-8444-555555555555"

	channelAPIURL = "https://kick.com/api/v2/channels/somechannel"
	videosAPIURL  = "https://kick.com/api/v2/channels/somechannel/videos?cursor=0&sort=date&time=all"
	videoAPIURL   = "https://kick.com/api/v1/video/" + streamTestVideoID

	masterURL = "https://stream.kick.com/ivs/abc/media/hls/master.m3u8"
)

// seqFetcher replays per-URL response sequences; the last entry repeats.
type seqFetcher struct {
	mu    sync.Mutex
	json  map[string][]string
	calls []string
}

func (f *seqFetcher) FetchJSON(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	queue, ok := f.json[url]
	if !ok || len(queue) == 0 {
		return nil, errors.New("no route for " + url)
	}
	body := queue[0]
	if len(queue) > 1 {
		f.json[url] = queue[1:]
	}
	return []byte(body), nil
}

func (f *seqFetcher) FetchPage(context.Context, string) (string, error) {
	return "", errors.New("no pages in this test")
}

func (f *seqFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func newWaitingClient(t *testing.T, f *seqFetcher) *Client {
	t.Helper()
	return New(Config{
		DownloadDir:       t.TempDir(),
		LiveCheckInterval: time.Millisecond,
		Fetcher:           f,
	})
}

func TestResolveLatestVariantWaitsForLive(t *testing.T) {
	f := &seqFetcher{json: map[string][]string{
		// Offline for two probes, then live.
		channelAPIURL: {`{"livestream": null}`, `{"livestream": null}`, `{"livestream": {"id": 1}}`},
		// VOD not listed on the first attempt after going live.
		videosAPIURL: {`[]`, `[{"video": {"uuid": "` + streamTestVideoID + `"}}]`},
		videoAPIURL:  {`{"source": "` + masterURL + `", "created_at": "2024-05-01T18:30:45Z"}`},
	}}
	c := newWaitingClient(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	variant, meta, err := c.resolveLatestVariant(ctx, "somechannel", true)
	require.NoError(t, err)
	assert.Equal(t, "https://stream.kick.com/ivs/abc/media/hls/480p30/playlist.m3u8", variant)
	require.NotNil(t, meta)
	assert.Equal(t, "2024-05-01T18:30:45Z", meta.CreatedAt)

	// Three liveness probes before the gate opened, then the empty listing
	// forced one resolution retry.
	assert.Equal(t, 3, f.callCount(channelAPIURL))
	assert.Equal(t, 2, f.callCount(videosAPIURL))
}

func TestResolveLatestVariantNoWaitFailsFast(t *testing.T) {
	f := &seqFetcher{json: map[string][]string{
		channelAPIURL: {`{"livestream": null}`},
		videosAPIURL:  {`[]`},
	}}
	c := newWaitingClient(t, f)

	_, _, err := c.resolveLatestVariant(context.Background(), "somechannel", false)
	require.Error(t, err)
	// Without waiting the liveness probe is never consulted.
	assert.Equal(t, 0, f.callCount(channelAPIURL))
	assert.Equal(t, 1, f.callCount(videosAPIURL))
}

func TestWaitForLiveCancellation(t *testing.T) {
	f := &seqFetcher{json: map[string][]string{
		channelAPIURL: {`{"livestream": null}`},
	}}
	c := newWaitingClient(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.waitForLive(ctx, "somechannel")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
