package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// Timeouts for the different request classes.
const (
	DefaultTimeout  = 30 * time.Second
	PlaylistTimeout = 20 * time.Second
	PageTimeout     = 25 * time.Second
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	platformOrigin   = "https://kick.com"
	platformReferer  = "https://kick.com/"
)

// Solver produces an HTTP client capable of passing the platform's bot
// verification, for example by borrowing cookies from a cleared browser
// session.
type Solver interface {
	Solve(ctx context.Context) (*http.Client, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs GET requests against the platform. It starts with a plain
// http.Client and, on a request failure or an HTTP 403, permanently upgrades
// to a challenge-solving client when a Solver is available. The upgrade is
// one-way and shared by all subsequent requests.
type Client struct {
	mu         sync.Mutex
	httpClient *http.Client
	solver     Solver
	escalated  bool
}

// New returns a Client using the plain http.Client. solver may be nil, in
// which case blocked requests are surfaced as-is.
func New(solver Solver) *Client {
	return NewWithHTTPClient(&http.Client{}, solver)
}

// NewWithHTTPClient returns a Client over an explicit base http.Client.
func NewWithHTTPClient(httpClient *http.Client, solver Solver) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, solver: solver}
}

type requestOptions struct {
	referer string
	timeout time.Duration
}

// Option customizes a single request.
type Option func(*requestOptions)

// WithReferer overrides the default platform referer for one request.
func WithReferer(referer string) Option {
	return func(o *requestOptions) { o.referer = referer }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *requestOptions) { o.timeout = d }
}

// Get performs a GET request. Non-2xx statuses are returned in Response, not
// as errors; callers branch on the status. Network failures and HTTP 403
// trigger at most one escalation to the challenge-solving client.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...Option) (*Response, error) {
	options := requestOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	resp, err := c.do(ctx, rawURL, options)
	if err == nil && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	// Blocked or failed: try once more with the challenge-solving client.
	if !c.escalate(ctx) {
		return resp, err
	}
	retried, retryErr := c.do(ctx, rawURL, options)
	if retryErr != nil {
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return retried, nil
}

func (c *Client) do(ctx context.Context, rawURL string, options requestOptions) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	applyDefaultHeaders(req, options.referer)

	resp, err := c.current().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) current() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient
}

// escalate swaps in the challenge-solving client. It returns false when no
// solver is configured, the upgrade already happened, or solving failed.
func (c *Client) escalate(ctx context.Context) bool {
	c.mu.Lock()
	if c.solver == nil || c.escalated {
		c.mu.Unlock()
		return false
	}
	c.escalated = true
	solver := c.solver
	c.mu.Unlock()

	solved, err := solver.Solve(ctx)
	if err != nil || solved == nil {
		return false
	}

	c.mu.Lock()
	c.httpClient = solved
	c.mu.Unlock()
	return true
}

// Escalated reports whether the challenge-solving upgrade has happened.
func (c *Client) Escalated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escalated
}

func applyDefaultHeaders(req *http.Request, referer string) {
	if referer == "" {
		referer = platformReferer
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Origin", platformOrigin)
	req.Header.Set("Referer", referer)
}
