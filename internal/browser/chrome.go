package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	platformURL = "https://kick.com/"
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// settleDelay gives the anti-bot interstitial time to clear after a
	// navigation before scripts run against the page.
	settleDelay = 2 * time.Second
)

// Chrome is a Fetcher backed by a headless Chrome instance via chromedp.
// It also implements transport.Solver by exporting the cleared session's
// cookies into a plain http.Client.
type Chrome struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	primed bool
}

// NewChrome launches a headless browser. The returned Chrome must be closed
// by the caller.
func NewChrome(ctx context.Context) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so setup failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}
	return &Chrome{allocCancel: allocCancel, ctx: browserCtx, cancel: cancel}, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.cancel()
	c.allocCancel()
}

// FetchJSON runs a window.fetch for url inside the platform origin and
// returns the response body.
func (c *Chrome) FetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.prime(ctx); err != nil {
		return nil, err
	}
	expr := fmt.Sprintf(
		`fetch(%q, { credentials: 'include' }).then(r => r.ok ? r.text() : Promise.reject(new Error('HTTP ' + r.status)))`,
		rawURL,
	)
	var body string
	err := c.run(ctx, chromedp.Evaluate(expr, &body, awaitPromise))
	if err != nil {
		return nil, fmt.Errorf("browser fetch %s: %w", rawURL, err)
	}
	return []byte(body), nil
}

// FetchPage navigates to url and returns the rendered HTML.
func (c *Chrome) FetchPage(ctx context.Context, rawURL string) (string, error) {
	var html string
	err := c.run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser page load %s: %w", rawURL, err)
	}
	c.mu.Lock()
	c.primed = true
	c.mu.Unlock()
	return html, nil
}

// Solve implements transport.Solver: it exports the browser session's
// cookies into a cookie-jar-backed http.Client carrying the same User-Agent,
// so plain requests inherit the anti-bot clearance.
func (c *Chrome) Solve(ctx context.Context) (*http.Client, error) {
	if err := c.prime(ctx); err != nil {
		return nil, err
	}

	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("cookie export failed: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	siteURL, _ := url.Parse(platformURL)
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}
	jar.SetCookies(siteURL, httpCookies)

	return &http.Client{Jar: jar}, nil
}

// prime ensures one navigation to the platform origin happened so fetch and
// cookie export run against it.
func (c *Chrome) prime(ctx context.Context) error {
	c.mu.Lock()
	primed := c.primed
	c.mu.Unlock()
	if primed {
		return nil
	}
	err := c.run(ctx, chromedp.Navigate(platformURL), chromedp.Sleep(settleDelay))
	if err != nil {
		return fmt.Errorf("platform navigation failed: %w", err)
	}
	c.mu.Lock()
	c.primed = true
	c.mu.Unlock()
	return nil
}

// run executes actions on the browser tab while honoring the caller's
// cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(c.ctx, actions...) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func awaitPromise(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
