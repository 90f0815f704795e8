// Package browser provides the authenticated-fetch capability: requests
// executed inside a real browser context that carries the platform's anti-bot
// clearance. Resolution paths degrade to direct HTTP when it is absent.
package browser

import "context"

// Fetcher executes fetches with the platform's anti-bot clearance.
type Fetcher interface {
	// FetchJSON fetches url from within the browser context and returns the
	// raw JSON response body.
	FetchJSON(ctx context.Context, url string) ([]byte, error)
	// FetchPage navigates to url and returns the rendered page HTML.
	FetchPage(ctx context.Context, url string) (string, error)
}
