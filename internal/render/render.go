// Package render drives an isolated headless browser for pages whose values
// only exist as rendered UI state.
package render

import "context"

// Options configures one browser session.
type Options struct {
	Width    int
	Height   int
	ExecPath string
	Headless bool
	DevTools bool
}

// Session is one isolated browser instance with a single tab.
//
// Close releases the browser and its OS process. It is idempotent and safe
// to call concurrently with an in-flight Navigate or QueryText, which then
// return an error.
type Session interface {
	// Navigate loads url and returns once network activity is quiescent.
	// It has no timeout of its own; ctx is the only bound.
	Navigate(ctx context.Context, url string) error
	// QueryText returns the trimmed text content of every element matching
	// selector, in document order.
	QueryText(ctx context.Context, selector string) ([]string, error)
	Close() error
}

// Launcher starts sessions. Each call returns a fresh browser; nothing is
// pooled or reused between requests.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Session, error)
}
