// Package browser implements C5, the browser driver pool: HTML-rendered,
// JavaScript-executed page access with a stealth posture applied once at
// construction time.
package browser

import (
	"context"
	"time"
)

// Element is an opaque handle to a located DOM node. Its only contract is
// that Text and the driver's ScrollTo operation can act on it; the
// concrete representation differs between the chromedp-backed driver and
// the fixture driver used in tests.
type Element interface {
	Text() string
}

// Driver is C5's contract towards C7 (spec §4.3).
type Driver interface {
	// Open navigates to url and returns a timeout error if the page does not
	// load within timeout. ChromeDriver waits for the page load and a ready
	// <body>; it does not wait for network idle.
	Open(ctx context.Context, url string, timeout time.Duration) error

	// Source returns the current page's rendered HTML.
	Source(ctx context.Context) (string, error)

	FindAll(ctx context.Context, cssSelector string) ([]Element, error)
	Find(ctx context.Context, cssSelector string) (Element, error)
	Exists(ctx context.Context, cssSelector string) (bool, error)
	ScrollTo(ctx context.Context, el Element) error

	// DismissConsent makes a best-effort attempt to click a known GDPR
	// consent button; failures are swallowed.
	DismissConsent(ctx context.Context)

	// Rebuild quits and reconstructs the underlying browser, used after a
	// transport/proxy change or repeated failures.
	Rebuild(ctx context.Context) error

	Close() error
}

// ProxyAddr is implemented by anything that can tell the driver which
// loopback SOCKS endpoint to route through at construction time (spec
// §4.3's "when a proxy endpoint is current, configure the driver to route
// all traffic through that loopback SOCKS port"). A nil ProxyAddr means
// route directly.
type ProxyAddr func() (addr string, ok bool)
