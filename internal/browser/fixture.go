package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// htmlElement is the fixture driver's Element: a parsed DOM node plus its
// pre-computed text content.
type htmlElement struct {
	node *html.Node
	text string
}

func (e *htmlElement) Text() string { return e.text }

// PageSource supplies the HTML body FixtureDriver.Open should serve for a
// given URL. Tests register one per scenario; it is called once per Open.
type PageSource func(url string) (body string, ok bool)

// FixtureDriver is a Driver implementation backed by static HTML fixtures
// and golang.org/x/net/html, used to exercise the store scraper's
// extraction logic without a real browser.
type FixtureDriver struct {
	pages      PageSource
	doc        *html.Node
	rawSource  string
	consentHit int
	rebuilds   int
}

// NewFixtureDriver builds a driver that serves HTML from pages.
func NewFixtureDriver(pages PageSource) *FixtureDriver {
	return &FixtureDriver{pages: pages}
}

func (d *FixtureDriver) Open(ctx context.Context, url string, timeout time.Duration) error {
	body, ok := d.pages(url)
	if !ok {
		return fmt.Errorf("fixture: no page registered for %s", url)
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("fixture: parsing %s: %w", url, err)
	}
	d.doc = doc
	d.rawSource = body
	return nil
}

func (d *FixtureDriver) Source(ctx context.Context) (string, error) {
	return d.rawSource, nil
}

func (d *FixtureDriver) FindAll(ctx context.Context, cssSelector string) ([]Element, error) {
	if d.doc == nil {
		return nil, fmt.Errorf("fixture: find_all before open")
	}
	nodes := queryAll(d.doc, parseSelector(cssSelector))
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &htmlElement{node: n, text: textContent(n)})
	}
	return elements, nil
}

func (d *FixtureDriver) Find(ctx context.Context, cssSelector string) (Element, error) {
	elements, err := d.FindAll(ctx, cssSelector)
	if err != nil || len(elements) == 0 {
		return nil, err
	}
	return elements[0], nil
}

func (d *FixtureDriver) Exists(ctx context.Context, cssSelector string) (bool, error) {
	elements, err := d.FindAll(ctx, cssSelector)
	if err != nil {
		return false, err
	}
	return len(elements) > 0, nil
}

func (d *FixtureDriver) ScrollTo(ctx context.Context, el Element) error {
	return nil
}

func (d *FixtureDriver) DismissConsent(ctx context.Context) {
	d.consentHit++
}

func (d *FixtureDriver) Rebuild(ctx context.Context) error {
	d.rebuilds++
	d.doc = nil
	d.rawSource = ""
	return nil
}

func (d *FixtureDriver) Close() error { return nil }

// Rebuilds reports how many times Rebuild has been called, for tests that
// assert on C7's 3-consecutive-failure rebuild policy.
func (d *FixtureDriver) Rebuilds() int { return d.rebuilds }

var _ Driver = (*FixtureDriver)(nil)
