package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeDriver is the production Driver, backed by a headless Chrome
// instance driven over the DevTools protocol.
type ChromeDriver struct {
	displayNum string
	proxyAddr  ProxyAddr

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// chromeElement wraps a located DOM node; its text is captured at find time
// since re-querying per call would defeat the point of a snapshot.
type chromeElement struct {
	node *cdp.Node
	text string
}

func (e *chromeElement) Text() string { return e.text }

// NewChromeDriver builds a driver with the spec's stealth posture applied at
// construction (spec §4.3: user-agent, viewport, telemetry/GPU flags,
// automation-indicator script, proxy routing).
func NewChromeDriver(displayNum string, proxyAddr ProxyAddr) *ChromeDriver {
	d := &ChromeDriver{displayNum: displayNum, proxyAddr: proxyAddr}
	d.build()
	return d
}

func (d *ChromeDriver) build() {
	vp := randomViewport()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-component-extensions-with-background-pages", true),
		chromedp.UserAgent(randomUserAgent()),
		chromedp.WindowSize(int(vp.width), int(vp.height)),
	)
	if d.displayNum != "" {
		opts = append(opts, chromedp.Env(fmt.Sprintf("DISPLAY=%s", d.displayNum)))
	}
	if addr, ok := d.proxyAddr(); ok {
		opts = append(opts, chromedp.ProxyServer("socks5://"+addr))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	d.allocCtx, d.allocCancel = allocCtx, allocCancel
	d.ctx, d.cancel = ctx, cancel
}

// Open registers the stealth script to run on the document before any page
// script does, then navigates and waits for the document to settle. Spec
// §4.3 requires the automation-indicator patch to land "at first-load...
// before any page script runs"; Page.addScriptToEvaluateOnNewDocument is the
// CDP primitive for that — unlike chromedp.Evaluate, which only runs after
// Navigate has already returned and the target page's own scripts have had
// a chance to execute.
func (d *ChromeDriver) Open(ctx context.Context, url string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browser: open %s: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) Source(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(d.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: source: %w", err)
	}
	return html, nil
}

func (d *ChromeDriver) FindAll(ctx context.Context, cssSelector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(d.ctx, chromedp.Nodes(cssSelector, &nodes, chromedp.ByQueryAll)); err != nil {
		return nil, fmt.Errorf("browser: find_all %s: %w", cssSelector, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		var text string
		_ = chromedp.Run(d.ctx, chromedp.TextContent([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID))
		elements = append(elements, &chromeElement{node: n, text: text})
	}
	return elements, nil
}

func (d *ChromeDriver) Find(ctx context.Context, cssSelector string) (Element, error) {
	elements, err := d.FindAll(ctx, cssSelector)
	if err != nil || len(elements) == 0 {
		return nil, err
	}
	return elements[0], nil
}

func (d *ChromeDriver) Exists(ctx context.Context, cssSelector string) (bool, error) {
	var ok bool
	if err := chromedp.Run(d.ctx, chromedp.EvaluateAsDevTools(
		fmt.Sprintf("document.querySelector(%q) !== null", cssSelector), &ok,
	)); err != nil {
		return false, fmt.Errorf("browser: exists %s: %w", cssSelector, err)
	}
	return ok, nil
}

func (d *ChromeDriver) ScrollTo(ctx context.Context, el Element) error {
	ce, ok := el.(*chromeElement)
	if !ok || ce.node == nil {
		return fmt.Errorf("browser: scroll_to: not a chrome element")
	}
	if err := chromedp.Run(d.ctx, chromedp.ScrollIntoView([]cdp.NodeID{ce.node.NodeID}, chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("browser: scroll_to: %w", err)
	}
	return nil
}

// consentSelector is the known GDPR consent button id used by the target
// site (spec §4.3: "best-effort click on a known-id GDPR consent button").
const consentSelector = "#didomi-notice-agree-button"

func (d *ChromeDriver) DismissConsent(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(d.ctx, 3*time.Second)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(consentSelector, chromedp.ByQuery)); err != nil {
		slog.Debug("consent dismissal skipped", "component", "browser", "error", err)
	}
}

// Rebuild quits the current Chrome instance and constructs a fresh one with
// the same stealth posture (a new random UA/viewport is drawn).
func (d *ChromeDriver) Rebuild(ctx context.Context) error {
	_ = d.Close()
	d.build()
	return nil
}

func (d *ChromeDriver) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}

var _ Driver = (*ChromeDriver)(nil)
