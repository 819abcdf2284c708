package browser

import "math/rand"

// userAgentPool is a small set of real, current desktop browser UA strings
// (spec §4.3: "random user-agent from a small pool of real browser
// strings").
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// viewportPool is a realistic range of desktop viewport sizes to randomise
// across driver builds.
type viewport struct{ width, height int64 }

var viewportPool = []viewport{
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// stealthScript unsets automation-indicator properties on the global object
// before any page script runs (spec §4.3: "navigator.webdriver, plugin
// mocks, language list").
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['hr-HR', 'hr', 'en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
`

func randomUserAgent() string {
	return userAgentPool[rand.Intn(len(userAgentPool))]
}

func randomViewport() viewport {
	return viewportPool[rand.Intn(len(viewportPool))]
}
