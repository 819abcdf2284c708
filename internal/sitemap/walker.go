// Package sitemap implements C3, the sitemap walker: it fetches a tree of
// sitemap index/leaf documents over plain HTTP, decompresses gzipped
// leaves, extracts store URLs, and dedupes them into the registry.
package sitemap

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/solveiti/trgscout/internal/types"
)

// bodyCacheTTL bounds how long a fetched sitemap document is reused within
// one Ingest call, so a URL appearing under more than one priority-sorted
// child (or revisited after a retry) isn't fetched twice.
const bodyCacheTTL = 5 * time.Minute

// fetchRateLimit caps outbound sitemap fetches so ingesting a large child
// tree doesn't hammer the dealer site's web server (spec §5: "Sitemap HTTP
// fetches run sequentially on a plain client" — sequential, but not
// unbounded in rate).
const fetchRateLimit = 5 // requests per second

// storePathSegment is the path segment that marks a URL as a dealer store
// page (spec glossary).
const storePathSegment = "/trgovina/"

// priorityTokens are substrings that, when present in a child sitemap's URL,
// cause it to be visited before children without them (spec §4.1:
// "prioritises those whose URL contains the token 'store' / 'trgovina' /
// 'stores'").
var priorityTokens = []string{"store", "trgovina", "stores"}

// Registry is the subset of the store package's Store interface the walker
// needs to dedupe against.
type Registry interface {
	SeedNew(ctx context.Context, urls []string) ([]string, error)
}

// Walker is C3.
type Walker struct {
	httpClient *http.Client
	registry   Registry
	bodyCache  *cache.Cache
	limiter    *rate.Limiter
}

// New creates a Walker with a 20s-timeout HTTP client (spec §5 timeouts).
func New(registry Registry) *Walker {
	return &Walker{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		registry:   registry,
		bodyCache:  cache.New(bodyCacheTTL, 2*bodyCacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(fetchRateLimit), 1),
	}
}

// Ingest walks the sitemap tree rooted at rootIndexURL, extracts store URLs,
// and dedupes them into the registry (spec §4.1).
func (w *Walker) Ingest(ctx context.Context, rootIndexURL string) (*types.IngestReport, error) {
	rootBody, err := w.fetch(ctx, rootIndexURL)
	if err != nil {
		return nil, err
	}

	children := parseIndexLocs(rootBody)
	if len(children) == 0 {
		// The root index itself may already be a leaf sitemap (no <sitemap>
		// children); treat it as a single leaf to stay best-effort.
		children = []string{rootIndexURL}
	} else {
		sortByPriority(children)
	}

	report := &types.IngestReport{}
	var allStoreURLs []string
	var errs *multierror.Error

	for _, childURL := range children {
		locs, err := w.fetchLeaf(ctx, childURL)
		if err != nil {
			slog.Warn("skipping child sitemap",
				"component", "sitemap", "url", childURL, "error", err)
			report.Skipped++
			errs = multierror.Append(errs, err)
			continue
		}

		report.Discovered += len(locs)
		for _, loc := range locs {
			if strings.Contains(loc, storePathSegment) {
				allStoreURLs = append(allStoreURLs, loc)
			}
		}
	}

	allStoreURLs = dedupe(allStoreURLs)

	if len(allStoreURLs) == 0 {
		if errs.ErrorOrNil() != nil {
			return report, errs.ErrorOrNil()
		}
		return report, nil
	}

	inserted, err := w.registry.SeedNew(ctx, allStoreURLs)
	if err != nil {
		return report, err
	}
	report.Inserted = len(inserted)

	return report, nil
}

// fetchLeaf fetches one child sitemap, transparently decompressing it, and
// returns its <loc> URLs.
func (w *Walker) fetchLeaf(ctx context.Context, url string) ([]string, error) {
	body, err := w.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	body, err = maybeDecompress(url, body)
	if err != nil {
		return nil, err
	}

	return parseLeafLocs(body), nil
}

// sortByPriority stable-sorts so URLs containing a priority token come
// first, preserving relative order within each group.
func sortByPriority(urls []string) {
	sort.SliceStable(urls, func(i, j int) bool {
		return isPriority(urls[i]) && !isPriority(urls[j])
	})
}

func isPriority(url string) bool {
	lower := strings.ToLower(url)
	for _, tok := range priorityTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
