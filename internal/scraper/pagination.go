package scraper

import (
	"context"
	"fmt"

	"github.com/solveiti/trgscout/internal/browser"
)

// maxPagesHardCap is the absolute ceiling on pages walked per store,
// independent of config (spec §4.5 step 4: "MAX_PAGES = 20 hard cap").
const maxPagesHardCap = 20

// walkPages visits up to maxPages listing pages for the given base URL,
// accumulating per-page extraction counts (spec §4.5 step 4).
func walkPages(ctx context.Context, driver browser.Driver, baseURL string, maxPages, perPageCap int, sleepPagination func() error) (tierCounts, error) {
	if maxPages <= 0 || maxPages > maxPagesHardCap {
		maxPages = maxPagesHardCap
	}

	var total tierCounts
	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := sleepPagination(); err != nil {
				return total, err
			}

			pageURL := fmt.Sprintf("%s&page=%d", baseURL, page)
			if err := driver.Open(ctx, pageURL, pageLoadTimeout); err != nil {
				// Pagination request failure stops the loop without
				// failing the whole store.
				break
			}
		}

		counts, err := extractFlags(ctx, driver, perPageCap)
		if err != nil {
			return total, err
		}

		total.new += counts.new
		total.used += counts.used
		total.test += counts.test

		if counts.total() == 0 && page > 1 {
			break
		}
	}

	return total, nil
}
