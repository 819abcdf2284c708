package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/solveiti/trgscout/internal/browser"
)

// detectCategory decides whether the rendered page exposes the target
// auto-moto category (spec §4.5 step 3): a category anchor, a keyword in
// the visible text, or a labelled category chip.
func detectCategory(ctx context.Context, driver browser.Driver, targetCategoryID int) (bool, error) {
	anchorSelector := fmt.Sprintf(`a[href*="categoryId=%d"]`, targetCategoryID)
	hasAnchor, err := driver.Exists(ctx, anchorSelector)
	if err != nil {
		return false, fmt.Errorf("scraper: category anchor check: %w", err)
	}
	if hasAnchor {
		return true, nil
	}

	source, err := driver.Source(ctx)
	if err != nil {
		return false, fmt.Errorf("scraper: category source: %w", err)
	}
	visibleText, err := browser.VisibleText(source)
	if err != nil {
		return false, fmt.Errorf("scraper: category visible text: %w", err)
	}
	if containsKeyword(visibleText) {
		return true, nil
	}

	for _, sel := range categoryChipSelectors {
		el, err := driver.Find(ctx, sel)
		if err != nil {
			return false, fmt.Errorf("scraper: category chip check: %w", err)
		}
		if el != nil && containsKeyword(el.Text()) {
			return true, nil
		}
	}

	return false, nil
}

func containsKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
