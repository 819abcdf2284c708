package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/solveiti/trgscout/internal/browser"
)

// listingKind is the three-way classification a single listing resolves to.
type listingKind int

const (
	kindNew listingKind = iota
	kindUsed
	kindTest
)

// matchPhrase returns the listingKind whose phrase list contains an exact
// match for text, in new > used > test priority order (spec §4.5's
// "enumerated per-listing rule"), or false if none match.
func matchPhrase(text string) (listingKind, bool) {
	trimmed := strings.TrimSpace(text)
	for _, fp := range flagPhrases {
		for _, phrase := range fp.phrases {
			if trimmed == phrase {
				return fp.kind, true
			}
		}
	}
	return 0, false
}

// tierCounts accumulates one extraction tier's bucketed listing count.
type tierCounts struct{ new, used, test int }

func (c tierCounts) total() int { return c.new + c.used + c.test }

func (c *tierCounts) add(kind listingKind) {
	switch kind {
	case kindNew:
		c.new++
	case kindUsed:
		c.used++
	case kindTest:
		c.test++
	}
}

func (c tierCounts) capped(max int) tierCounts {
	return tierCounts{
		new:  min(c.new, max),
		used: min(c.used, max),
		test: min(c.test, max),
	}
}

// extractFlags runs the three-tier extraction strategy for the current page
// (spec §4.5 step 5), returning counts already capped at perPageCap per
// type.
func extractFlags(ctx context.Context, driver browser.Driver, perPageCap int) (tierCounts, error) {
	tier1, err := extractByElements(ctx, driver, "li.entity-flag > span.flag")
	if err != nil {
		return tierCounts{}, fmt.Errorf("scraper: tier1 extraction: %w", err)
	}
	if tier1.total() > 0 {
		return tier1.capped(perPageCap), nil
	}

	tier2, err := extractByElements(ctx, driver, "li.entity-flag")
	if err != nil {
		return tierCounts{}, fmt.Errorf("scraper: tier2 extraction: %w", err)
	}
	if tier2.total() > 0 {
		return tier2.capped(perPageCap), nil
	}

	source, err := driver.Source(ctx)
	if err != nil {
		return tierCounts{}, fmt.Errorf("scraper: tier3 source: %w", err)
	}
	return extractByRegex(source, perPageCap), nil
}

func extractByElements(ctx context.Context, driver browser.Driver, selector string) (tierCounts, error) {
	elements, err := driver.FindAll(ctx, selector)
	if err != nil {
		return tierCounts{}, err
	}

	var counts tierCounts
	for _, el := range elements {
		if kind, ok := matchPhrase(el.Text()); ok {
			counts.add(kind)
		}
	}
	return counts, nil
}

// flagRegexps are case-insensitive, whole-phrase regexes for the tier 3
// fallback; built once at init from the same phrase table tiers 1/2 use.
var flagRegexps = buildFlagRegexps()

func buildFlagRegexps() map[listingKind]*regexp.Regexp {
	out := make(map[listingKind]*regexp.Regexp, len(flagPhrases))
	for _, fp := range flagPhrases {
		escaped := make([]string, len(fp.phrases))
		for i, p := range fp.phrases {
			escaped[i] = regexp.QuoteMeta(p)
		}
		out[fp.kind] = regexp.MustCompile(`(?i)` + strings.Join(escaped, "|"))
	}
	return out
}

// extractByRegex counts non-overlapping phrase matches per type directly
// over the raw page source, each capped at max (spec §4.5 tier 3).
func extractByRegex(source string, max int) tierCounts {
	var counts tierCounts
	counts.new = min(len(flagRegexps[kindNew].FindAllStringIndex(source, -1)), max)
	counts.used = min(len(flagRegexps[kindUsed].FindAllStringIndex(source, -1)), max)
	counts.test = min(len(flagRegexps[kindTest].FindAllStringIndex(source, -1)), max)
	return counts
}
