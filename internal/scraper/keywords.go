package scraper

// categoryKeywords is the small Croatian keyword list used for category
// detection (spec §4.5 step 3(b)): the visible page text qualifies the
// store as auto-moto if it contains any of these, case-insensitively.
var categoryKeywords = []string{"auto", "moto", "vozila"}

// categoryChipSelectors are known "category chip" CSS selectors that, when
// present and labelled with a category keyword, also qualify the page
// (spec §4.5 step 3(c)).
var categoryChipSelectors = []string{
	".category-chip",
	".breadcrumb-category",
	"[data-category-chip]",
}

// flagPhrase is one of the three Croatian listing-status phrases tier 1/2
// match on exactly, and tier 3 matches via regex.
type flagPhrase struct {
	kind    listingKind
	phrases []string
}

// newVehiclePhrase, usedVehiclePhrase, testVehiclePhrase are the exact
// phrases the site renders for each listing status (spec §4.5 step 5).
// "Polovno vozilo" is accepted as a regional synonym for "Rabljeno vozilo".
var flagPhrases = []flagPhrase{
	{kind: kindNew, phrases: []string{"Novo vozilo"}},
	{kind: kindUsed, phrases: []string{"Rabljeno vozilo", "Polovno vozilo"}},
	{kind: kindTest, phrases: []string{"Testno vozilo"}},
}
