package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/solveiti/trgscout/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T, body string) *browser.FixtureDriver {
	t.Helper()
	d := browser.NewFixtureDriver(func(url string) (string, bool) { return body, true })
	require.NoError(t, d.Open(context.Background(), "u", time.Second))
	return d
}

func TestExtractFlags_Tier1ExactMatchWins(t *testing.T) {
	d := openFixture(t, `<html><body>
		<li class="entity-flag"><span class="flag">Novo vozilo</span></li>
		<li class="entity-flag"><span class="flag">Rabljeno vozilo</span></li>
		<li class="entity-flag"><span class="flag">Polovno vozilo</span></li>
		<li class="entity-flag"><span class="flag">Testno vozilo</span></li>
	</body></html>`)

	counts, err := extractFlags(context.Background(), d, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.new)
	assert.Equal(t, 2, counts.used)
	assert.Equal(t, 1, counts.test)
}

func TestExtractFlags_FallsBackToTier2WhenTier1Empty(t *testing.T) {
	d := openFixture(t, `<html><body>
		<li class="entity-flag">Novo vozilo</li>
		<li class="entity-flag">Testno vozilo</li>
	</body></html>`)

	counts, err := extractFlags(context.Background(), d, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.new)
	assert.Equal(t, 1, counts.test)
}

func TestExtractFlags_FallsBackToTier3Regex(t *testing.T) {
	d := openFixture(t, `<html><body><p>Some malformed markup Novo vozilo Novo vozilo Testno vozilo</p></body></html>`)

	counts, err := extractFlags(context.Background(), d, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.new)
	assert.Equal(t, 1, counts.test)
	assert.Equal(t, 0, counts.used)
}

func TestExtractFlags_Tier3CapsAt100(t *testing.T) {
	body := "<html><body><p>"
	for i := 0; i < 150; i++ {
		body += "Novo vozilo "
	}
	body += "</p></body></html>"

	d := openFixture(t, body)
	counts, err := extractFlags(context.Background(), d, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, counts.new)
}

func TestMatchPhrase_ExactPhrasesMapToTheirKind(t *testing.T) {
	kind, ok := matchPhrase("Novo vozilo")
	require.True(t, ok)
	assert.Equal(t, kindNew, kind)

	kind, ok = matchPhrase("Rabljeno vozilo")
	require.True(t, ok)
	assert.Equal(t, kindUsed, kind)

	_, ok = matchPhrase("something unrelated")
	assert.False(t, ok)
}

func TestDetectCategory_MatchesOnAnchorHref(t *testing.T) {
	d := openFixture(t, `<html><body><a href="/c?categoryId=42">link</a></body></html>`)
	ok, err := detectCategory(context.Background(), d, 42)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDetectCategory_MatchesOnKeywordText(t *testing.T) {
	d := openFixture(t, `<html><body><p>Dobrodošli u naš odjel Auto i Moto vozila</p></body></html>`)
	ok, err := detectCategory(context.Background(), d, 99)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDetectCategory_NoMatchReturnsFalse(t *testing.T) {
	d := openFixture(t, `<html><body><p>Nothing relevant here</p></body></html>`)
	ok, err := detectCategory(context.Background(), d, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectCategory_MatchesOnLabelledChip(t *testing.T) {
	d := openFixture(t, `<html><body>
		<nav class="site-nav"><a href="/auto-parts">Parts</a></nav>
		<div data-category-chip>Moto</div>
	</body></html>`)
	ok, err := detectCategory(context.Background(), d, 99)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDetectCategory_IgnoresKeywordInMarkupNotVisibleText(t *testing.T) {
	// "auto"/"moto" appear only in tag attributes and script content here,
	// never in anything a visitor would actually read on the page.
	d := openFixture(t, `<html><body>
		<nav class="auto-moto-nav"><a href="/x" class="moto-link">link</a></nav>
		<script>var autoMotoWidget = {};</script>
		<p>Nothing a visitor would read about vehicles.</p>
	</body></html>`)
	ok, err := detectCategory(context.Background(), d, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}
