package sitemap

import (
	"encoding/xml"
	"regexp"
)

// sitemapIndex mirrors the <sitemapindex> root of the sitemaps.org schema.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// urlSet mirrors the <urlset> root of a leaf sitemap.
type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// locRegexp is the best-effort fallback extractor used when strict XML
// parsing fails (spec §4.1: "if a strict XML parse fails, fall back to a
// regex that extracts <loc>...</loc> values").
var locRegexp = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)

// parseIndexLocs extracts child sitemap URLs from a root index document,
// falling back to regex extraction if strict parsing fails. A document that
// parses as a <urlset> has no child sitemaps and yields nil.
func parseIndexLocs(body []byte) []string {
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		locs := make([]string, 0, len(idx.Sitemaps))
		for _, s := range idx.Sitemaps {
			locs = append(locs, s.Loc)
		}
		return locs
	}
	var us urlSet
	if err := xml.Unmarshal(body, &us); err == nil {
		return nil
	}
	return extractLocsByRegex(body)
}

// parseLeafLocs extracts <loc> URLs from a leaf sitemap document, falling
// back to regex extraction if strict parsing fails.
func parseLeafLocs(body []byte) []string {
	var us urlSet
	if err := xml.Unmarshal(body, &us); err == nil && len(us.URLs) > 0 {
		locs := make([]string, 0, len(us.URLs))
		for _, u := range us.URLs {
			locs = append(locs, u.Loc)
		}
		return locs
	}
	return extractLocsByRegex(body)
}

func extractLocsByRegex(body []byte) []string {
	matches := locRegexp.FindAllSubmatch(body, -1)
	locs := make([]string, 0, len(matches))
	for _, m := range matches {
		locs = append(locs, string(m[1]))
	}
	return locs
}
