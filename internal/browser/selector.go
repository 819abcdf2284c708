package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// simpleSelector is one compound step of a selector chain ("li.entity-flag",
// "span.flag", "a[href*=categoryId]", "#some-id"). It is not a general CSS
// engine: it covers exactly the selector shapes the store scraper uses
// (tag+class, tag+id, and a single attribute-contains or attribute-presence
// test).
type simpleSelector struct {
	tag              string
	class            string
	id               string
	attrName         string
	attrContains     string
	attrPresenceOnly bool
}

// parseSelector parses a ">"-separated chain of simple selectors, e.g.
// "li.entity-flag > span.flag".
func parseSelector(sel string) []simpleSelector {
	parts := strings.Split(sel, ">")
	chain := make([]simpleSelector, 0, len(parts))
	for _, p := range parts {
		chain = append(chain, parseSimpleSelector(strings.TrimSpace(p)))
	}
	return chain
}

func parseSimpleSelector(s string) simpleSelector {
	var sel simpleSelector

	if i := strings.Index(s, "["); i >= 0 && strings.HasSuffix(s, "]") {
		attr := s[i+1 : len(s)-1]
		s = s[:i]
		if eq := strings.Index(attr, "*="); eq >= 0 {
			sel.attrName = attr[:eq]
			sel.attrContains = strings.Trim(attr[eq+2:], `"'`)
		} else {
			// attribute-presence syntax, e.g. "[data-category-chip]": match
			// any element carrying the attribute, regardless of its value.
			sel.attrName = attr
			sel.attrPresenceOnly = true
		}
	}

	if i := strings.Index(s, "#"); i >= 0 {
		sel.id = s[i+1:]
		s = s[:i]
	}
	if i := strings.Index(s, "."); i >= 0 {
		sel.class = s[i+1:]
		s = s[:i]
	}
	sel.tag = s

	return sel
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != n.Data {
		return false
	}
	if s.class != "" && !hasClass(n, s.class) {
		return false
	}
	if s.id != "" && attrValue(n, "id") != s.id {
		return false
	}
	if s.attrName != "" {
		if s.attrPresenceOnly {
			if !hasAttr(n, s.attrName) {
				return false
			}
		} else if !strings.Contains(attrValue(n, s.attrName), s.attrContains) {
			return false
		}
	}
	return true
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// queryAll walks root and returns every node matching the selector chain.
// A multi-step chain requires the last step to match a descendant of a node
// matching every preceding step, in order (a direct child for "parent >
// child", which is the only combinator this subset supports).
func queryAll(root *html.Node, chain []simpleSelector) []*html.Node {
	if len(chain) == 0 {
		return nil
	}
	candidates := collect(root, chain[0])
	for _, step := range chain[1:] {
		var next []*html.Node
		for _, c := range candidates {
			for child := c.FirstChild; child != nil; child = child.NextSibling {
				if step.matches(child) {
					next = append(next, child)
				}
			}
		}
		candidates = next
	}
	return candidates
}

func collect(n *html.Node, sel simpleSelector) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if sel.matches(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// textContent concatenates all text node descendants of n, skipping the
// bodies of <script>/<style> elements since those aren't visible text.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// VisibleText parses a full HTML document and returns its visible text —
// tags, attributes, comments, and script/style bodies stripped out — for
// keyword scans that must not false-positive on markup (spec §4.5 step 3(b):
// scan "the visible text", not the raw source).
func VisibleText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}
	return textContent(doc), nil
}
