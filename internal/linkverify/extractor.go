package linkverify

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/himu-me/notepress/internal/foundation/errors"
)

// Link represents an extracted reference from HTML content.
type Link struct {
	URL       string // The URL or path as written
	Tag       string // HTML tag (a, img, script, link, source)
	Attribute string // Attribute holding the reference (href, src, srcset)
}

// ExtractLinks extracts every reference the checker cares about from r.
func ExtractLinks(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryLinkCheck, "failed to parse HTML").Build()
	}

	var links []Link
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			extractElementLinks(n, &links)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)
	return links, nil
}

// extractElementLinks extracts links from a single HTML element.
func extractElementLinks(n *html.Node, links *[]Link) {
	add := func(attr string) {
		if v := strings.TrimSpace(getAttr(n, attr)); v != "" {
			*links = append(*links, Link{URL: v, Tag: n.Data, Attribute: attr})
		}
	}
	switch n.Data {
	case "a", "link":
		add("href")
	case "img", "script":
		add("src")
	case "source":
		add("src")
		for _, candidate := range srcsetURLs(getAttr(n, "srcset")) {
			*links = append(*links, Link{URL: candidate, Tag: "source", Attribute: "srcset"})
		}
	}
}

// srcsetURLs returns the URL of every candidate in a srcset value.
func srcsetURLs(srcset string) []string {
	var out []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// IsInternal reports whether ref points into the generated site: a
// relative or root-absolute path, not protocol relative, with no scheme,
// and not a bare fragment.
func IsInternal(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
