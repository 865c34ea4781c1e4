package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/himu-me/notepress/internal/fsutil"
	"github.com/himu-me/notepress/internal/htmlpatch"
	"github.com/himu-me/notepress/internal/manifest"
)

var ogCardPattern = regexp.MustCompile(`^.+\.svg$`)

// OGCard is the input for one Open Graph card.
type OGCard struct {
	Slug  string
	Title string
}

// OGStats counts what GenerateOGImages did.
type OGStats struct {
	Generated int
	Reused    int
}

// OGHash identifies the inputs of a card.
func OGHash(title, siteName string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + siteName))
	return hex.EncodeToString(sum[:])
}

// RenderOGCard returns the SVG card for title.
func RenderOGCard(title, siteName string) []byte {
	const tmpl = `<svg width="1200" height="630" viewBox="0 0 1200 630" xmlns="http://www.w3.org/2000/svg">` +
		`<defs><linearGradient id="g" x1="0" y1="0" x2="1" y2="1"><stop stop-color="#2a1240"/><stop offset="1" stop-color="#170d28"/></linearGradient></defs>` +
		`<rect fill="url(#g)" width="1200" height="630"/>` +
		`<text x="60" y="300" font-family="'IBM Plex Mono', monospace" font-size="64" fill="#d665ff">%s</text>` +
		`<text x="60" y="380" font-family="'IBM Plex Mono', monospace" font-size="28" fill="#8891a8">%s</text>` +
		"</svg>\n"
	return fmt.Appendf(nil, tmpl, html.EscapeString(title), html.EscapeString(siteName))
}

// GenerateOGImages writes og/<slug>.svg for every card whose recorded hash
// differs or whose file is missing, and removes cards for slugs no longer
// present.
func GenerateOGImages(outputDir, siteName string, cards []OGCard, prev map[string]manifest.OGRecord) (map[string]manifest.OGRecord, OGStats, error) {
	records := make(map[string]manifest.OGRecord, len(cards))
	keep := make(map[string]bool, len(cards))
	var stats OGStats

	for _, card := range cards {
		hash := OGHash(card.Title, siteName)
		urlPath := "/og/" + card.Slug + ".svg"
		file := filepath.Join(outputDir, "og", card.Slug+".svg")
		keep[card.Slug+".svg"] = true

		if rec, ok := prev[card.Slug]; ok && rec.Hash == hash && rec.Path == urlPath && fsutil.Exists(file) {
			records[card.Slug] = rec
			stats.Reused++
			continue
		}
		if _, err := fsutil.WriteIfChanged(file, RenderOGCard(card.Title, siteName)); err != nil {
			return nil, stats, fmt.Errorf("write og card %s: %w", card.Slug, err)
		}
		records[card.Slug] = manifest.OGRecord{Hash: hash, Path: urlPath}
		stats.Generated++
	}

	if err := removeStale(filepath.Join(outputDir, "og"), ogCardPattern, keep); err != nil {
		return nil, stats, err
	}
	return records, stats, nil
}

// OGMeta is the social preview metadata injected into a page head.
type OGMeta struct {
	Title       string
	Description string
	Type        string
	URL         string
	Image       string
}

// OGMetaRewriter sets og:* and twitter:card meta tags in the page head,
// updating existing tags in place. Empty values are not emitted.
func OGMetaRewriter(meta OGMeta) htmlpatch.Rewriter {
	return htmlpatch.RewriterFunc(func(doc *nethtml.Node) (bool, error) {
		head := htmlpatch.Find(doc, atom.Head)
		if head == nil {
			return false, nil
		}
		card := "summary"
		if meta.Image != "" {
			card = "summary_large_image"
		}
		tags := []struct{ attr, key, val string }{
			{"property", "og:title", meta.Title},
			{"property", "og:description", meta.Description},
			{"property", "og:type", meta.Type},
			{"property", "og:url", meta.URL},
			{"property", "og:image", meta.Image},
			{"name", "twitter:card", card},
		}

		changed := false
		for _, t := range tags {
			if t.val == "" {
				continue
			}
			if setMeta(head, t.attr, t.key, t.val) {
				changed = true
			}
		}
		return changed, nil
	})
}

func setMeta(head *nethtml.Node, attr, key, val string) bool {
	for _, m := range htmlpatch.Elements(head, atom.Meta) {
		if k, ok := htmlpatch.Attr(m, attr); ok && strings.EqualFold(k, key) {
			if cur, _ := htmlpatch.Attr(m, "content"); cur == val {
				return false
			}
			htmlpatch.SetAttr(m, "content", val)
			return true
		}
	}
	head.AppendChild(htmlpatch.Element(atom.Meta,
		nethtml.Attribute{Key: attr, Val: key},
		nethtml.Attribute{Key: "content", Val: val},
	))
	return true
}

// RemoveOGCards deletes the og directory; used when cards are disabled.
func RemoveOGCards(outputDir string) error {
	if err := os.RemoveAll(filepath.Join(outputDir, "og")); err != nil {
		return fmt.Errorf("remove og cards: %w", err)
	}
	return nil
}
