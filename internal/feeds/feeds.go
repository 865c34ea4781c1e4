// Package feeds projects the published documents into syndication formats,
// the sitemap, and the public posts listing. Every function is pure: the
// same documents always produce the same bytes.
package feeds

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/himu-me/notepress/internal/content"
)

// Site carries the site-wide fields every feed needs.
type Site struct {
	Title       string
	Description string
	Author      string
	Language    string
	// Origin is the canonical scheme and host, without trailing slash. When
	// empty, links are emitted base-path relative and no sitemap is built.
	Origin   string
	BasePath string
}

// URL turns a site-relative path into the public link for p.
func (s Site) URL(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return s.Origin + s.BasePath + p
}

// Feed is one syndicated collection: the site feed or a tag feed.
type Feed struct {
	Title       string
	Description string
	// Path is the site-relative page the feed describes, e.g. "/blog/".
	Path string
	// RSSPath and AtomPath are the site-relative feed locations.
	RSSPath  string
	AtomPath string
	JSONPath string
	Docs     []*content.Document
}

// SiteFeed describes the general feed over docs.
func SiteFeed(site Site, docs []*content.Document) Feed {
	return Feed{
		Title:       site.Title,
		Description: site.Description,
		Path:        "/blog/",
		RSSPath:     "/feed.xml",
		AtomPath:    "/feed.atom",
		JSONPath:    "/feed.json",
		Docs:        docs,
	}
}

// TagFeed describes the feed for one tag.
func TagFeed(site Site, tag content.TagGroup) Feed {
	dir := "/tags/" + tag.Slug + "/"
	return Feed{
		Title:       fmt.Sprintf("%s: #%s", site.Title, tag.Name),
		Description: fmt.Sprintf("Posts tagged #%s", tag.Name),
		Path:        dir,
		RSSPath:     dir + "feed.xml",
		AtomPath:    dir + "feed.atom",
		Docs:        tag.Documents,
	}
}

// updated is the modification time of a document for feed purposes.
func updated(d *content.Document) time.Time {
	if d.LastModified.After(d.Date) {
		return d.LastModified.UTC()
	}
	return d.Date.UTC()
}

// latest returns the newest update across docs, or the Unix epoch for an
// empty feed so output never depends on the wall clock.
func latest(docs []*content.Document) time.Time {
	t := time.Unix(0, 0).UTC()
	for _, d := range docs {
		if u := updated(d); u.After(t) {
			t = u
		}
	}
	return t
}

type postEntry struct {
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Date           string   `json:"date"`
	Excerpt        string   `json:"excerpt"`
	Tags           []string `json:"tags"`
	WordCount      int      `json:"wordCount"`
	ReadingTimeMin int      `json:"readingTimeMin"`
}

// PostsJSON renders content/posts.json, the public listing of document
// metadata in collection order.
func PostsJSON(docs []*content.Document) ([]byte, error) {
	entries := make([]postEntry, 0, len(docs))
	for _, d := range docs {
		tags := d.Tags
		if tags == nil {
			tags = []string{}
		}
		entries = append(entries, postEntry{
			Slug:           d.Slug,
			Title:          d.Title,
			Date:           d.DateString(),
			Excerpt:        d.Excerpt,
			Tags:           tags,
			WordCount:      d.WordCount,
			ReadingTimeMin: d.ReadingTimeMin,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal posts: %w", err)
	}
	return append(data, '\n'), nil
}
