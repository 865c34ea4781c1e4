// Package content discovers notes on disk and turns them into Documents.
package content

import (
	"log/slog"
	"time"
)

// DateLayout is the calendar date format used in listings and feeds.
const DateLayout = "2006-01-02"

// Document is one published note.
type Document struct {
	// SourcePath is the absolute path of the note.
	SourcePath string
	// RelPath is the slash separated path below the notes root.
	RelPath string

	Slug        string
	Title       string
	Date        time.Time
	Tags        []string
	Draft       bool
	About       bool
	Description string
	// Image is an optional cover image reference from frontmatter.
	Image string

	// Body is the markdown following the frontmatter block.
	Body string
	// Hash fingerprints the raw frontmatter and body of this file, plus the
	// modification date when it differs from Date.
	Hash string

	Excerpt        string
	WordCount      int
	ReadingTimeMin int
	LastModified   time.Time

	unpublished bool
	tagSlugs    map[string]string
}

// DateString formats the document date as YYYY-MM-DD.
func (d *Document) DateString() string { return d.Date.Format(DateLayout) }

// URLPath is the site-relative URL of the document page, without base path.
func (d *Document) URLPath() string {
	if d.About {
		return "/about/"
	}
	return "/blog/" + d.Slug + "/"
}

// ModifiedDate is the later of Date and LastModified as YYYY-MM-DD.
func (d *Document) ModifiedDate() string {
	if d.LastModified.After(d.Date) {
		return d.LastModified.UTC().Format(DateLayout)
	}
	return d.DateString()
}

// TagSlug returns the directory name of tag as resolved for the collection
// the document was loaded into.
func (d *Document) TagSlug(tag string) string {
	if s, ok := d.tagSlugs[tag]; ok {
		return s
	}
	return TagSlug(tag)
}

// Collection is the loader output: published documents newest first and
// the optional about page.
type Collection struct {
	Documents []*Document
	About     *Document

	tagSlugs      map[string]string
	tagCollisions map[string]string
}

// Tags returns every tag used by the collection, sorted, with the documents
// carrying it in collection order.
func (c *Collection) Tags() []TagGroup {
	index := make(map[string]int)
	var groups []TagGroup
	for _, d := range c.Documents {
		for _, t := range d.Tags {
			i, ok := index[t]
			if !ok {
				i = len(groups)
				index[t] = i
				groups = append(groups, TagGroup{Name: t, Slug: c.tagSlug(t)})
			}
			groups[i].Documents = append(groups[i].Documents, d)
		}
	}
	sortTagGroups(groups)
	return groups
}

// TagCollisions lists the tags whose slugs were disambiguated, keyed by
// tag name. Pages of other tags link to them, so the set is part of the
// site version.
func (c *Collection) TagCollisions() map[string]string { return c.tagCollisions }

func (c *Collection) tagSlug(tag string) string {
	if s, ok := c.tagSlugs[tag]; ok {
		return s
	}
	return TagSlug(tag)
}

// resolveTagSlugs assigns tag directories for the whole collection and
// shares the mapping with every document.
func (c *Collection) resolveTagSlugs(log *slog.Logger) {
	c.tagSlugs, c.tagCollisions = assignTagSlugs(c.Documents, log)
	for _, d := range c.Documents {
		d.tagSlugs = c.tagSlugs
	}
}

// BySlug returns the document with slug, or nil.
func (c *Collection) BySlug(slug string) *Document {
	for _, d := range c.Documents {
		if d.Slug == slug {
			return d
		}
	}
	return nil
}

// TagGroup is one tag with its documents.
type TagGroup struct {
	Name      string
	Slug      string
	Documents []*Document
}
