package content

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/inful/mdfp"

	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/frontmatter"
	"github.com/himu-me/notepress/internal/logfields"
)

// aboutFileName marks the about page when no frontmatter flag is set.
const aboutFileName = "about.md"

// LastModifier resolves a file's last-modification time, typically from
// version control.
type LastModifier interface {
	LastModified(path string) (time.Time, bool)
}

// Options control which notes are published.
type Options struct {
	IncludeDrafts bool
	IncludeFuture bool
	// Now is the build clock. Future-dated notes are compared against its
	// calendar date and malformed dates fall back to it.
	Now time.Time

	// Attachments is the reserved subtree, relative to the notes root,
	// excluded from discovery.
	Attachments    string
	WordsPerMinute int
	ExcerptLength  int

	History LastModifier
	Logger  *slog.Logger
}

// Loader reads notes from a root directory.
type Loader struct {
	root string
	opts Options
	log  *slog.Logger
}

// NewLoader returns a Loader over root.
func NewLoader(root string, opts Options) *Loader {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Attachments == "" {
		opts.Attachments = "attachments"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loader{root: root, opts: opts, log: log}
}

// Discover lists note files below the root, relative and slash separated,
// sorted lexically. The attachments subtree is excluded.
func (l *Loader) Discover() ([]string, error) {
	if _, err := os.Stat(l.root); os.IsNotExist(err) {
		return nil, nil
	}
	out, err := discover(os.DirFS(l.root), l.opts.Attachments)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to enumerate notes").
			WithContext("root", l.root).
			Fatal().
			Build()
	}
	return out, nil
}

func discover(fsys fs.FS, attachments string) ([]string, error) {
	matches, err := doublestar.Glob(fsys, "**/*.md", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob notes: %w", err)
	}

	attachments = strings.Trim(filepath.ToSlash(attachments), "/")
	out := matches[:0]
	for _, m := range matches {
		if attachments != "" && (m == attachments || strings.HasPrefix(m, attachments+"/")) {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Load reads, filters and orders every note below the root.
func (l *Loader) Load(ctx context.Context) (*Collection, error) {
	files, err := l.Discover()
	if err != nil {
		return nil, err
	}

	coll := &Collection{}
	seen := make(map[string]int)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := l.loadFile(rel)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}

		if doc.About {
			if coll.About != nil {
				l.log.Warn("Ignoring additional about page", logfields.Path(rel), slog.String("kept", coll.About.RelPath))
				continue
			}
			coll.About = doc
			continue
		}

		// Slugs are not unique by construction; the note discovered last wins.
		if i, dup := seen[doc.Slug]; dup {
			l.log.Warn("Duplicate slug, later note replaces earlier",
				logfields.Slug(doc.Slug),
				slog.String("replaced", coll.Documents[i].RelPath),
				logfields.Path(rel))
			coll.Documents[i] = doc
			continue
		}
		seen[doc.Slug] = len(coll.Documents)
		coll.Documents = append(coll.Documents, doc)
	}

	sort.SliceStable(coll.Documents, func(i, j int) bool {
		return coll.Documents[i].Date.After(coll.Documents[j].Date)
	})
	coll.resolveTagSlugs(l.log)
	return coll, nil
}

// loadFile returns nil when the note is excluded from publication.
func (l *Loader) loadFile(rel string) (*Document, error) {
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryContent, "failed to read note").
			WithContext("path", rel).
			Fatal().
			Build()
	}

	var mtime time.Time
	if info, statErr := os.Stat(full); statErr == nil {
		mtime = info.ModTime()
	}

	doc, err := Parse(rel, raw, l.opts)
	if err != nil {
		return nil, err
	}
	doc.SourcePath = full

	if doc.LastModified.IsZero() && l.opts.History != nil {
		if when, ok := l.opts.History.LastModified(full); ok {
			doc.LastModified = when
		}
	}
	if doc.LastModified.IsZero() {
		doc.LastModified = mtime
	}
	// Pages carry the modification date, so it takes part in the reuse hash.
	if modified := doc.ModifiedDate(); modified != doc.DateString() {
		doc.Hash = mdfp.CalculateFingerprint(doc.Hash + "\nmodified: " + modified)
	}

	if !l.published(doc) {
		return nil, nil
	}
	return doc, nil
}

func (l *Loader) published(doc *Document) bool {
	if doc.unpublished {
		l.log.Debug("Skipping unpublished note", logfields.Slug(doc.Slug), logfields.Reason("publish_false"))
		return false
	}
	if doc.Draft && !l.opts.IncludeDrafts {
		l.log.Debug("Skipping draft", logfields.Slug(doc.Slug), logfields.Reason("draft"))
		return false
	}
	if !doc.About && !l.opts.IncludeFuture && doc.DateString() > l.opts.Now.Format(DateLayout) {
		l.log.Debug("Skipping future-dated note", logfields.Slug(doc.Slug), logfields.Reason("future"))
		return false
	}
	return true
}

// Parse builds a Document from a note's bytes. rel is the slash separated
// path below the notes root and supplies the title fallback. Publication
// filtering is left to the caller.
func Parse(rel string, raw []byte, opts Options) (*Document, error) {
	fm, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryContent, "invalid frontmatter").
			WithContext("path", rel).
			Fatal().
			Build()
	}
	fields, err := frontmatter.ParseYAML(fm)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryContent, "invalid frontmatter").
			WithContext("path", rel).
			Fatal().
			Build()
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	doc := &Document{
		RelPath:     rel,
		Title:       fields.String("title"),
		Description: fields.String("description"),
		Image:       fields.String("image"),
		Body:        string(body),
		Hash:        mdfp.CalculateFingerprintFromParts(string(fm), string(body)),
	}
	if doc.Title == "" {
		doc.Title = stem
	}

	if date, ok := fields.Time("date"); ok {
		doc.Date = date
	} else {
		doc.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if lastmod, ok := fields.Time("lastmod"); ok {
		doc.LastModified = lastmod
	}

	doc.Slug = Slugify(fields.String("slug"))
	if doc.Slug == "" {
		doc.Slug = Slugify(doc.Title)
	}
	if doc.Slug == "" {
		doc.Slug = Slugify(stem)
	}
	if doc.Slug == "" {
		doc.Slug = fallbackSlug(rel)
	}

	doc.Tags = normalizeTags(fields.StringList("tags"))
	doc.Draft, _ = fields.Bool("draft")
	if publish, ok := fields.Bool("publish"); ok && !publish {
		doc.unpublished = true
	}
	if v, ok := fields.Bool("publishAbout"); ok && v {
		doc.About = true
	}
	if v, ok := fields.Bool("about"); ok && v {
		doc.About = true
	}
	if strings.EqualFold(path.Base(rel), aboutFileName) {
		doc.About = true
	}

	words, first := textStats(body)
	doc.WordCount = words
	doc.ReadingTimeMin = readingTime(words, opts.WordsPerMinute)
	excerpt := fields.String("excerpt")
	if excerpt == "" {
		excerpt = first
	}
	doc.Excerpt = truncateRunes(excerpt, opts.ExcerptLength)
	if doc.Description == "" {
		doc.Description = doc.Excerpt
	}

	return doc, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
