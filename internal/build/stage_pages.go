package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/himu-me/notepress/internal/assets"
	"github.com/himu-me/notepress/internal/content"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/fsutil"
	"github.com/himu-me/notepress/internal/htmlpatch"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/page"
)

// stageDocuments applies the reuse decision to every document. Pages that
// cannot be reused are rendered and staged for writing; reused pages are
// not touched at all.
func stageDocuments(ctx context.Context, bs *BuildState) error {
	log := bs.logStage(StageDocuments)
	current := make(map[string]string, len(bs.coll.Documents))

	for _, d := range bs.coll.Documents {
		if err := ctx.Err(); err != nil {
			return &StageError{Kind: StageErrorCanceled, Stage: StageDocuments, Err: err}
		}
		current[d.Slug] = d.Hash

		if _, err := fsutil.WriteIfChanged(bs.outputPath("/content/posts/"+d.Slug+".md"), []byte(d.Body)); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to write note body").
				WithContext("slug", d.Slug).
				Fatal().
				Build()
		}

		dec := bs.decider.Decide(d.Slug, d.Hash)
		bs.Report.Reasons[string(dec.Reason)]++
		if dec.Reuse {
			bs.Report.Reused++
			log.Debug("Reusing page", logfields.Slug(d.Slug))
			continue
		}

		out, err := bs.renderDocument(d)
		if err != nil {
			return err
		}
		bs.stage(pendingPage{
			URL:       d.URLPath(),
			Data:      out,
			NoteDir:   noteDir(d),
			OG:        bs.documentOG(d),
			Overwrite: true,
		})
		bs.Report.Rendered++
		log.Debug("Rendering page", logfields.Slug(d.Slug), logfields.Reason(string(dec.Reason)))
	}

	for _, slug := range bs.decider.Removed(current) {
		if err := removeDocumentOutput(bs, slug); err != nil {
			return err
		}
		bs.Report.Removed = append(bs.Report.Removed, slug)
		log.Info("Removed page of deleted note", logfields.Slug(slug))
	}

	bs.next.Documents = current
	bs.recorder.AddDocuments(bs.Report.Rendered, bs.Report.Reused)
	log.Info("Documents processed",
		logfields.Rendered(bs.Report.Rendered),
		logfields.Reused(bs.Report.Reused))
	return nil
}

func (bs *BuildState) renderDocument(d *content.Document) ([]byte, error) {
	res, err := bs.renderer.Render([]byte(d.Body))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "failed to render note").
			WithContext("slug", d.Slug).
			WithContext("path", d.RelPath).
			Fatal().
			Build()
	}
	out, err := bs.composer.Post(d, page.Body{HTML: res.HTML, TOC: res.TOCHTML})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "failed to compose page").
			WithContext("slug", d.Slug).
			Fatal().
			Build()
	}
	return out, nil
}

func (bs *BuildState) documentOG(d *content.Document) *assets.OGMeta {
	if !bs.cfg.OG.IsEnabled() {
		return nil
	}
	desc := d.Description
	if desc == "" {
		desc = d.Excerpt
	}
	meta := &assets.OGMeta{
		Title:       d.Title,
		Description: desc,
		Type:        "article",
		URL:         bs.absoluteURL(d.URLPath()),
	}
	if d.Image != "" {
		meta.Image = bs.coverImageURL(d.Image)
	} else if rec, ok := bs.ogImages[d.Slug]; ok {
		meta.Image = bs.absoluteURL(rec.Path)
	}
	return meta
}

// coverImageURL resolves a frontmatter image: absolute URLs are kept,
// site paths get the origin and base path.
func (bs *BuildState) coverImageURL(ref string) string {
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return bs.absoluteURL(ref)
}

func (bs *BuildState) listingOG(title, urlPath string) *assets.OGMeta {
	if !bs.cfg.OG.IsEnabled() {
		return nil
	}
	return &assets.OGMeta{
		Title:       title,
		Description: bs.cfg.Site.Description,
		Type:        "website",
		URL:         bs.absoluteURL(urlPath),
	}
}

func removeDocumentOutput(bs *BuildState, slug string) error {
	targets := []string{
		bs.outputPath("/blog/" + slug),
		bs.outputPath("/content/posts/" + slug + ".md"),
	}
	for _, t := range targets {
		if err := os.RemoveAll(t); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove stale output").
				WithContext("slug", slug).
				Fatal().
				Build()
		}
		fsutil.RemoveEmptyParents(filepath.Dir(t), bs.outputDir)
	}
	return nil
}

// stageListings composes every aggregate page. They are regenerated on
// each build; writes only land when the bytes differ.
func stageListings(_ context.Context, bs *BuildState) error {
	docs := bs.coll.Documents
	title := bs.cfg.Site.Title

	type listing struct {
		url   string
		file  string
		title string
		note  string
		build func() ([]byte, error)
	}
	listings := []listing{
		{url: "/", title: title, build: func() ([]byte, error) { return bs.composer.Home(docs) }},
		{url: "/blog/", title: "blog", build: func() ([]byte, error) { return bs.composer.BlogIndex(docs) }},
		{url: "/tags/", title: "tags", build: func() ([]byte, error) { return bs.composer.TagsIndex(bs.tags) }},
		{url: "/404.html", file: bs.outputPath("/404.html"), title: "404", build: bs.composer.NotFound},
	}
	for _, g := range bs.tags {
		listings = append(listings, listing{
			url:   "/tags/" + g.Slug + "/",
			title: "#" + g.Name,
			build: func() ([]byte, error) { return bs.composer.TagPage(g) },
		})
	}

	about := bs.coll.About
	aboutListing := listing{url: "/about/", title: "about"}
	if about != nil {
		aboutListing.title = about.Title
		aboutListing.note = noteDir(about)
	}
	aboutListing.build = func() ([]byte, error) {
		if about == nil {
			return bs.composer.About(nil, page.Body{})
		}
		res, err := bs.renderer.Render([]byte(about.Body))
		if err != nil {
			return nil, err
		}
		return bs.composer.About(about, page.Body{HTML: res.HTML, TOC: res.TOCHTML})
	}
	listings = append(listings, aboutListing)

	for _, l := range listings {
		out, err := l.build()
		if err != nil {
			return errors.WrapError(err, errors.CategoryRender, "failed to compose listing").
				WithContext("url", l.url).
				Fatal().
				Build()
		}
		bs.stage(pendingPage{
			URL:     l.url,
			File:    l.file,
			Data:    out,
			NoteDir: l.note,
			OG:      bs.listingOG(l.title, l.url),
		})
	}

	if err := pruneTagPages(bs); err != nil {
		return newWarnStageError(StageListings, err)
	}
	bs.logStage(StageListings).Debug("Listings composed", logfields.Count(len(listings)))
	return nil
}

// pruneTagPages removes tag directories for tags no document carries anymore.
func pruneTagPages(bs *BuildState) error {
	dir := bs.outputPath("/tags")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read tags directory: %w", err)
	}
	live := make(map[string]bool, len(bs.tags))
	for _, g := range bs.tags {
		live[g.Slug] = true
	}
	for _, e := range entries {
		if !e.IsDir() || live[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove stale tag page: %w", err)
		}
		bs.log.Debug("Removed stale tag page", "tag", e.Name())
	}
	return nil
}

// stagePostProcess applies the tree rewrites (responsive pictures and Open
// Graph meta) to every staged page, then minifies it when enabled. Pages
// are rewritten in memory before their first write so that unchanged
// listings keep their bytes and timestamps.
func stagePostProcess(_ context.Context, bs *BuildState) error {
	ix := assets.NewSourceIndex(bs.images, bs.cfg.Paths.Attachments)
	var minifier *htmlpatch.Minifier
	if bs.cfg.Build.MinifyHTML {
		minifier = htmlpatch.NewMinifier()
	}
	patched := 0
	for i := range bs.pages {
		p := &bs.pages[i]
		var rewriters []htmlpatch.Rewriter
		if len(bs.images) > 0 {
			rewriters = append(rewriters, assets.PictureRewriter(ix, p.NoteDir, bs.cfg.Site.BasePath))
		}
		if p.OG != nil {
			rewriters = append(rewriters, assets.OGMetaRewriter(*p.OG))
		}

		if len(rewriters) > 0 {
			out, changed, err := htmlpatch.Apply(p.Data, rewriters...)
			if err != nil {
				return errors.WrapError(err, errors.CategoryRender, "failed to post-process page").
					WithContext("url", p.URL).
					Fatal().
					Build()
			}
			if changed {
				p.Data = out
				patched++
			}
		}

		if minifier != nil {
			out, err := minifier.Page(p.Data)
			if err != nil {
				return errors.WrapError(err, errors.CategoryRender, "failed to minify page").
					WithContext("url", p.URL).
					Fatal().
					Build()
			}
			p.Data = out
		}
	}
	bs.logStage(StagePostProcess).Debug("Pages post-processed",
		logfields.Count(patched),
		slog.Bool("minified", minifier != nil))
	return nil
}

// stageWritePages writes every staged page. Rendered documents are always
// overwritten; listings only when their bytes changed.
func stageWritePages(ctx context.Context, bs *BuildState) error {
	written := 0
	for _, p := range bs.pages {
		if err := ctx.Err(); err != nil {
			return &StageError{Kind: StageErrorCanceled, Stage: StageWritePages, Err: err}
		}
		changed := true
		var err error
		if p.Overwrite {
			err = fsutil.WriteFile(p.File, p.Data)
		} else {
			changed, err = fsutil.WriteIfChanged(p.File, p.Data)
		}
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to write page").
				WithContext("url", p.URL).
				Fatal().
				Build()
		}
		if changed {
			written++
		}
	}
	bs.Report.PagesWritten = written
	bs.logStage(StageWritePages).Info("Pages written", logfields.Count(written))
	return nil
}
