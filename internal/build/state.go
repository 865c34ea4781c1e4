package build

import (
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/himu-me/notepress/internal/assets"
	"github.com/himu-me/notepress/internal/config"
	"github.com/himu-me/notepress/internal/content"
	"github.com/himu-me/notepress/internal/fsutil"
	"github.com/himu-me/notepress/internal/incremental"
	"github.com/himu-me/notepress/internal/manifest"
	"github.com/himu-me/notepress/internal/markdown"
	"github.com/himu-me/notepress/internal/metrics"
	"github.com/himu-me/notepress/internal/page"
)

// pendingPage is a composed page waiting for post-processing and writing.
type pendingPage struct {
	// URL is the site-relative path, e.g. "/blog/hello/".
	URL  string
	File string
	Data []byte
	// NoteDir is the slash directory of the source note below the notes
	// root, used to resolve relative image references.
	NoteDir string
	OG      *assets.OGMeta
	// Overwrite forces the write even when the bytes on disk are equal.
	Overwrite bool
}

// BuildState carries mutable state across stages.
type BuildState struct {
	cfg      *config.Config
	log      *slog.Logger
	recorder metrics.Recorder
	history  content.LastModifier
	now      time.Time
	clean    bool

	outputDir    string
	notesDir     string
	publicDir    string
	manifestPath string

	Report *Report

	prev *manifest.Manifest
	next *manifest.Manifest

	coll     *content.Collection
	tags     []content.TagGroup
	renderer *markdown.Renderer
	bundle   *assets.Bundle
	composer *page.Composer
	images   map[string]manifest.ImageRecord
	ogImages map[string]manifest.OGRecord

	siteVersion string
	decider     *incremental.Decider

	pages []pendingPage
}

func (bs *BuildState) outputPath(urlPath string) string {
	return filepath.Join(bs.outputDir, filepath.FromSlash(urlPath))
}

// pageFile is the index.html serving a directory-style URL.
func (bs *BuildState) pageFile(urlPath string) string {
	return filepath.Join(bs.outputPath(urlPath), "index.html")
}

func (bs *BuildState) documentExists(slug string) bool {
	return fsutil.Exists(bs.pageFile("/blog/" + slug + "/"))
}

func (bs *BuildState) stage(p pendingPage) {
	if p.File == "" {
		p.File = bs.pageFile(p.URL)
	}
	bs.pages = append(bs.pages, p)
}

func (bs *BuildState) site() page.Site {
	s := bs.cfg.Site
	return page.Site{
		Title:       s.Title,
		Description: s.Description,
		Author:      s.Author,
		Language:    s.Language,
		Origin:      s.Origin,
		BasePath:    s.BasePath,
	}
}

// absoluteURL returns the public URL of a site path: absolute when an
// origin is configured, base-path relative otherwise.
func (bs *BuildState) absoluteURL(p string) string {
	return bs.cfg.Site.Origin + bs.cfg.Site.BasePath + p
}

func noteDir(d *content.Document) string {
	dir := path.Dir(d.RelPath)
	if dir == "." {
		return ""
	}
	return dir
}
