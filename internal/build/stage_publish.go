package build

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/himu-me/notepress/internal/feeds"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/fsutil"
	"github.com/himu-me/notepress/internal/linkverify"
	"github.com/himu-me/notepress/internal/logfields"
)

type feedFile struct {
	path   string
	encode func() ([]byte, error)
}

// stageFeeds writes the syndication feeds, sitemap and posts listing.
func stageFeeds(_ context.Context, bs *BuildState) error {
	site := feeds.Site{
		Title:       bs.cfg.Site.Title,
		Description: bs.cfg.Site.Description,
		Author:      bs.cfg.Site.Author,
		Language:    bs.cfg.Site.Language,
		Origin:      bs.cfg.Site.Origin,
		BasePath:    bs.cfg.Site.BasePath,
	}
	docs := bs.coll.Documents

	siteFeed := feeds.SiteFeed(site, docs)
	files := []feedFile{
		{siteFeed.RSSPath, func() ([]byte, error) { return feeds.RSS(site, siteFeed) }},
		{siteFeed.AtomPath, func() ([]byte, error) { return feeds.Atom(site, siteFeed) }},
		{siteFeed.JSONPath, func() ([]byte, error) { return feeds.JSONFeed(site, siteFeed) }},
		{"/content/posts.json", func() ([]byte, error) { return feeds.PostsJSON(docs) }},
	}
	for _, g := range bs.tags {
		tf := feeds.TagFeed(site, g)
		files = append(files,
			feedFile{tf.RSSPath, func() ([]byte, error) { return feeds.RSS(site, tf) }},
			feedFile{tf.AtomPath, func() ([]byte, error) { return feeds.Atom(site, tf) }},
		)
	}

	sitemap, err := feeds.Sitemap(site, docs, bs.coll.About)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRender, "failed to encode sitemap").Fatal().Build()
	}
	sitemapFile := bs.outputPath("/sitemap.xml")
	if sitemap != nil {
		files = append(files, feedFile{"/sitemap.xml", func() ([]byte, error) { return sitemap, nil }})
	} else if err := os.Remove(sitemapFile); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove sitemap").Fatal().Build()
	}

	written := 0
	for _, f := range files {
		data, err := f.encode()
		if err != nil {
			return errors.WrapError(err, errors.CategoryRender, "failed to encode feed").
				WithContext("path", f.path).
				Fatal().
				Build()
		}
		changed, err := fsutil.WriteIfChanged(bs.outputPath(f.path), data)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to write feed").
				WithContext("path", f.path).
				Fatal().
				Build()
		}
		if changed {
			written++
		}
	}
	bs.logStage(StageFeeds).Debug("Feeds written", logfields.Count(len(files)), "changed", written)
	return nil
}

// stageLinkCheck scans the output tree for dangling internal references.
// Broken links are reported here; strict mode turns them into a failure
// only after the manifest has been committed.
func stageLinkCheck(ctx context.Context, bs *BuildState) error {
	log := bs.logStage(StageLinkCheck)
	broken, err := linkverify.Check(ctx, bs.outputDir, bs.cfg.Site.BasePath)
	if err != nil {
		if ctx.Err() != nil {
			return &StageError{Kind: StageErrorCanceled, Stage: StageLinkCheck, Err: err}
		}
		return newWarnStageError(StageLinkCheck, err)
	}

	bs.Report.BrokenLinks = broken
	bs.recorder.SetBrokenLinks(len(broken))
	for _, b := range broken {
		log.Warn("Broken internal link", logfields.Path(b.Page), logfields.URL(b.URL))
	}
	if len(broken) > 0 {
		log.Warn("Link check found broken links",
			logfields.Count(len(broken)),
			"strict", bs.cfg.Build.StrictLinks)
	}
	return nil
}

// stageCommitManifest persists the new manifest. It runs last so the
// manifest never references output that has not been written.
func stageCommitManifest(_ context.Context, bs *BuildState) error {
	m := bs.next
	m.BuildID = bs.Report.BuildID
	m.GeneratedAt = bs.now.UTC()
	m.SiteVersion = bs.siteVersion
	if bs.images != nil {
		m.Images = bs.images
	}
	if bs.ogImages != nil {
		m.OGImages = bs.ogImages
	}

	if err := m.Save(bs.manifestPath); err != nil {
		return errors.WrapError(err, errors.CategoryManifest, "failed to write manifest").
			WithContext("path", bs.manifestPath).
			Fatal().
			Build()
	}
	bs.logStage(StageCommitManifest).Debug("Manifest committed",
		logfields.Path(bs.manifestPath),
		logfields.Count(len(m.Documents)))
	return nil
}
