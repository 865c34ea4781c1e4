package build

import (
	"context"
	"path/filepath"

	"github.com/himu-me/notepress/internal/assets"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/incremental"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/manifest"
	"github.com/himu-me/notepress/internal/markdown"
	"github.com/himu-me/notepress/internal/page"
	"github.com/himu-me/notepress/internal/version"
)

// stageAssets emits the fingerprinted bundle, copies public files and
// attachments, and prepares the renderer and composer that reference them.
func stageAssets(_ context.Context, bs *BuildState) error {
	log := bs.logStage(StageAssets)
	cfg := bs.cfg

	bs.renderer = markdown.New(markdown.Options{
		BasePath:       cfg.Site.BasePath,
		HighlightStyle: cfg.Highlight.Style,
		Aliases:        cfg.Highlight.Aliases,
	})
	highlightCSS, err := bs.renderer.HighlightCSS()
	if err != nil {
		log.Warn("Highlight stylesheet unavailable", logfields.Error(err))
		highlightCSS = ""
	}

	bundle, err := assets.BuildBundle(assets.BundleOptions{
		CSSDir:            cfg.Resolve(cfg.Paths.CSS),
		JSDir:             cfg.Resolve(cfg.Paths.JS),
		OutputDir:         bs.outputDir,
		HighlightCSS:      highlightCSS,
		CriticalSelectors: cfg.CriticalCSS.Selectors,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryAsset, "failed to build asset bundle").Fatal().Build()
	}
	bs.bundle = bundle

	copied, err := assets.CopyTree(bs.publicDir, bs.outputDir)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to copy public files").Fatal().Build()
	}
	attached, err := assets.CopyTree(cfg.AttachmentsDir(), filepath.Join(bs.outputDir, "attachments"))
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to copy attachments").Fatal().Build()
	}
	bs.Report.AssetsCopied = copied + attached

	scripts := make([]string, 0, len(bundle.Scripts))
	for _, s := range bundle.Scripts {
		scripts = append(scripts, s.Path)
	}
	bs.composer, err = page.NewComposer(bs.site(), page.Assets{
		Stylesheet:  bundle.Stylesheet,
		Scripts:     scripts,
		CriticalCSS: bundle.CriticalCSS,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to load page templates").Fatal().Build()
	}

	log.Info("Assets ready",
		logfields.Path(bundle.Stylesheet),
		"scripts", len(scripts),
		"copied", bs.Report.AssetsCopied)
	return nil
}

// stageImages generates responsive variants. With images disabled no
// source is processed, which also removes variants left by earlier builds.
func stageImages(ctx context.Context, bs *BuildState) error {
	log := bs.logStage(StageImages)
	cfg := bs.cfg

	var sources []assets.ImageSource
	if cfg.Images.IsEnabled() {
		var err error
		sources, err = assets.DiscoverImages(bs.publicDir, bs.notesDir, cfg.Paths.Attachments)
		if err != nil {
			return errors.WrapError(err, errors.CategoryAsset, "failed to discover images").Fatal().Build()
		}
	} else {
		log.Info("Responsive images disabled")
	}

	var prev map[string]manifest.ImageRecord
	if bs.prev != nil {
		prev = bs.prev.Images
	}
	proc := assets.NewImageProcessor(assets.ImageOptions{
		OutputDir:   bs.outputDir,
		Widths:      cfg.Images.Widths,
		Quality:     cfg.Images.Quality,
		Concurrency: cfg.Images.Concurrency,
		Logger:      log,
	})
	records, stats, err := proc.Process(ctx, sources, prev)
	if err != nil {
		return errors.WrapError(err, errors.CategoryAsset, "failed to generate image variants").Fatal().Build()
	}

	bs.images = records
	bs.Report.ImagesEncoded = stats.Encoded
	bs.Report.ImagesReused = stats.Reused
	bs.recorder.AddImages(stats.Encoded, stats.Reused)
	if len(sources) > 0 {
		log.Info("Image variants ready",
			logfields.Count(len(records)),
			"encoded", stats.Encoded,
			logfields.Reused(stats.Reused),
			"skipped", stats.Skipped)
	}
	return nil
}

// stageOGImages writes one social card per document, reusing cards whose
// recorded hash still matches.
func stageOGImages(_ context.Context, bs *BuildState) error {
	log := bs.logStage(StageOGImages)
	if !bs.cfg.OG.IsEnabled() {
		bs.ogImages = nil
		if err := assets.RemoveOGCards(bs.outputDir); err != nil {
			return newWarnStageError(StageOGImages, err)
		}
		return nil
	}

	cards := make([]assets.OGCard, 0, len(bs.coll.Documents))
	for _, d := range bs.coll.Documents {
		cards = append(cards, assets.OGCard{Slug: d.Slug, Title: d.Title})
	}
	var prev map[string]manifest.OGRecord
	if bs.prev != nil {
		prev = bs.prev.OGImages
	}
	records, stats, err := assets.GenerateOGImages(bs.outputDir, bs.cfg.Site.Title, cards, prev)
	if err != nil {
		return errors.WrapError(err, errors.CategoryAsset, "failed to generate Open Graph images").Fatal().Build()
	}
	bs.ogImages = records
	bs.Report.OGGenerated = stats.Generated
	log.Debug("Open Graph cards ready", "generated", stats.Generated, logfields.Reused(stats.Reused))
	return nil
}

// stageSiteVersion fingerprints every input shared by all pages and sets up
// the per-document reuse decision.
func stageSiteVersion(_ context.Context, bs *BuildState) error {
	cfg := bs.cfg
	templates, err := page.TemplateHashes()
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to hash templates").Fatal().Build()
	}

	sv, err := incremental.ComputeSiteVersion(incremental.SiteInputs{
		GeneratorVersion: version.Version,
		Templates:        templates,
		Renderer:         bs.renderer.Fingerprint(),
		Output: incremental.OutputSettings{
			Title:          cfg.Site.Title,
			Description:    cfg.Site.Description,
			Author:         cfg.Site.Author,
			Language:       cfg.Site.Language,
			Origin:         cfg.Site.Origin,
			BasePath:       cfg.Site.BasePath,
			HighlightStyle: cfg.Highlight.Style,
			CriticalCSS:    cfg.CriticalCSS.Selectors,
			ImageWidths:    cfg.Images.Widths,
			ImagesEnabled:  cfg.Images.IsEnabled(),
			OGEnabled:      cfg.OG.IsEnabled(),
			WordsPerMinute: cfg.Build.WordsPerMinute,
			ExcerptLength:  cfg.Build.ExcerptLength,
			IncludeDrafts:  cfg.Build.IncludeDrafts,
			IncludeFuture:  cfg.Build.IncludeFuture,
			MinifyHTML:     cfg.Build.MinifyHTML,
		},
		AssetBundle:   bs.bundle.Fingerprint(),
		Images:        (&manifest.Manifest{Images: bs.images}).ImagesDigest(),
		TagCollisions: bs.coll.TagCollisions(),
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to compute site version").Fatal().Build()
	}

	bs.siteVersion = sv
	bs.decider = incremental.NewDecider(bs.prev, sv, bs.documentExists)
	bs.Report.SiteVersion = sv
	bs.Report.SiteChanged = bs.decider.SiteChanged()

	log := bs.logStage(StageSiteVersion)
	if bs.prev != nil && bs.Report.SiteChanged {
		log.Info("Site version changed; every page will be rendered",
			"previous", bs.prev.SiteVersion,
			"current", sv)
	} else {
		log.Debug("Site version computed", "current", sv)
	}
	return nil
}
