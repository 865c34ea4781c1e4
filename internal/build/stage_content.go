package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/himu-me/notepress/internal/content"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/manifest"
)

// stageLoadManifest reads the previous manifest. Without a usable manifest
// the build is a full rebuild into an emptied output directory.
func stageLoadManifest(_ context.Context, bs *BuildState) error {
	log := bs.logStage(StageLoadManifest)

	if bs.clean {
		log.Info("Clean build requested; ignoring previous manifest")
	} else {
		m, err := manifest.Load(bs.manifestPath)
		switch {
		case err == nil:
			bs.prev = m
		case stderrors.Is(err, manifest.ErrNotFound):
			log.Info("No manifest found; running full build", logfields.Path(bs.manifestPath))
		default:
			log.Warn("Manifest unreadable; running full build",
				logfields.Path(bs.manifestPath),
				logfields.Error(err))
		}
	}

	bs.Report.Incremental = bs.prev != nil
	if bs.prev != nil {
		return nil
	}
	return wipeOutput(bs)
}

// wipeOutput empties the output directory, refusing when it would remove a
// source directory.
func wipeOutput(bs *BuildState) error {
	out := filepath.Clean(bs.outputDir)
	sources := []string{
		bs.cfg.Root,
		bs.notesDir,
		bs.publicDir,
		bs.cfg.Resolve(bs.cfg.Paths.CSS),
		bs.cfg.Resolve(bs.cfg.Paths.JS),
	}
	for _, src := range sources {
		if src == "" {
			continue
		}
		if within(filepath.Clean(src), out) {
			return errors.ConfigError("output directory contains a source directory").
				WithContext("output", out).
				WithContext("source", src).
				Build()
		}
	}

	entries, err := os.ReadDir(out)
	if stderrors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read output directory").
			WithContext("output", out).
			Fatal().
			Build()
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(out, e.Name())); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clear output directory").
				WithContext("output", out).
				Fatal().
				Build()
		}
	}
	bs.log.Debug("Cleared output directory", logfields.Path(out), logfields.Count(len(entries)))
	return nil
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func stageLoadContent(ctx context.Context, bs *BuildState) error {
	b := bs.cfg.Build
	loader := content.NewLoader(bs.notesDir, content.Options{
		IncludeDrafts:  b.IncludeDrafts,
		IncludeFuture:  b.IncludeFuture,
		Now:            bs.now,
		Attachments:    bs.cfg.Paths.Attachments,
		WordsPerMinute: b.WordsPerMinute,
		ExcerptLength:  b.ExcerptLength,
		History:        bs.history,
		Logger:         bs.log,
	})
	coll, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}

	bs.coll = coll
	bs.tags = coll.Tags()
	bs.Report.Documents = len(coll.Documents)
	bs.logStage(StageLoadContent).Info("Loaded notes",
		logfields.Count(len(coll.Documents)),
		"tags", len(bs.tags),
		"about", coll.About != nil)
	return nil
}
