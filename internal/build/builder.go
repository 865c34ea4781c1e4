package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/himu-me/notepress/internal/config"
	"github.com/himu-me/notepress/internal/content"
	"github.com/himu-me/notepress/internal/events"
	"github.com/himu-me/notepress/internal/git"
	"github.com/himu-me/notepress/internal/linkverify"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/manifest"
	"github.com/himu-me/notepress/internal/metrics"
)

// Builder runs builds for one configuration. A Builder is not safe for
// concurrent Run calls; callers serialize builds (see internal/watch).
type Builder struct {
	cfg       *config.Config
	log       *slog.Logger
	recorder  metrics.Recorder
	publisher events.Publisher
	history   content.LastModifier
	now       func() time.Time
	clean     bool
}

// Option customizes a Builder.
type Option func(*Builder)

// WithLogger sets the logger used by every stage.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.log = l } }

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(b *Builder) { b.recorder = r } }

// WithPublisher injects the build event publisher.
func WithPublisher(p events.Publisher) Option { return func(b *Builder) { b.publisher = p } }

// WithHistory overrides the version-control lookup for last-modified dates.
func WithHistory(h content.LastModifier) Option { return func(b *Builder) { b.history = h } }

// WithClock sets the build clock used for future-dated filtering and date
// fallbacks.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

// WithClean ignores any previous manifest and rebuilds from an empty
// output directory.
func WithClean(clean bool) Option { return func(b *Builder) { b.clean = clean } }

// New returns a Builder for cfg.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:       cfg,
		log:       slog.Default(),
		recorder:  metrics.NoopRecorder{},
		publisher: events.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// pipeline returns the canonical stage order.
func pipeline() []StageDef {
	return NewPipeline().
		Add(StageLoadManifest, stageLoadManifest).
		Add(StageLoadContent, stageLoadContent).
		Add(StageAssets, stageAssets).
		Add(StageImages, stageImages).
		Add(StageOGImages, stageOGImages).
		Add(StageSiteVersion, stageSiteVersion).
		Add(StageDocuments, stageDocuments).
		Add(StageListings, stageListings).
		Add(StagePostProcess, stagePostProcess).
		Add(StageWritePages, stageWritePages).
		Add(StageFeeds, stageFeeds).
		Add(StageLinkCheck, stageLinkCheck).
		Add(StageCommitManifest, stageCommitManifest).
		Build()
}

// Run executes one build. The returned report is non-nil even on failure.
// With strict link checking enabled, broken links yield an error wrapping
// linkverify.ErrBrokenLinks after every file, the manifest included, has
// been written.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	buildID := uuid.NewString()
	log := b.log.With(logfields.BuildID(buildID))

	bs := &BuildState{
		cfg:          b.cfg,
		log:          log,
		recorder:     b.recorder,
		history:      b.history,
		now:          b.now(),
		clean:        b.clean,
		outputDir:    b.cfg.OutputDir(),
		notesDir:     b.cfg.NotesDir(),
		publicDir:    b.cfg.Resolve(b.cfg.Paths.Public),
		manifestPath: b.cfg.ManifestPath(),
		Report:       newReport(buildID, start),
		next:         manifest.New(),
	}
	if bs.history == nil {
		bs.history = openHistory(bs.notesDir, log)
	}

	log.Info("Build started", logfields.Path(bs.outputDir))
	err := runStages(ctx, bs, pipeline())

	report := bs.Report
	report.End = time.Now()
	report.deriveOutcome()

	b.recorder.ObserveBuildDuration(report.Duration())
	b.recorder.IncBuildOutcome(string(report.Outcome))
	ev := events.BuildCompleted{
		BuildID:     buildID,
		Outcome:     string(report.Outcome),
		Incremental: report.Incremental,
		Rendered:    report.Rendered,
		Reused:      report.Reused,
		BrokenLinks: len(report.BrokenLinks),
		DurationMS:  report.Duration().Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	events.Publish(ctx, b.publisher, ev)

	if err != nil {
		log.Error("Build failed", logfields.Outcome(string(report.Outcome)), logfields.Error(err))
		return report, err
	}

	log.Info("Build complete",
		logfields.Outcome(string(report.Outcome)),
		logfields.Rendered(report.Rendered),
		logfields.Reused(report.Reused),
		slog.Bool("incremental", report.Incremental),
		logfields.Duration(report.Duration()))

	if b.cfg.Build.StrictLinks && len(report.BrokenLinks) > 0 {
		return report, linkverify.BrokenLinksError(report.BrokenLinks)
	}
	return report, nil
}

// openHistory returns the git history enclosing dir, or nil when dir is
// not tracked; dates then fall back to file modification times.
func openHistory(dir string, log *slog.Logger) content.LastModifier {
	h, err := git.OpenHistory(dir)
	if err != nil {
		log.Debug("No git history for notes; using file modification times", logfields.Error(err))
		return nil
	}
	return h
}
