package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/himu-me/notepress/internal/build"
	"github.com/himu-me/notepress/internal/config"
	"github.com/himu-me/notepress/internal/events"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/metrics"
)

// Global is shared with every subcommand.
type Global struct {
	Logger  *slog.Logger
	Context context.Context
}

// CLI definition and global flags.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"notepress.yaml" type:"path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build   BuildCmd   `cmd:"" help:"Build the site once"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the site whenever notes, assets or the config change"`
	Init    InitCmd    `cmd:"" help:"Write a starter configuration file"`
	Version VersionCmd `cmd:"" help:"Print version information"`

	logger *slog.Logger
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(c.logger)
	return nil
}

// Logger returns the configured logger, or the default before parsing.
func (c *CLI) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// parseLogLevel honours NOTEPRESS_LOG_LEVEL; --verbose wins over it.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("NOTEPRESS_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuildFlags are the overrides shared by build and watch.
type BuildFlags struct {
	Drafts      bool   `help:"Include draft notes"`
	Future      bool   `help:"Include notes dated in the future"`
	StrictLinks bool   `name:"strict-links" help:"Fail the build when internal links are broken"`
	Base        string `help:"Override site.base_path, e.g. /blog"`
	Origin      string `help:"Override site.origin, e.g. https://example.com"`
	Output      string `short:"o" help:"Override the output directory"`
	Clean       bool   `help:"Ignore the previous manifest and rebuild everything"`
}

// apply writes the flag overrides onto cfg and revalidates it.
func (f BuildFlags) apply(cfg *config.Config) error {
	if f.Drafts {
		cfg.Build.IncludeDrafts = true
	}
	if f.Future {
		cfg.Build.IncludeFuture = true
	}
	if f.StrictLinks {
		cfg.Build.StrictLinks = true
	}
	if f.Base != "" {
		cfg.Site.BasePath = config.NormalizeBasePath(f.Base)
	}
	if f.Origin != "" {
		cfg.Site.Origin = config.NormalizeOrigin(f.Origin)
	}
	if f.Output != "" {
		cfg.Paths.Output = f.Output
	}
	return cfg.Validate()
}

// loadConfig reads the configuration file and applies overrides.
func loadConfig(path string, flags BuildFlags) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").
			WithContext("path", path).
			Build()
	}
	if err := flags.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session holds the collaborators that outlive a single build.
type session struct {
	log       *slog.Logger
	recorder  *metrics.PrometheusRecorder
	textfile  string
	publisher events.Publisher
}

func newSession(cfg *config.Config, log *slog.Logger) *session {
	rt := &session{log: log, publisher: events.Noop{}}
	if cfg.Metrics.Textfile != "" {
		rt.recorder = metrics.NewPrometheusRecorder(nil)
		rt.textfile = cfg.Resolve(cfg.Metrics.Textfile)
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			log.Warn("Build events disabled", logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		} else {
			rt.publisher = pub
		}
	}
	return rt
}

func (rt *session) builder(cfg *config.Config, clean bool) *build.Builder {
	opts := []build.Option{
		build.WithLogger(rt.log),
		build.WithPublisher(rt.publisher),
		build.WithClean(clean),
	}
	if rt.recorder != nil {
		opts = append(opts, build.WithRecorder(rt.recorder))
	}
	return build.New(cfg, opts...)
}

// run executes one build and exports metrics afterwards.
func (rt *session) run(ctx context.Context, cfg *config.Config, clean bool) (*build.Report, error) {
	report, err := rt.builder(cfg, clean).Run(ctx)
	if rt.recorder != nil {
		if werr := rt.recorder.WriteTextfile(rt.textfile); werr != nil {
			rt.log.Warn("Failed to write metrics textfile", logfields.Path(rt.textfile), logfields.Error(werr))
		}
	}
	return report, err
}

func (rt *session) close() { rt.publisher.Close() }
