package commands

import (
	"context"
	"time"

	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildFlags

	Schedule string `help:"Also rebuild periodically, e.g. 1h (overrides watch.schedule)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, w.BuildFlags)
	if err != nil {
		return err
	}
	if w.Schedule != "" {
		d, err := parseSchedule(w.Schedule)
		if err != nil {
			return err
		}
		cfg.Watch.Schedule = d
	}

	rt := newSession(cfg, g.Logger)
	defer rt.close()

	// The configuration is reloaded before every build so edits to the
	// config file take effect without a restart. --clean only applies to
	// the first build.
	clean := w.Clean
	buildOnce := func(ctx context.Context) error {
		current, err := loadConfig(root.Config, w.BuildFlags)
		if err != nil {
			g.Logger.Warn("Configuration invalid; keeping previous settings", logfields.Error(err))
			current = cfg
		}
		report, err := rt.run(ctx, current, clean)
		clean = false
		if err != nil {
			return err
		}
		g.Logger.Info("Site updated",
			logfields.Outcome(string(report.Outcome)),
			logfields.Rendered(report.Rendered),
			logfields.Reused(report.Reused))
		return nil
	}

	watcher := watch.New(buildOnce, watch.Options{
		Dirs: []string{
			cfg.NotesDir(),
			cfg.Resolve(cfg.Paths.Public),
			cfg.Resolve(cfg.Paths.CSS),
			cfg.Resolve(cfg.Paths.JS),
		},
		Files:    []string{root.Config},
		Debounce: cfg.Watch.Debounce,
		Schedule: cfg.Watch.Schedule,
		Logger:   g.Logger,
	})
	return watcher.Run(g.Context)
}

func parseSchedule(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.ValidationError("--schedule must be a positive duration").
			WithContext("value", s).
			Build()
	}
	return d, nil
}
