package config

import "time"

// DefaultImageWidths are the responsive breakpoints emitted per image.
var DefaultImageWidths = []int{480, 768, 1200}

// DefaultCriticalSelectors is the allow-list used for the inlined stylesheet.
var DefaultCriticalSelectors = []string{
	"html", "body", ":root", ".site-header", ".main-nav", ".brand", ".site-title", ".content",
}

const (
	DefaultWordsPerMinute = 200
	DefaultExcerptLength  = 160
	DefaultImageQuality   = 82
	DefaultDebounce       = 300 * time.Millisecond
	DefaultEventsSubject  = "notepress.build.completed"
	DefaultHighlightStyle = "github"
)

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Site.Title == "" {
		cfg.Site.Title = "notepress"
	}
	if cfg.Site.Language == "" {
		cfg.Site.Language = "en"
	}

	p := &cfg.Paths
	setDefault(&p.Notes, "notes")
	setDefault(&p.Attachments, "attachments")
	setDefault(&p.Public, "public")
	setDefault(&p.CSS, "css")
	setDefault(&p.JS, "js")
	setDefault(&p.Output, "dist")
	setDefault(&p.Manifest, ".notepress/manifest.json")

	if cfg.Build.WordsPerMinute <= 0 {
		cfg.Build.WordsPerMinute = DefaultWordsPerMinute
	}
	if cfg.Build.ExcerptLength <= 0 {
		cfg.Build.ExcerptLength = DefaultExcerptLength
	}

	if len(cfg.Images.Widths) == 0 {
		cfg.Images.Widths = append([]int(nil), DefaultImageWidths...)
	}
	if cfg.Images.Quality <= 0 {
		cfg.Images.Quality = DefaultImageQuality
	}
	if cfg.Images.Concurrency <= 0 {
		cfg.Images.Concurrency = 4
	}

	setDefault(&cfg.Highlight.Style, DefaultHighlightStyle)
	if len(cfg.CriticalCSS.Selectors) == 0 {
		cfg.CriticalCSS.Selectors = append([]string(nil), DefaultCriticalSelectors...)
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	setDefault(&cfg.Events.Subject, DefaultEventsSubject)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
