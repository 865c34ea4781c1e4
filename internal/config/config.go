package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up when -c is not given.
const DefaultFileName = "notepress.yaml"

// Config is the complete notepress configuration.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Paths       PathsConfig       `yaml:"paths"`
	Build       BuildConfig       `yaml:"build"`
	Images      ImagesConfig      `yaml:"images"`
	Highlight   HighlightConfig   `yaml:"highlight"`
	CriticalCSS CriticalCSSConfig `yaml:"critical_css"`
	OG          OGConfig          `yaml:"og"`
	Watch       WatchConfig       `yaml:"watch"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Events      EventsConfig      `yaml:"events"`

	// Root is the directory relative paths are resolved against: the
	// directory holding the config file, or the working directory.
	Root string `yaml:"-"`
}

// SiteConfig describes the published site.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	// Origin is the absolute scheme+host the site is served from. Empty
	// disables canonical URLs and the sitemap.
	Origin   string `yaml:"origin"`
	BasePath string `yaml:"base_path"`
	Language string `yaml:"language"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	Notes string `yaml:"notes"`
	// Attachments is relative to Notes.
	Attachments string `yaml:"attachments"`
	Public      string `yaml:"public"`
	CSS         string `yaml:"css"`
	JS          string `yaml:"js"`
	Output      string `yaml:"output"`
	Manifest    string `yaml:"manifest"`
}

// BuildConfig holds per-build switches.
type BuildConfig struct {
	IncludeDrafts  bool `yaml:"include_drafts"`
	IncludeFuture  bool `yaml:"include_future"`
	StrictLinks    bool `yaml:"strict_links"`
	WordsPerMinute int  `yaml:"words_per_minute"`
	ExcerptLength  int  `yaml:"excerpt_length"`
	// MinifyHTML compacts every emitted page before it is written.
	MinifyHTML bool `yaml:"minify_html"`
}

// ImagesConfig drives responsive image generation.
type ImagesConfig struct {
	Enabled     *bool `yaml:"enabled,omitempty"`
	Widths      []int `yaml:"widths"`
	Quality     int   `yaml:"quality"`
	Concurrency int   `yaml:"concurrency"`
}

// IsEnabled reports whether image variants should be generated.
func (c ImagesConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// HighlightConfig configures code highlighting.
type HighlightConfig struct {
	Style   string            `yaml:"style"`
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// CriticalCSSConfig lists the selectors retained in the inlined stylesheet.
type CriticalCSSConfig struct {
	Selectors []string `yaml:"selectors"`
}

// OGConfig toggles Open Graph card generation.
type OGConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether OG cards and meta tags are emitted.
func (c OGConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// Schedule, when positive, triggers a rebuild periodically so that
	// future-dated posts appear once their date arrives.
	Schedule time.Duration `yaml:"schedule"`
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// EventsConfig enables build notifications over NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Load reads configuration from configPath. A missing file yields the
// default configuration rooted at the working directory.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, fmt.Errorf("resolve working directory: %w", wdErr)
		}
		cfg.Root = wd
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		abs, absErr := filepath.Abs(filepath.Dir(configPath))
		if absErr != nil {
			return nil, fmt.Errorf("resolve config directory: %w", absErr)
		}
		cfg.Root = abs
	}

	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve returns p joined onto Root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// NotesDir returns the absolute notes directory.
func (c *Config) NotesDir() string { return c.Resolve(c.Paths.Notes) }

// AttachmentsDir returns the absolute attachments directory.
func (c *Config) AttachmentsDir() string {
	return filepath.Join(c.NotesDir(), c.Paths.Attachments)
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string { return c.Resolve(c.Paths.Output) }

// ManifestPath returns the absolute manifest location.
func (c *Config) ManifestPath() string { return c.Resolve(c.Paths.Manifest) }

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := &Config{
		Site: SiteConfig{
			Title:       "My Notes",
			Description: "Writing on things I learn",
			Author:      "Your Name",
			Origin:      "https://example.com",
		},
	}
	ApplyDefaults(example)

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	header := "# notepress configuration\n# Values may reference environment variables as ${VAR}.\n\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
