package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/himu-me/notepress/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Site.Origin != "" {
		u, err := url.Parse(c.Site.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.ValidationError("site.origin must be an absolute URL").
				WithContext("origin", c.Site.Origin).
				Build()
		}
	}
	if c.Site.BasePath != "" && !strings.HasPrefix(c.Site.BasePath, "/") {
		return errors.ValidationError("site.base_path must start with '/'").
			WithContext("base_path", c.Site.BasePath).
			Build()
	}
	for _, w := range c.Images.Widths {
		if w <= 0 {
			return errors.ValidationError(fmt.Sprintf("images.widths contains non-positive width %d", w)).Build()
		}
	}
	if c.Images.Quality > 100 {
		return errors.ValidationError("images.quality must be between 1 and 100").
			WithContext("quality", c.Images.Quality).
			Build()
	}
	if c.Paths.Output == c.Paths.Notes {
		return errors.ValidationError("paths.output must differ from paths.notes").Build()
	}
	return nil
}

// NormalizeBasePath trims trailing slashes; "/" becomes "".
func NormalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// NormalizeOrigin trims trailing slashes from an origin URL.
func NormalizeOrigin(o string) string {
	return strings.TrimRight(strings.TrimSpace(o), "/")
}
