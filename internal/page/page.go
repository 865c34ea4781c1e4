// Package page composes complete HTML documents from rendered fragments.
//
// Templates are embedded at build time; their bytes feed the site version so
// any layout change invalidates cached pages. Composition is pure: no file
// or network access happens here.
package page

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Sections used for the active navigation entry.
const (
	SectionHome  = "home"
	SectionBlog  = "blog"
	SectionAbout = "about"
	SectionTags  = "tags"
)

// Site is the site-wide metadata shown on every page.
type Site struct {
	Title       string
	Description string
	Author      string
	Language    string
	Origin      string
	BasePath    string
}

// Assets references the fingerprinted bundle. Paths are site relative.
type Assets struct {
	Stylesheet  string
	Scripts     []string
	CriticalCSS string
}

// FeedLink is an extra autodiscovery link for a page.
type FeedLink struct {
	Type  string
	Title string
	Path  string
}

// Page is the per-page input to Compose.
type Page struct {
	// Title goes into <title>; Heading into the site header. Heading
	// defaults to the capitalized Title.
	Title   string
	Heading string
	Section string
	// Path is the site-relative URL of the page, e.g. "/blog/".
	Path        string
	Description string
	Body        template.HTML
	// StructuredData is serialized as JSON-LD when non-nil.
	StructuredData any
	Feeds          []FeedLink
	NoIndex        bool
}

type navItem struct {
	Label  string
	Path   string
	Active bool
}

type layoutData struct {
	Site        Site
	Page        Page
	Heading     string
	Description string
	Canonical   string
	Stylesheet  string
	Scripts     []string
	CriticalCSS template.CSS
	JSONLD      any
	Body        template.HTML
	Nav         []navItem
}

// Composer renders pages for one site and asset bundle.
type Composer struct {
	site   Site
	assets Assets
	tmpl   *template.Template
}

// NewComposer parses the embedded templates.
func NewComposer(site Site, assets Assets) (*Composer, error) {
	funcs := template.FuncMap{
		"url": func(p string) string { return site.BasePath + p },
	}
	tmpl, err := template.New("page").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Composer{site: site, assets: assets, tmpl: tmpl}, nil
}

// Compose renders a complete page around p.Body.
func (c *Composer) Compose(p Page) ([]byte, error) {
	heading := p.Heading
	if heading == "" {
		heading = capitalize(p.Title)
	}
	desc := p.Description
	if desc == "" {
		desc = c.site.Description
	}
	if desc == "" {
		desc = c.site.Title + " - " + p.Title
	}

	data := layoutData{
		Site:        c.site,
		Page:        p,
		Heading:     heading,
		Description: desc,
		Canonical:   c.CanonicalURL(p.Path),
		Stylesheet:  c.assets.Stylesheet,
		Scripts:     c.assets.Scripts,
		CriticalCSS: template.CSS(c.assets.CriticalCSS), // #nosec G203 -- extracted from the site's own stylesheet
		JSONLD:      p.StructuredData,
		Body:        p.Body,
		Nav:         navigation(p.Section),
	}
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render layout: %w", err)
	}
	return buf.Bytes(), nil
}

// CanonicalURL returns the absolute URL of a site path, or "" when no
// origin is configured.
func (c *Composer) CanonicalURL(p string) string {
	if c.site.Origin == "" || p == "" {
		return ""
	}
	return c.site.Origin + c.site.BasePath + p
}

func (c *Composer) fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	// #nosec G203 -- output of html/template, already escaped
	return template.HTML(buf.String()), nil
}

func navigation(active string) []navItem {
	items := []navItem{
		{Label: "/home/", Path: "/"},
		{Label: "/blog/", Path: "/blog/"},
		{Label: "/about/", Path: "/about/"},
		{Label: "/rss/", Path: "/feed.xml"},
	}
	for i := range items {
		items[i].Active = strings.Trim(items[i].Label, "/") == active
	}
	return items
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// TemplateHashes returns the sha256 of every embedded template by file name.
func TemplateHashes() (map[string]string, error) {
	out := make(map[string]string)
	err := fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		out[path.Base(p)] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hash templates: %w", err)
	}
	return out, nil
}
