// Package assets emits the static side of a build: the fingerprinted
// stylesheet and scripts, copied public files and attachments, responsive
// image variants, Open Graph cards, and the HTML rewrites that reference
// them.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/himu-me/notepress/internal/fsutil"
)

const hashLen = 8

var (
	staleStylesheet = regexp.MustCompile(`^style\.[0-9a-f]{8}\.css$`)
	staleScript     = regexp.MustCompile(`^.+\.[0-9a-f]{8}\.js$`)
)

// Script is one fingerprinted script entry.
type Script struct {
	Name string
	Path string
}

// Bundle describes the assets emitted for this build. Paths are site
// relative and do not carry the base path.
type Bundle struct {
	Stylesheet  string
	Scripts     []Script
	CriticalCSS string
}

// Fingerprint summarizes every path and the critical CSS so the bundle can
// be folded into the site version.
func (b *Bundle) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "css=%s\n", b.Stylesheet)
	for _, s := range b.Scripts {
		fmt.Fprintf(h, "js=%s:%s\n", s.Name, s.Path)
	}
	h.Write([]byte(b.CriticalCSS))
	return hex.EncodeToString(h.Sum(nil))
}

// BundleOptions configures BuildBundle.
type BundleOptions struct {
	CSSDir            string
	JSDir             string
	OutputDir         string
	HighlightCSS      string
	CriticalSelectors []string
}

// BuildBundle concatenates the stylesheets with the highlight CSS, writes
// every asset under a content-hashed name, and removes fingerprinted files
// left from earlier builds.
func BuildBundle(opts BundleOptions) (*Bundle, error) {
	css, err := concatCSS(opts.CSSDir, opts.HighlightCSS)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{CriticalCSS: ExtractCritical(css, opts.CriticalSelectors)}

	cssDir := filepath.Join(opts.OutputDir, "css")
	name := fmt.Sprintf("style.%s.css", ShortHash([]byte(css)))
	if _, err := fsutil.WriteIfChanged(filepath.Join(cssDir, name), []byte(css)); err != nil {
		return nil, fmt.Errorf("write stylesheet: %w", err)
	}
	bundle.Stylesheet = "/css/" + name
	if err := removeStale(cssDir, staleStylesheet, map[string]bool{name: true}); err != nil {
		return nil, err
	}

	scripts, err := sourceFiles(opts.JSDir, ".js")
	if err != nil {
		return nil, err
	}
	jsDir := filepath.Join(opts.OutputDir, "js")
	keep := make(map[string]bool, len(scripts))
	for _, src := range scripts {
		// #nosec G304 -- script from the configured js directory
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		stem := strings.TrimSuffix(filepath.Base(src), ".js")
		out := fmt.Sprintf("%s.%s.js", stem, ShortHash(data))
		if _, err := fsutil.WriteIfChanged(filepath.Join(jsDir, out), data); err != nil {
			return nil, fmt.Errorf("write script: %w", err)
		}
		keep[out] = true
		bundle.Scripts = append(bundle.Scripts, Script{Name: stem, Path: "/js/" + out})
	}
	if err := removeStale(jsDir, staleScript, keep); err != nil {
		return nil, err
	}

	return bundle, nil
}

// ShortHash returns the first eight hex characters of the sha256 of data.
func ShortHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashLen]
}

func concatCSS(dir, highlight string) (string, error) {
	files, err := sourceFiles(dir, ".css")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range files {
		// #nosec G304 -- stylesheet from the configured css directory
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("read stylesheet: %w", err)
		}
		b.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	if highlight != "" {
		b.WriteString("/* syntax highlighting */\n")
		b.WriteString(highlight)
	}
	return b.String(), nil
}

// sourceFiles lists regular files with ext directly inside dir, sorted by
// name. A missing directory yields no files.
func sourceFiles(dir, ext string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func removeStale(dir string, pattern *regexp.Regexp, keep map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] || !pattern.MatchString(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale asset: %w", err)
		}
	}
	return nil
}
