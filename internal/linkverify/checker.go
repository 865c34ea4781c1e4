// Package linkverify checks that internal references in the generated site
// resolve to files in the output tree.
package linkverify

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/himu-me/notepress/internal/foundation/errors"
)

// ErrBrokenLinks is the cause of the error returned when strict link
// checking finds dangling references.
var ErrBrokenLinks = stderrors.New("broken internal links")

// Broken is one dangling reference. Page is the slash path of the HTML file
// relative to the output root.
type Broken struct {
	Page string
	URL  string
}

// Check walks every HTML page under root and reports internal references
// whose target does not exist. basePath is stripped from root-absolute
// references before resolving them. Results are sorted by page then URL.
func Check(ctx context.Context, root, basePath string) ([]Broken, error) {
	var broken []Broken
	seen := make(map[Broken]bool)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		page := filepath.ToSlash(rel)

		links, err := extractFile(p)
		if err != nil {
			return err
		}
		for _, l := range links {
			if !IsInternal(l.URL) {
				continue
			}
			if resolves(root, page, l.URL, basePath) {
				continue
			}
			b := Broken{Page: page, URL: l.URL}
			if !seen[b] {
				seen[b] = true
				broken = append(broken, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryLinkCheck, "failed to scan output for links").
			WithContext("root", root).
			Build()
	}

	sort.Slice(broken, func(i, j int) bool {
		if broken[i].Page != broken[j].Page {
			return broken[i].Page < broken[j].Page
		}
		return broken[i].URL < broken[j].URL
	})
	return broken, nil
}

// BrokenLinksError wraps ErrBrokenLinks with the offending references.
func BrokenLinksError(broken []Broken) error {
	sample := make([]string, 0, 3)
	for i, b := range broken {
		if i == cap(sample) {
			break
		}
		sample = append(sample, b.Page+" -> "+b.URL)
	}
	return errors.LinkCheckError(fmt.Sprintf("%d broken internal link(s)", len(broken))).
		WithCause(ErrBrokenLinks).
		WithContext("count", len(broken)).
		WithContext("sample", strings.Join(sample, "; ")).
		Build()
}

func extractFile(p string) ([]Link, error) {
	f, err := os.Open(filepath.Clean(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer func() {
		_ = f.Close() // Ignore close errors on read-only operation
	}()
	return ExtractLinks(f)
}

// resolves reports whether ref, found on page, names an existing file.
// Directory references resolve to their index.html.
func resolves(root, page, ref, basePath string) bool {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		// Pure query or fragment on the same page.
		return true
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}

	var target string
	if strings.HasPrefix(ref, "/") {
		if basePath != "" {
			if ref != basePath && !strings.HasPrefix(ref, basePath+"/") {
				return false
			}
			ref = "/" + strings.TrimPrefix(strings.TrimPrefix(ref, basePath), "/")
		}
		target = path.Clean(ref)
	} else {
		target = path.Join("/", path.Dir(page), ref)
	}

	full := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(target, "/")))
	info, err := os.Stat(full)
	if err != nil {
		return false
	}
	if info.IsDir() {
		_, err := os.Stat(filepath.Join(full, "index.html"))
		return err == nil
	}
	return true
}
