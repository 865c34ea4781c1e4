package assets

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestBuildBundle(t *testing.T) {
	root := t.TempDir()
	cssDir := filepath.Join(root, "css")
	jsDir := filepath.Join(root, "js")
	out := filepath.Join(root, "dist")

	writeFile(t, filepath.Join(cssDir, "b.css"), ".post { color: red; }")
	writeFile(t, filepath.Join(cssDir, "a.css"), "body { margin: 0; }\n")
	writeFile(t, filepath.Join(jsDir, "site.js"), "console.log('hi');")
	writeFile(t, filepath.Join(jsDir, "notes.txt"), "ignored")

	opts := BundleOptions{
		CSSDir:            cssDir,
		JSDir:             jsDir,
		OutputDir:         out,
		HighlightCSS:      ".chroma { background: #fff; }",
		CriticalSelectors: []string{"body"},
	}
	b, err := BuildBundle(opts)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^/css/style\.[0-9a-f]{8}\.css$`), b.Stylesheet)
	css, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(b.Stylesheet)))
	require.NoError(t, err)
	assert.Equal(t, ShortHash(css), strings.TrimSuffix(strings.TrimPrefix(b.Stylesheet, "/css/style."), ".css"))
	assert.Less(t, strings.Index(string(css), "body"), strings.Index(string(css), ".post"), "files concatenate in name order")
	assert.Contains(t, string(css), ".chroma")
	assert.Equal(t, "body { margin: 0; }", b.CriticalCSS)

	require.Len(t, b.Scripts, 1)
	assert.Equal(t, "site", b.Scripts[0].Name)
	assert.FileExists(t, filepath.Join(out, filepath.FromSlash(b.Scripts[0].Path)))

	first := *b
	again, err := BuildBundle(opts)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint(), again.Fingerprint())

	writeFile(t, filepath.Join(cssDir, "a.css"), "body { margin: 1px; }\n")
	writeFile(t, filepath.Join(jsDir, "site.js"), "console.log('changed');")
	changed, err := BuildBundle(opts)
	require.NoError(t, err)
	assert.NotEqual(t, first.Stylesheet, changed.Stylesheet)
	assert.NotEqual(t, first.Fingerprint(), changed.Fingerprint())
	assert.NoFileExists(t, filepath.Join(out, filepath.FromSlash(first.Stylesheet)))
	assert.NoFileExists(t, filepath.Join(out, filepath.FromSlash(first.Scripts[0].Path)))

	entries, err := os.ReadDir(filepath.Join(out, "css"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildBundle_MissingDirectories(t *testing.T) {
	root := t.TempDir()
	b, err := BuildBundle(BundleOptions{
		CSSDir:       filepath.Join(root, "nope"),
		JSDir:        filepath.Join(root, "nope"),
		OutputDir:    filepath.Join(root, "dist"),
		HighlightCSS: ".chroma{}",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, b.Stylesheet)
	assert.Empty(t, b.Scripts)
}

func TestExtractCritical(t *testing.T) {
	css := `/* theme */
html { font-size: 16px; }
.site-header   { display:
  flex; }
.post-body p { margin: 1em; }
:root { --accent: #d665ff; }
`
	tests := []struct {
		name      string
		selectors []string
		want      string
	}{
		{"default set", []string{"html", ":root", ".site-header"}, "html { font-size: 16px; }.site-header { display: flex; }:root { --accent: #d665ff; }"},
		{"single", []string{".post-body"}, ".post-body p { margin: 1em; }"},
		{"none match", []string{".missing"}, ""},
		{"no selectors", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCritical(css, tt.selectors))
		})
	}
}

func TestCopyTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "public")
	dst := filepath.Join(root, "dist")
	writeFile(t, filepath.Join(src, "favicon.ico"), "ico")
	writeFile(t, filepath.Join(src, "assets", "logo.svg"), "<svg/>")

	n, err := CopyTree(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dst, "assets", "logo.svg"))

	n, err = CopyTree(src, dst)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = CopyTree(filepath.Join(root, "missing"), dst)
	require.NoError(t, err)
	assert.Zero(t, n)
}
