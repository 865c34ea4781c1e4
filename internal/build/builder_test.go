package build

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himu-me/notepress/internal/config"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/incremental"
	"github.com/himu-me/notepress/internal/linkverify"
	"github.com/himu-me/notepress/internal/manifest"
)

var buildDay = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

type noHistory struct{}

func (noHistory) LastModified(string) (time.Time, bool) { return time.Time{}, false }

type testSite struct {
	root string
	cfg  *config.Config
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{Root: root}
	cfg.Site.Title = "himu"
	cfg.Site.Description = "a personal blog"
	cfg.Site.Origin = "https://himu.me"
	config.ApplyDefaults(cfg)

	s := &testSite{root: root, cfg: cfg}
	s.write(t, "css/style.css", "body { margin: 0; }\n.site-header { color: #d665ff; }\n.post { padding: 1rem; }\n")
	s.write(t, "js/site.js", "console.log('hi');\n")
	return s
}

func (s *testSite) write(t *testing.T, rel, data string) {
	t.Helper()
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
}

func (s *testSite) note(t *testing.T, rel, frontmatter, body string) {
	t.Helper()
	s.write(t, "notes/"+rel, "---\n"+frontmatter+"\n---\n"+body)
}

func (s *testSite) out(rel string) string {
	return filepath.Join(s.root, "dist", filepath.FromSlash(rel))
}

func (s *testSite) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(s.out(rel))
	require.NoError(t, err)
	return string(data)
}

func (s *testSite) run(t *testing.T, opts ...Option) (*Report, error) {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return buildDay }),
		WithHistory(noHistory{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(s.cfg, opts...).Run(context.Background())
}

func (s *testSite) build(t *testing.T, opts ...Option) *Report {
	t.Helper()
	report, err := s.run(t, opts...)
	require.NoError(t, err)
	return report
}

func (s *testSite) manifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(s.cfg.ManifestPath())
	require.NoError(t, err)
	return m
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 80, B: 160, A: 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func modTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func TestBuild_IncrementalReuse(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "incremental.md", "title: Incremental Test\ndate: 2025-08-01\ntags: [ci]", "Some text.\n")
	s.note(t, "other.md", "title: Other\ndate: 2025-07-01", "Other text.\n")

	first := s.build(t)
	assert.False(t, first.Incremental)
	assert.Equal(t, 2, first.Rendered)
	assert.Equal(t, 0, first.Reused)
	assert.Equal(t, OutcomeSuccess, first.Outcome)

	page := s.out("blog/incremental-test/index.html")
	before := s.read(t, "blog/incremental-test/index.html")
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(page, past, past))
	home := s.out("index.html")
	require.NoError(t, os.Chtimes(home, past, past))

	second := s.build(t)
	assert.True(t, second.Incremental)
	assert.False(t, second.SiteChanged)
	assert.Equal(t, 0, second.Rendered)
	assert.Equal(t, 2, second.Reused)
	assert.Equal(t, 2, second.Reasons[string(incremental.ReasonReused)])
	assert.True(t, modTime(t, page).Equal(past), "reused page must keep its timestamp")
	assert.True(t, modTime(t, home).Equal(past), "unchanged listing must keep its timestamp")
	assert.Equal(t, before, s.read(t, "blog/incremental-test/index.html"))
	assert.Equal(t, first.SiteVersion, second.SiteVersion)

	s.note(t, "incremental.md", "title: Incremental Test\ndate: 2025-08-01\ntags: [ci]", "Some text.\n\nAnd a new paragraph with more words.\n")
	third := s.build(t)
	assert.Equal(t, 1, third.Rendered)
	assert.Equal(t, 1, third.Reused)
	assert.Equal(t, 1, third.Reasons[string(incremental.ReasonHashChanged)])
	assert.Greater(t, len(s.read(t, "blog/incremental-test/index.html")), len(before))
}

func TestBuild_SiteVersionChangeRendersEverything(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "a.md", "title: A\ndate: 2025-08-01", "a\n")
	s.note(t, "b.md", "title: B\ndate: 2025-08-02", "b\n")
	first := s.build(t)

	s.cfg.Site.Title = "renamed"
	report := s.build(t)
	assert.True(t, report.SiteChanged)
	assert.NotEqual(t, first.SiteVersion, report.SiteVersion)
	assert.Equal(t, 2, report.Rendered)
	assert.Equal(t, 2, report.Reasons[string(incremental.ReasonSiteChanged)])

	// A stylesheet edit changes the bundle fingerprint, hence the site version.
	s.write(t, "css/style.css", "body { margin: 1px; }\n")
	report = s.build(t)
	assert.True(t, report.SiteChanged)
	assert.Equal(t, 2, report.Rendered)
}

func TestBuild_MissingOutputIsRendered(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "a.md", "title: A\ndate: 2025-08-01", "a\n")
	s.build(t)

	require.NoError(t, os.Remove(s.out("blog/a/index.html")))
	report := s.build(t)
	assert.Equal(t, 1, report.Rendered)
	assert.Equal(t, 1, report.Reasons[string(incremental.ReasonOutputMissing)])
	assert.FileExists(t, s.out("blog/a/index.html"))
}

func TestBuild_DraftsAndFutureExcluded(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "live.md", "title: Live\ndate: 2025-08-01\ntags: [ci]", "live\n")
	s.note(t, "draft.md", "title: Secret Draft\ndate: 2025-08-01\ndraft: true\ntags: [ci]", "draft\n")
	s.note(t, "future.md", "title: Tomorrow Post\ndate: 2025-09-02\ntags: [ci]", "future\n")

	s.build(t)
	surfaces := []string{"content/posts.json", "feed.xml", "feed.atom", "feed.json", "tags/ci/feed.xml", "blog/index.html", "index.html", "sitemap.xml"}
	for _, rel := range surfaces {
		body := s.read(t, rel)
		assert.Contains(t, body, "live", rel)
		assert.NotContains(t, body, "secret-draft", rel)
		assert.NotContains(t, body, "tomorrow-post", rel)
	}
	assert.NoDirExists(t, s.out("blog/secret-draft"))
	assert.NoDirExists(t, s.out("blog/tomorrow-post"))

	s.cfg.Build.IncludeDrafts = true
	s.cfg.Build.IncludeFuture = true
	report := s.build(t)
	assert.Equal(t, 3, report.Documents)
	assert.Contains(t, s.read(t, "content/posts.json"), "secret-draft")
	assert.Contains(t, s.read(t, "feed.xml"), "tomorrow-post")
}

func TestBuild_MultiFeatureDocument(t *testing.T) {
	s := newTestSite(t)
	writePNG(t, filepath.Join(s.root, "notes", "attachments", "diagram.png"), 800, 400)
	s.note(t, "multi.md", `title: "Multi Feature Test"
date: "2025-08-02"
tags: ["multi", "ci"]`, "## Setup\n\nIntro[^1] and more[^2].\n\n### Details\n\n```go\nfunc main() {}\n```\n\n## Result\n\n![diagram](diagram.png)\n\n[^1]: First note.\n[^2]: Second note.\n")

	report := s.build(t)
	require.Empty(t, report.BrokenLinks)
	assert.Equal(t, 1, report.ImagesEncoded)

	body := s.read(t, "blog/multi-feature-test/index.html")
	assert.Contains(t, body, `<nav class="toc"`)
	assert.Contains(t, body, `class="chroma"`)
	assert.Contains(t, body, "<picture>")
	assert.Contains(t, body, `/img/diagram-480.`)
	assert.Contains(t, body, `/img/diagram-768.`)
	assert.Contains(t, body, `id="fnref-1"`)
	assert.Contains(t, body, `href="#fnref-2"`)
	assert.Contains(t, body, `property="og:image" content="https://himu.me/og/multi-feature-test.svg"`)
	assert.FileExists(t, s.out("og/multi-feature-test.svg"))
	assert.FileExists(t, s.out("attachments/diagram.png"))
	source := s.read(t, "content/posts/multi-feature-test.md")
	assert.True(t, strings.HasPrefix(source, "## Setup"), "only the body is published")
	assert.NotContains(t, source, "title:")
	assert.FileExists(t, s.out("tags/multi/index.html"))
	assert.FileExists(t, s.out("tags/multi/feed.atom"))

	m := s.manifest(t)
	rec, ok := m.Images["attachments/diagram.png"]
	require.True(t, ok)
	assert.Len(t, rec.Variants, 2)
	assert.Contains(t, m.OGImages, "multi-feature-test")

	// Unchanged rebuild reuses the page and the image variants.
	again := s.build(t)
	assert.Equal(t, 1, again.Reused)
	assert.Equal(t, 0, again.ImagesEncoded)
	assert.Equal(t, 1, again.ImagesReused)
	assert.Equal(t, body, s.read(t, "blog/multi-feature-test/index.html"))
}

func TestBuild_BrokenLinks(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "links.md", "title: Links\ndate: 2025-08-01", "See [missing](/blog/missing/) and [ok](/blog/).\n")

	report := s.build(t)
	require.Len(t, report.BrokenLinks, 1)
	assert.Equal(t, linkverify.Broken{Page: "blog/links/index.html", URL: "/blog/missing/"}, report.BrokenLinks[0])
	assert.Equal(t, OutcomeBrokenLinks, report.Outcome)

	s.cfg.Build.StrictLinks = true
	report, err := s.run(t)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, linkverify.ErrBrokenLinks))
	assert.Equal(t, 3, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Equal(t, OutcomeBrokenLinks, report.Outcome)

	// Output and manifest are still in place.
	assert.FileExists(t, s.out("blog/links/index.html"))
	assert.Equal(t, report.BuildID, s.manifest(t).BuildID)
}

func TestBuild_RemovedDocumentIsPruned(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "keep.md", "title: Keep\ndate: 2025-08-01\ntags: [kept]", "k\n")
	s.note(t, "gone.md", "title: Gone\ndate: 2025-08-02\ntags: [dropped]", "g\n")
	s.build(t)
	require.DirExists(t, s.out("blog/gone"))
	require.DirExists(t, s.out("tags/dropped"))

	require.NoError(t, os.Remove(filepath.Join(s.root, "notes", "gone.md")))
	report := s.build(t)
	assert.Equal(t, []string{"gone"}, report.Removed)
	assert.NoDirExists(t, s.out("blog/gone"))
	assert.NoFileExists(t, s.out("content/posts/gone.md"))
	assert.NoDirExists(t, s.out("tags/dropped"))
	assert.DirExists(t, s.out("tags/kept"))
	assert.NotContains(t, s.manifest(t).Documents, "gone")

	require.NoError(t, os.Remove(filepath.Join(s.root, "notes", "keep.md")))
	s.build(t)
	assert.NoDirExists(t, s.out("content/posts"), "emptied directories are removed")
	assert.FileExists(t, s.out("content/posts.json"))
}

func TestBuild_TagsWithSymbolsGetSeparatePages(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "alpha.md", "title: Alpha\ndate: 2025-08-01\ntags: [\"c++\"]", "a\n")
	s.note(t, "beta.md", "title: Beta\ndate: 2025-08-02\ntags: [\"c#\"]", "b\n")

	report := s.build(t)
	require.Empty(t, report.BrokenLinks)

	plus := s.read(t, "tags/c-plus-plus/index.html")
	assert.Contains(t, plus, "Alpha")
	assert.NotContains(t, plus, "Beta")
	sharp := s.read(t, "tags/c-sharp/index.html")
	assert.Contains(t, sharp, "Beta")
	assert.NotContains(t, sharp, "Alpha")
	assert.Contains(t, s.read(t, "tags/c-sharp/feed.xml"), "Beta")
	assert.NotContains(t, s.read(t, "tags/c-plus-plus/feed.xml"), "Beta")
	assert.Contains(t, s.read(t, "blog/beta/index.html"), `href="/tags/c-sharp/"`)
}

func TestBuild_NonLatinTitle(t *testing.T) {
	s := newTestSite(t)
	s.cfg.Build.StrictLinks = true
	s.note(t, "笔记.md", "title: 你好世界\ndate: 2025-08-01\ntags: [日记]", "## 概要\n\n内容\n")

	report := s.build(t)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, 1, report.Rendered)
	assert.FileExists(t, s.out("blog/你好世界/index.html"))
	assert.FileExists(t, s.out("tags/日记/index.html"))
	assert.Contains(t, s.read(t, "blog/你好世界/index.html"), `<h2 id="概要">`)
	assert.Contains(t, s.manifest(t).Documents, "你好世界")
}

func TestBuild_FrontmatterImageIsOGImage(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "cover.md", "title: Cover\ndate: 2025-08-01\nimage: /covers/cover.jpg", "c\n")
	s.note(t, "remote.md", "title: Remote\ndate: 2025-08-02\nimage: https://cdn.example.com/r.png", "r\n")
	s.note(t, "plain.md", "title: Plain\ndate: 2025-08-03", "p\n")

	s.build(t)
	assert.Contains(t, s.read(t, "blog/cover/index.html"), `property="og:image" content="https://himu.me/covers/cover.jpg"`)
	assert.Contains(t, s.read(t, "blog/remote/index.html"), `property="og:image" content="https://cdn.example.com/r.png"`)
	assert.Contains(t, s.read(t, "blog/plain/index.html"), `property="og:image" content="https://himu.me/og/plain.svg"`)
}

func TestBuild_MinifyHTML(t *testing.T) {
	s := newTestSite(t)
	s.cfg.Build.StrictLinks = true
	s.note(t, "post.md", "title: Post\ndate: 2025-08-01\ntags: [ci]", "## One\n\nSee [home](/).\n\n## Two\n\n```go\nfunc main() {\n\treturn\n}\n```\n")

	s.build(t)
	plain := s.read(t, "blog/post/index.html")
	plainHome := s.read(t, "index.html")

	s.cfg.Build.MinifyHTML = true
	report := s.build(t)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, 1, report.Reasons[string(incremental.ReasonSiteChanged)])

	minified := s.read(t, "blog/post/index.html")
	assert.Less(t, len(minified), len(plain))
	assert.Less(t, len(s.read(t, "index.html")), len(plainHome))
	assert.Contains(t, minified, `id="one"`)
	assert.Contains(t, minified, `href="/tags/ci/"`)
	assert.Contains(t, minified, "</html>")

	// Minified output is deterministic, so listings are not rewritten.
	stamp := modTime(t, s.out("index.html"))
	again := s.build(t)
	assert.Equal(t, 1, again.Reused)
	assert.Equal(t, stamp, modTime(t, s.out("index.html")))
}

func TestBuild_CorruptManifestFallsBackToFullBuild(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "a.md", "title: A\ndate: 2025-08-01", "a\n")
	s.write(t, ".notepress/manifest.json", "{not json")
	s.write(t, "dist/leftover.txt", "old")

	report := s.build(t)
	assert.False(t, report.Incremental)
	assert.Equal(t, 1, report.Rendered)
	assert.NoFileExists(t, s.out("leftover.txt"), "full build starts from an empty output directory")
	assert.Equal(t, report.BuildID, s.manifest(t).BuildID)
}

func TestBuild_FailureDoesNotCommitManifest(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "a.md", "title: A\ndate: 2025-08-01", "a\n")
	first := s.build(t)

	s.write(t, "notes/broken.md", "---\ntitle: Broken\nno closing delimiter\n")
	report, err := s.run(t)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryContent))
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, first.BuildID, s.manifest(t).BuildID)
}

func TestBuild_RefusesToWipeSources(t *testing.T) {
	s := newTestSite(t)
	s.note(t, "a.md", "title: A\ndate: 2025-08-01", "a\n")
	s.cfg.Paths.Output = "."

	_, err := s.run(t)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.FileExists(t, filepath.Join(s.root, "notes", "a.md"))
}

func TestBuild_BasePathPrefixesLinks(t *testing.T) {
	s := newTestSite(t)
	s.cfg.Site.BasePath = "/notes"
	s.note(t, "a.md", "title: A\ndate: 2025-08-01", "Back to [the blog](/blog/).\n")

	report := s.build(t)
	assert.Empty(t, report.BrokenLinks)
	body := s.read(t, "blog/a/index.html")
	assert.Contains(t, body, `href="/notes/blog/"`)
	assert.Contains(t, body, `href="/notes/css/style.`)
	assert.Contains(t, s.read(t, "sitemap.xml"), "https://himu.me/notes/blog/a/")
}
