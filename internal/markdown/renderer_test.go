package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark/ast"
)

const multiFeatureBody = "# Multi Feature Test\n\n" +
	"Intro paragraph.\n\n" +
	"## Section One\nSome text.\n\n" +
	"### Subsection A\nMore text.\n\n" +
	"## Section Two\nCode sample:\n\n" +
	"```js\nconsole.log('hi');\n```\n\n" +
	"Image below:\n\n![Alt text](/test-sample.png)\n"

func TestRender_Footnotes(t *testing.T) {
	body := "# Footnote Demo\n\nSome text with a footnote[^a] and second[^b].\n\n[^a]: First footnote\n[^b]: Second *footnote*\n"

	res, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)

	out := res.HTML
	assert.Contains(t, out, `<section class="footnotes">`)
	assert.Equal(t, 2, strings.Count(out, `<li id="fn-`))
	for _, label := range []string{"a", "b"} {
		assert.Contains(t, out, `id="fn-`+label+`"`)
		assert.Contains(t, out, `href="#fnref-`+label+`"`)
		assert.Contains(t, out, `id="fnref-`+label+`"`)
		assert.Contains(t, out, `data-fn-def="`+label+`"`)
	}
	assert.Contains(t, out, `class="fn-ref" id="fnref-a" data-fn="a" aria-describedby="fn-a">1</button>`)
	assert.Contains(t, out, `data-fn="b" aria-describedby="fn-b">2</button>`)
	assert.Contains(t, out, "Second <em>footnote</em>")
	assert.NotContains(t, out, "[^a]")
	assert.Less(t, strings.Index(out, `class="footnote-defs"`), strings.Index(out, `class="footnotes"`))

	require.Len(t, res.Footnotes, 2)
	assert.Equal(t, "a", res.Footnotes[0].Label)
	assert.Equal(t, 1, res.Footnotes[0].Index)
}

func TestRender_FootnotesNumberedByFirstReference(t *testing.T) {
	body := "First[^z] then[^y] and again[^z].\n\n[^y]: Why\n[^z]: Zed\n[^unused]: Never referenced\n"

	res, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)

	require.Len(t, res.Footnotes, 3)
	assert.Equal(t, []string{"z", "y", "unused"},
		[]string{res.Footnotes[0].Label, res.Footnotes[1].Label, res.Footnotes[2].Label})
	assert.Equal(t, 3, res.Footnotes[2].Index)
	assert.False(t, res.Footnotes[2].Referenced)

	assert.Equal(t, 1, strings.Count(res.HTML, `id="fnref-z"`), "only the first reference carries the id")
	assert.Equal(t, 2, strings.Count(res.HTML, `data-fn="z"`))
	assert.NotContains(t, res.HTML, `href="#fnref-unused"`)
}

func TestRender_FootnoteEdgeCases(t *testing.T) {
	body := "Undefined[^nope] stays.\n\n" +
		"Inline `code[^a]` is literal.\n\n" +
		"```\nfenced[^a]\n[^a]: not a definition\n```\n\n" +
		"Real[^a].\n\n" +
		"[^a]: Defined\n"

	res, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)

	assert.Contains(t, res.HTML, "Undefined[^nope] stays.")
	assert.Contains(t, res.HTML, "<code>code[^a]</code>")
	assert.Contains(t, res.HTML, "fenced[^a]")
	assert.Contains(t, res.HTML, "[^a]: not a definition")
	assert.Equal(t, 1, strings.Count(res.HTML, `class="fn-ref"`))
}

func TestRender_NoFootnotesNoTrailer(t *testing.T) {
	res, err := New(Options{}).Render([]byte("Plain text.\n"))
	require.NoError(t, err)
	assert.NotContains(t, res.HTML, "footnote")
	assert.Empty(t, res.Footnotes)
}

func TestRender_MultiFeature(t *testing.T) {
	res, err := New(Options{}).Render([]byte(multiFeatureBody))
	require.NoError(t, err)

	assert.Contains(t, res.TOCHTML, `<nav class="toc"`)
	assert.Contains(t, res.HTML, `<div class="highlight" data-lang="javascript">`)
	assert.Contains(t, res.HTML, `class="chroma"`)
	assert.Contains(t, res.HTML, `<h2 id="section-one">Section One</h2>`)
	assert.Contains(t, res.HTML, `<h3 id="subsection-a">Subsection A</h3>`)
	assert.Contains(t, res.HTML, `<img src="/test-sample.png" alt="Alt text">`)

	require.Len(t, res.TOC, 2)
	assert.Equal(t, "section-one", res.TOC[0].ID)
	require.Len(t, res.TOC[0].Children, 1)
	assert.Equal(t, "subsection-a", res.TOC[0].Children[0].ID)
	assert.Equal(t, "section-two", res.TOC[1].ID)
	assert.Equal(t,
		`<nav class="toc" aria-label="Table of contents"><ol><li><a href="#section-one">Section One</a><ol><li><a href="#subsection-a">Subsection A</a></li></ol></li><li><a href="#section-two">Section Two</a></li></ol></nav>`,
		res.TOCHTML)
}

func TestRender_TOCThreshold(t *testing.T) {
	r := New(Options{})

	res, err := r.Render([]byte("# Title\n\nNo sections.\n"))
	require.NoError(t, err)
	assert.Empty(t, res.TOCHTML)

	res, err = r.Render([]byte("## Only One\n\ntext\n"))
	require.NoError(t, err)
	assert.Empty(t, res.TOCHTML)
	require.Len(t, res.Headings, 1)

	res, err = r.Render([]byte("### Early\n\n## Main\n\n### Child\n"))
	require.NoError(t, err)
	require.Len(t, res.TOC, 2)
	assert.Equal(t, "early", res.TOC[0].ID)
	assert.Len(t, res.TOC[1].Children, 1)
}

func TestRender_HeadingIDCollisions(t *testing.T) {
	body := "## Intro\n\n## Intro\n\n### Intro\n\n## Setup {#intro-2}\n"

	res, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Headings))
	for _, h := range res.Headings {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"intro", "intro-3", "intro-4", "intro-2"}, ids)
}

func TestRender_FallbackForUnknownLanguage(t *testing.T) {
	body := "```nosuchlang\n<b>&</b>\n```\n\n```\nplain\n```\n"

	res, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `<pre><code class="language-nosuchlang">&lt;b&gt;&amp;&lt;/b&gt;`)
	assert.Contains(t, res.HTML, "<pre><code>plain\n</code></pre>")
	assert.NotContains(t, res.HTML, `class="highlight"`)
}

func TestRender_ConfiguredAlias(t *testing.T) {
	res, err := New(Options{Aliases: map[string]string{"conf": "ini"}}).Render([]byte("```conf\n[a]\nb=1\n```\n"))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `data-lang="ini"`)
}

func TestRender_BasePathPrefix(t *testing.T) {
	body := "[blog](/blog/) [ext](https://example.com/) [proto](//cdn.example.com/x) [rel](other/) ![img](/pic.png)\n"

	res, err := New(Options{BasePath: "/sub"}).Render([]byte(body))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `href="/sub/blog/"`)
	assert.Contains(t, res.HTML, `href="https://example.com/"`)
	assert.Contains(t, res.HTML, `href="//cdn.example.com/x"`)
	assert.Contains(t, res.HTML, `href="other/"`)
	assert.Contains(t, res.HTML, `src="/sub/pic.png"`)
}

func TestRender_Deterministic(t *testing.T) {
	r := New(Options{})
	a, err := r.Render([]byte(multiFeatureBody + "\nNote[^x].\n\n[^x]: text\n"))
	require.NoError(t, err)
	b, err := r.Render([]byte(multiFeatureBody + "\nNote[^x].\n\n[^x]: text\n"))
	require.NoError(t, err)
	assert.Equal(t, a.HTML, b.HTML)
	assert.Equal(t, a.TOCHTML, b.TOCHTML)
}

func TestHeadingID(t *testing.T) {
	assert.Equal(t, "hello-world", HeadingID("Hello, World!"))
	assert.Equal(t, "section", HeadingID("!!!"))
	assert.Equal(t, "安装-步骤", HeadingID("安装 步骤"))
	long := strings.Repeat("word ", 40)
	assert.LessOrEqual(t, len(HeadingID(long)), 80)
	assert.False(t, strings.HasSuffix(HeadingID(long), "-"))
	wide := HeadingID(strings.Repeat("标", 40))
	assert.LessOrEqual(t, len(wide), 80)
	assert.True(t, utf8.ValidString(wide))
}

func TestHeadingIDs_SuffixesRepeats(t *testing.T) {
	ids := newHeadingIDs()
	ids.Put([]byte("setup-2"))
	var got []string
	for _, v := range []string{"Setup", "Setup", "Setup", "Other"} {
		got = append(got, string(ids.Generate([]byte(v), ast.KindHeading)))
	}
	assert.Equal(t, []string{"setup", "setup-3", "setup-4", "other"}, got)
}

func TestRender_NonLatinHeadings(t *testing.T) {
	res, err := New(Options{}).Render([]byte("## 概要\n\ntext\n\n## 概要\n"))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `<h2 id="概要">`)
	assert.Contains(t, res.HTML, `<h2 id="概要-2">`)
}

func TestHighlightCSSAndFingerprint(t *testing.T) {
	r := New(Options{HighlightStyle: "monokai"})
	css, err := r.HighlightCSS()
	require.NoError(t, err)
	assert.Contains(t, css, ".chroma")

	assert.Equal(t, r.Fingerprint(), New(Options{HighlightStyle: "monokai"}).Fingerprint())
	assert.NotEqual(t, r.Fingerprint(), New(Options{HighlightStyle: "github"}).Fingerprint())
	assert.NotEqual(t, r.Fingerprint(), New(Options{HighlightStyle: "monokai", BasePath: "/x"}).Fingerprint())
}

func TestSharedHighlighterIsSingleton(t *testing.T) {
	assert.Same(t, SharedHighlighter(), SharedHighlighter())
}
