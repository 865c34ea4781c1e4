// Package markdown renders note bodies to HTML.
//
// Rendering runs in two passes: footnotes are extracted from the raw body
// and replaced with reference buttons, then the remaining markdown is parsed
// by goldmark. A document transformer assigns heading ids and collects the
// table of contents; fenced code is highlighted with chroma.
package markdown

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Options configure a Renderer.
type Options struct {
	// BasePath is prefixed onto root-relative link and image destinations.
	BasePath string
	// HighlightStyle names the chroma style used for the generated CSS.
	HighlightStyle string
	// Aliases extend DefaultAliases.
	Aliases map[string]string
}

// Result is the rendered form of one document body.
type Result struct {
	// HTML is the body markup followed by the footnote trailer.
	HTML      string
	Headings  []Heading
	TOC       []TOCEntry
	TOCHTML   string
	Footnotes []Footnote
}

// Renderer converts markdown bodies to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	inline goldmark.Markdown
	opts   Options
}

// New constructs a Renderer.
func New(opts Options) *Renderer {
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = "github"
	}
	aliases := make(map[string]string, len(DefaultAliases)+len(opts.Aliases))
	for k, v := range DefaultAliases {
		aliases[k] = v
	}
	for k, v := range opts.Aliases {
		aliases[strings.ToLower(k)] = strings.ToLower(v)
	}
	opts.Aliases = aliases

	code := &codeBlockRenderer{
		highlighter: SharedHighlighter(),
		style:       opts.HighlightStyle,
		aliases:     aliases,
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
			parser.WithASTTransformers(util.Prioritized(&documentTransformer{basePath: opts.BasePath}, 100)),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(code, 100)),
		),
	)
	inline := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(&documentTransformer{basePath: opts.BasePath}, 100)),
		),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	return &Renderer{md: md, inline: inline, opts: opts}
}

// Render converts body to HTML. Output is deterministic for a given body
// and Options.
func (r *Renderer) Render(body []byte) (*Result, error) {
	src, notes, err := extractFootnotes(body)
	if err != nil {
		return nil, err
	}

	pc := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	doc := r.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	for i := range notes {
		h, err := r.renderInline(notes[i].Text)
		if err != nil {
			return nil, err
		}
		notes[i].HTML = h
	}
	buf.WriteString(renderFootnoteTrailer(notes))

	headings, _ := pc.Get(headingsKey).([]Heading)
	toc := buildTOC(headings)
	return &Result{
		HTML:      buf.String(),
		Headings:  headings,
		TOC:       toc,
		TOCHTML:   renderTOC(toc),
		Footnotes: notes,
	}, nil
}

// renderInline renders footnote text, unwrapping a single paragraph.
func (r *Renderer) renderInline(s string) (string, error) {
	var buf bytes.Buffer
	if err := r.inline.Convert([]byte(s), &buf); err != nil {
		return "", fmt.Errorf("render footnote: %w", err)
	}
	out := strings.TrimSpace(buf.String())
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return out, nil
}

// HighlightCSS returns the stylesheet for highlighted code blocks.
func (r *Renderer) HighlightCSS() (string, error) {
	return SharedHighlighter().CSS(r.opts.HighlightStyle)
}

// Fingerprint identifies every setting that changes rendered output.
func (r *Renderer) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "base=%s\nstyle=%s\n", r.opts.BasePath, r.opts.HighlightStyle)
	keys := make([]string, 0, len(r.opts.Aliases))
	for k := range r.opts.Aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "alias %s=%s\n", k, r.opts.Aliases[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
