package markdown

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// DefaultAliases maps common fence shorthands to canonical language names.
var DefaultAliases = map[string]string{
	"js":         "javascript",
	"mjs":        "javascript",
	"cjs":        "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"sh":         "bash",
	"shell":      "bash",
	"zsh":        "bash",
	"console":    "bash",
	"yml":        "yaml",
	"py":         "python",
	"rb":         "ruby",
	"md":         "markdown",
	"golang":     "go",
	"rs":         "rust",
	"kt":         "kotlin",
	"cs":         "csharp",
	"c++":        "cpp",
	"h":          "c",
	"hpp":        "cpp",
	"ps1":        "powershell",
	"dockerfile": "docker",
	"tf":         "hcl",
	"htm":        "html",
	"jsonc":      "json",
}

// Highlighter turns source code into class-annotated HTML. It is safe for
// concurrent use.
type Highlighter struct {
	formatter *chromahtml.Formatter
}

var (
	sharedOnce        sync.Once
	sharedHighlighter *Highlighter
)

// SharedHighlighter returns the process-wide highlighter, constructing it on
// first use.
func SharedHighlighter() *Highlighter {
	sharedOnce.Do(func() {
		sharedHighlighter = &Highlighter{
			formatter: chromahtml.New(chromahtml.WithClasses(true)),
		}
	})
	return sharedHighlighter
}

// Highlight writes highlighted markup for code in lang using style. It
// returns an error when no lexer matches lang.
func (h *Highlighter) Highlight(w io.Writer, code, lang, style string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return fmt.Errorf("no lexer for language %q", lang)
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenise %s: %w", lang, err)
	}
	return h.formatter.Format(w, styles.Get(style), iterator)
}

// CSS returns the stylesheet matching the classes Highlight emits.
func (h *Highlighter) CSS(style string) (string, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", fmt.Errorf("write highlight css: %w", err)
	}
	return buf.String(), nil
}

// codeBlockRenderer replaces goldmark's fenced code output with
// highlighted markup, falling back to escaped plain text.
type codeBlockRenderer struct {
	highlighter *Highlighter
	style       string
	aliases     map[string]string
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lang := strings.ToLower(string(n.Language(source)))
	canonical := r.resolve(lang)

	if canonical != "" {
		var buf bytes.Buffer
		if err := r.highlighter.Highlight(&buf, code.String(), canonical, r.style); err == nil {
			fmt.Fprintf(w, "<div class=\"highlight\" data-lang=\"%s\">", html.EscapeString(canonical))
			_, _ = w.Write(buf.Bytes())
			_, _ = w.WriteString("</div>\n")
			return ast.WalkSkipChildren, nil
		}
	}

	if lang != "" {
		fmt.Fprintf(w, "<pre><code class=\"language-%s\">", html.EscapeString(lang))
	} else {
		_, _ = w.WriteString("<pre><code>")
	}
	_, _ = w.WriteString(html.EscapeString(code.String()))
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

func (r *codeBlockRenderer) resolve(lang string) string {
	if lang == "" {
		return ""
	}
	if canonical, ok := r.aliases[lang]; ok {
		return canonical
	}
	return lang
}
