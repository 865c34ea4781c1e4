package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	footnoteMarker = regexp.MustCompile(`\[\^[A-Za-z0-9_-]+\]:?`)
	statsParser    = goldmark.New().Parser()
)

// textStats walks the markdown AST once and returns the prose word count and
// the plain text of the first paragraph. Inline segments are joined before
// counting because goldmark splits text at emphasis and bracket boundaries.
func textStats(body []byte) (words int, firstParagraph string) {
	doc := statsParser.Parse(text.NewReader(body))

	var all, first strings.Builder
	firstDone := false
	inFirst := false

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if n.Type() == ast.TypeBlock {
			if n.Kind() == ast.KindParagraph && !firstDone {
				inFirst = entering
				if !entering {
					firstDone = strings.TrimSpace(first.String()) != ""
				}
			}
			if !entering {
				all.WriteByte(' ')
			}
		}
		if !entering {
			return ast.WalkContinue, nil
		}

		var s string
		switch t := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			s = string(t.Segment.Value(body))
			if t.SoftLineBreak() || t.HardLineBreak() {
				s += " "
			}
		case *ast.String:
			s = string(t.Value)
		case *ast.AutoLink:
			s = string(t.Label(body))
		default:
			return ast.WalkContinue, nil
		}

		all.WriteString(s)
		if inFirst && !firstDone {
			first.WriteString(s)
		}
		return ast.WalkContinue, nil
	})

	words = len(strings.Fields(footnoteMarker.ReplaceAllString(all.String(), "")))
	firstParagraph = strings.Join(strings.Fields(footnoteMarker.ReplaceAllString(first.String(), "")), " ")
	return words, firstParagraph
}

// readingTime returns whole minutes at wpm words per minute, at least one.
func readingTime(words, wpm int) int {
	if wpm <= 0 {
		wpm = 200
	}
	minutes := (words + wpm - 1) / wpm
	if minutes < 1 {
		return 1
	}
	return minutes
}

// truncateRunes shortens s to at most limit runes, cutting at the last word
// boundary and appending an ellipsis when anything was dropped.
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if runes[limit] != ' ' {
		if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
