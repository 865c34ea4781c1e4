package markdown

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// maxHeadingIDLength bounds generated heading ids, in bytes.
const maxHeadingIDLength = 80

var headingsKey = parser.NewContextKey()

// Heading is a level 2 or 3 heading with its resolved id.
type Heading struct {
	Level int
	ID    string
	Text  string
}

// TOCEntry is a level 2 heading with the level 3 headings that follow it,
// or a level 3 heading that precedes every level 2 heading.
type TOCEntry struct {
	Heading
	Children []TOCEntry
}

// documentTransformer assigns ids to h2/h3 headings, records them in the
// parser context, and prefixes root-relative destinations with the base
// path.
type documentTransformer struct {
	basePath string
}

func (t *documentTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	ids := pc.IDs()
	var headings []Heading

	// Explicit ids are reserved first so generated ids never collide with them.
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			if id, ok := h.AttributeString("id"); ok {
				if b, isBytes := id.([]byte); isBytes {
					ids.Put(b)
				}
			}
		}
		return ast.WalkContinue, nil
	})

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level != 2 && node.Level != 3 {
				return ast.WalkContinue, nil
			}
			label := nodeText(node, source)
			var id string
			if existing, ok := node.AttributeString("id"); ok {
				if b, isBytes := existing.([]byte); isBytes {
					id = string(b)
				}
			}
			if id == "" {
				generated := ids.Generate([]byte(label), ast.KindHeading)
				node.SetAttributeString("id", generated)
				id = string(generated)
			}
			headings = append(headings, Heading{Level: node.Level, ID: id, Text: label})
		case *ast.Link:
			node.Destination = t.prefix(node.Destination)
		case *ast.Image:
			node.Destination = t.prefix(node.Destination)
		}
		return ast.WalkContinue, nil
	})

	pc.Set(headingsKey, headings)
}

func (t *documentTransformer) prefix(dest []byte) []byte {
	if t.basePath == "" || len(dest) == 0 || dest[0] != '/' || (len(dest) > 1 && dest[1] == '/') {
		return dest
	}
	if strings.HasPrefix(string(dest), t.basePath+"/") {
		return dest
	}
	return append([]byte(t.basePath), dest...)
}

// HeadingID derives an anchor id from heading text: lowercase, letters and
// digits kept, whitespace runs hyphenated, truncated on a rune boundary.
func HeadingID(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			if b.Len()+utf8.RuneLen(r) > maxHeadingIDLength {
				return finishHeadingID(b.String())
			}
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			hyphen = true
		}
	}
	return finishHeadingID(b.String())
}

func finishHeadingID(id string) string {
	id = strings.TrimRight(id, "-")
	if id == "" {
		return "section"
	}
	return id
}

// headingIDs is the parser.IDs table of one document: generated ids get
// -2, -3, ... suffixes until they are unused.
type headingIDs struct {
	used map[string]bool
}

func newHeadingIDs() *headingIDs {
	return &headingIDs{used: make(map[string]bool)}
}

func (s *headingIDs) Generate(value []byte, _ ast.NodeKind) []byte {
	base := HeadingID(string(value))
	id := base
	for n := 2; s.used[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	s.used[id] = true
	return []byte(id)
}

func (s *headingIDs) Put(value []byte) {
	s.used[string(value)] = true
}

func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	s := b.String()
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.TrimSpace(s)
}

// buildTOC nests level 3 headings under the preceding level 2 heading.
func buildTOC(headings []Heading) []TOCEntry {
	if len(headings) < 2 {
		return nil
	}
	var toc []TOCEntry
	for _, h := range headings {
		if h.Level == 3 && len(toc) > 0 && toc[len(toc)-1].Level == 2 {
			parent := &toc[len(toc)-1]
			parent.Children = append(parent.Children, TOCEntry{Heading: h})
			continue
		}
		toc = append(toc, TOCEntry{Heading: h})
	}
	return toc
}

func renderTOC(toc []TOCEntry) string {
	if len(toc) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<nav class="toc" aria-label="Table of contents">`)
	writeTOCList(&b, toc)
	b.WriteString("</nav>")
	return b.String()
}

func writeTOCList(b *strings.Builder, entries []TOCEntry) {
	b.WriteString("<ol>")
	for _, e := range entries {
		fmt.Fprintf(b, `<li><a href="#%s">%s</a>`, html.EscapeString(e.ID), html.EscapeString(e.Text))
		if len(e.Children) > 0 {
			writeTOCList(b, e.Children)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ol>")
}
