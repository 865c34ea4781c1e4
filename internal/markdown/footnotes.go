package markdown

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	footnoteDefLine = regexp.MustCompile(`^ {0,3}\[\^([A-Za-z0-9_-]+)\]:[ \t]?(.*)$`)
	footnoteRef     = regexp.MustCompile(`\[\^([A-Za-z0-9_-]+)\]`)
)

// Footnote is one footnote definition collected from a document.
type Footnote struct {
	Label string
	// Index is the 1-based number shown at the reference, assigned by first
	// reference occurrence. Unreferenced definitions are numbered after all
	// referenced ones.
	Index      int
	Text       string
	HTML       string
	Referenced bool
}

// extractFootnotes removes definition lines from body and replaces every
// reference to a defined label with a reference button. Fenced code blocks
// and inline code spans are left untouched; references to undefined labels
// stay literal.
func extractFootnotes(body []byte) ([]byte, []Footnote, error) {
	lines := splitLinesKeepEnds(body)

	defs := make(map[string]string)
	var defOrder []string
	var edits []Edit

	var fence fenceState
	offset := 0
	current := ""
	for _, line := range lines {
		start := offset
		offset += len(line)
		content := strings.TrimRight(string(line), "\r\n")

		if fence.update(content) {
			current = ""
			continue
		}

		if m := footnoteDefLine.FindStringSubmatch(content); m != nil {
			label := m[1]
			if _, dup := defs[label]; !dup {
				defOrder = append(defOrder, label)
			}
			defs[label] = strings.TrimSpace(m[2])
			current = label
			edits = append(edits, Edit{Start: start, End: offset})
			continue
		}

		if current != "" && isContinuation(content) {
			defs[current] = strings.TrimSpace(defs[current] + "\n" + strings.TrimSpace(content))
			edits = append(edits, Edit{Start: start, End: offset})
			continue
		}
		current = ""
	}

	if len(defs) == 0 {
		return body, nil, nil
	}

	index := make(map[string]int)
	var referenced []string
	fence = fenceState{}
	offset = 0
	for _, line := range lines {
		start := offset
		offset += len(line)
		content := strings.TrimRight(string(line), "\r\n")
		if fence.update(content) || footnoteDefLine.MatchString(content) {
			continue
		}

		spans := codeSpanRanges(content)
		for _, loc := range footnoteRef.FindAllStringSubmatchIndex(content, -1) {
			if inRanges(loc[0], spans) {
				continue
			}
			label := content[loc[2]:loc[3]]
			if _, ok := defs[label]; !ok {
				continue
			}

			n, seen := index[label]
			if !seen {
				n = len(referenced) + 1
				index[label] = n
				referenced = append(referenced, label)
			}
			edits = append(edits, Edit{
				Start:       start + loc[0],
				End:         start + loc[1],
				Replacement: []byte(referenceButton(label, n, !seen)),
			})
		}
	}

	out, err := ApplyEdits(body, edits)
	if err != nil {
		return nil, nil, fmt.Errorf("apply footnote edits: %w", err)
	}

	notes := make([]Footnote, 0, len(defs))
	for _, label := range referenced {
		notes = append(notes, Footnote{Label: label, Index: index[label], Text: defs[label], Referenced: true})
	}
	for _, label := range defOrder {
		if _, ok := index[label]; ok {
			continue
		}
		notes = append(notes, Footnote{Label: label, Index: len(notes) + 1, Text: defs[label]})
	}
	return out, notes, nil
}

func referenceButton(label string, n int, first bool) string {
	l := html.EscapeString(label)
	id := ""
	if first {
		id = fmt.Sprintf(` id="fnref-%s"`, l)
	}
	return fmt.Sprintf(`<button type="button" class="fn-ref"%s data-fn="%s" aria-describedby="fn-%s">%d</button>`, id, l, l, n)
}

// renderFootnoteTrailer emits the hidden definition block used by client
// popovers and the visible footnote list.
func renderFootnoteTrailer(notes []Footnote) string {
	if len(notes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<div class=\"footnote-defs\" hidden>\n")
	for _, fn := range notes {
		fmt.Fprintf(&b, "<div data-fn-def=\"%s\">%s</div>\n", html.EscapeString(fn.Label), fn.HTML)
	}
	b.WriteString("</div>\n<section class=\"footnotes\">\n<ol>\n")
	for _, fn := range notes {
		l := html.EscapeString(fn.Label)
		fmt.Fprintf(&b, "<li id=\"fn-%s\">%s", l, fn.HTML)
		if fn.Referenced {
			fmt.Fprintf(&b, " <a href=\"#fnref-%s\" class=\"fn-back\" aria-label=\"Back to reference %d\">↩</a>", l, fn.Index)
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ol>\n</section>\n")
	return b.String()
}

// fenceState tracks whether a line scanner is inside a fenced code block.
type fenceState struct {
	marker string
}

// update consumes one line and reports whether it belongs to a fence,
// including the opening and closing lines.
func (f *fenceState) update(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 && f.marker == "" {
		return false
	}
	for _, m := range []string{"```", "~~~"} {
		if !strings.HasPrefix(trimmed, m) {
			continue
		}
		run := len(trimmed) - len(strings.TrimLeft(trimmed, m[:1]))
		switch {
		case f.marker == "":
			f.marker = strings.Repeat(m[:1], run)
			return true
		case m[0] == f.marker[0] && run >= len(f.marker) && strings.TrimSpace(trimmed[run:]) == "":
			f.marker = ""
			return true
		}
	}
	return f.marker != ""
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}

// codeSpanRanges returns [start, end) byte ranges of inline code spans.
func codeSpanRanges(s string) [][2]int {
	if !strings.Contains(s, "`") {
		return nil
	}
	var out [][2]int
	for i := 0; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		run := 1
		for i+run < len(s) && s[i+run] == '`' {
			run++
		}
		marker := strings.Repeat("`", run)
		closeRel := strings.Index(s[i+run:], marker)
		if closeRel == -1 {
			i += run
			continue
		}
		end := i + run + closeRel + run
		out = append(out, [2]int{i, end})
		i = end
	}
	return out
}

func inRanges(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

func splitLinesKeepEnds(b []byte) [][]byte {
	var lines [][]byte
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			lines = append(lines, b)
			break
		}
		lines = append(lines, b[:i+1])
		b = b[i+1:]
	}
	return lines
}
