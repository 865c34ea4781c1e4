package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter is returned when a note opens a frontmatter
// block but never closes it.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates a leading `---` delimited YAML block from the body.
//
// The returned frontmatter excludes the delimiter lines. A closing delimiter
// on the last line without a trailing newline is accepted. Both LF and CRLF
// files are supported; the body is returned untouched.
func Split(content []byte) (frontmatter []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	start := len(open)
	rest := content[start:]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, nil
	}
	if bytes.Equal(rest, []byte("---")) {
		return []byte{}, []byte{}, true, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	if idx := bytes.Index(rest, closeSeq); idx >= 0 {
		end := start + idx + len(nl)
		return content[start:end], content[start+idx+len(closeSeq):], true, nil
	}

	closeAtEOF := []byte(nl + "---")
	if bytes.HasSuffix(rest, closeAtEOF) {
		end := len(content) - len("---")
		return content[start:end], []byte{}, true, nil
	}

	return nil, nil, false, ErrMissingClosingDelimiter
}

// Fields is a decoded frontmatter mapping with typed accessors.
type Fields map[string]any

// ParseYAML decodes a frontmatter block. An empty block yields empty Fields.
func ParseYAML(frontmatter []byte) (Fields, error) {
	if len(bytes.TrimSpace(frontmatter)) == 0 {
		return Fields{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(frontmatter, &fields); err != nil {
		return nil, fmt.Errorf("parse frontmatter yaml: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return Fields(fields), nil
}

// String returns the trimmed string form of a scalar field.
func (f Fields) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Bool reports the boolean value of key and whether it was present and
// interpretable. Strings such as "false" and "no" are accepted.
func (f Fields) Bool(key string) (value bool, ok bool) {
	v, present := f[key]
	if !present || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on", "1":
			return true, true
		case "false", "no", "off", "0":
			return false, true
		}
	case int:
		return t != 0, true
	}
	return false, false
}

// StringList accepts either a YAML sequence or a comma/space separated
// string and returns the non-empty trimmed entries in order.
func (f Fields) StringList(key string) []string {
	v, ok := f[key]
	if !ok || v == nil {
		return nil
	}

	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	default:
		raw = []string{fmt.Sprint(t)}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Time parses key as a date. ok is false when the field is absent or does
// not match a supported layout.
func (f Fields) Time(key string) (t time.Time, ok bool) {
	v, present := f[key]
	if !present || v == nil {
		return time.Time{}, false
	}
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	case int:
		// A bare year such as `date: 2024`.
		if val > 0 {
			return time.Date(val, 1, 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
