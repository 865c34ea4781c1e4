package assets

import (
	"regexp"
	"strings"
)

var (
	cssComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractCritical keeps the rule blocks of css whose text mentions one of
// selectors. Blocks are split on closing braces, so at-rule bodies are
// matched piecewise. The result is whitespace-collapsed.
func ExtractCritical(css string, selectors []string) string {
	if len(selectors) == 0 {
		return ""
	}
	css = cssComment.ReplaceAllString(css, "")

	var kept []string
	for _, block := range strings.Split(css, "}") {
		block = strings.TrimLeft(block, " \t\r\n")
		if !strings.Contains(block, "{") {
			continue
		}
		if containsAny(block, selectors) {
			kept = append(kept, block+"}")
		}
	}
	out := whitespace.ReplaceAllString(strings.Join(kept, ""), " ")
	return strings.TrimSpace(out)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
