package content

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-slug"
	"github.com/inful/mdfp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugRemoved is stripped before any other slug processing.
const slugRemoved = "*+~.()'\"!:@?"

// tagSymbols spells out symbols that distinguish otherwise equal tags.
var tagSymbols = strings.NewReplacer("+", " plus ", "#", " sharp ", "&", " and ", "@", " at ")

// Slugify derives a URL slug from s: diacritics folded, lowercased,
// punctuation removed, whitespace runs replaced by a single hyphen.
// Letters and digits of any script are kept. ASCII results are passed
// through the go-slug normalizer.
func Slugify(s string) string {
	candidate := unicodeSlug(s)
	if candidate == "" || !isASCII(candidate) {
		return candidate
	}
	normalized, err := slug.Normalize(candidate)
	if err != nil || normalized == "" {
		return candidate
	}
	return normalized
}

func unicodeSlug(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		switch {
		case strings.ContainsRune(slugRemoved, r):
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			pendingHyphen = true
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// TagSlug maps a tag to its directory name. Symbols such as + and # are
// spelled out so "c++" and "c#" stay apart; a tag with nothing left to
// slug falls back to a hash of its name.
func TagSlug(tag string) string {
	if s := Slugify(tagSymbols.Replace(tag)); s != "" {
		return s
	}
	return "tag-" + shortHash(tag)
}

// fallbackSlug names a note whose title and file name yield no slug.
func fallbackSlug(rel string) string {
	return "note-" + shortHash(rel)
}

func shortHash(s string) string {
	return mdfp.CalculateFingerprint(s)[:8]
}

// assignTagSlugs resolves the directory name of every tag in docs. Tags
// whose slugs still collide keep the slug for the lexically first name;
// the others get a hash suffix. The returned collisions map lists only the
// disambiguated tags.
func assignTagSlugs(docs []*Document, log *slog.Logger) (slugs, collisions map[string]string) {
	names := make(map[string]bool)
	for _, d := range docs {
		for _, t := range d.Tags {
			names[t] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	slugs = make(map[string]string, len(sorted))
	owner := make(map[string]string, len(sorted))
	for _, name := range sorted {
		s := TagSlug(name)
		if first, taken := owner[s]; taken {
			alt := s + "-" + shortHash(name)
			if log != nil {
				log.Warn("Tag slug collision",
					slog.String("tag", name),
					slog.String("conflicts_with", first),
					slog.String("slug", alt))
			}
			if collisions == nil {
				collisions = make(map[string]string)
			}
			collisions[name] = alt
			s = alt
		}
		owner[s] = name
		slugs[name] = s
	}
	return slugs, collisions
}

func sortTagGroups(groups []TagGroup) {
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
}
