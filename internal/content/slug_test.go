package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Multi Feature Test", "multi-feature-test"},
		{"Hello, World!", "hello-world"},
		{"  Leading and   trailing  ", "leading-and-trailing"},
		{"Crème Brûlée", "creme-brulee"},
		{"What's new in Go 1.24?", "whats-new-in-go-124"},
		{"a - b -- c", "a-b-c"},
		{"(parens) *stars* ~tilde~ @at: \"quotes\"", "parens-stars-tilde-at-quotes"},
		{"__draft-test", "draft-test"},
		{"日本語", "日本語"},
		{"你好 世界", "你好-世界"},
		{"Привет, мир", "привет-мир"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugify_Deterministic(t *testing.T) {
	assert.Equal(t, Slugify("Same Input"), Slugify("Same Input"))
}

func TestTagSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"multi", "multi"},
		{"Web Dev", "web-dev"},
		{"C++", "c-plus-plus"},
		{"c#", "c-sharp"},
		{"r&d", "r-and-d"},
		{"日記", "日記"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TagSlug(tt.in))
		})
	}

	sym := TagSlug("???")
	assert.Regexp(t, `^tag-[0-9a-f]{8}$`, sym)
	assert.NotEqual(t, sym, TagSlug("!!!"))
}

func TestAssignTagSlugs_DisambiguatesCollisions(t *testing.T) {
	docs := []*Document{
		{Slug: "a", Tags: []string{"web dev", "c++"}},
		{Slug: "b", Tags: []string{"web-dev", "c#"}},
	}

	slugs, collisions := assignTagSlugs(docs, nil)
	assert.Equal(t, "c-plus-plus", slugs["c++"])
	assert.Equal(t, "c-sharp", slugs["c#"])
	assert.Equal(t, "web-dev", slugs["web dev"])
	assert.Regexp(t, `^web-dev-[0-9a-f]{8}$`, slugs["web-dev"])
	require.Len(t, collisions, 1)
	assert.Equal(t, slugs["web-dev"], collisions["web-dev"])

	seen := make(map[string]string)
	for name, s := range slugs {
		prev, dup := seen[s]
		assert.False(t, dup, "%q and %q share slug %q", prev, name, s)
		seen[s] = name
	}
}
