package frontmatter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, fm)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\n---\n# Title\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Hello\n"), fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_EmptyFrontmatter(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, []byte("body\n"), body)
}

func TestSplit_ClosingDelimiterAtEOF(t *testing.T) {
	fm, body, had, err := Split([]byte("---\ntitle: Only\n---"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Only\n"), fm)
	require.Empty(t, body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	_, _, had, err := Split([]byte("---\ntitle: value\n# Title\n"))
	require.Error(t, err)
	require.False(t, had)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	input := []byte("---\r\nkey: value\r\n---\r\n# Title\r\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\r\n"), fm)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestParseYAML_InvalidYAML_ReturnsError(t *testing.T) {
	_, err := ParseYAML([]byte("title: [unterminated\n"))
	require.Error(t, err)
}

func TestFields_Accessors(t *testing.T) {
	fields, err := ParseYAML([]byte(
		"title: '  Hello  '\n" +
			"draft: \"no\"\n" +
			"publish: false\n" +
			"tags: [go, 'web dev', '#notes']\n" +
			"keywords: alpha, beta gamma\n" +
			"date: 2024-03-05\n" +
			"updated: 2024-03-06T10:00:00Z\n" +
			"bad: 05/03/2024\n"))
	require.NoError(t, err)

	assert.Equal(t, "Hello", fields.String("title"))
	assert.Empty(t, fields.String("missing"))

	v, ok := fields.Bool("draft")
	assert.True(t, ok)
	assert.False(t, v)
	v, ok = fields.Bool("publish")
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = fields.Bool("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"go", "web dev", "notes"}, fields.StringList("tags"))
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, fields.StringList("keywords"))

	d, ok := fields.Time("date")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d.UTC())

	u, ok := fields.Time("updated")
	require.True(t, ok)
	assert.Equal(t, 10, u.UTC().Hour())

	_, ok = fields.Time("bad")
	assert.False(t, ok)
}
