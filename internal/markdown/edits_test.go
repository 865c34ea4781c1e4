package markdown

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEdits_SingleReplacement(t *testing.T) {
	src := []byte("Some text[^a] here.\n")
	old := []byte("[^a]")
	idx := bytes.Index(src, old)
	require.NotEqual(t, -1, idx)

	out, err := ApplyEdits(src, []Edit{{Start: idx, End: idx + len(old), Replacement: []byte("<sup>1</sup>")}})
	require.NoError(t, err)
	require.Equal(t, "Some text<sup>1</sup> here.\n", string(out))
}

func TestApplyEdits_ReplaceAndDelete(t *testing.T) {
	src := []byte("A[^x] B[^y]\n\n[^x]: one\n")

	ix := bytes.Index(src, []byte("[^x]"))
	iy := bytes.Index(src, []byte("[^y]"))
	def := bytes.Index(src, []byte("[^x]: one\n"))

	out, err := ApplyEdits(src, []Edit{
		{Start: def, End: len(src)},
		{Start: ix, End: ix + 4, Replacement: []byte("(1)")},
		{Start: iy, End: iy + 4, Replacement: []byte("(2)")},
	})
	require.NoError(t, err)
	require.Equal(t, "A(1) B(2)\n\n", string(out))
}

func TestApplyEdits_CRLFInputPreserved(t *testing.T) {
	src := []byte("A: [^n]\r\nB: [^n]\r\n")

	idx := bytes.Index(src, []byte("[^n]"))
	out, err := ApplyEdits(src, []Edit{{Start: idx, End: idx + 4, Replacement: []byte("1")}})
	require.NoError(t, err)
	require.Equal(t, "A: 1\r\nB: [^n]\r\n", string(out))
}

func TestApplyEdits_NoEditsReturnsSource(t *testing.T) {
	src := []byte("unchanged")
	out, err := ApplyEdits(src, nil)
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestApplyEdits_RejectsInvalidEdits(t *testing.T) {
	src := []byte("abcdef")

	_, err := ApplyEdits(src, []Edit{
		{Start: 1, End: 4, Replacement: []byte("X")},
		{Start: 3, End: 5, Replacement: []byte("Y")},
	})
	require.Error(t, err)

	_, err = ApplyEdits(src, []Edit{{Start: 4, End: 2}})
	require.Error(t, err)

	_, err = ApplyEdits(src, []Edit{{Start: 0, End: 10}})
	require.Error(t, err)
}
