package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himu-me/notepress/internal/manifest"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

type imageFixture struct {
	public string
	notes  string
	out    string
}

func newImageFixture(t *testing.T) imageFixture {
	t.Helper()
	root := t.TempDir()
	f := imageFixture{
		public: filepath.Join(root, "public"),
		notes:  filepath.Join(root, "notes"),
		out:    filepath.Join(root, "dist"),
	}
	writePNG(t, filepath.Join(f.public, "hero.png"), 1000, 500, color.RGBA{R: 200, A: 255})
	writePNG(t, filepath.Join(f.notes, "attachments", "small.png"), 300, 200, color.RGBA{G: 200, A: 255})
	writePNG(t, filepath.Join(f.notes, "posts", "diagram.png"), 800, 400, color.RGBA{B: 200, A: 128})
	writeFile(t, filepath.Join(f.notes, "posts", "broken.png"), "not an image")
	writeFile(t, filepath.Join(f.notes, "posts", "post.md"), "# post")
	return f
}

func (f imageFixture) processor() *ImageProcessor {
	return NewImageProcessor(ImageOptions{
		OutputDir:   f.out,
		Widths:      []int{768, 480},
		Quality:     80,
		Concurrency: 2,
		Logger:      slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
}

func TestDiscoverImages(t *testing.T) {
	f := newImageFixture(t)

	sources, err := DiscoverImages(f.public, f.notes, "attachments")
	require.NoError(t, err)

	var keys []string
	for _, s := range sources {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{
		"attachments/small.png",
		"notes/posts/broken.png",
		"notes/posts/diagram.png",
		"public/hero.png",
	}, keys)
}

func TestImageProcessor_Process(t *testing.T) {
	f := newImageFixture(t)
	sources, err := DiscoverImages(f.public, f.notes, "attachments")
	require.NoError(t, err)

	p := f.processor()
	records, stats, err := p.Process(context.Background(), sources, nil)
	require.NoError(t, err)
	assert.Equal(t, ImageStats{Encoded: 3, Skipped: 1}, stats)
	assert.NotContains(t, records, "notes/posts/broken.png")

	hero := records["public/hero.png"]
	require.Len(t, hero.Variants, 2)
	assert.Equal(t, 480, hero.Variants[0].Width)
	assert.Equal(t, 768, hero.Variants[1].Width)
	assert.Equal(t, []int{480, 768}, hero.Widths)
	assert.True(t, strings.HasPrefix(hero.Variants[0].Path, "/img/hero-480."))
	assert.True(t, strings.HasSuffix(hero.Variants[0].Path, ".jpg"))

	small := records["attachments/small.png"]
	require.Len(t, small.Variants, 1)
	assert.Equal(t, 300, small.Variants[0].Width, "source narrower than every width keeps its own width")

	variant, err := os.Open(filepath.Join(f.out, filepath.FromSlash(hero.Largest().Path)))
	require.NoError(t, err)
	defer func() { _ = variant.Close() }()
	cfg, format, err := image.DecodeConfig(variant)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 768, cfg.Width)
	assert.Equal(t, 384, cfg.Height)

	again, stats, err := p.Process(context.Background(), sources, records)
	require.NoError(t, err)
	assert.Equal(t, ImageStats{Reused: 3, Skipped: 1}, stats)
	assert.Equal(t, records, again)
}

func TestImageProcessor_ReencodesWhenVariantMissing(t *testing.T) {
	f := newImageFixture(t)
	sources, err := DiscoverImages(f.public, f.notes, "attachments")
	require.NoError(t, err)
	p := f.processor()

	records, _, err := p.Process(context.Background(), sources, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.out, filepath.FromSlash(records["public/hero.png"].Variants[0].Path))))
	_, stats, err := p.Process(context.Background(), sources, records)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Encoded)
	assert.Equal(t, 2, stats.Reused)
	assert.FileExists(t, filepath.Join(f.out, filepath.FromSlash(records["public/hero.png"].Variants[0].Path)))
}

func TestImageProcessor_RemovesStaleVariants(t *testing.T) {
	f := newImageFixture(t)
	p := f.processor()
	sources, err := DiscoverImages(f.public, f.notes, "attachments")
	require.NoError(t, err)
	records, _, err := p.Process(context.Background(), sources, nil)
	require.NoError(t, err)
	old := records["public/hero.png"].Variants

	writePNG(t, filepath.Join(f.public, "hero.png"), 1000, 500, color.RGBA{R: 10, A: 255})
	writeFile(t, filepath.Join(f.out, "img", "unrelated.jpg"), "kept")

	records, _, err = p.Process(context.Background(), sources, records)
	require.NoError(t, err)
	for _, v := range old {
		assert.NoFileExists(t, filepath.Join(f.out, filepath.FromSlash(v.Path)))
	}
	assert.NotEqual(t, old, records["public/hero.png"].Variants)
	assert.FileExists(t, filepath.Join(f.out, "img", "unrelated.jpg"))
}

func TestImageProcessor_DeduplicatesIdenticalSources(t *testing.T) {
	root := t.TempDir()
	public := filepath.Join(root, "public")
	notes := filepath.Join(root, "notes")
	writePNG(t, filepath.Join(public, "a.png"), 600, 300, color.White)
	writePNG(t, filepath.Join(notes, "attachments", "a.png"), 600, 300, color.White)

	sources, err := DiscoverImages(public, notes, "attachments")
	require.NoError(t, err)
	require.Len(t, sources, 2)

	p := NewImageProcessor(ImageOptions{OutputDir: filepath.Join(root, "dist"), Widths: []int{480}, Quality: 80})
	records, stats, err := p.Process(context.Background(), sources, map[string]manifest.ImageRecord{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Encoded)
	assert.Equal(t, records["public/a.png"], records["attachments/a.png"])
}

func TestVariantWidths(t *testing.T) {
	tests := []struct {
		source int
		widths []int
		want   []int
	}{
		{1600, []int{480, 768, 1200}, []int{480, 768, 1200}},
		{800, []int{480, 768, 1200}, []int{480, 768}},
		{768, []int{480, 768, 1200}, []int{480, 768}},
		{300, []int{480, 768, 1200}, []int{300}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VariantWidths(tt.source, tt.widths))
	}
}
