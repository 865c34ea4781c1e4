package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/himu-me/notepress/internal/content"
	"github.com/himu-me/notepress/internal/fsutil"
	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/manifest"
)

// Source key prefixes identify where an image lives.
const (
	PublicPrefix      = "public/"
	AttachmentsPrefix = "attachments/"
	NotesPrefix       = "notes/"
)

var (
	rasterExts     = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
	variantPattern = regexp.MustCompile(`^.+-\d+\.[0-9a-f]{8}\.jpg$`)
)

// ImageSource is one raster image eligible for variants. Key is the
// prefixed slash path used by the manifest and the picture rewriter.
type ImageSource struct {
	Key  string
	Path string
}

// DiscoverImages lists raster images under the public directory, the
// attachments directory, and the rest of the notes tree, sorted by key.
func DiscoverImages(publicDir, notesDir, attachmentsRel string) ([]ImageSource, error) {
	var out []ImageSource
	add := func(dir, prefix, exclude string) error {
		files, err := rasterFiles(dir)
		if err != nil {
			return err
		}
		for _, rel := range files {
			if exclude != "" && (rel == exclude || strings.HasPrefix(rel, exclude+"/")) {
				continue
			}
			out = append(out, ImageSource{Key: prefix + rel, Path: filepath.Join(dir, filepath.FromSlash(rel))})
		}
		return nil
	}

	attachmentsRel = strings.Trim(filepath.ToSlash(attachmentsRel), "/")
	if err := add(publicDir, PublicPrefix, ""); err != nil {
		return nil, err
	}
	if attachmentsRel != "" {
		if err := add(filepath.Join(notesDir, filepath.FromSlash(attachmentsRel)), AttachmentsPrefix, ""); err != nil {
			return nil, err
		}
	}
	if err := add(notesDir, NotesPrefix, attachmentsRel); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func rasterFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob images in %s: %w", dir, err)
	}
	var out []string
	for _, m := range matches {
		if rasterExts[strings.ToLower(path.Ext(m))] {
			out = append(out, m)
		}
	}
	return out, nil
}

// ImageOptions configures variant generation.
type ImageOptions struct {
	OutputDir   string
	Widths      []int
	Quality     int
	Concurrency int
	Logger      *slog.Logger
}

// ImageStats counts what a Process call did.
type ImageStats struct {
	Encoded int
	Reused  int
	Skipped int
}

// ImageProcessor generates width variants for source images.
type ImageProcessor struct {
	opts   ImageOptions
	logger *slog.Logger
}

// NewImageProcessor returns a processor writing below opts.OutputDir/img.
func NewImageProcessor(opts ImageOptions) *ImageProcessor {
	widths := append([]int(nil), opts.Widths...)
	sort.Ints(widths)
	opts.Widths = slices.Compact(widths)
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageProcessor{opts: opts, logger: logger}
}

type imageTask struct {
	source ImageSource
	hash   string
	stem   string
	data   []byte
}

type imageResult struct {
	record manifest.ImageRecord
	ok     bool
}

// Process returns the variant record for every source that could be decoded.
// Records from prev are reused when still valid; everything else is encoded
// concurrently, one task per distinct source. Variant files no record
// references are removed.
func (p *ImageProcessor) Process(ctx context.Context, sources []ImageSource, prev map[string]manifest.ImageRecord) (map[string]manifest.ImageRecord, ImageStats, error) {
	records := make(map[string]manifest.ImageRecord, len(sources))
	var stats ImageStats

	var tasks []imageTask
	taskIndex := make(map[string]int)
	aliases := make(map[string]string)

	for _, src := range sources {
		// #nosec G304 -- image discovered under a configured input directory
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, stats, fmt.Errorf("read image %s: %w", src.Key, err)
		}
		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])

		if rec, ok := prev[src.Key]; ok && p.valid(rec, hash) {
			records[src.Key] = rec
			stats.Reused++
			continue
		}

		stem := imageStem(src.Key)
		id := stem + "." + hash[:hashLen]
		if _, dup := taskIndex[id]; dup {
			aliases[src.Key] = id
			continue
		}
		taskIndex[id] = len(tasks)
		aliases[src.Key] = id
		tasks = append(tasks, imageTask{source: src, hash: hash, stem: stem, data: data})
	}

	results := make([]imageResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, ok, err := p.encode(tasks[i])
			if err != nil {
				return err
			}
			results[i] = imageResult{record: rec, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	for key, id := range aliases {
		res := results[taskIndex[id]]
		if !res.ok {
			stats.Skipped++
			continue
		}
		records[key] = res.record
	}
	for _, res := range results {
		if res.ok {
			stats.Encoded++
		}
	}

	if err := p.removeStaleVariants(records); err != nil {
		return nil, stats, err
	}
	return records, stats, nil
}

// valid reports whether rec still describes hash at the configured widths
// and quality with every variant present on disk.
func (p *ImageProcessor) valid(rec manifest.ImageRecord, hash string) bool {
	if rec.SourceHash != hash || rec.Quality != p.opts.Quality || !slices.Equal(rec.Widths, p.opts.Widths) {
		return false
	}
	if len(rec.Variants) == 0 {
		return false
	}
	for _, v := range rec.Variants {
		if !fsutil.Exists(p.variantFile(v.Path)) {
			return false
		}
	}
	return true
}

func (p *ImageProcessor) encode(task imageTask) (manifest.ImageRecord, bool, error) {
	src, format, err := image.Decode(bytes.NewReader(task.data))
	if err != nil {
		p.logger.Warn("Skipping image that could not be decoded",
			logfields.Path(task.source.Key), logfields.Error(err))
		return manifest.ImageRecord{}, false, nil
	}

	bounds := src.Bounds()
	rec := manifest.ImageRecord{
		SourceHash: task.hash,
		Widths:     p.opts.Widths,
		Quality:    p.opts.Quality,
	}
	for _, w := range VariantWidths(bounds.Dx(), p.opts.Widths) {
		h := bounds.Dy() * w / bounds.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		// JPEG has no alpha channel; flatten onto white.
		draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
			return manifest.ImageRecord{}, false, fmt.Errorf("encode %s at %dpx: %w", task.source.Key, w, err)
		}
		urlPath := fmt.Sprintf("/img/%s-%d.%s.jpg", task.stem, w, task.hash[:hashLen])
		if _, err := fsutil.WriteIfChanged(p.variantFile(urlPath), buf.Bytes()); err != nil {
			return manifest.ImageRecord{}, false, fmt.Errorf("write variant: %w", err)
		}
		rec.Variants = append(rec.Variants, manifest.Variant{Width: w, Path: urlPath})
	}

	p.logger.Debug("Encoded image variants",
		logfields.Path(task.source.Key),
		slog.String("format", format),
		logfields.Count(len(rec.Variants)))
	return rec, true, nil
}

func (p *ImageProcessor) variantFile(urlPath string) string {
	return filepath.Join(p.opts.OutputDir, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
}

func (p *ImageProcessor) removeStaleVariants(records map[string]manifest.ImageRecord) error {
	keep := make(map[string]bool)
	for _, rec := range records {
		for _, v := range rec.Variants {
			keep[path.Base(v.Path)] = true
		}
	}
	return removeStale(filepath.Join(p.opts.OutputDir, "img"), variantPattern, keep)
}

// VariantWidths returns the configured widths not exceeding the source
// width, or the source width alone when every configured width is larger.
func VariantWidths(sourceWidth int, widths []int) []int {
	var out []int
	for _, w := range widths {
		if w > 0 && w <= sourceWidth {
			out = append(out, w)
		}
	}
	if len(out) == 0 && sourceWidth > 0 {
		return []int{sourceWidth}
	}
	return out
}

func imageStem(key string) string {
	base := path.Base(key)
	stem := content.Slugify(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		return "image"
	}
	return stem
}
