package assets

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/himu-me/notepress/internal/htmlpatch"
	"github.com/himu-me/notepress/internal/manifest"
)

// PictureSizes is the sizes hint emitted on every responsive picture.
const PictureSizes = "(max-width: 768px) 100vw, 768px"

// SourceIndex maps image references found in pages to source keys.
type SourceIndex struct {
	records        map[string]manifest.ImageRecord
	attachmentsRel string
}

// NewSourceIndex indexes records. attachmentsRel is the attachments
// directory relative to the notes root.
func NewSourceIndex(records map[string]manifest.ImageRecord, attachmentsRel string) *SourceIndex {
	return &SourceIndex{
		records:        records,
		attachmentsRel: strings.Trim(path.Clean("/"+strings.ReplaceAll(attachmentsRel, "\\", "/")), "/"),
	}
}

// Lookup resolves src as written in a page whose note lives in noteDir (a
// slash path relative to the notes root, "" for pages without a note).
// src must already have the base path removed.
func (ix *SourceIndex) Lookup(src, noteDir string) (manifest.ImageRecord, bool) {
	for _, key := range ix.candidates(src, noteDir) {
		if rec, ok := ix.records[key]; ok && len(rec.Variants) > 0 {
			return rec, true
		}
	}
	return manifest.ImageRecord{}, false
}

func (ix *SourceIndex) candidates(src, noteDir string) []string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if unescaped, err := url.PathUnescape(src); err == nil {
		src = unescaped
	}
	if src == "" {
		return nil
	}

	if strings.HasPrefix(src, "/") {
		p := path.Clean(src)
		if rest, ok := strings.CutPrefix(p, "/attachments/"); ok {
			return []string{AttachmentsPrefix + rest}
		}
		return []string{PublicPrefix + strings.TrimPrefix(p, "/")}
	}

	var out []string
	joined := path.Join(noteDir, src)
	if joined != ".." && !strings.HasPrefix(joined, "../") {
		if ix.attachmentsRel != "" {
			if rest, ok := strings.CutPrefix(joined, ix.attachmentsRel+"/"); ok {
				out = append(out, AttachmentsPrefix+rest)
			}
		}
		out = append(out, NotesPrefix+joined)
	}
	// Obsidian stores embeds by bare file name in the attachments folder.
	out = append(out, AttachmentsPrefix+path.Base(src))
	return out
}

// PictureRewriter replaces every local <img> that has variants with a
// responsive <picture>. Images already inside a <picture> are left alone,
// so the rewrite is idempotent.
func PictureRewriter(ix *SourceIndex, noteDir, basePath string) htmlpatch.Rewriter {
	return htmlpatch.RewriterFunc(func(doc *html.Node) (bool, error) {
		changed := false
		for _, img := range htmlpatch.Elements(doc, atom.Img) {
			if htmlpatch.HasAncestor(img, atom.Picture) {
				continue
			}
			src, ok := htmlpatch.Attr(img, "src")
			if !ok || IsExternal(src) {
				continue
			}
			rec, ok := ix.Lookup(StripBasePath(src, basePath), noteDir)
			if !ok {
				continue
			}
			htmlpatch.Replace(img, picture(img, rec, basePath))
			changed = true
		}
		return changed, nil
	})
}

func picture(img *html.Node, rec manifest.ImageRecord, basePath string) *html.Node {
	srcset := make([]string, 0, len(rec.Variants))
	for _, v := range rec.Variants {
		srcset = append(srcset, basePath+v.Path+" "+strconv.Itoa(v.Width)+"w")
	}

	pic := htmlpatch.Element(atom.Picture)
	pic.AppendChild(htmlpatch.Element(atom.Source,
		html.Attribute{Key: "type", Val: "image/jpeg"},
		html.Attribute{Key: "srcset", Val: strings.Join(srcset, ", ")},
		html.Attribute{Key: "sizes", Val: PictureSizes},
	))

	fallback := htmlpatch.Element(atom.Img)
	fallback.Attr = append(fallback.Attr, img.Attr...)
	htmlpatch.SetAttr(fallback, "src", basePath+rec.Largest().Path)
	if _, ok := htmlpatch.Attr(fallback, "alt"); !ok {
		htmlpatch.SetAttr(fallback, "alt", "")
	}
	if _, ok := htmlpatch.Attr(fallback, "loading"); !ok {
		htmlpatch.SetAttr(fallback, "loading", "lazy")
	}
	if _, ok := htmlpatch.Attr(fallback, "decoding"); !ok {
		htmlpatch.SetAttr(fallback, "decoding", "async")
	}
	pic.AppendChild(fallback)
	return pic
}

// IsExternal reports whether ref points outside the site: it has a scheme
// or is protocol relative.
func IsExternal(ref string) bool {
	if strings.HasPrefix(ref, "//") {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return true
	}
	return u.Scheme != ""
}

// StripBasePath removes basePath from a root-absolute reference.
func StripBasePath(ref, basePath string) string {
	if basePath == "" || !strings.HasPrefix(ref, "/") {
		return ref
	}
	if ref == basePath {
		return "/"
	}
	if rest, ok := strings.CutPrefix(ref, basePath+"/"); ok {
		return "/" + rest
	}
	return ref
}
