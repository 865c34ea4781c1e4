// Package incremental decides which pages of a build can be reused from the
// previous one.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// SiteInputs are the generator-wide inputs that affect every page. A change
// to any of them invalidates all cached pages.
type SiteInputs struct {
	GeneratorVersion string            `json:"generator_version"`
	Templates        map[string]string `json:"templates"`
	Renderer         string            `json:"renderer"`
	Output           OutputSettings    `json:"output"`
	// AssetBundle is the fingerprint of the emitted CSS/JS bundle; pages embed
	// its file names and inlined critical CSS.
	AssetBundle string `json:"asset_bundle"`
	// Images digests the image variant records; pages embed variant names.
	Images string `json:"images"`
	// TagCollisions holds the disambiguated tag slugs that every post page
	// linking to those tags embeds.
	TagCollisions map[string]string `json:"tag_collisions,omitempty"`
}

// OutputSettings are the configuration fields that change rendered pages.
type OutputSettings struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Author         string   `json:"author"`
	Language       string   `json:"language"`
	Origin         string   `json:"origin"`
	BasePath       string   `json:"base_path"`
	HighlightStyle string   `json:"highlight_style"`
	CriticalCSS    []string `json:"critical_css"`
	ImageWidths    []int    `json:"image_widths"`
	ImagesEnabled  bool     `json:"images_enabled"`
	OGEnabled      bool     `json:"og_enabled"`
	WordsPerMinute int      `json:"words_per_minute"`
	ExcerptLength  int      `json:"excerpt_length"`
	IncludeDrafts  bool     `json:"include_drafts"`
	IncludeFuture  bool     `json:"include_future"`
	MinifyHTML     bool     `json:"minify_html,omitempty"`
}

// ComputeSiteVersion returns a deterministic fingerprint of in.
func ComputeSiteVersion(in SiteInputs) (string, error) {
	normalized := in
	normalized.Output.CriticalCSS = sortedCopy(in.Output.CriticalCSS)
	widths := append([]int(nil), in.Output.ImageWidths...)
	sort.Ints(widths)
	normalized.Output.ImageWidths = widths

	// encoding/json sorts map keys, so Templates hashes deterministically.
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal site inputs: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
