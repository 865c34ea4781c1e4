// Package manifest persists the record of the last successful build.
//
// The manifest maps each document slug to the content hash it was rendered
// from, carries the site-version fingerprint the pages were produced
// under, and records image variant and Open Graph card hashes so derived
// assets are regenerated when their inputs change.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/himu-me/notepress/internal/fsutil"
)

// FormatVersion is bumped whenever the on-disk layout changes; a mismatch
// is treated like an absent manifest.
const FormatVersion = 1

// ErrNotFound is returned by Load when no manifest exists yet.
var ErrNotFound = errors.New("manifest not found")

// Manifest is the persisted build record.
type Manifest struct {
	Version     int       `json:"version"`
	BuildID     string    `json:"build_id"`
	GeneratedAt time.Time `json:"generated_at"`
	SiteVersion string    `json:"site_version"`

	// Documents maps slug to content hash.
	Documents map[string]string `json:"documents"`
	// Images maps a source image URL path to its variant record.
	Images map[string]ImageRecord `json:"images,omitempty"`
	// OGImages maps slug to its Open Graph card record.
	OGImages map[string]OGRecord `json:"og_images,omitempty"`
}

// ImageRecord is the variant set generated for one source image.
type ImageRecord struct {
	SourceHash string    `json:"source_hash"`
	Widths     []int     `json:"widths"`
	Quality    int       `json:"quality"`
	Variants   []Variant `json:"variants"`
}

// Variant is one generated width of an image.
type Variant struct {
	Width int    `json:"width"`
	Path  string `json:"path"`
}

// Largest returns the widest variant.
func (r ImageRecord) Largest() Variant {
	if len(r.Variants) == 0 {
		return Variant{}
	}
	return r.Variants[len(r.Variants)-1]
}

// OGRecord is one generated Open Graph card.
type OGRecord struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Version:   FormatVersion,
		Documents: make(map[string]string),
		Images:    make(map[string]ImageRecord),
		OGImages:  make(map[string]OGRecord),
	}
}

// ToJSON serializes the manifest with sorted keys.
func (m *Manifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// FromJSON deserializes a manifest.
func FromJSON(data []byte) (*Manifest, error) {
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.Documents == nil {
		m.Documents = make(map[string]string)
	}
	if m.Images == nil {
		m.Images = make(map[string]ImageRecord)
	}
	if m.OGImages == nil {
		m.OGImages = make(map[string]OGRecord)
	}
	return m, nil
}

// Load reads the manifest at path. It returns ErrNotFound when the file
// does not exist.
func Load(path string) (*Manifest, error) {
	// #nosec G304 -- path is the configured manifest location
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return FromJSON(data)
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	return fsutil.WriteAtomic(path, data)
}

// DocumentHash returns the recorded hash for slug.
func (m *Manifest) DocumentHash(slug string) (string, bool) {
	if m == nil {
		return "", false
	}
	h, ok := m.Documents[slug]
	return h, ok
}

// Slugs returns the recorded document slugs, sorted.
func (m *Manifest) Slugs() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Documents))
	for s := range m.Documents {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ImagesDigest hashes every image record so that a change to any source
// image can be folded into the site version.
func (m *Manifest) ImagesDigest() string {
	keys := make([]string, 0, len(m.Images))
	for k := range m.Images {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		rec := m.Images[k]
		fmt.Fprintf(h, "%s=%s", k, rec.SourceHash)
		for _, v := range rec.Variants {
			fmt.Fprintf(h, ";%d:%s", v.Width, v.Path)
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
