package incremental

import (
	"github.com/himu-me/notepress/internal/manifest"
)

// Reason explains a reuse decision.
type Reason string

const (
	ReasonReused        Reason = "reused"
	ReasonNoManifest    Reason = "no_manifest"
	ReasonSiteChanged   Reason = "site_changed"
	ReasonNewDocument   Reason = "new_document"
	ReasonHashChanged   Reason = "hash_changed"
	ReasonOutputMissing Reason = "output_missing"
)

// Decision is the outcome for one document.
type Decision struct {
	Reuse  bool
	Reason Reason
}

// OutputExists reports whether the rendered page for slug is on disk.
type OutputExists func(slug string) bool

// Decider applies the reuse rule: a page is reused only when a previous
// manifest exists, the site version is unchanged, the recorded hash for the
// slug matches, and the output file is present.
type Decider struct {
	prev        *manifest.Manifest
	siteVersion string
	exists      OutputExists
}

// NewDecider returns a Decider comparing against prev, which may be nil.
func NewDecider(prev *manifest.Manifest, siteVersion string, exists OutputExists) *Decider {
	return &Decider{prev: prev, siteVersion: siteVersion, exists: exists}
}

// SiteChanged reports whether the site version differs from the recorded one.
func (d *Decider) SiteChanged() bool {
	return d.prev == nil || d.prev.SiteVersion != d.siteVersion
}

// Decide returns the decision for a document.
func (d *Decider) Decide(slug, hash string) Decision {
	switch {
	case d.prev == nil:
		return Decision{Reason: ReasonNoManifest}
	case d.SiteChanged():
		return Decision{Reason: ReasonSiteChanged}
	}

	recorded, ok := d.prev.DocumentHash(slug)
	switch {
	case !ok:
		return Decision{Reason: ReasonNewDocument}
	case recorded != hash:
		return Decision{Reason: ReasonHashChanged}
	case d.exists == nil || !d.exists(slug):
		return Decision{Reason: ReasonOutputMissing}
	}
	return Decision{Reuse: true, Reason: ReasonReused}
}

// Removed returns slugs recorded in the previous manifest that are absent
// from current.
func (d *Decider) Removed(current map[string]string) []string {
	if d.prev == nil {
		return nil
	}
	var out []string
	for _, slug := range d.prev.Slugs() {
		if _, ok := current[slug]; !ok {
			out = append(out, slug)
		}
	}
	return out
}
