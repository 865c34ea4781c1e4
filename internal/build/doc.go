// Package build runs the site build as an ordered list of stages.
//
// A build loads the previous manifest, loads the notes, prepares assets
// and the site version, then renders only the documents whose source hash
// or site version changed. Listings, feeds and the sitemap are regenerated
// on every build but written only when their bytes differ. The manifest is
// committed last, so a failed build leaves the previous one authoritative.
package build
