package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by all packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeySlug       = "slug"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyReason     = "reason"
	KeyReused     = "reused"
	KeyRendered   = "rendered"
	KeyCount      = "count"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Slug(s string) slog.Attr          { return slog.String(KeySlug, s) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Reason(r string) slog.Attr        { return slog.String(KeyReason, r) }
func Reused(n int) slog.Attr           { return slog.Int(KeyReused, n) }
func Rendered(n int) slog.Attr         { return slog.Int(KeyRendered, n) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
