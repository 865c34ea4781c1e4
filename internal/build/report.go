package build

import (
	"time"

	"github.com/himu-me/notepress/internal/linkverify"
)

// Outcome is the typed enumeration of final build result states.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeWarning     Outcome = "warning"
	OutcomeBrokenLinks Outcome = "broken_links"
	OutcomeFailed      Outcome = "failed"
	OutcomeCanceled    Outcome = "canceled"
)

// StageCount tallies results for one stage.
type StageCount struct {
	Success  int
	Warning  int
	Fatal    int
	Canceled int
}

// Report captures what one build did.
type Report struct {
	BuildID     string
	Start       time.Time
	End         time.Time
	Incremental bool
	SiteChanged bool
	SiteVersion string

	// Documents is the number of published documents; Rendered and Reused
	// split it by cache decision.
	Documents int
	Rendered  int
	Reused    int
	// Reasons counts cache decisions by reason.
	Reasons map[string]int
	Removed []string

	PagesWritten  int
	AssetsCopied  int
	ImagesEncoded int
	ImagesReused  int
	OGGenerated   int
	BrokenLinks   []linkverify.Broken

	StageDurations  map[StageName]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount
	Warnings        []error
	Errors          []error
	Outcome         Outcome
}

func newReport(buildID string, start time.Time) *Report {
	return &Report{
		BuildID:         buildID,
		Start:           start,
		Reasons:         make(map[string]int),
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
	}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

func (r *Report) recordStage(name StageName, d time.Duration, se *StageError) {
	r.StageDurations[name] = d
	sc := r.StageCounts[name]
	if se == nil {
		sc.Success++
		r.StageCounts[name] = sc
		return
	}
	r.StageErrorKinds[name] = se.Kind
	switch se.Kind {
	case StageErrorWarning:
		sc.Warning++
		r.Warnings = append(r.Warnings, se)
	case StageErrorCanceled:
		sc.Canceled++
		r.Errors = append(r.Errors, se)
	default:
		sc.Fatal++
		r.Errors = append(r.Errors, se)
	}
	r.StageCounts[name] = sc
}

// deriveOutcome sets Outcome from the recorded errors and link results.
func (r *Report) deriveOutcome() {
	switch {
	case hasKind(r.StageErrorKinds, StageErrorCanceled):
		r.Outcome = OutcomeCanceled
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
	case len(r.BrokenLinks) > 0:
		r.Outcome = OutcomeBrokenLinks
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

func hasKind(kinds map[StageName]StageErrorKind, k StageErrorKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}
