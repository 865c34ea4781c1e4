package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/metrics"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageLoadManifest   StageName = "load_manifest"
	StageLoadContent    StageName = "load_content"
	StageAssets         StageName = "assets"
	StageImages         StageName = "images"
	StageOGImages       StageName = "og_images"
	StageSiteVersion    StageName = "site_version"
	StageDocuments      StageName = "documents"
	StageListings       StageName = "listings"
	StagePostProcess    StageName = "post_process"
	StageWritePages     StageName = "write_pages"
	StageFeeds          StageName = "feeds"
	StageLinkCheck      StageName = "link_check"
	StageCommitManifest StageName = "commit_manifest"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying the stage and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline is a fluent builder for ordered stage definitions.
type Pipeline struct{ Defs []StageDef }

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{Defs: make([]StageDef, 0, 16)} }

// Add appends a stage unconditionally.
func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.Defs = append(p.Defs, StageDef{Name: name, Fn: fn})
	return p
}

// Build returns the stage definitions in insertion order.
func (p *Pipeline) Build() []StageDef { return p.Defs }

// runStages executes stages in order, recording timing and stopping on the
// first fatal error. Warnings are recorded and the pipeline continues.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: err}
			bs.Report.recordStage(st.Name, 0, se)
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		}

		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		bs.recorder.ObserveStageDuration(string(st.Name), dur)

		if err == nil {
			bs.Report.recordStage(st.Name, dur, nil)
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultSuccess)
			bs.log.Debug("Stage complete", logfields.Stage(string(st.Name)), logfields.Duration(dur))
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Unknown errors are fatal by default.
			se = &StageError{Kind: StageErrorFatal, Stage: st.Name, Err: err}
		}
		bs.Report.recordStage(st.Name, dur, se)

		switch se.Kind {
		case StageErrorWarning:
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultWarning)
			bs.log.Warn("Stage completed with warnings",
				logfields.Stage(string(st.Name)),
				logfields.Error(se.Err))
			continue
		case StageErrorCanceled:
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
		default:
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultFatal)
		}
		return se
	}
	return nil
}

// logStage returns the build logger annotated with the stage name.
func (bs *BuildState) logStage(name StageName) *slog.Logger {
	return bs.log.With(logfields.Stage(string(name)))
}
