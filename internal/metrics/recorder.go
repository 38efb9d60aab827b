package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcome is the final status of one index build. BuildUnchanged is
// counted in addition to BuildSucceeded when a build reproduces the previous
// fingerprint.
type BuildOutcome string

const (
	BuildSucceeded BuildOutcome = "success"
	BuildFailed    BuildOutcome = "failed"
	BuildCanceled  BuildOutcome = "canceled"
	BuildUnchanged BuildOutcome = "unchanged"
)

// Recorder defines observability hooks for index builds and the read API.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcome)
	SetPublishedDocs(n int)
	ObserveFetchDuration(d time.Duration, success bool)
	IncEventPublish(success bool)
	IncLookup(found bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)               {}
func (NoopRecorder) SetPublishedDocs(int)                       {}
func (NoopRecorder) ObserveFetchDuration(time.Duration, bool)   {}
func (NoopRecorder) IncEventPublish(bool)                       {}
func (NoopRecorder) IncLookup(bool)                             {}

func successLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
