package metrics

import "time"

// OutcomeLabel enumerates build outcome categories for counters.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeSkipped  OutcomeLabel = "skipped"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build metrics. Implementations may
// forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil
// receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveBuildDuration(trigger string, d time.Duration)
	IncBuildOutcome(trigger string, outcome OutcomeLabel)
	SetOutputFiles(n int)
	SetOutputBytes(n int64)
	IncDiagnostics(kind string, n int) // kind: warning|error
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string, OutcomeLabel)       {}
func (NoopRecorder) SetOutputFiles(int)                         {}
func (NoopRecorder) SetOutputBytes(int64)                       {}
func (NoopRecorder) IncDiagnostics(string, int)                 {}
