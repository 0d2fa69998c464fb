package metrics

import "time"

// Outcome labels for cycle counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoop    = "noop"
)

// Recorder defines observability hooks for dispatch cycles. Implementations
// may forward to Prometheus; the NoopRecorder allows optional injection.
type Recorder interface {
	ObserveCycleDuration(d time.Duration)
	IncCycleOutcome(outcome string)
	AddDispatched(n int)
	SetLastDispatchSize(n int)
	IncMarkerFailure()
	AddDanglingSubscriptions(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycleDuration(time.Duration) {}
func (NoopRecorder) IncCycleOutcome(string)             {}
func (NoopRecorder) AddDispatched(int)                  {}
func (NoopRecorder) SetLastDispatchSize(int)            {}
func (NoopRecorder) IncMarkerFailure()                  {}
func (NoopRecorder) AddDanglingSubscriptions(int)       {}
