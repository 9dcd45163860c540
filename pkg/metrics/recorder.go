// Package metrics records step, watch, and cache observations.
package metrics

import "time"

// Result labels a finished step.
type Result string

const (
	ResultSuccess  Result = "success"
	ResultFailed   Result = "failed"
	ResultCanceled Result = "canceled"
)

// Recorder defines observability hooks for task runs. Implementations may
// forward to Prometheus; NoopRecorder is used when metrics are off.
type Recorder interface {
	ObserveStepDuration(task, step string, d time.Duration)
	IncStepResult(task, step string, result Result)
	IncWatchEvent(pattern string)
	IncCacheResult(hit bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, string, time.Duration) {}
func (NoopRecorder) IncStepResult(string, string, Result)              {}
func (NoopRecorder) IncWatchEvent(string)                              {}
func (NoopRecorder) IncCacheResult(bool)                               {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
