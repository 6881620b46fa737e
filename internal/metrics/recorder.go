package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for notice handling, persistence and
// the object graph. Implementations may forward to Prometheus, OpenTelemetry,
// etc. NoopRecorder is the default so callers never nil-check.
type Recorder interface {
	IncNotice(category string)
	IncIntent(kind string)
	IncAnomaly(category string)
	ObserveSaveDuration(kind string, d time.Duration)
	IncSaveResult(kind string, result ResultLabel)
	IncTransportMessage(direction string, result ResultLabel)
	IncJobRun(job string, result ResultLabel)
	SetObjectCount(kind string, connected bool, n int)
	SetTransferSpeed(bytesPerSec int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncNotice(string)                          {}
func (NoopRecorder) IncIntent(string)                          {}
func (NoopRecorder) IncAnomaly(string)                         {}
func (NoopRecorder) ObserveSaveDuration(string, time.Duration) {}
func (NoopRecorder) IncSaveResult(string, ResultLabel)         {}
func (NoopRecorder) IncTransportMessage(string, ResultLabel)   {}
func (NoopRecorder) IncJobRun(string, ResultLabel)             {}
func (NoopRecorder) SetObjectCount(string, bool, int)          {}
func (NoopRecorder) SetTransferSpeed(int64)                    {}

// ResultOf maps an error to a result label.
func ResultOf(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
