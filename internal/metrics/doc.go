// Package metrics provides the observability hooks used by xgrab.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	store := state.Open(backend, state.Options{Recorder: metrics.NoopRecorder{}})
//
// When metrics.enabled is set the daemon swaps in a PrometheusRecorder and
// serves its registry with NewServer on metrics.listen.
package metrics
