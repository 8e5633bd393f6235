// Package metrics provides the abstract instrumentation types used by the
// actor runtime, so that backends (Prometheus, StatsD, ...) can be plugged in
// without the core importing any of them.
package metrics

// Timer measures the duration of one operation. Create it when the operation
// starts and call ObserveDuration when it ends:
//
//	defer m.MessageDuration("app.Ping").ObserveDuration()
type Timer interface {
	// ObserveDuration records the time elapsed since the timer was created.
	ObserveDuration()
}
