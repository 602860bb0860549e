// Package metrics is a minimal metrics facade for the pipeline.
//
// Pipeline code records counters and histograms through package-level
// helpers; which backend actually receives them is decided once at process
// start via SetBackend. The default backend discards everything, so code
// paths never need to check whether metrics are enabled.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions, e.g. {"step": "facts", "status": "ok"}.
type Labels map[string]string

// Backend receives recorded metrics.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer metrics and can submit
// them on demand.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call once during startup,
// before pipeline stages run.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// Flush flushes the installed backend if it buffers.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()

	if f, ok := b.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one histogram sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// StepDone records the standard per-step triple: a completion counter, a
// duration sample, and optionally a record count.
func StepDone(step, status string, d time.Duration, records int64, kind string) {
	labels := Labels{"step": step, "status": status}
	IncCounter("etl_step_total", 1, labels)
	ObserveHistogram("etl_step_duration_seconds", d.Seconds(), labels)
	if records > 0 && kind != "" {
		IncCounter("etl_records_total", float64(records), Labels{"kind": kind})
	}
}
