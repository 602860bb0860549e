// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// Counters and histograms accumulate in a private registry; Flush pushes
// the whole registry to the gateway under the configured job name. Batch
// jobs call Flush once at exit, so the gateway keeps the final state of
// the run.
package prompush

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ecomdw/internal/metrics"
)

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	stepTotal     *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	stepDurations *prometheus.HistogramVec
}

// NewBackend constructs a backend pushing to gatewayURL under job.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		job = "ecomdw"
	}
	if _, err := url.ParseRequestURI(gatewayURL); err != nil {
		return nil, fmt.Errorf("prompush: invalid gateway url %q: %w", gatewayURL, err)
	}

	reg := prometheus.NewRegistry()

	stepTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_step_total",
		Help: "Pipeline steps completed, by step and status.",
	}, []string{"step", "status"})

	recordsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_records_total",
		Help: "Records written, by kind.",
	}, []string{"kind"})

	stepDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etl_step_duration_seconds",
		Help:    "Pipeline step duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"step", "status"})

	for _, c := range []prometheus.Collector{stepTotal, recordsTotal, stepDurations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		registry:      reg,
		pusher:        push.New(gatewayURL, job).Gatherer(reg),
		stepTotal:     stepTotal,
		recordsTotal:  recordsTotal,
		stepDurations: stepDurations,
	}, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case "etl_step_total":
		b.stepTotal.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "etl_records_total":
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.recordsTotal.WithLabelValues(kind).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	if name == "etl_step_duration_seconds" {
		b.stepDurations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	}
}

// Flush pushes the registry to the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
var _ metrics.Flusher = (*Backend)(nil)
