// Package metrics records run, step and download counters for a flashwf
// process and can export them to a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flashwf"

// Step outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Recorder owns a private registry so several engines (and tests) never
// collide on collector registration. A nil *Recorder discards everything.
type Recorder struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	downloadBytes prometheus.Counter
	lastRun       prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Workflow runs by result",
		}, []string{"result"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Workflow steps by type and outcome",
		}, []string{"type", "outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock time spent executing a step",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"type"}),
		downloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written by Download steps, including failed attempts",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RunFinished counts a completed run
func (r *Recorder) RunFinished(success bool) {
	if r == nil {
		return
	}
	result := OutcomeSuccess
	if !success {
		result = OutcomeFailure
	}
	r.runsTotal.WithLabelValues(result).Inc()
	r.lastRun.SetToCurrentTime()
}

// StepFinished counts an executed step and observes its duration
func (r *Recorder) StepFinished(stepType string, success bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	r.stepsTotal.WithLabelValues(stepType, outcome).Inc()
	r.stepDuration.WithLabelValues(stepType).Observe(elapsed.Seconds())
}

// StepSkipped counts a step whose condition evaluated false
func (r *Recorder) StepSkipped(stepType string) {
	if r == nil {
		return
	}
	r.stepsTotal.WithLabelValues(stepType, OutcomeSkipped).Inc()
}

// AddDownloadBytes adds n to the downloaded byte counter
func (r *Recorder) AddDownloadBytes(n int64) {
	if r != nil && n > 0 {
		r.downloadBytes.Add(float64(n))
	}
}

// WriteTextfile writes every collector in text exposition format to path
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
