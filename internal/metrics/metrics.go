package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage results recorded in crtr_stage_total.
const (
	ResultSuccess = "success"
	ResultAborted = "aborted"
	ResultFailed  = "failed"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// StageTotal counts stage executions.
	// Labels: stage, result (success/aborted/failed)
	StageTotal *prometheus.CounterVec

	// StageDuration observes stage wall time in seconds.
	// Buckets: 0.1s .. 600s, model inference and downloads dominate
	StageDuration *prometheus.HistogramVec

	// ArtifactsTotal counts persisted artifacts by kind (document/raw).
	ArtifactsTotal *prometheus.CounterVec

	// RunsTotal counts finished conversions by final state.
	RunsTotal *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crtr_stage_total",
				Help: "Total number of pipeline stage executions by result",
			},
			[]string{"stage", "result"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crtr_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		ArtifactsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crtr_artifacts_total",
				Help: "Total number of persisted recipe artifacts by kind",
			},
			[]string{"kind"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crtr_runs_total",
				Help: "Total number of conversions by final state",
			},
			[]string{"state"},
		),
	}
	m.Registry.MustRegister(m.StageTotal, m.StageDuration, m.ArtifactsTotal, m.RunsTotal)
	return m
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(stage, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageTotal.WithLabelValues(stage, result).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordArtifact counts a persisted artifact.
func (m *Metrics) RecordArtifact(kind string) {
	if m == nil {
		return
	}
	m.ArtifactsTotal.WithLabelValues(kind).Inc()
}

// RecordRun counts a finished conversion.
func (m *Metrics) RecordRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

// WriteTextfile dumps the registry in the Prometheus text format, e.g. for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
