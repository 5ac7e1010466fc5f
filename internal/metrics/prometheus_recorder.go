package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	buildDuration *prom.HistogramVec
	buildOutcome  *prom.CounterVec
	outputFiles   prom.Gauge
	outputBytes   prom.Gauge
	diagnostics   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "webbundler",
			Name:      "build_duration_seconds",
			Help:      "Duration of bundler invocations by trigger",
			Buckets:   prom.DefBuckets,
		}, []string{"trigger"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webbundler",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by trigger and final status",
		}, []string{"trigger", "outcome"})
		pr.outputFiles = prom.NewGauge(prom.GaugeOpts{
			Namespace: "webbundler",
			Name:      "output_files",
			Help:      "Output file count of the most recent successful build",
		})
		pr.outputBytes = prom.NewGauge(prom.GaugeOpts{
			Namespace: "webbundler",
			Name:      "output_bytes",
			Help:      "Total output size of the most recent successful build",
		})
		pr.diagnostics = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webbundler",
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported by the bundler, by kind",
		}, []string{"kind"})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.outputFiles, pr.outputBytes, pr.diagnostics)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(trigger string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(trigger string, outcome OutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(trigger, string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetOutputFiles(n int) {
	if p == nil || p.outputFiles == nil {
		return
	}
	p.outputFiles.Set(float64(n))
}

func (p *PrometheusRecorder) SetOutputBytes(n int64) {
	if p == nil || p.outputBytes == nil {
		return
	}
	p.outputBytes.Set(float64(n))
}

func (p *PrometheusRecorder) IncDiagnostics(kind string, n int) {
	if p == nil || p.diagnostics == nil {
		return
	}
	p.diagnostics.WithLabelValues(kind).Add(float64(n))
}
