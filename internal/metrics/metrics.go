// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes benchmark results and live progress as Prometheus
// metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/report"
)

const namespace = "hwbench"

// Exporter holds the metrics of one process on its own registry.
type Exporter struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	overall       prometheus.Gauge
	subScores     *prometheus.GaugeVec
	measurements  *prometheus.GaugeVec
	trialSeconds  *prometheus.HistogramVec
	progress      *prometheus.GaugeVec
	droppedEvents prometheus.Counter
	lastRun       prometheus.Gauge

	mu       sync.Mutex
	observed map[string]struct{}
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished benchmark runs by terminal status",
			},
			[]string{"status"},
		),
		overall: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_score",
			Help:      "Overall score of the most recent run with a defined score",
		}),
		subScores: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sub_score",
				Help:      "Sub-score of the most recent run per test",
			},
			[]string{"test"},
		),
		measurements: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "measurement",
				Help:      "Scored measurement of the most recent run",
			},
			[]string{"test", "name"},
		),
		trialSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trial_duration_seconds",
				Help:      "Duration of timed trials",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
			},
			[]string{"test", "phase"},
		),
		progress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "test_progress_ratio",
				Help:      "Completed fraction of the running test",
			},
			[]string{"test"},
		),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_progress_events_total",
			Help:      "Progress events discarded because no consumer kept up",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the most recent run",
		}),
		observed: map[string]struct{}{},
	}

	e.registry.MustRegister(
		e.runs,
		e.overall,
		e.subScores,
		e.measurements,
		e.trialSeconds,
		e.progress,
		e.droppedEvents,
		e.lastRun,
	)
	return e
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// ObserveReport records a finished report. A report already observed is
// ignored, so history can be replayed safely.
func (e *Exporter) ObserveReport(r *report.Report) {
	if !r.Status.IsTerminal() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.observed[r.ID]; ok {
		return
	}
	e.observed[r.ID] = struct{}{}

	e.runs.WithLabelValues(string(r.Status)).Inc()
	e.droppedEvents.Add(float64(r.DroppedEvents))
	e.lastRun.Set(float64(r.StartedAt.Unix()))

	if v, ok := r.Overall(); ok {
		e.overall.Set(v)
	}
	for _, k := range r.SubScores.Kinds() {
		sub, _ := r.SubScores.Get(k)
		e.subScores.WithLabelValues(k.String()).Set(sub.Value)
		for _, c := range sub.Components {
			e.measurements.WithLabelValues(k.String(), c.Name).Set(c.Measured)
		}
	}
	for _, k := range r.RawMetrics.Kinds() {
		m, _ := r.RawMetrics.Get(k)
		for _, s := range m.Samples {
			e.trialSeconds.WithLabelValues(k.String(), string(s.Phase)).Observe(s.Elapsed.Seconds())
		}
	}
}

// ObserveEvent tracks the progress of a running test.
func (e *Exporter) ObserveEvent(ev bench.ProgressEvent) {
	switch ev.Stage {
	case bench.StageStarted:
		e.progress.WithLabelValues(ev.Kind.String()).Set(0)
	case bench.StageProgress, bench.StageFinished:
		e.progress.WithLabelValues(ev.Kind.String()).Set(ev.Fraction)
	}
}
