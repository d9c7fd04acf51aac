// Package metrics exposes Prometheus metrics for collection runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/refscout/refscout/pkg/video"
)

const namespace = "refscout"

// Run outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusBusy    = "busy"
)

// Metrics holds the collectors on a private registry, so tests and embedding
// programs never clash with the global one.
type Metrics struct {
	reg *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	PooledTotal   *prometheus.CounterVec
	FreshTotal    *prometheus.CounterVec
	SelectedTotal *prometheus.CounterVec
	SavedTotal    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_runs_total",
				Help:      "Total number of collection runs",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_run_duration_seconds",
				Help:      "Duration of collection runs in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		PooledTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_pooled_total",
				Help:      "Unique candidates returned by platform searches",
			},
			[]string{"platform"},
		),
		FreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_fresh_total",
				Help:      "Candidates not yet in the library",
			},
			[]string{"platform"},
		),
		SelectedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "videos_selected_total",
				Help:      "Videos picked by the diversity selector",
			},
			[]string{"platform"},
		),
		SavedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "videos_saved_total",
				Help:      "Videos persisted by collection runs",
			},
			[]string{"platform"},
		),
	}
}

// PlatformDone matches collect.Config.OnPlatformDone.
func (m *Metrics) PlatformDone(p video.Platform, pooled, fresh int) {
	m.PooledTotal.WithLabelValues(string(p)).Add(float64(pooled))
	m.FreshTotal.WithLabelValues(string(p)).Add(float64(fresh))
}

// RunFinished records a finished run. Stored videos are the ones carrying an id.
func (m *Metrics) RunFinished(status string, took time.Duration, videos []video.Item) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(took.Seconds())
	for _, v := range videos {
		m.SelectedTotal.WithLabelValues(string(v.Platform)).Inc()
		if v.ID != "" {
			m.SavedTotal.WithLabelValues(string(v.Platform)).Inc()
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
