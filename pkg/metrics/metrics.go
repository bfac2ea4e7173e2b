// Package metrics exposes per-run counters in Prometheus format. The CLI is
// short lived, so instead of serving them the registry is written to a
// textfile for the node exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

type RunMetrics struct {
	registry *prometheus.Registry

	runsTotal     prometheus.Counter
	imagesTotal   *prometheus.CounterVec
	buildings     prometheus.Counter
	filesMoved    prometheus.Counter
	failuresTotal *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

func NewRunMetrics() *RunMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fissura",
		Name:      "runs_total",
		Help:      "Processing runs completed.",
	})
	imagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fissura",
			Name:      "images_total",
			Help:      "Images seen by result of metadata extraction.",
		},
		[]string{"result"},
	)
	buildings := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fissura",
		Name:      "buildings_total",
		Help:      "Building groups produced.",
	})
	filesMoved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fissura",
		Name:      "files_moved_total",
		Help:      "Images copied into the project tree.",
	})
	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fissura",
			Name:      "failures_total",
			Help:      "Recovered failures by kind.",
		},
		[]string{"kind"},
	)
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fissura",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a processing run in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	registry.MustRegister(runsTotal, imagesTotal, buildings, filesMoved, failuresTotal, runDuration)

	return &RunMetrics{
		registry:      registry,
		runsTotal:     runsTotal,
		imagesTotal:   imagesTotal,
		buildings:     buildings,
		filesMoved:    filesMoved,
		failuresTotal: failuresTotal,
		runDuration:   runDuration,
	}
}

// Registry exposes the underlying registry
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records the outcome of one pipeline run
func (m *RunMetrics) ObserveRun(stats models.ProcessingStats, moved int, elapsed time.Duration) {
	m.runsTotal.Inc()
	m.imagesTotal.WithLabelValues("with_gps").Add(float64(stats.ImagesWithGPS))
	m.imagesTotal.WithLabelValues("without_gps").Add(float64(stats.ImagesWithoutGPS))
	m.imagesTotal.WithLabelValues("with_direction").Add(float64(stats.ImagesWithDirection))
	m.buildings.Add(float64(stats.BuildingGroups))
	m.filesMoved.Add(float64(moved))
	for _, f := range stats.Failures {
		m.failuresTotal.WithLabelValues(f.Kind.String()).Inc()
	}
	m.runDuration.Observe(elapsed.Seconds())
}

// WriteTextfile writes the registry in text exposition format to path
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
