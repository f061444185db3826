// Package metrics records render run statistics in Prometheus form.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rowsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajview_rows_loaded",
			Help: "Number of trajectory samples in the loaded table.",
		},
	)

	loadSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajview_load_seconds",
			Help: "Time spent resolving and parsing the trajectory table.",
		},
	)

	framesRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trajview_frames_rendered_total",
			Help: "Total number of frames appended to the output animation.",
		},
	)

	frameRenderSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trajview_frame_render_seconds",
			Help:    "Time to project, draw and append one frame.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(rowsLoaded)
	prometheus.MustRegister(loadSeconds)
	prometheus.MustRegister(framesRendered)
	prometheus.MustRegister(frameRenderSeconds)
}

// ObserveLoad records the loaded table size and how long loading took.
func ObserveLoad(rows int, d time.Duration) {
	rowsLoaded.Set(float64(rows))
	loadSeconds.Set(d.Seconds())
}

// ObserveFrame records one appended frame.
func ObserveFrame(d time.Duration) {
	framesRendered.Inc()
	frameRenderSeconds.Observe(d.Seconds())
}

// WriteTextfile dumps every registered metric in text exposition format,
// for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
