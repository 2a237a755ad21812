package api

import (
	"time"

	"gaze_service/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	predictions    *prometheus.CounterVec
	predictLatency prometheus.Histogram
	samples        prometheus.Counter
}

// NewMetrics registers the service collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gaze_predictions_total",
			Help: "Prediction requests by outcome status and final stage.",
		}, []string{"status", "stage"}),
		predictLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gaze_prediction_duration_seconds",
			Help:    "End-to-end prediction latency.",
			Buckets: prometheus.DefBuckets,
		}),
		samples: f.NewCounter(prometheus.CounterOpts{
			Name: "gaze_samples_ingested_total",
			Help: "Raw gaze samples stored through the API.",
		}),
	}
}

func (m *Metrics) observePrediction(res core.Result, elapsed time.Duration) {
	m.predictions.WithLabelValues(string(res.Status), string(res.Stage)).Inc()
	m.predictLatency.Observe(elapsed.Seconds())
}
