package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	modelsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semforge_models_generated_total",
			Help: "Total number of semantic model generations by status.",
		},
		[]string{"status"},
	)
	factsSelectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "semforge_facts_selected_total",
			Help: "Total number of facts selected into generated models.",
		},
	)
	factsMissingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "semforge_facts_missing_total",
			Help: "Total number of requested fact names absent from the library.",
		},
	)
	modelBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "semforge_model_bytes",
			Help:    "Encoded size of generated semantic models in bytes.",
			Buckets: []float64{1024, 4096, 16384, 65536, 131072, 262144, 524288},
		},
	)
	modelUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semforge_model_uploads_total",
			Help: "Total number of model uploads to the object store by status.",
		},
		[]string{"status"},
	)
	analystRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semforge_analyst_requests_total",
			Help: "Total number of analyst message requests by status.",
		},
		[]string{"status"},
	)
	analystLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "semforge_analyst_latency_seconds",
			Help:    "Analyst message round-trip latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		modelsGeneratedTotal,
		factsSelectedTotal,
		factsMissingTotal,
		modelBytes,
		modelUploadsTotal,
		analystRequestsTotal,
		analystLatencySeconds,
	)
}

func ObserveModelGenerated(status string, selected, missing, encodedBytes int) {
	modelsGeneratedTotal.WithLabelValues(status).Inc()
	if selected > 0 {
		factsSelectedTotal.Add(float64(selected))
	}
	if missing > 0 {
		factsMissingTotal.Add(float64(missing))
	}
	if encodedBytes > 0 {
		modelBytes.Observe(float64(encodedBytes))
	}
}

func ObserveModelUpload(status string) {
	modelUploadsTotal.WithLabelValues(status).Inc()
}

func ObserveAnalystRequest(status string, elapsed time.Duration) {
	analystRequestsTotal.WithLabelValues(status).Inc()
	analystLatencySeconds.Observe(elapsed.Seconds())
}
