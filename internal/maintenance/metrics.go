package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	retentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semforge_retention_runs_total",
			Help: "Total number of model retention runs by status.",
		},
		[]string{"status"},
	)
	retentionModelsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "semforge_retention_models_deleted_total",
			Help: "Total number of staged models deleted by retention runs.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		retentionRunsTotal,
		retentionModelsDeletedTotal,
	)
}
