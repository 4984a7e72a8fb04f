package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cashflow",
			Name:      "job_runs_total",
			Help:      "Background job runs by outcome",
		},
		[]string{"job", "outcome"},
	)
	jobItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cashflow",
			Name:      "job_items_total",
			Help:      "Items visited by background jobs by result",
		},
		[]string{"job", "result"},
	)
	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cashflow",
			Name:      "job_duration_seconds",
			Help:      "Duration of background job runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

const (
	jobMaterialize  = "materialize"
	jobApplyPending = "apply_pending"
)

func observeItems(job, result string, n int) {
	if n > 0 {
		jobItemsTotal.WithLabelValues(job, result).Add(float64(n))
	}
}
