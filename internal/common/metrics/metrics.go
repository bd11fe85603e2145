// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_scheduler_runs_total",
			Help: "Total number of scheduler passes",
		},
		[]string{"pass"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"trigger"},
	)

	CouponsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_coupons_created_total",
			Help: "Total number of auto-provisioned coupons created",
		},
	)

	RunErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_run_errors_total",
			Help: "Total number of per-item errors during scheduler passes",
		},
		[]string{"pass"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notifier_run_duration_seconds",
			Help: "Duration of scheduler passes in seconds",
		},
		[]string{"pass"},
	)
)
