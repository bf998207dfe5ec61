package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

var (
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persona_moderation_tasks_processed_total",
		Help: "Moderation tasks handled by the worker, by outcome.",
	}, []string{"outcome"})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "persona_moderation_task_duration_seconds",
		Help:    "Time spent scanning one moderation task.",
		Buckets: prometheus.DefBuckets,
	})
)
