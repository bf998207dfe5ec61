package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess         = "success"
	statusSuccessEstimate = "success_estimated"
	statusError           = "error"
	statusErrorEmpty      = "error_empty_response"
	statusErrorStreamInit = "error_stream_init"
	statusErrorStreamRead = "error_stream_read"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_ai_requests_total",
			Help: "Total number of requests to AI backends.",
		},
		[]string{"provider", "model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "persona_ai_request_duration_seconds",
			Help:    "Histogram of AI backend request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "persona_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"provider", "model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "persona_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(50, 50, 20),
		},
		[]string{"provider", "model"},
	)
	aiToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_ai_tool_calls_total",
			Help: "Function calls returned by structured backends.",
		},
		[]string{"model", "function"},
	)
)

func recordFailure(provider, model, status string) {
	aiRequestsTotal.WithLabelValues(provider, model, status).Inc()
}

func recordSuccess(provider, model string, elapsed time.Duration, u Usage) {
	status := statusSuccess
	if u.Estimated {
		status = statusSuccessEstimate
	}
	aiRequestsTotal.WithLabelValues(provider, model, status).Inc()
	aiRequestDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	if u.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(provider, model).Observe(float64(u.PromptTokens))
		aiCompletionTokens.WithLabelValues(provider, model).Observe(float64(u.CompletionTokens))
	}
}
