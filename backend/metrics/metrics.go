// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuizJobs counts finished background quiz generations by status: succeeded/failed.
	QuizJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscholars_quiz_jobs_total",
			Help: "Total number of finished quiz generation jobs",
		},
		[]string{"status"},
	)

	// AnswersGraded counts graded submissions. type: mcq/free_text, result: correct/incorrect/fallback.
	AnswersGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finscholars_answers_graded_total",
			Help: "Total number of graded answers",
		},
		[]string{"type", "result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finscholars_active_sessions",
			Help: "Current number of live sessions",
		},
	)

	CachedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finscholars_cached_users",
			Help: "Current number of user records held in memory",
		},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finscholars_llm_request_seconds",
			Help:    "Time spent waiting on the language model",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"purpose", "status"},
	)
)

// Handler serves the default registry through Fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
