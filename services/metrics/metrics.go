// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	ScoreSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feira_score_submissions_total",
			Help: "Total number of score submissions by evaluators",
		},
		[]string{"result"},
	)

	FinalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feira_finalizations_total",
			Help: "Total number of finalize attempts by evaluators",
		},
		[]string{"result"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feira_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"kind", "result"},
	)

	AccessRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feira_access_requests_total",
			Help: "Total number of access requests by outcome",
		},
		[]string{"status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feira_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
