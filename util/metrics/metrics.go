// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medreport_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medreport_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medreport_rate_limit_hits_total",
		Help: "Requests rejected by the rate limiter, by route.",
	}, []string{"route"})

	// LoginAttempts is labelled success, unknown_user or bad_password.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medreport_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"result"})

	// ReportApprovals is labelled approved, conflict, not_found or error.
	ReportApprovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medreport_report_approvals_total",
		Help: "Report approval attempts by outcome.",
	}, []string{"result"})

	PredictionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medreport_prediction_requests_total",
		Help: "Calls to the prediction service by outcome.",
	}, []string{"result"})
)
