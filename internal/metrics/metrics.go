// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task operations
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpToggle   = "toggle"
	OpDelete   = "delete"
	OpGenerate = "generate"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_http_requests_total",
			Help: "Number of HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasks_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TaskOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_operations_total",
			Help: "Persisted task mutations by operation.",
		},
		[]string{"operation"},
	)

	TaskListCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_list_cache_lookups_total",
			Help: "Task list cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)
