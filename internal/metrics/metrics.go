// Package metrics provides Prometheus metrics for the mutation engines and the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Drag gestures by outcome: committed, cancelled, rejected.
	GesturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_gestures_total",
			Help: "Drag gestures by outcome",
		},
		[]string{"outcome"},
	)

	// Optimistic tree operations by op and final phase.
	OptimisticOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_optimistic_ops_total",
			Help: "Optimistic tree operations by final phase",
		},
		[]string{"op", "phase"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_uploads_total",
			Help: "Attachment uploads by result",
		},
		[]string{"result"},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checklist_upload_duration_seconds",
			Help:    "Time from placeholder insert to reconcile or rollback",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	PreviewsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checklist_previews_open",
			Help: "Local preview references currently allocated",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_http_requests_total",
			Help: "API requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checklist_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)
