package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MembershipsGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytehub_memberships_granted_total",
			Help: "Total number of membership grants by source",
		},
		[]string{"source"},
	)

	MembershipsRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bytehub_memberships_revoked_total",
			Help: "Total number of revoke calls that canceled at least one entry",
		},
	)

	BoostsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bytehub_boosts_granted_total",
			Help: "Total number of boost entitlements created",
		},
	)

	BoostsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bytehub_boosts_applied_total",
			Help: "Total number of boosts assigned to a server",
		},
	)

	BoostsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bytehub_boosts_removed_total",
			Help: "Total number of boosts returned to inventory",
		},
	)

	PanelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bytehub_panels_created_total",
			Help: "Total number of control panels provisioned",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytehub_events_published_total",
			Help: "Total number of domain events published by result",
		},
		[]string{"event", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytehub_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bytehub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
