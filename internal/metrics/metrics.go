package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veranda_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation metrics
var (
	ReportsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veranda_reports_created_total",
		Help: "Total number of reports filed",
	})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_moderation_actions_total",
		Help: "Total number of moderation actions applied, by action type",
	}, []string{"action"})

	PermissionChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_permission_checks_total",
		Help: "Total number of permission resolutions, by outcome class",
	}, []string{"outcome"})

	PermissionDenialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veranda_permission_denials_total",
		Help: "Total number of moderation actions denied by the engine's permission check",
	})
)

// Notifier metrics
var (
	NotifierEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_notifier_events_total",
		Help: "Total number of live update events delivered, by kind",
	}, []string{"kind"})

	NotifierDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veranda_notifier_dropped_total",
		Help: "Total number of live update events dropped on full buffers",
	})

	DashboardSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veranda_dashboard_sessions",
		Help: "Number of connected moderator dashboard sessions",
	})
)

// Business gauges (updated periodically by the collector)
var (
	ReportsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veranda_reports_pending",
		Help: "Number of reports currently pending review",
	})

	AuditRecordsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veranda_audit_records_total",
		Help: "Total number of audit records in the action log",
	})
)

// NormalizePath collapses dynamic path segments so metrics cardinality stays
// bounded.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}

	segments := strings.Split(path, "/")
	if len(segments) >= 4 && segments[1] == "api" {
		switch segments[2] {
		case "reports", "actions":
			if segments[3] == "grouped" {
				return path
			}
			return "/api/" + segments[2] + "/:id"
		case "content":
			return "/api/content/:type/:id"
		}
	}
	return path
}
