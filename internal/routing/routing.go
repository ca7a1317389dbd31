package routing

import (
	"net/http"

	"github.com/veranda-social/veranda/internal/handlers"
	"github.com/veranda-social/veranda/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger

	// Identity is the middleware that attaches the session to the request
	// context. The authentication mechanism itself lives outside this core.
	Identity func(http.Handler) http.Handler
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Create CrossOriginProtection for CSRF protection on mutating routes
	cop := http.NewCrossOriginProtection()

	// Permission resolution (public: anonymous callers get the all-false set)
	mux.HandleFunc("GET /api/permissions", h.HandlePermissions)

	// Reports
	mux.Handle("POST /api/reports", cop.Handler(http.HandlerFunc(h.HandleReportSubmit)))
	mux.HandleFunc("GET /api/reports", h.HandleReportList)
	mux.HandleFunc("GET /api/reports/grouped", h.HandleReportGroups)

	// Moderation actions and audit log
	mux.Handle("POST /api/actions", cop.Handler(http.HandlerFunc(h.HandleAction)))
	mux.HandleFunc("GET /api/audit", h.HandleAuditLog)

	// Live updates for moderator dashboards
	mux.HandleFunc("GET /api/dashboard/ws", h.HandleDashboardSocket)

	// Operational endpoints
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.Identity != nil {
		handler = cfg.Identity(handler)
	}
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}
