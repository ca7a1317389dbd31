package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/veranda-social/veranda/internal/moderation"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	store    moderation.Store
	roles    *moderation.RoleStore
	resolver *moderation.Resolver
	reports  *moderation.ReportManager
	engine   *moderation.Engine
	notifier *moderation.Notifier
}

// New creates a Handler wired to the moderation core.
func New(store moderation.Store, roles *moderation.RoleStore, resolver *moderation.Resolver,
	reports *moderation.ReportManager, engine *moderation.Engine, notifier *moderation.Notifier) *Handler {
	return &Handler{
		store:    store,
		roles:    roles,
		resolver: resolver,
		reports:  reports,
		engine:   engine,
		notifier: notifier,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// resultStatus maps a business result code to an HTTP status.
func resultStatus(code moderation.ResultCode) int {
	switch code {
	case moderation.CodeOK:
		return http.StatusOK
	case moderation.CodeNotFound:
		return http.StatusNotFound
	case moderation.CodeUnauthorized:
		return http.StatusForbidden
	case moderation.CodeInvalid:
		return http.StatusBadRequest
	case moderation.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
