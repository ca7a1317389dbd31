package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/veranda-social/veranda/internal/identity"
	"github.com/veranda-social/veranda/internal/moderation"
	"github.com/veranda-social/veranda/internal/tracing"

	"github.com/rs/zerolog/log"
)

// actionRequest is the request body for taking a moderation action.
type actionRequest struct {
	Type        string `json:"type"`
	ReportID    string `json:"report_id,omitempty"`
	TargetType  string `json:"target_type,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// HandleAction handles POST /api/actions. The engine re-validates the
// caller's permissions before writing anything; this endpoint just binds the
// session identity into the request.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx, span := tracing.ActionSpan(ctx, req.Type, req.TargetType, req.TargetID)
	result := h.engine.TakeAction(ctx, moderation.ActionRequest{
		ModeratorID: session.ID,
		Type:        moderation.ActionType(req.Type),
		ReportID:    req.ReportID,
		TargetType:  moderation.TargetType(req.TargetType),
		TargetID:    req.TargetID,
		Description: req.Description,
		Reason:      req.Reason,
	})
	span.End()

	writeJSON(w, resultStatus(result.Code), result)
}

// auditResponse carries a slice of audit records.
type auditResponse struct {
	Actions []moderation.Action `json:"actions"`
}

// HandleAuditLog handles GET /api/audit: the most recent moderation actions.
// Optional target_type + target_id narrow it to one content item.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	communityID := q.Get("community_id")
	ps := h.resolver.Resolve(ctx, session.ID, communityID)
	if !ps.CanViewReports {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))

	var actions []moderation.Action
	var err error
	if targetID := q.Get("target_id"); targetID != "" {
		actions, err = h.engine.AuditTrail(ctx, moderation.TargetType(q.Get("target_type")), targetID, limit)
	} else {
		actions, err = h.engine.RecentAuditLog(ctx, limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("handlers: failed to load audit log")
		writeError(w, "Failed to load audit log", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, auditResponse{Actions: actions})
}
