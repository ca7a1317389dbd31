package handlers

import (
	"net/http"

	"github.com/veranda-social/veranda/internal/identity"
	"github.com/veranda-social/veranda/internal/moderation"
)

// HandlePermissions handles GET /api/permissions. The UI calls this before
// rendering any moderation control. Unauthenticated callers get the all-false
// set rather than an error so the client can always render the
// least-privileged view.
func (h *Handler) HandlePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	communityID := r.URL.Query().Get("community_id")

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeJSON(w, http.StatusOK, moderation.PermissionSet{})
		return
	}

	// A role hint on the session means roles are about to be checked often;
	// warm the cache. The hint's value itself is never trusted.
	if session.RoleHint != "" {
		h.roles.Warm(ctx, session.ID)
	}

	writeJSON(w, http.StatusOK, h.resolver.Resolve(ctx, session.ID, communityID))
}
