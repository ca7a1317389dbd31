package moderation

import (
	"context"

	"github.com/veranda-social/veranda/internal/metrics"
)

// Resolver computes effective permission sets for (user, community) pairs.
type Resolver struct {
	roles *RoleStore
}

// NewResolver creates a Resolver backed by the given role store.
func NewResolver(roles *RoleStore) *Resolver {
	return &Resolver{roles: roles}
}

// Resolve computes the PermissionSet for a user, optionally scoped to a
// community. Resolution is a pure read; the only side effect is the role
// store's cache population.
//
// Global admins get every capability everywhere. A global moderator gains
// capability only inside communities where a moderation-capable community
// role is also granted: the community grant is authoritative for scoping and
// the global role is necessary but not sufficient. Everyone else, including
// unauthenticated callers and users whose role data cannot be resolved, gets
// the all-false member default.
func (r *Resolver) Resolve(ctx context.Context, userID, communityID string) PermissionSet {
	if userID == "" {
		metrics.PermissionChecksTotal.WithLabelValues("anonymous").Inc()
		return PermissionSet{}
	}

	effective := EffectiveRole(r.roles.Roles(ctx, userID))
	ps := PermissionSet{Role: effective}

	if effective == RoleAdmin {
		ps.CanModeratePosts = true
		ps.CanModerateUsers = true
		ps.CanAssignModerators = true
		ps.CanViewReports = true
		ps.CanModerate = true
		metrics.PermissionChecksTotal.WithLabelValues("admin").Inc()
		return ps
	}

	if effective == RoleModerator && communityID != "" {
		if cr, found := r.roles.CommunityRole(ctx, userID, communityID); found && cr.CanModerateCommunity() {
			ps.CanModeratePosts = true
			ps.CanViewReports = true
			ps.CanAssignModerators = cr == CommunityRoleAdmin || cr == CommunityRoleOwner
			ps.CanModerate = true
			metrics.PermissionChecksTotal.WithLabelValues("community_moderator").Inc()
			return ps
		}
	}

	metrics.PermissionChecksTotal.WithLabelValues("member").Inc()
	return ps
}
