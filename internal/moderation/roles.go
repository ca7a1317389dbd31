package moderation

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RoleStore resolves a user's global and community-scoped roles.
// Global role sets are cached; community roles are looked up fresh so
// promotions and demotions take effect immediately.
//
// All lookups fail closed: when role data cannot be resolved the caller sees
// an empty role set, never an error. Permission resolution then degrades to
// "no permissions" instead of crashing the calling surface.
type RoleStore struct {
	store Store
	cache Cache
}

// NewRoleStore creates a RoleStore. A nil cache disables caching.
func NewRoleStore(store Store, cache Cache) *RoleStore {
	return &RoleStore{store: store, cache: cache}
}

// Roles returns all global role assignments for a user.
// Results are cached per user for the cache's TTL.
func (rs *RoleStore) Roles(ctx context.Context, userID string) []GlobalRole {
	if userID == "" {
		return nil
	}

	if rs.cache != nil {
		if roles, found := rs.cache.Get(userID); found {
			return roles
		}
	}

	roles, err := rs.store.GlobalRoles(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("roles: global role lookup failed, treating as no roles")
		return nil
	}

	if rs.cache != nil {
		rs.cache.Set(userID, roles)
	}
	return roles
}

// CommunityRole returns the user's role within one community, if any.
// Not cached: low call volume, and the result must reflect the current
// membership state.
func (rs *RoleStore) CommunityRole(ctx context.Context, userID, communityID string) (CommunityRole, bool) {
	if userID == "" || communityID == "" {
		return "", false
	}

	role, found, err := rs.store.CommunityRole(ctx, userID, communityID)
	if err != nil {
		log.Warn().Err(err).
			Str("user_id", userID).
			Str("community_id", communityID).
			Msg("roles: community role lookup failed, treating as no grant")
		return "", false
	}
	return role, found
}

// Warm pre-populates the cache for a user. Sessions arrive carrying a role
// hint from the identity provider; the hint is never trusted as a role value,
// only as a suggestion that this user's roles are about to be checked.
func (rs *RoleStore) Warm(ctx context.Context, userID string) {
	rs.Roles(ctx, userID)
}
