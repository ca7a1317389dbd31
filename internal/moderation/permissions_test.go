package moderation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, store Store) *Resolver {
	t.Helper()
	return NewResolver(NewRoleStore(store, nil))
}

func TestEffectiveRole(t *testing.T) {
	assert.Equal(t, GlobalRole(""), EffectiveRole(nil))
	assert.Equal(t, RoleMember, EffectiveRole([]GlobalRole{RoleMember}))
	assert.Equal(t, RoleModerator, EffectiveRole([]GlobalRole{RoleMember, RoleModerator}))
	assert.Equal(t, RoleAdmin, EffectiveRole([]GlobalRole{RoleModerator, RoleAdmin, RoleMember}))

	// Order of assignments must not matter.
	assert.Equal(t, RoleAdmin, EffectiveRole([]GlobalRole{RoleAdmin, RoleModerator}))
	assert.Equal(t, RoleAdmin, EffectiveRole([]GlobalRole{RoleModerator, RoleAdmin}))

	// Unknown values are ignored.
	assert.Equal(t, RoleModerator, EffectiveRole([]GlobalRole{"superuser", RoleModerator}))
	assert.Equal(t, GlobalRole(""), EffectiveRole([]GlobalRole{"superuser"}))
}

func TestResolveAdminHasAllPermissionsEverywhere(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "alice", RoleAdmin))

	resolver := newTestResolver(t, store)

	for _, communityID := range []string{"", "gardening", "never-joined"} {
		ps := resolver.Resolve(ctx, "alice", communityID)
		assert.True(t, ps.CanModeratePosts, "community %q", communityID)
		assert.True(t, ps.CanModerateUsers, "community %q", communityID)
		assert.True(t, ps.CanAssignModerators, "community %q", communityID)
		assert.True(t, ps.CanViewReports, "community %q", communityID)
		assert.True(t, ps.CanModerate, "community %q", communityID)
		assert.Equal(t, RoleAdmin, ps.Role)
	}
}

func TestResolveModeratorScopedToCommunityGrant(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "bob", RoleModerator))
	require.NoError(t, store.GrantCommunityRole(ctx, "bob", "gardening", CommunityRoleModerator))

	resolver := newTestResolver(t, store)

	// Inside the granted community.
	ps := resolver.Resolve(ctx, "bob", "gardening")
	assert.True(t, ps.CanModeratePosts)
	assert.True(t, ps.CanViewReports)
	assert.True(t, ps.CanModerate)
	assert.False(t, ps.CanAssignModerators, "plain community moderator cannot assign")
	assert.False(t, ps.CanModerateUsers)

	// The global role alone carries nothing into other communities.
	ps = resolver.Resolve(ctx, "bob", "cooking")
	assert.Equal(t, PermissionSet{Role: RoleModerator}, ps)

	// No community scope, no capability.
	ps = resolver.Resolve(ctx, "bob", "")
	assert.Equal(t, PermissionSet{Role: RoleModerator}, ps)
}

func TestResolveCommunityGrantNeedsGlobalModeratorRole(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	// Community grant without any global moderator role.
	require.NoError(t, store.GrantCommunityRole(ctx, "carol", "gardening", CommunityRoleOwner))

	resolver := newTestResolver(t, store)

	ps := resolver.Resolve(ctx, "carol", "gardening")
	assert.False(t, ps.CanModeratePosts)
	assert.False(t, ps.CanModerate)
}

func TestResolveCommunityAdminAndOwnerCanAssign(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "dave", RoleModerator))
	require.NoError(t, store.GrantGlobalRole(ctx, "erin", RoleModerator))
	require.NoError(t, store.GrantCommunityRole(ctx, "dave", "gardening", CommunityRoleAdmin))
	require.NoError(t, store.GrantCommunityRole(ctx, "erin", "gardening", CommunityRoleOwner))

	resolver := newTestResolver(t, store)

	assert.True(t, resolver.Resolve(ctx, "dave", "gardening").CanAssignModerators)
	assert.True(t, resolver.Resolve(ctx, "erin", "gardening").CanAssignModerators)
}

func TestResolveCommunityMemberGrantDoesNotModerate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "frank", RoleModerator))
	require.NoError(t, store.GrantCommunityRole(ctx, "frank", "gardening", CommunityRoleMember))

	resolver := newTestResolver(t, store)

	ps := resolver.Resolve(ctx, "frank", "gardening")
	assert.False(t, ps.CanModeratePosts)
	assert.False(t, ps.CanModerate)
}

func TestResolveAnonymousAndUnknownUsers(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver(t, newMemStore())

	// Anonymous.
	assert.Equal(t, PermissionSet{}, resolver.Resolve(ctx, "", "gardening"))

	// A user with no role rows resolves to the member default, not an error.
	ps := resolver.Resolve(ctx, "ghost", "gardening")
	assert.Equal(t, PermissionSet{}, ps)
}

func TestResolveFailsClosedOnStoreError(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "alice", RoleAdmin))
	store.failGlobalRoles = true

	resolver := newTestResolver(t, store)

	ps := resolver.Resolve(ctx, "alice", "gardening")
	assert.False(t, ps.CanModeratePosts, "store failure must degrade to no permissions")
	assert.False(t, ps.CanModerate)
	assert.Equal(t, GlobalRole(""), ps.Role)
}

func TestResolveCommunityLookupFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "bob", RoleModerator))
	require.NoError(t, store.GrantCommunityRole(ctx, "bob", "gardening", CommunityRoleModerator))
	store.failCommunityRole = true

	resolver := newTestResolver(t, store)

	ps := resolver.Resolve(ctx, "bob", "gardening")
	assert.False(t, ps.CanModeratePosts)
	assert.Equal(t, RoleModerator, ps.Role, "global role still resolves")
}

func TestRoleStoreCachesGlobalRoles(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.GrantGlobalRole(ctx, "alice", RoleModerator))

	roles := NewRoleStore(store, NewRoleCache(DefaultRoleCacheTTL))
	require.Equal(t, []GlobalRole{RoleModerator}, roles.Roles(ctx, "alice"))

	// Backend failures are invisible while the cache holds the entry.
	store.failGlobalRoles = true
	assert.Equal(t, []GlobalRole{RoleModerator}, roles.Roles(ctx, "alice"))
}
