package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCacheGetSet(t *testing.T) {
	cache := NewRoleCache(time.Minute)

	_, found := cache.Get("alice")
	assert.False(t, found)

	cache.Set("alice", []GlobalRole{RoleAdmin})
	roles, found := cache.Get("alice")
	require.True(t, found)
	assert.Equal(t, []GlobalRole{RoleAdmin}, roles)

	// Overwrite resets the entry.
	cache.Set("alice", []GlobalRole{RoleMember})
	roles, found = cache.Get("alice")
	require.True(t, found)
	assert.Equal(t, []GlobalRole{RoleMember}, roles)
}

func TestRoleCacheEmptySetIsCacheable(t *testing.T) {
	cache := NewRoleCache(time.Minute)
	cache.Set("ghost", nil)

	roles, found := cache.Get("ghost")
	assert.True(t, found, "an empty role set is a valid cached answer")
	assert.Empty(t, roles)
}

func TestRoleCacheExpiry(t *testing.T) {
	cache := NewRoleCache(10 * time.Millisecond)
	cache.Set("alice", []GlobalRole{RoleModerator})

	_, found := cache.Get("alice")
	require.True(t, found)

	time.Sleep(20 * time.Millisecond)
	_, found = cache.Get("alice")
	assert.False(t, found, "entry past TTL must not be served")
}

func TestRoleCacheCleanup(t *testing.T) {
	cache := NewRoleCache(10 * time.Millisecond)
	cache.Set("alice", []GlobalRole{RoleAdmin})
	cache.Set("bob", []GlobalRole{RoleMember})

	time.Sleep(25 * time.Millisecond)
	cache.Cleanup()

	cache.mu.RLock()
	remaining := len(cache.entries)
	cache.mu.RUnlock()
	assert.Zero(t, remaining, "entries past twice the TTL are evicted")
}

func TestNewRoleCacheDefaultsTTL(t *testing.T) {
	cache := NewRoleCache(0)
	assert.Equal(t, DefaultRoleCacheTTL, cache.ttl)
}
