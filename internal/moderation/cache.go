package moderation

import (
	"sync"
	"time"
)

// DefaultRoleCacheTTL is how long cached global role sets remain valid.
const DefaultRoleCacheTTL = 5 * time.Minute

// Cache stores resolved global role sets keyed by user ID. Entries expire by
// TTL only; there is no active invalidation on role change, which leaves a
// bounded staleness window that callers accept in exchange for not hitting
// the backend on every permission check.
type Cache interface {
	Get(userID string) ([]GlobalRole, bool)
	Set(userID string, roles []GlobalRole)
}

type roleEntry struct {
	roles     []GlobalRole
	timestamp time.Time
}

// RoleCache is the default in-memory Cache implementation. Concurrent reads
// during a population race may both hit the backend; last write wins, which
// is acceptable for an idempotent read.
type RoleCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]roleEntry
}

// NewRoleCache creates a RoleCache with the given TTL.
// A non-positive TTL falls back to DefaultRoleCacheTTL.
func NewRoleCache(ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	return &RoleCache{
		ttl:     ttl,
		entries: make(map[string]roleEntry),
	}
}

// Get returns the cached role set for a user if it has not expired.
func (c *RoleCache) Get(userID string) ([]GlobalRole, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[userID]
	if !found || time.Since(entry.timestamp) >= c.ttl {
		return nil, false
	}
	return entry.roles, true
}

// Set stores a role set for a user, resetting its expiry.
func (c *RoleCache) Set(userID string, roles []GlobalRole) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = roleEntry{roles: roles, timestamp: time.Now()}
}

// Cleanup removes entries that expired more than one TTL ago (call periodically).
func (c *RoleCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for userID, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.ttl*2 {
			delete(c.entries, userID)
		}
	}
}
