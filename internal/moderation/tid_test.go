package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDUniqueAndOrdered(t *testing.T) {
	seen := make(map[string]struct{})
	var prevStamp string
	for i := 0; i < 100; i++ {
		id := newID()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		stamp, _, found := strings.Cut(id, "-")
		require.True(t, found, "id %s has a timestamp prefix", id)
		if prevStamp != "" {
			assert.GreaterOrEqual(t, stamp, prevStamp, "timestamp prefixes never go backwards")
		}
		prevStamp = stamp
	}
}
