package moderation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// newID generates a time-sortable identifier for reports and audit records.
// The nanosecond prefix keeps audit keys chronologically ordered in the
// stores; the random suffix disambiguates IDs minted in the same nanosecond.
func newID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(suffix))
}
