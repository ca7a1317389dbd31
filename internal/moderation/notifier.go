package moderation

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/veranda-social/veranda/internal/metrics"
)

// DefaultEventBuffer is the per-subscription channel depth. When a dashboard
// falls behind, newer events are dropped rather than blocking publishers;
// delivery is at-most-once and dashboards re-fetch authoritative lists.
const DefaultEventBuffer = 32

type subscription struct {
	key         string
	communities map[string]struct{}
	ch          chan Event
}

func (s *subscription) wants(communityID string) bool {
	if len(s.communities) == 0 {
		return true // empty set subscribes to all communities
	}
	_, found := s.communities[communityID]
	return found
}

// Notifier fans report and action events out to subscribed dashboard
// sessions. Each session holds at most one subscription, keyed by the sorted
// set of community ids it asked for; re-subscribing with a changed set tears
// the old subscription down first so no listener leaks.
type Notifier struct {
	mu       sync.RWMutex
	sessions map[string]*subscription
	buffer   int
}

// NewNotifier creates a Notifier with the default event buffer.
func NewNotifier() *Notifier {
	return &Notifier{
		sessions: make(map[string]*subscription),
		buffer:   DefaultEventBuffer,
	}
}

// subscriptionKey canonicalizes a community id set.
func subscriptionKey(communityIDs []string) string {
	ids := make([]string, 0, len(communityIDs))
	seen := make(map[string]struct{}, len(communityIDs))
	for _, id := range communityIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// Subscribe registers a session for events in the given communities. An empty
// id set subscribes to all communities. Re-subscribing with the same set is a
// no-op returning the existing channel; a changed set replaces the prior
// subscription, closing its channel.
func (n *Notifier) Subscribe(sessionID string, communityIDs []string) <-chan Event {
	key := subscriptionKey(communityIDs)

	n.mu.Lock()
	defer n.mu.Unlock()

	if existing, found := n.sessions[sessionID]; found {
		if existing.key == key {
			return existing.ch
		}
		close(existing.ch)
	}

	communities := make(map[string]struct{})
	for _, id := range strings.Split(key, ",") {
		if id != "" {
			communities[id] = struct{}{}
		}
	}

	sub := &subscription{
		key:         key,
		communities: communities,
		ch:          make(chan Event, n.buffer),
	}
	n.sessions[sessionID] = sub

	log.Debug().Str("session_id", sessionID).Str("communities", key).Msg("notifier: subscribed")
	return sub.ch
}

// Unsubscribe tears down a session's subscription, closing its channel.
func (n *Notifier) Unsubscribe(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, found := n.sessions[sessionID]; found {
		close(sub.ch)
		delete(n.sessions, sessionID)
	}
}

// Publish delivers an event to every subscription matching its community.
// Sends never block: a full buffer drops the event for that session.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for sessionID, sub := range n.sessions {
		if !sub.wants(ev.CommunityID) {
			continue
		}
		select {
		case sub.ch <- ev:
			metrics.NotifierEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
		default:
			log.Debug().Str("session_id", sessionID).Str("kind", string(ev.Kind)).Msg("notifier: buffer full, event dropped")
			metrics.NotifierDroppedTotal.Inc()
		}
	}
}

// Sessions returns the number of active subscriptions.
func (n *Notifier) Sessions() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.sessions)
}
