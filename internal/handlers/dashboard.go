package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/veranda-social/veranda/internal/identity"
	"github.com/veranda-social/veranda/internal/moderation"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait is how long a single frame write may take before the
	// connection is considered dead.
	writeWait = 10 * time.Second

	// pongWait bounds how long the connection lives without a pong.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// subscribeFrame is the JSON control frame a dashboard sends to choose which
// communities it wants events for. Sending a new frame replaces the prior
// subscription. An empty list means all communities for global admins;
// moderators must name communities, and only the ones their community grants
// cover take effect.
type subscribeFrame struct {
	Communities []string `json:"communities"`
}

// HandleDashboardSocket handles GET /api/dashboard/ws. It streams report and
// action events to a moderator dashboard. The stream is a latency
// optimization, not a consistency mechanism: dashboards re-fetch the
// authoritative lists on mount and on manual refresh, so a dropped event is
// recoverable.
func (h *Handler) HandleDashboardSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	// Global admins see everything; global moderators get a socket filtered
	// by the community subscriptions they send. Plain members get nothing.
	ps := h.resolver.Resolve(ctx, session.ID, "")
	admin := ps.CanViewReports
	if !admin && ps.Role != moderation.RoleModerator {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", session.ID).Msg("dashboard: websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := session.ID + ":" + r.RemoteAddr

	// Admins receive everything immediately. Moderators receive nothing until
	// a subscribe frame names communities, and each named community is checked
	// against the caller's grants so the stream never widens beyond the report
	// queues they can already read.
	var events <-chan moderation.Event
	if admin {
		events = h.notifier.Subscribe(sessionID, nil)
	}
	defer h.notifier.Unsubscribe(sessionID)

	log.Info().Str("user_id", session.ID).Msg("dashboard: session connected")

	// Reader goroutine: subscription frames and pongs. Replacement channels
	// are handed to the writer loop, never shared directly.
	replaced := make(chan (<-chan moderation.Event), 1)
	go func() {
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame subscribeFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Debug().Err(err).Str("user_id", session.ID).Msg("dashboard: ignoring malformed frame")
				continue
			}
			communities := frame.Communities
			if !admin {
				granted := make([]string, 0, len(communities))
				for _, id := range communities {
					if id == "" {
						continue
					}
					if h.resolver.Resolve(ctx, session.ID, id).CanViewReports {
						granted = append(granted, id)
					}
				}
				if len(granted) == 0 {
					log.Debug().Str("user_id", session.ID).Msg("dashboard: no granted communities in frame, dropping subscription")
					h.notifier.Unsubscribe(sessionID)
					continue
				}
				communities = granted
			}
			ch := h.notifier.Subscribe(sessionID, communities)
			select {
			case replaced <- ch:
			default:
				// Writer hasn't drained the previous handoff; drop the older
				// one in favor of the latest subscription.
				select {
				case <-replaced:
				default:
				}
				replaced <- ch
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ch := <-replaced:
			events = ch
		case ev, open := <-events:
			if !open {
				// Subscription replaced or torn down; wait for the handoff.
				events = nil
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("user_id", session.ID).Msg("dashboard: write failed, closing session")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
