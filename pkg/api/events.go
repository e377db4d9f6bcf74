package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/cardex/pkg/realtime"
	"github.com/rubiojr/cardex/pkg/version"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = eventsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CorsMiddleware already allows any origin for the JSON API
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsInit is the first message on a new events connection.
type EventsInit struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	Listeners int    `json:"listeners"`
}

// SetHub enables change notifications. Without a hub, mutations are not
// published and /api/events answers 503.
func (s *Server) SetHub(hub *realtime.Hub) {
	s.hub = hub
}

func (s *Server) publish(ev realtime.Event) {
	if s.hub == nil {
		return
	}
	n := s.hub.Broadcast(ev)
	logger.Debugf("published %s event for %q to %d listeners", ev.Type, ev.CardID, n)
}

// CatalogReloaded drops cached search pages and tells listeners a catalog
// import finished.
func (s *Server) CatalogReloaded(runID string, cards int) {
	s.search.InvalidateCache()
	s.publish(realtime.CatalogReloaded(runID, cards))
}

// HandleEvents streams change events over a WebSocket until the client goes
// away.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Events disabled", "change notifications are not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		logger.Debugf("events upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
	if err := conn.WriteJSON(EventsInit{Type: "init", Version: version.APIVersion(), Listeners: s.hub.Size()}); err != nil {
		return
	}

	// reads only serve to notice the close and answer pings
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debugf("events write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
