// Package realtime is an in-process publish/subscribe hub that fans out
// collection, wishlist and catalog change events to connected listeners such
// as WebSocket sessions.
//
// Delivery is best effort. A listener whose buffer is full misses the event;
// writers are never blocked by slow readers. There is no persistence or
// replay: a client that reconnects should refetch the state it displays.
package realtime

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeCollection = "collection"
	TypeWishlist   = "wishlist"
	TypeCatalog    = "catalog"
)

// DefaultBufferSize is the per-listener buffer used when NewHub gets <= 0.
const DefaultBufferSize = 32

// Event describes one change. CardID is set for collection and wishlist
// events; Qty is the card's quantity after a collection change (0 once the
// card is gone); Wishlisted reports membership after a wishlist change.
// Catalog events carry the import counters instead.
type Event struct {
	Type       string    `json:"type"`
	CardID     string    `json:"card_id,omitempty"`
	Qty        *int      `json:"qty,omitempty"`
	Wishlisted *bool     `json:"wishlisted,omitempty"`
	Priority   int       `json:"priority,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Cards      int       `json:"cards,omitempty"`
	Time       time.Time `json:"time"`
}

// CollectionChanged builds a collection event.
func CollectionChanged(cardID string, qty int) Event {
	return Event{Type: TypeCollection, CardID: cardID, Qty: &qty, Time: time.Now().UTC()}
}

// WishlistChanged builds a wishlist event. priority is ignored when the
// card left the wishlist.
func WishlistChanged(cardID string, wishlisted bool, priority int) Event {
	ev := Event{Type: TypeWishlist, CardID: cardID, Wishlisted: &wishlisted, Time: time.Now().UTC()}
	if wishlisted {
		ev.Priority = priority
	}
	return ev
}

// CatalogReloaded builds a catalog event for a finished import.
func CatalogReloaded(runID string, cards int) Event {
	return Event{Type: TypeCatalog, RunID: runID, Cards: cards, Time: time.Now().UTC()}
}

// Hub is a concurrency-safe fan-out dispatcher. Each listener gets its own
// buffered channel.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub creates a hub with the given per-listener buffer size.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister the returned id.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener with room in its buffer and
// returns how many received it.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
			delivered++
		default:
			// slow listener
		}
	}
	return delivered
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
