package broadcast

import "sync"

// Hub is the in-process fan-out: each SSE connection subscribes to one
// showtime and receives every event delivered for it.  Slow consumers
// are skipped rather than blocking the publisher; they resynchronise by
// refetching the seat map, which events make safe via their version.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]map[chan Event]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]map[chan Event]struct{})}
}

// Subscribe registers a consumer for one showtime.  The returned cancel
// function must be called when the connection closes; it unregisters
// the channel and closes it.
func (h *Hub) Subscribe(showtimeID uint64) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	if h.subs[showtimeID] == nil {
		h.subs[showtimeID] = make(map[chan Event]struct{})
	}
	h.subs[showtimeID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[showtimeID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, showtimeID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Deliver pushes an event to every subscriber of its showtime without
// blocking: a full buffer drops the event for that subscriber only.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.ShowtimeID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers for a
// showtime.
func (h *Hub) SubscriberCount(showtimeID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[showtimeID])
}
