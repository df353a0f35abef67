package localstore

import (
	"sort"
	"sync"
)

// Event describes a write made by another tab. NewValue is empty when Removed is set.
type Event struct {
	Key      string
	NewValue string
	Removed  bool
}

type subscriber struct {
	tab uint64
	fn  func(Event)
}

type hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]subscriber)}
}

func (h *hub) subscribe(tab uint64, fn func(Event)) func() {
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = subscriber{tab: tab, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// publish runs every other tab's handlers in subscription order. Handlers are called
// without the lock held, so they may write to the store themselves.
func (h *hub) publish(origin uint64, ev Event) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs))
	for id, s := range h.subs {
		if s.tab != origin {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	targets := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		targets = append(targets, h.subs[id].fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}
