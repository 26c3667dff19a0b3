// Package dedup provides a sliding-window deduplicator for push channel
// delivery ids. The server may redeliver an event after a reconnect;
// the window remembers the most recent ids and drops repeats.
package dedup

import "sync"

// Window tracks the last N delivery ids seen.
type Window struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
}

// NewWindow creates a window remembering up to size ids. A size below 1
// disables deduplication: Seen always reports false.
func NewWindow(size int) *Window {
	if size < 1 {
		return &Window{}
	}
	return &Window{
		seen: make(map[string]struct{}, size),
		ring: make([]string, size),
	}
}

// Seen records id and reports whether it was already in the window.
// Empty ids are never deduplicated.
func (w *Window) Seen(id string) bool {
	if id == "" || w.seen == nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}

	// Evict the oldest entry once the ring wraps.
	if old := w.ring[w.next]; old != "" {
		delete(w.seen, old)
	}
	w.ring[w.next] = id
	w.next = (w.next + 1) % len(w.ring)
	w.seen[id] = struct{}{}

	return false
}

// Len returns the number of ids currently tracked.
func (w *Window) Len() int {
	if w.seen == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
