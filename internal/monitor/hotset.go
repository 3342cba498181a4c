package monitor

import (
	"time"

	"github.com/Mschirtzinger/pushy/internal/events"
)

const (
	// DefaultMaxHot is the default capacity of the hot set.
	DefaultMaxHot = 20

	// DefaultHotness is the default number of hot-only cycles between full scans.
	DefaultHotness = 4
)

// HotSet is a small insertion-ordered set of recently changed files that are
// re-checked every cycle instead of only during full scans.
type HotSet struct {
	order  []string
	stamps map[string]time.Time
}

// NewHotSet returns an empty hot set.
func NewHotSet() *HotSet {
	return &HotSet{stamps: make(map[string]time.Time)}
}

// Len returns the number of hot files.
func (h *HotSet) Len() int {
	return len(h.order)
}

// Contains reports whether path is hot.
func (h *HotSet) Contains(path string) bool {
	_, ok := h.stamps[path]
	return ok
}

// Put inserts path or refreshes its timestamp. A refreshed entry keeps its
// position.
func (h *HotSet) Put(path string, mtime time.Time) {
	if _, ok := h.stamps[path]; !ok {
		h.order = append(h.order, path)
	}
	h.stamps[path] = mtime
}

// Remove drops path and reports whether it was present.
func (h *HotSet) Remove(path string) bool {
	if _, ok := h.stamps[path]; !ok {
		return false
	}
	delete(h.stamps, path)
	for i, p := range h.order {
		if p == path {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// Oldest returns the hot entry with the smallest timestamp.
func (h *HotSet) Oldest() (string, bool) {
	var oldest string
	var stamp time.Time
	for _, p := range h.order {
		if oldest == "" || h.stamps[p].Before(stamp) {
			oldest, stamp = p, h.stamps[p]
		}
	}
	return oldest, oldest != ""
}

// Entries returns the hot files in insertion order.
func (h *HotSet) Entries() []TrackedPath {
	out := make([]TrackedPath, 0, len(h.order))
	for _, p := range h.order {
		out = append(out, TrackedPath{Path: p, Kind: events.File, LastModified: h.stamps[p]})
	}
	return out
}
