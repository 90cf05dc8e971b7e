package viz

import "sync"

// PinTracker remembers which charts have a pin request in flight and
// which were pinned during this session.
type PinTracker struct {
	mu       sync.Mutex
	inFlight map[string]bool
	pinned   map[string]bool
}

func NewPinTracker() *PinTracker {
	return &PinTracker{
		inFlight: make(map[string]bool),
		pinned:   make(map[string]bool),
	}
}

// Begin marks id as in flight. It returns false, and the caller must not
// send the request, when id is already being pinned or has been pinned.
func (t *PinTracker) Begin(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight[id] || t.pinned[id] {
		return false
	}
	t.inFlight[id] = true
	return true
}

// Done ends the request for id and records it as pinned when ok.
func (t *PinTracker) Done(id string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, id)
	if ok {
		t.pinned[id] = true
	}
}

// Disabled reports whether the pin action for id should be unavailable.
func (t *PinTracker) Disabled(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight[id] || t.pinned[id]
}

// InFlight reports whether a pin request for id is outstanding.
func (t *PinTracker) InFlight(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight[id]
}

func (t *PinTracker) isPinned(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pinned[id]
}

// MergePinned marks charts pinned locally as pinned in a freshly fetched
// list, so a stale backend answer cannot move them back to recommended.
// Charts the backend already reports as pinned are unchanged.
func MergePinned(fresh []Chart, t *PinTracker) []Chart {
	out := make([]Chart, len(fresh))
	for i, c := range fresh {
		if !c.Pinned && t.isPinned(c.ID) {
			c.Pinned, c.unflagged = true, false
		}
		out[i] = c
	}
	return out
}
