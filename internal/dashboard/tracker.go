package dashboard

import "sync"

// Tracker hands out monotonically increasing request tokens per query key so
// that only the most recently issued request for a key may commit its result.
type Tracker struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]uint64)}
}

// Issue returns a new token for key, superseding any outstanding one.
func (t *Tracker) Issue(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[key]++
	return t.latest[key]
}

// Latest returns the most recently issued token for key, or 0.
func (t *Tracker) Latest(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[key]
}

// Commit runs apply only if token is still the latest for key and reports
// whether it ran. apply runs under the tracker lock and must not call back
// into the tracker.
func (t *Tracker) Commit(key string, token uint64, apply func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest[key] != token {
		return false
	}
	apply()
	return true
}
