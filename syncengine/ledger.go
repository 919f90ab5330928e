package syncengine

import "sync"

// Identity supplies the signed-in caller. An empty GUID means local-only
// mode: edits are kept but nothing is queued for sync.
type Identity interface {
	UserGUID() string
}

// StaticIdentity is a fixed caller, for tests and single-user tools.
type StaticIdentity string

func (s StaticIdentity) UserGUID() string { return string(s) }

// Ledger is the set of keys changed locally since they were last drained
// for a push. Keys keep first-marked order so pushes are deterministic.
type Ledger[K comparable] struct {
	mu       sync.Mutex
	identity Identity
	order    []K
	dirty    map[K]struct{}
}

func NewLedger[K comparable](identity Identity) *Ledger[K] {
	return &Ledger[K]{identity: identity, dirty: make(map[K]struct{})}
}

// MarkDirty records key. It reports false, and records nothing, when there
// is no caller identity.
func (l *Ledger[K]) MarkDirty(key K) bool {
	if l.identity == nil || l.identity.UserGUID() == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(key)
	return true
}

// Drain returns every dirty key and clears the set in one step. Keys
// marked afterwards belong to the next drain.
func (l *Ledger[K]) Drain() []K {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.order
	l.order = nil
	l.dirty = make(map[K]struct{})
	return out
}

// Requeue puts keys back after a failed push.
func (l *Ledger[K]) Requeue(keys ...K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.add(k)
	}
}

func (l *Ledger[K]) add(key K) {
	if _, ok := l.dirty[key]; ok {
		return
	}
	l.dirty[key] = struct{}{}
	l.order = append(l.order, key)
}

func (l *Ledger[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.dirty)
}

func (l *Ledger[K]) Contains(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.dirty[key]
	return ok
}
