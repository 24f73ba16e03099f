package engine

import "sync"

// groupLocks serializes storage writes per group so two operations on the
// same group from the same caller cannot complete out of order. The lock is
// held only for the duration of the atomic storage call. Entries are
// refcounted so the map does not grow with the number of groups ever seen.
type groupLocks struct {
	mu    sync.Mutex
	locks map[int]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[int]*groupLock)}
}

// lock acquires the per-group mutex and returns its release func.
func (g *groupLocks) lock(groupID int) func() {
	g.mu.Lock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &groupLock{}
		g.locks[groupID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, groupID)
		}
		g.mu.Unlock()
	}
}
