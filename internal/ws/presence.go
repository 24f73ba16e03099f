package ws

import "sort"

// presenceTracker maps group -> user -> set of connection ids. A user is
// online in a group while at least one of their connections has joined it, so
// multi-tab clients never flicker. The tracker is owned exclusively by the
// hub's event loop and is not safe for concurrent use.
type presenceTracker struct {
	groups map[int]map[int]map[string]struct{}
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{groups: make(map[int]map[int]map[string]struct{})}
}

// markOnline records the (user, conn) pair and reports whether this was the
// user's first connection in the group.
func (p *presenceTracker) markOnline(groupID, userID int, connID string) bool {
	users, ok := p.groups[groupID]
	if !ok {
		users = make(map[int]map[string]struct{})
		p.groups[groupID] = users
	}
	conns, ok := users[userID]
	if !ok {
		conns = make(map[string]struct{})
		users[userID] = conns
	}
	first := len(conns) == 0
	conns[connID] = struct{}{}
	return first
}

// markOffline drops the (user, conn) pair and reports whether the user has no
// remaining connection in the group.
func (p *presenceTracker) markOffline(groupID, userID int, connID string) bool {
	users, ok := p.groups[groupID]
	if !ok {
		return false
	}
	conns, ok := users[userID]
	if !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) > 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.groups, groupID)
	}
	return true
}

// removeUser evicts every connection of the user from the group, reporting
// whether the user had been online there.
func (p *presenceTracker) removeUser(groupID, userID int) bool {
	users, ok := p.groups[groupID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.groups, groupID)
	}
	return true
}

// dropGroup discards all presence state for a deleted group.
func (p *presenceTracker) dropGroup(groupID int) {
	delete(p.groups, groupID)
}

// online returns the ids of users currently online in the group.
func (p *presenceTracker) online(groupID int) []int {
	users := p.groups[groupID]
	ids := make([]int, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
