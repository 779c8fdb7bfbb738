// Package ledger holds time-bounded shelf reservations.
//
// A reservation is a soft claim by one agent on one shelf. It expires TTL
// ticks after creation, measured against the controller's own tick
// counter. The ledger is not safe for concurrent use; the controller owns
// it and mutates it in agent order within a tick.
package ledger

import (
	"sort"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// DefaultTTL is the reservation lifetime in ticks.
const DefaultTTL = 20

// Reservation is one agent's claim on a shelf.
type Reservation struct {
	Agent   core.AgentID
	Created int // tick the claim was written
}

// Ledger maps shelf ids to at most one reservation each.
type Ledger struct {
	ttl     int
	entries map[core.ShelfID]Reservation
}

// New creates an empty ledger. A non-positive ttl selects DefaultTTL.
func New(ttl int) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{
		ttl:     ttl,
		entries: make(map[core.ShelfID]Reservation),
	}
}

// TTL returns the reservation lifetime in ticks.
func (l *Ledger) TTL() int { return l.ttl }

// Len returns the number of stored reservations, expired or not.
func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) live(r Reservation, tick int) bool {
	return tick-r.Created < l.ttl
}

// Reserve writes a claim for agent on shelf at tick. It fails if another
// agent holds a live claim. Re-reserving one's own shelf refreshes it.
// The allocator refreshes its target on every pass, so the TTL only
// expires claims on targets an agent has abandoned.
func (l *Ledger) Reserve(shelf core.ShelfID, agent core.AgentID, tick int) bool {
	if l.IsReservedByOther(shelf, agent, tick) {
		return false
	}
	l.entries[shelf] = Reservation{Agent: agent, Created: tick}
	return true
}

// Release drops any claim on shelf.
func (l *Ledger) Release(shelf core.ShelfID) {
	delete(l.entries, shelf)
}

// ReleaseAgent drops every claim held by agent and returns the shelves
// that were freed, in ascending order.
func (l *Ledger) ReleaseAgent(agent core.AgentID) []core.ShelfID {
	var freed []core.ShelfID
	for id, r := range l.entries {
		if r.Agent == agent {
			freed = append(freed, id)
		}
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i] < freed[j] })
	for _, id := range freed {
		delete(l.entries, id)
	}
	return freed
}

// Holder returns the live reservation on shelf at tick.
func (l *Ledger) Holder(shelf core.ShelfID, tick int) (Reservation, bool) {
	r, ok := l.entries[shelf]
	if !ok || !l.live(r, tick) {
		return Reservation{}, false
	}
	return r, true
}

// IsReservedByOther reports whether an agent other than agent holds a live
// claim on shelf.
func (l *Ledger) IsReservedByOther(shelf core.ShelfID, agent core.AgentID, tick int) bool {
	r, ok := l.Holder(shelf, tick)
	return ok && r.Agent != agent
}

// Purge removes every expired claim and returns how many were dropped.
func (l *Ledger) Purge(tick int) int {
	n := 0
	for id, r := range l.entries {
		if !l.live(r, tick) {
			delete(l.entries, id)
			n++
		}
	}
	return n
}
