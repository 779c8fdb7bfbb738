package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSnapshot is wrapped by every Snapshot.Validate failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the read-only world state handed to the controller each tick.
type Snapshot struct {
	Grid      Grid
	Tick      int
	Agents    []Agent
	Shelves   []Shelf
	Requests  []ShelfID // open request queue, in queue order
	Goals     []Pos
	Stations  []Pos
	Obstacles []Pos
}

// Validate checks snapshot consistency.
func (s *Snapshot) Validate() error {
	if s.Grid.Width <= 0 || s.Grid.Height <= 0 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidSnapshot, s.Grid.Width, s.Grid.Height)
	}

	shelves := make(map[ShelfID]bool, len(s.Shelves))
	for _, sh := range s.Shelves {
		if sh.ID <= NoShelf {
			return fmt.Errorf("%w: shelf id %d must be positive", ErrInvalidSnapshot, sh.ID)
		}
		if shelves[sh.ID] {
			return fmt.Errorf("%w: duplicate shelf %d", ErrInvalidSnapshot, sh.ID)
		}
		if !s.Grid.InBounds(sh.Pos) {
			return fmt.Errorf("%w: shelf %d at %v out of bounds", ErrInvalidSnapshot, sh.ID, sh.Pos)
		}
		shelves[sh.ID] = true
	}

	agents := make(map[AgentID]bool, len(s.Agents))
	carriers := make(map[ShelfID]AgentID)
	for _, a := range s.Agents {
		if agents[a.ID] {
			return fmt.Errorf("%w: duplicate agent %d", ErrInvalidSnapshot, a.ID)
		}
		agents[a.ID] = true
		if !s.Grid.InBounds(a.Pos) {
			return fmt.Errorf("%w: agent %d at %v out of bounds", ErrInvalidSnapshot, a.ID, a.Pos)
		}
		if !a.Dir.Valid() {
			return fmt.Errorf("%w: agent %d facing %v", ErrInvalidSnapshot, a.ID, a.Dir)
		}
		if a.BatteryCapacity <= 0 || a.Battery < 0 || a.Battery > a.BatteryCapacity {
			return fmt.Errorf("%w: agent %d battery %.2f/%.2f", ErrInvalidSnapshot, a.ID, a.Battery, a.BatteryCapacity)
		}
		if !a.IsCarrying() {
			continue
		}
		if !shelves[a.Carrying] {
			return fmt.Errorf("%w: agent %d carries unknown shelf %d", ErrInvalidSnapshot, a.ID, a.Carrying)
		}
		if other, dup := carriers[a.Carrying]; dup {
			return fmt.Errorf("%w: shelf %d carried by agents %d and %d", ErrInvalidSnapshot, a.Carrying, other, a.ID)
		}
		carriers[a.Carrying] = a.ID
	}

	for _, id := range s.Requests {
		if !shelves[id] {
			return fmt.Errorf("%w: request for unknown shelf %d", ErrInvalidSnapshot, id)
		}
	}
	for _, g := range s.Goals {
		if !s.Grid.InBounds(g) {
			return fmt.Errorf("%w: goal %v out of bounds", ErrInvalidSnapshot, g)
		}
	}
	for _, st := range s.Stations {
		if !s.Grid.InBounds(st) {
			return fmt.Errorf("%w: station %v out of bounds", ErrInvalidSnapshot, st)
		}
	}
	for _, o := range s.Obstacles {
		if !s.Grid.InBounds(o) {
			return fmt.Errorf("%w: obstacle %v out of bounds", ErrInvalidSnapshot, o)
		}
	}
	return nil
}

// AgentByID finds an agent by ID.
func (s *Snapshot) AgentByID(id AgentID) *Agent {
	for i := range s.Agents {
		if s.Agents[i].ID == id {
			return &s.Agents[i]
		}
	}
	return nil
}

// ShelfByID finds a shelf by ID.
func (s *Snapshot) ShelfByID(id ShelfID) *Shelf {
	for i := range s.Shelves {
		if s.Shelves[i].ID == id {
			return &s.Shelves[i]
		}
	}
	return nil
}

// CarrierOf returns the agent carrying the shelf, if any.
func (s *Snapshot) CarrierOf(id ShelfID) *Agent {
	if id == NoShelf {
		return nil
	}
	for i := range s.Agents {
		if s.Agents[i].Carrying == id {
			return &s.Agents[i]
		}
	}
	return nil
}

// AgentAt returns the agent standing on p, if any.
func (s *Snapshot) AgentAt(p Pos) *Agent {
	for i := range s.Agents {
		if s.Agents[i].Pos == p {
			return &s.Agents[i]
		}
	}
	return nil
}

// IsRequested reports whether the shelf is in the open request queue.
func (s *Snapshot) IsRequested(id ShelfID) bool {
	for _, r := range s.Requests {
		if r == id {
			return true
		}
	}
	return false
}

// AgentOrder returns indices into Agents sorted by ascending agent ID.
func (s *Snapshot) AgentOrder() []int {
	order := make([]int, len(s.Agents))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return s.Agents[order[i]].ID < s.Agents[order[j]].ID
	})
	return order
}
