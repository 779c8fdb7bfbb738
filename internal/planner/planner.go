// Package planner computes collision-free action sequences on the
// warehouse grid. A* and BFS share one contract: an empty plan means
// the goal is off the grid, blocked, or unreachable.
package planner

import (
	"fmt"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// Planner is the interface for path planning strategies.
type Planner interface {
	// Plan returns actions that move start onto goal without entering a
	// blocked cell. ok is false when no safe plan exists; an agent already
	// on goal gets an empty plan with ok true.
	Plan(g core.Grid, start core.Pose, goal core.Pos, blocked core.CellSet) (plan core.Plan, ok bool)

	// Name returns the strategy name.
	Name() string
}

// Strategy names accepted by New.
const (
	StrategyAStar = "astar"
	StrategyBFS   = "bfs"
)

// New returns the planner registered under name.
func New(name string) (Planner, error) {
	switch name {
	case StrategyAStar, "":
		return NewAStar(), nil
	case StrategyBFS:
		return NewBFS(), nil
	default:
		return nil, fmt.Errorf("unknown planner strategy %q", name)
	}
}

// searchFunc returns the cell path from start (exclusive) to goal
// (inclusive), or nil.
type searchFunc func(g core.Grid, start, goal core.Pos, blocked core.CellSet) []core.Pos

// plan wraps a search with the shared goal checks and the final replay
// validation.
func plan(g core.Grid, start core.Pose, goal core.Pos, blocked core.CellSet, shortcut func() core.Plan, search searchFunc) (core.Plan, bool) {
	if !g.InBounds(goal) || blocked.Has(goal) {
		return nil, false
	}
	if start.Pos == goal {
		return nil, true
	}

	if shortcut != nil {
		if p := shortcut(); p != nil && p.Reaches(g, start, goal, blocked) {
			return p, true
		}
	}

	path := search(g, start.Pos, goal, blocked)
	if path == nil {
		return nil, false
	}
	p := core.PathToPlan(start, path)
	if !p.Reaches(g, start, goal, blocked) {
		return nil, false
	}
	return p, true
}

// reconstruct walks parent links back from goal.
func reconstruct(parent map[core.Pos]core.Pos, start, goal core.Pos) []core.Pos {
	var path []core.Pos
	for cur := goal; cur != start; cur = parent[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Blocked builds the cell set an agent must avoid in the given state.
// Other agents and obstacles are always blocked. Shelves block only in
// Deliver, ReturnShelf and Charging; a carrying agent may still cross the
// cell of its own shelf.
func Blocked(snap *core.Snapshot, self *core.Agent, state core.TaskState) core.CellSet {
	blocked := core.NewCellSet(snap.Obstacles...)
	for i := range snap.Agents {
		if snap.Agents[i].ID != self.ID {
			blocked.Add(snap.Agents[i].Pos)
		}
	}

	switch state {
	case core.Deliver, core.ReturnShelf, core.Charging:
		for _, sh := range snap.Shelves {
			if self.IsCarrying() && sh.ID == self.Carrying {
				continue
			}
			blocked.Add(sh.Pos)
		}
	}
	return blocked
}
