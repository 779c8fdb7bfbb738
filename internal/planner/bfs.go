package planner

import "github.com/elektrokombinacija/warehouse-fleet/internal/core"

// BFS is plain breadth-first search without the direct-path shortcut.
type BFS struct{}

// NewBFS creates a BFS planner.
func NewBFS() *BFS {
	return &BFS{}
}

func (b *BFS) Name() string { return StrategyBFS }

// Plan implements Planner.
func (b *BFS) Plan(g core.Grid, start core.Pose, goal core.Pos, blocked core.CellSet) (core.Plan, bool) {
	return plan(g, start, goal, blocked, nil, bfsSearch)
}

// bfsSearch returns the first-discovered shortest cell path.
func bfsSearch(g core.Grid, start, goal core.Pos, blocked core.CellSet) []core.Pos {
	parent := map[core.Pos]core.Pos{start: start}
	queue := []core.Pos{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == goal {
			return reconstruct(parent, start, goal)
		}

		for _, n := range g.Neighbors(current) {
			if _, seen := parent[n]; seen || blocked.Has(n) {
				continue
			}
			parent[n] = current
			queue = append(queue, n)
		}
	}
	return nil
}
