package planner

import (
	"container/heap"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// AStar tries a direct Manhattan route first and falls back to A* search
// with a Manhattan heuristic.
type AStar struct {
	// DisableShortcut skips the direct-path attempt.
	DisableShortcut bool
}

// NewAStar creates an A* planner with the direct-path shortcut enabled.
func NewAStar() *AStar {
	return &AStar{}
}

func (a *AStar) Name() string { return StrategyAStar }

// Plan implements Planner.
func (a *AStar) Plan(g core.Grid, start core.Pose, goal core.Pos, blocked core.CellSet) (core.Plan, bool) {
	var shortcut func() core.Plan
	if !a.DisableShortcut {
		shortcut = func() core.Plan { return DirectPlan(start, goal) }
	}
	return plan(g, start, goal, blocked, shortcut, astarSearch)
}

// DirectPlan moves along the axis of larger displacement first, then the
// other axis, turning to face each leg. The result is unchecked.
func DirectPlan(start core.Pose, goal core.Pos) core.Plan {
	dx := goal.X - start.Pos.X
	dy := goal.Y - start.Pos.Y

	var p core.Plan
	dir := start.Dir
	leg := func(n int, pos, neg core.Direction) {
		if n == 0 {
			return
		}
		want := pos
		if n < 0 {
			want = neg
			n = -n
		}
		p = append(p, core.TurnsToFace(dir, want)...)
		dir = want
		for i := 0; i < n; i++ {
			p = append(p, core.Forward)
		}
	}

	if abs(dx) > abs(dy) {
		leg(dx, core.Right, core.Left)
		leg(dy, core.Down, core.Up)
	} else {
		leg(dy, core.Down, core.Up)
		leg(dx, core.Right, core.Left)
	}
	return p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// astarNode for priority queue.
type astarNode struct {
	pos   core.Pos
	g     int // cost so far
	f     int // g + h
	seq   int // push order, breaks f ties first-found
	index int // heap index
}

// astarHeap implements heap.Interface.
type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h astarHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *astarHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// astarSearch runs 4-connected A* with unit edge cost.
func astarSearch(g core.Grid, start, goal core.Pos, blocked core.CellSet) []core.Pos {
	open := &astarHeap{}
	heap.Init(open)

	seq := 0
	heap.Push(open, &astarNode{pos: start, g: 0, f: core.Manhattan(start, goal), seq: seq})

	gScore := map[core.Pos]int{start: 0}
	parent := make(map[core.Pos]core.Pos)
	closed := make(map[core.Pos]bool, g.Cells())

	for open.Len() > 0 {
		current := heap.Pop(open).(*astarNode)

		if current.pos == goal {
			return reconstruct(parent, start, goal)
		}

		if closed[current.pos] {
			continue
		}
		closed[current.pos] = true

		for _, n := range g.Neighbors(current.pos) {
			if closed[n] || blocked.Has(n) {
				continue
			}
			tentative := current.g + 1
			if best, seen := gScore[n]; seen && tentative >= best {
				continue
			}
			gScore[n] = tentative
			parent[n] = current.pos
			seq++
			heap.Push(open, &astarNode{
				pos: n,
				g:   tentative,
				f:   tentative + core.Manhattan(n, goal),
				seq: seq,
			})
		}
	}

	return nil // No path found
}
