package core

// Pose is a cell plus facing.
type Pose struct {
	Pos Pos
	Dir Direction
}

// Apply returns the pose after a single action, ignoring obstacles.
func (p Pose) Apply(a Action) Pose {
	switch a {
	case Forward:
		return Pose{Pos: p.Pos.Step(p.Dir), Dir: p.Dir}
	case TurnLeft:
		return Pose{Pos: p.Pos, Dir: p.Dir.TurnLeft()}
	case TurnRight:
		return Pose{Pos: p.Pos, Dir: p.Dir.TurnRight()}
	default:
		return p
	}
}

// Plan is an ordered sequence of primitive actions.
type Plan []Action

// Len returns the number of actions.
func (p Plan) Len() int { return len(p) }

// Moves counts FORWARD actions.
func (p Plan) Moves() int {
	n := 0
	for _, a := range p {
		if a == Forward {
			n++
		}
	}
	return n
}

// Replay simulates the plan from start and returns the final pose.
// ok is false as soon as a FORWARD would leave the grid or enter a
// blocked cell; the returned pose is then the last safe one.
func (p Plan) Replay(g Grid, start Pose, blocked CellSet) (Pose, bool) {
	cur := start
	for _, a := range p {
		next := cur.Apply(a)
		if a == Forward && (!g.InBounds(next.Pos) || blocked.Has(next.Pos)) {
			return cur, false
		}
		cur = next
	}
	return cur, true
}

// Reaches checks that replaying the plan is safe and ends on goal.
func (p Plan) Reaches(g Grid, start Pose, goal Pos, blocked CellSet) bool {
	end, ok := p.Replay(g, start, blocked)
	return ok && end.Pos == goal
}

// PathToPlan converts a cell path (excluding the start cell) into actions,
// turning to face each next cell before stepping into it.
func PathToPlan(start Pose, path []Pos) Plan {
	var plan Plan
	cur := start
	for _, next := range path {
		var want Direction
		switch {
		case next.X == cur.Pos.X+1 && next.Y == cur.Pos.Y:
			want = Right
		case next.X == cur.Pos.X-1 && next.Y == cur.Pos.Y:
			want = Left
		case next.Y == cur.Pos.Y+1 && next.X == cur.Pos.X:
			want = Down
		case next.Y == cur.Pos.Y-1 && next.X == cur.Pos.X:
			want = Up
		default:
			continue // not adjacent; skip
		}
		plan = append(plan, TurnsToFace(cur.Dir, want)...)
		plan = append(plan, Forward)
		cur = Pose{Pos: next, Dir: want}
	}
	return plan
}
