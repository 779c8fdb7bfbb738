package controller

import "github.com/elektrokombinacija/warehouse-fleet/internal/core"

// allocate runs the state machine for an agent with an empty queue.
func (c *Controller) allocate(snap *core.Snapshot, a *core.Agent, r *agentRecord) core.Action {
	switch r.task.State {
	case core.Charging:
		return c.charge(snap, a, r)
	case core.SeekShelf:
		return c.seekShelf(snap, a, r)
	case core.Deliver:
		return c.deliver(snap, a, r)
	case core.ReturnShelf:
		return c.returnShelf(snap, a, r)
	case core.NoTask:
		return c.idle(snap, a, r)
	}
	return core.Noop
}

func (c *Controller) seekShelf(snap *core.Snapshot, a *core.Agent, r *agentRecord) core.Action {
	t := r.task.Target
	if t != nil && c.shelfAvailable(snap, a, t.Shelf) {
		t.Cell = snap.ShelfByID(t.Shelf).Pos
		c.ledger.Reserve(t.Shelf, a.ID, c.tick)
	} else {
		t = c.selectShelf(snap, a)
		if t == nil {
			r.task = core.Task{State: core.NoTask}
			return c.idle(snap, a, r)
		}
		r.task.Target = t
		c.ledger.Reserve(t.Shelf, a.ID, c.tick)
		c.rec.TaskStart(a.ID, t.Shelf)
		c.log.Debug("shelf selected", "agent", a.ID, "tick", c.tick, "shelf", t.Shelf, "at", t.Cell)
	}

	if a.Pos != t.Cell {
		return c.moveTo(snap, a, r, t.Cell)
	}

	sh := snap.ShelfByID(t.Shelf)
	c.ledger.Release(sh.ID)
	if !a.CanLift(sh.Weight) {
		c.rec.OverCapacity(a.ID, sh.ID, sh.Weight, a.MaxCarryWeight)
		c.log.Warn("shelf too heavy at pickup", "agent", a.ID, "shelf", sh.ID, "weight", sh.Weight, "capacity", a.MaxCarryWeight)
		r.task.Target = nil
		return core.Noop
	}

	r.task = core.Task{State: core.Deliver, Target: &core.Target{Shelf: sh.ID}}
	r.queue = nil
	c.log.Debug("pickup", "agent", a.ID, "tick", c.tick, "shelf", sh.ID)
	return core.ToggleLoad
}

// shelfAvailable reports whether a previously chosen shelf can still be
// pursued: requested, on the floor and not claimed by another agent.
func (c *Controller) shelfAvailable(snap *core.Snapshot, a *core.Agent, id core.ShelfID) bool {
	if snap.ShelfByID(id) == nil || !snap.IsRequested(id) || snap.CarrierOf(id) != nil {
		return false
	}
	return !c.ledger.IsReservedByOther(id, a.ID, c.tick)
}

// selectShelf picks the nearest requested shelf the agent may take. Ties
// go to the earliest entry in the request queue.
func (c *Controller) selectShelf(snap *core.Snapshot, a *core.Agent) *core.Target {
	var best *core.Shelf
	bestDist := 0
	for _, id := range snap.Requests {
		sh := snap.ShelfByID(id)
		if sh == nil || snap.CarrierOf(id) != nil {
			continue
		}
		if c.ledger.IsReservedByOther(id, a.ID, c.tick) {
			continue
		}
		if !a.CanLift(sh.Weight) {
			continue
		}
		if d := core.Manhattan(a.Pos, sh.Pos); best == nil || d < bestDist {
			best, bestDist = sh, d
		}
	}
	if best == nil {
		return nil
	}
	return &core.Target{Cell: best.Pos, Shelf: best.ID}
}

func (c *Controller) deliver(snap *core.Snapshot, a *core.Agent, r *agentRecord) core.Action {
	goal, ok := nearest(snap.Goals, a.Pos)
	if !ok {
		return core.Noop
	}
	r.task.Target = &core.Target{Cell: goal, Shelf: a.Carrying}

	if a.Pos != goal {
		return c.moveTo(snap, a, r, goal)
	}

	r.task = core.Task{
		State:  core.ReturnShelf,
		Target: &core.Target{Cell: c.homes[a.Carrying], Shelf: a.Carrying},
	}
	r.queue = nil
	c.log.Debug("delivered", "agent", a.ID, "tick", c.tick, "shelf", a.Carrying, "goal", goal)
	return core.ToggleLoad
}

func (c *Controller) returnShelf(snap *core.Snapshot, a *core.Agent, r *agentRecord) core.Action {
	home := c.homes[a.Carrying]
	r.task.Target = &core.Target{Cell: home, Shelf: a.Carrying}

	if a.Pos != home {
		return c.moveTo(snap, a, r, home)
	}

	r.dropped = a.Carrying
	r.task = core.Task{State: core.SeekShelf}
	r.queue = nil
	c.log.Debug("shelf returned", "agent", a.ID, "tick", c.tick, "shelf", a.Carrying)
	return core.ToggleLoad
}

func (c *Controller) idle(snap *core.Snapshot, a *core.Agent, r *agentRecord) core.Action {
	area := c.assignWaiting(a)
	r.task.Target = &core.Target{Cell: area}
	if a.Pos == area {
		return core.Noop
	}
	return c.moveTo(snap, a, r, area)
}

// nearest returns the first cell with minimal Manhattan distance to p.
func nearest(cells []core.Pos, p core.Pos) (core.Pos, bool) {
	if len(cells) == 0 {
		return core.Pos{}, false
	}
	best := cells[0]
	bestDist := core.Manhattan(p, best)
	for _, cell := range cells[1:] {
		if d := core.Manhattan(p, cell); d < bestDist {
			best, bestDist = cell, d
		}
	}
	return best, true
}
