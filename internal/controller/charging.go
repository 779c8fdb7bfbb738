package controller

import (
	"sort"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
	"github.com/elektrokombinacija/warehouse-fleet/internal/planner"
)

// checkBattery preempts the current task when the battery drops below a
// threshold. Critical takes precedence over low.
func (c *Controller) checkBattery(snap *core.Snapshot, a *core.Agent, r *agentRecord) {
	if r.task.State == core.Charging || len(snap.Stations) == 0 {
		return
	}

	pct := a.BatteryPercentage()
	switch {
	case pct < c.cfg.CriticalBatteryPct:
		c.rec.CriticalBattery(a.ID, pct)
		c.startCharging(snap, a, r, "critical", pct)
	case pct < c.cfg.LowBatteryPct:
		c.rec.LowBattery(a.ID, pct)
		c.startCharging(snap, a, r, "low", pct)
	}
}

func (c *Controller) startCharging(snap *core.Snapshot, a *core.Agent, r *agentRecord, level string, pct float64) {
	r.saved = &core.SavedContext{
		State:    r.task.State,
		Target:   cloneTarget(r.task.Target),
		Carrying: a.Carrying,
	}
	c.ledger.ReleaseAgent(a.ID)
	c.releaseWaiting(a.ID)

	station := c.selectStation(snap, a)
	r.task = core.Task{State: core.Charging, Target: &core.Target{Cell: station}}
	r.queue = nil

	c.rec.ChargingStart(a.ID)
	c.log.Info("charging preemption",
		"agent", a.ID,
		"tick", c.tick,
		"level", level,
		"battery_pct", pct,
		"station", station,
		"saved_state", r.saved.State)
}

// isCharging reports whether the agent sits on a station in Charging.
func (c *Controller) isCharging(a *core.Agent, r *agentRecord) bool {
	return r.task.State == core.Charging && c.stations.Has(a.Pos)
}

func (c *Controller) charge(snap *core.Snapshot, a *core.Agent, r *agentRecord) core.Action {
	if c.stations.Has(a.Pos) {
		r.task.Target = &core.Target{Cell: a.Pos}
		if !a.IsFull() {
			return core.Noop
		}
		c.finishCharging(snap, a, r)
		return c.allocate(snap, a, r)
	}

	station := c.selectStation(snap, a)
	r.task.Target = &core.Target{Cell: station}

	occupant := snap.AgentAt(station)
	if occupant == nil || occupant.ID == a.ID {
		return c.moveTo(snap, a, r, station)
	}

	// Contended: approach with the station cell open, stop next to it.
	if core.Manhattan(a.Pos, station) == 1 {
		return c.wait(r)
	}
	blocked := planner.Blocked(snap, a, core.Charging)
	blocked.Remove(station)
	p, ok := c.planner.Plan(snap.Grid, a.Pose(), station, blocked)
	if !ok || len(p) == 0 {
		return core.Noop
	}
	p = p[:len(p)-1]
	if len(p) == 0 {
		return c.wait(r)
	}
	return c.follow(r, p)
}

// wait oscillates in place next to a busy station.
func (c *Controller) wait(r *agentRecord) core.Action {
	r.queue = core.Plan{core.TurnRight}
	return core.TurnLeft
}

// selectStation picks a station by distance: the first free one, else the
// first whose occupant is nearly full, else the nearest. A free station
// picked by an earlier agent in the same tick is not free; picks from
// previous ticks do not count.
func (c *Controller) selectStation(snap *core.Snapshot, a *core.Agent) core.Pos {
	if c.stations.Has(a.Pos) {
		return a.Pos
	}

	sorted := append([]core.Pos(nil), snap.Stations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return core.Manhattan(a.Pos, sorted[i]) < core.Manhattan(a.Pos, sorted[j])
	})

	for _, s := range sorted {
		occupant := snap.AgentAt(s)
		switch {
		case occupant == nil:
			if id, ok := c.claims[s]; !ok || id == a.ID {
				c.claims[s] = a.ID
				return s
			}
		case occupant.BatteryPercentage() > c.cfg.VacatingPct:
			return s
		}
	}
	return sorted[0]
}

func (c *Controller) finishCharging(snap *core.Snapshot, a *core.Agent, r *agentRecord) {
	saved := r.saved
	r.saved = nil
	r.queue = nil
	r.task = c.restore(snap, a, saved)

	c.rec.ChargingEnd(a.ID)
	c.log.Info("charging complete", "agent", a.ID, "tick", c.tick, "resume", r.task.State)
}

// restore rebuilds the task interrupted by charging. Anything that no
// longer matches the world falls back to SeekShelf with no target.
func (c *Controller) restore(snap *core.Snapshot, a *core.Agent, saved *core.SavedContext) core.Task {
	if a.IsCarrying() {
		if saved != nil && saved.State.Carries() && saved.Carrying == a.Carrying {
			if saved.State == core.ReturnShelf {
				return core.Task{State: core.ReturnShelf, Target: &core.Target{Cell: c.homes[a.Carrying], Shelf: a.Carrying}}
			}
			return core.Task{State: core.Deliver, Target: &core.Target{Shelf: a.Carrying}}
		}
		c.log.Warn("saved context does not match carried shelf", "agent", a.ID, "shelf", a.Carrying)
		return c.carryTask(snap, a)
	}

	if saved == nil {
		c.log.Warn("no saved context after charging", "agent", a.ID)
		return core.Task{State: core.SeekShelf}
	}

	switch saved.State {
	case core.SeekShelf:
		if saved.Target != nil && c.shelfAvailable(snap, a, saved.Target.Shelf) {
			sh := snap.ShelfByID(saved.Target.Shelf)
			c.ledger.Reserve(sh.ID, a.ID, c.tick)
			return core.Task{State: core.SeekShelf, Target: &core.Target{Cell: sh.Pos, Shelf: sh.ID}}
		}
	case core.NoTask:
		return core.Task{State: core.NoTask}
	case core.Deliver, core.ReturnShelf:
		c.log.Warn("saved shelf no longer carried", "agent", a.ID, "shelf", saved.Carrying, "state", saved.State)
	}
	return core.Task{State: core.SeekShelf}
}

func cloneTarget(t *core.Target) *core.Target {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
