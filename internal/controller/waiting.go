package controller

import "github.com/elektrokombinacija/warehouse-fleet/internal/core"

// waitingAreas lists idle cells: not a shelf home, goal, station or
// obstacle, and not 8-adjacent to any shelf. Cells are scanned column by
// column. Without any, corners away from shelves are used, else all
// corners.
func waitingAreas(snap *core.Snapshot) []core.Pos {
	shelves := core.NewCellSet()
	for _, sh := range snap.Shelves {
		shelves.Add(sh.Pos)
	}
	excluded := shelves.Clone()
	for _, cells := range [][]core.Pos{snap.Goals, snap.Stations, snap.Obstacles} {
		for _, p := range cells {
			excluded.Add(p)
		}
	}

	nearShelf := func(p core.Pos) bool {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if (dx != 0 || dy != 0) && shelves.Has(core.Pos{X: p.X + dx, Y: p.Y + dy}) {
					return true
				}
			}
		}
		return false
	}

	var areas []core.Pos
	for x := 0; x < snap.Grid.Width; x++ {
		for y := 0; y < snap.Grid.Height; y++ {
			p := core.Pos{X: x, Y: y}
			if !excluded.Has(p) && !nearShelf(p) {
				areas = append(areas, p)
			}
		}
	}
	if len(areas) > 0 {
		return areas
	}

	corners := snap.Grid.Corners()
	for _, p := range corners {
		if !nearShelf(p) {
			areas = append(areas, p)
		}
	}
	if len(areas) > 0 {
		return areas
	}
	return corners
}

// WaitingAreas returns the idle cells computed from the first snapshot.
func (c *Controller) WaitingAreas() []core.Pos {
	return append([]core.Pos(nil), c.areas...)
}

// WaitingArea returns the cell assigned to an idle agent.
func (c *Controller) WaitingArea(id core.AgentID) (core.Pos, bool) {
	p, ok := c.waiting[id]
	return p, ok
}

// assignWaiting keeps an existing assignment, else takes the nearest
// unassigned area, else shares one chosen by agent id.
func (c *Controller) assignWaiting(a *core.Agent) core.Pos {
	if p, ok := c.waiting[a.ID]; ok {
		return p
	}

	taken := core.NewCellSet()
	for _, p := range c.waiting {
		taken.Add(p)
	}

	var (
		best  core.Pos
		found bool
		dist  int
	)
	for _, p := range c.areas {
		if taken.Has(p) {
			continue
		}
		if d := core.Manhattan(a.Pos, p); !found || d < dist {
			best, dist, found = p, d, true
		}
	}
	if !found {
		i := int(a.ID) % len(c.areas)
		if i < 0 {
			i += len(c.areas)
		}
		best = c.areas[i]
	}

	c.waiting[a.ID] = best
	return best
}

func (c *Controller) releaseWaiting(id core.AgentID) {
	delete(c.waiting, id)
}
