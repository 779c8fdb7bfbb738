// Package sim provides a deterministic reference warehouse and the loop
// that drives a controller against it.
package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// ErrActionCount is returned by Step when the action slice does not match
// the agents of the last snapshot.
var ErrActionCount = errors.New("action count does not match agents")

// Costs are battery units drawn per action. A forward that does not move
// is charged as idle.
type Costs struct {
	Forward      float64 `yaml:"forward" json:"forward"`
	CarryForward float64 `yaml:"carry_forward" json:"carry_forward"`
	Turn         float64 `yaml:"turn" json:"turn"` // also TOGGLE_LOAD
	Idle         float64 `yaml:"idle" json:"idle"`
}

// DefaultCosts returns the reference battery model.
func DefaultCosts() Costs {
	return Costs{
		Forward:      1.0,
		CarryForward: 1.5,
		Turn:         0.5,
		Idle:         0.1,
	}
}

// WorldConfig is the initial layout and physics of a World.
type WorldConfig struct {
	Grid      core.Grid
	Agents    []core.Agent
	Shelves   []core.Shelf
	Requests  []core.ShelfID
	Goals     []core.Pos
	Stations  []core.Pos
	Obstacles []core.Pos

	Costs      Costs
	ChargeRate float64 // units gained per tick standing on a station
	Seed       int64   // request replacement
}

// StepResult reports what one Step changed.
type StepResult struct {
	Moved     int            // agents whose cell changed
	Delivered []core.ShelfID // shelves delivered at a goal this tick
}

// World is the reference adapter: it owns the ground truth and applies
// primitive actions.
type World struct {
	grid      core.Grid
	agents    []core.Agent
	shelves   []core.Shelf
	requests  []core.ShelfID
	goals     core.CellSet
	stations  core.CellSet
	obstacles core.CellSet
	layout    struct{ goals, stations, obstacles []core.Pos }

	costs      Costs
	chargeRate float64
	rng        *rand.Rand

	tick       int
	deliveries int
}

// NewWorld validates cfg and builds a world from copies of its slices.
func NewWorld(cfg WorldConfig) (*World, error) {
	w := &World{
		grid:       cfg.Grid,
		agents:     append([]core.Agent(nil), cfg.Agents...),
		shelves:    append([]core.Shelf(nil), cfg.Shelves...),
		requests:   append([]core.ShelfID(nil), cfg.Requests...),
		goals:      core.NewCellSet(cfg.Goals...),
		stations:   core.NewCellSet(cfg.Stations...),
		obstacles:  core.NewCellSet(cfg.Obstacles...),
		costs:      cfg.Costs,
		chargeRate: cfg.ChargeRate,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
	}
	w.layout.goals = append([]core.Pos(nil), cfg.Goals...)
	w.layout.stations = append([]core.Pos(nil), cfg.Stations...)
	w.layout.obstacles = append([]core.Pos(nil), cfg.Obstacles...)

	snap := w.Snapshot()
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	for _, a := range w.agents {
		if w.obstacles.Has(a.Pos) {
			return nil, fmt.Errorf("%w: agent %d on obstacle %v", core.ErrInvalidSnapshot, a.ID, a.Pos)
		}
		if other := snap.AgentAt(a.Pos); other != nil && other.ID != a.ID {
			return nil, fmt.Errorf("%w: agents %d and %d share %v", core.ErrInvalidSnapshot, other.ID, a.ID, a.Pos)
		}
		if a.IsCarrying() {
			w.shelf(a.Carrying).Pos = a.Pos
		}
	}
	return w, nil
}

// Tick returns the number of steps applied.
func (w *World) Tick() int { return w.tick }

// Deliveries returns the number of shelves delivered at a goal.
func (w *World) Deliveries() int { return w.deliveries }

// Snapshot returns an independent copy of the current state.
func (w *World) Snapshot() *core.Snapshot {
	return &core.Snapshot{
		Grid:      w.grid,
		Tick:      w.tick,
		Agents:    append([]core.Agent(nil), w.agents...),
		Shelves:   append([]core.Shelf(nil), w.shelves...),
		Requests:  append([]core.ShelfID(nil), w.requests...),
		Goals:     append([]core.Pos(nil), w.layout.goals...),
		Stations:  append([]core.Pos(nil), w.layout.stations...),
		Obstacles: append([]core.Pos(nil), w.layout.obstacles...),
	}
}

// Step applies one action per agent, aligned with the agents of the last
// snapshot, in ascending agent id order.
func (w *World) Step(actions []core.Action) (StepResult, error) {
	if len(actions) != len(w.agents) {
		return StepResult{}, fmt.Errorf("%w: got %d, want %d", ErrActionCount, len(actions), len(w.agents))
	}

	order := make([]int, len(w.agents))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return w.agents[order[i]].ID < w.agents[order[j]].ID })

	var res StepResult
	for _, i := range order {
		a := &w.agents[i]
		if a.IsDepleted() {
			w.charge(a, false)
			continue
		}

		moved := false
		cost := w.costs.Idle
		switch actions[i] {
		case core.Forward:
			if w.forward(a) {
				moved = true
				res.Moved++
				cost = w.costs.Forward
				if a.IsCarrying() {
					cost = w.costs.CarryForward
				}
			}
		case core.TurnLeft:
			a.Dir = a.Dir.TurnLeft()
			cost = w.costs.Turn
		case core.TurnRight:
			a.Dir = a.Dir.TurnRight()
			cost = w.costs.Turn
		case core.ToggleLoad:
			if id, ok := w.toggle(a); ok {
				res.Delivered = append(res.Delivered, id)
			}
			cost = w.costs.Turn
		case core.Noop:
		default:
			return res, fmt.Errorf("agent %d: unknown action %d", a.ID, actions[i])
		}

		a.Battery -= cost
		if a.Battery < 0 {
			a.Battery = 0
		}
		w.charge(a, moved)
	}

	w.tick++
	return res, nil
}

// charge tops up an agent standing still on a station.
func (w *World) charge(a *core.Agent, moved bool) {
	if moved || !w.stations.Has(a.Pos) || w.chargeRate <= 0 {
		return
	}
	a.Battery += w.chargeRate
	if a.Battery > a.BatteryCapacity {
		a.Battery = a.BatteryCapacity
	}
}

func (w *World) forward(a *core.Agent) bool {
	next := a.Pos.Step(a.Dir)
	if !w.grid.InBounds(next) || w.obstacles.Has(next) {
		return false
	}
	for j := range w.agents {
		if w.agents[j].Pos == next {
			return false
		}
	}
	if a.IsCarrying() {
		if w.shelfAt(next) != nil {
			return false
		}
	}

	a.Pos = next
	if a.IsCarrying() {
		w.shelf(a.Carrying).Pos = next
	}
	return true
}

// toggle lifts, delivers or drops. It returns the shelf id on delivery.
func (w *World) toggle(a *core.Agent) (core.ShelfID, bool) {
	if !a.IsCarrying() {
		sh := w.shelfAt(a.Pos)
		if sh != nil && a.CanLift(sh.Weight) {
			a.Carrying = sh.ID
		}
		return core.NoShelf, false
	}

	if w.goals.Has(a.Pos) {
		if !w.isRequested(a.Carrying) {
			return core.NoShelf, false
		}
		w.deliver(a.Carrying)
		return a.Carrying, true
	}

	for _, sh := range w.shelves {
		if sh.ID != a.Carrying && sh.Pos == a.Pos && w.carrier(sh.ID) == nil {
			return core.NoShelf, false
		}
	}
	a.Carrying = core.NoShelf
	return core.NoShelf, false
}

// deliver swaps the shelf in the request queue for a random unrequested one.
func (w *World) deliver(id core.ShelfID) {
	w.deliveries++

	var candidates []core.ShelfID
	for _, sh := range w.shelves {
		if !w.isRequested(sh.ID) {
			candidates = append(candidates, sh.ID)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	for i, r := range w.requests {
		if r != id {
			continue
		}
		if len(candidates) == 0 {
			w.requests = append(w.requests[:i], w.requests[i+1:]...)
		} else {
			w.requests[i] = candidates[w.rng.Intn(len(candidates))]
		}
		return
	}
}

func (w *World) isRequested(id core.ShelfID) bool {
	for _, r := range w.requests {
		if r == id {
			return true
		}
	}
	return false
}

func (w *World) shelf(id core.ShelfID) *core.Shelf {
	for i := range w.shelves {
		if w.shelves[i].ID == id {
			return &w.shelves[i]
		}
	}
	return nil
}

// shelfAt returns the uncarried shelf resting on p.
func (w *World) shelfAt(p core.Pos) *core.Shelf {
	for i := range w.shelves {
		if w.shelves[i].Pos == p && w.carrier(w.shelves[i].ID) == nil {
			return &w.shelves[i]
		}
	}
	return nil
}

func (w *World) carrier(id core.ShelfID) *core.Agent {
	for i := range w.agents {
		if w.agents[i].Carrying == id {
			return &w.agents[i]
		}
	}
	return nil
}
