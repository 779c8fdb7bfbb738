// Package controller decides one primitive action per agent per tick.
//
// Agents are processed in ascending id order. That order is the
// arbitration rule for every contended resource: a shelf reservation or a
// charging station claimed by an earlier agent in the tick is already
// visible to the later ones. The controller is single-threaded; call
// Decide from one goroutine.
package controller

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
	"github.com/elektrokombinacija/warehouse-fleet/internal/ledger"
	"github.com/elektrokombinacija/warehouse-fleet/internal/metrics"
	"github.com/elektrokombinacija/warehouse-fleet/internal/planner"
	"github.com/elektrokombinacija/warehouse-fleet/internal/recovery"
)

// Config tunes the controller. Zero numeric fields take the DefaultConfig
// value; nil collaborators get no-op implementations.
type Config struct {
	LowBatteryPct      float64 // below this an agent goes charging
	CriticalBatteryPct float64 // below this the alert is critical
	ReservationTTL     int     // ticks
	StuckThreshold     int     // consecutive failed forwards before recovery
	VacatingPct        float64 // an occupant above this will leave its station soon

	Planner  planner.Planner
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// DefaultConfig returns the standard thresholds with the A* planner.
func DefaultConfig() Config {
	return Config{
		LowBatteryPct:      20,
		CriticalBatteryPct: 10,
		ReservationTTL:     ledger.DefaultTTL,
		StuckThreshold:     recovery.DefaultThreshold,
		VacatingPct:        90,
	}
}

// agentRecord is everything the controller remembers about one agent.
type agentRecord struct {
	task     core.Task
	queue    core.Plan
	saved    *core.SavedContext
	monitor  *recovery.Monitor
	depleted bool         // battery failure already recorded for this episode
	dropped  core.ShelfID // shelf put down at home last tick, awaiting confirmation
}

// Controller is the per-tick decision core.
type Controller struct {
	cfg     Config
	planner planner.Planner
	rec     metrics.Recorder
	log     *slog.Logger

	tick   int
	ledger *ledger.Ledger
	agents map[core.AgentID]*agentRecord

	homes    map[core.ShelfID]core.Pos
	stations core.CellSet
	claims   map[core.Pos]core.AgentID // stations picked during the current tick

	areas   []core.Pos
	waiting map[core.AgentID]core.Pos
	ready   bool
}

// New creates a controller.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.LowBatteryPct <= 0 {
		cfg.LowBatteryPct = def.LowBatteryPct
	}
	if cfg.CriticalBatteryPct <= 0 {
		cfg.CriticalBatteryPct = def.CriticalBatteryPct
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = def.ReservationTTL
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = def.StuckThreshold
	}
	if cfg.VacatingPct <= 0 {
		cfg.VacatingPct = def.VacatingPct
	}
	if cfg.Planner == nil {
		cfg.Planner = planner.NewAStar()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{
		cfg:     cfg,
		planner: cfg.Planner,
		rec:     cfg.Recorder,
		log:     cfg.Logger,
		ledger:  ledger.New(cfg.ReservationTTL),
		agents:  make(map[core.AgentID]*agentRecord),
		homes:   make(map[core.ShelfID]core.Pos),
		claims:  make(map[core.Pos]core.AgentID),
		waiting: make(map[core.AgentID]core.Pos),
	}
}

// Tick returns the controller's own tick counter.
func (c *Controller) Tick() int { return c.tick }

// Task returns the allocator state of an agent.
func (c *Controller) Task(id core.AgentID) (core.Task, bool) {
	r, ok := c.agents[id]
	if !ok {
		return core.Task{}, false
	}
	return r.task, true
}

// Saved returns the pre-charging context of an agent, or nil.
func (c *Controller) Saved(id core.AgentID) *core.SavedContext {
	if r, ok := c.agents[id]; ok {
		return r.saved
	}
	return nil
}

// Queue returns a copy of the agent's pending actions.
func (c *Controller) Queue(id core.AgentID) core.Plan {
	r, ok := c.agents[id]
	if !ok {
		return nil
	}
	return append(core.Plan(nil), r.queue...)
}

// Recovering reports whether the agent is running a recovery maneuver.
func (c *Controller) Recovering(id core.AgentID) bool {
	r, ok := c.agents[id]
	return ok && r.monitor.Recovering()
}

// Reservation returns the live reservation on a shelf.
func (c *Controller) Reservation(shelf core.ShelfID) (ledger.Reservation, bool) {
	return c.ledger.Holder(shelf, c.tick)
}

// Home returns the recorded home cell of a shelf.
func (c *Controller) Home(shelf core.ShelfID) (core.Pos, bool) {
	p, ok := c.homes[shelf]
	return p, ok
}

// Decide returns one action per agent, aligned with snap.Agents. It fails
// only on an invalid snapshot; agent-local problems degrade to NOOP.
func (c *Controller) Decide(snap *core.Snapshot) ([]core.Action, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", core.ErrInvalidSnapshot)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	c.observe(snap)
	clear(c.claims)
	if n := c.ledger.Purge(c.tick); n > 0 {
		c.log.Debug("reservations expired", "tick", c.tick, "count", n)
	}

	actions := make([]core.Action, len(snap.Agents))
	for _, i := range snap.AgentOrder() {
		actions[i] = c.decideAgent(snap, &snap.Agents[i])
	}

	c.rec.StepCompletion()
	c.tick++
	return actions, nil
}

// observe records static layout on first sight: shelf homes, stations,
// waiting areas and fresh agent records.
func (c *Controller) observe(snap *core.Snapshot) {
	if !c.ready {
		c.stations = core.NewCellSet(snap.Stations...)
		c.areas = waitingAreas(snap)
		c.ready = true
		c.log.Debug("layout observed",
			"grid", fmt.Sprintf("%dx%d", snap.Grid.Width, snap.Grid.Height),
			"shelves", len(snap.Shelves),
			"stations", len(snap.Stations),
			"waiting_areas", len(c.areas))
	}

	for _, sh := range snap.Shelves {
		if _, ok := c.homes[sh.ID]; !ok {
			c.homes[sh.ID] = sh.Pos
		}
	}

	for i := range snap.Agents {
		a := &snap.Agents[i]
		if _, ok := c.agents[a.ID]; ok {
			continue
		}
		r := &agentRecord{monitor: recovery.NewMonitor(c.cfg.StuckThreshold)}
		r.task = core.Task{State: core.SeekShelf}
		if a.IsCarrying() {
			r.task = c.carryTask(snap, a)
		}
		c.agents[a.ID] = r
	}
}

func (c *Controller) decideAgent(snap *core.Snapshot, a *core.Agent) core.Action {
	r := c.agents[a.ID]
	c.confirmReturn(a, r)

	if a.IsDepleted() {
		if !r.depleted {
			r.depleted = true
			c.rec.BatteryFailure(a.ID)
			c.log.Warn("battery depleted", "agent", a.ID, "tick", c.tick, "state", r.task.State)
		}
		c.ledger.ReleaseAgent(a.ID)
		r.queue = nil
		r.monitor.Reset(a.Pos)
		return c.emit(r, core.Noop)
	}
	r.depleted = false

	c.checkBattery(snap, a, r)
	c.syncCarrying(snap, a, r)
	c.reevaluateIdle(snap, a, r)

	eligible := r.task.State != core.NoTask && !c.isCharging(a, r)
	tr := r.monitor.Observe(a.Pos, eligible)
	switch tr {
	case recovery.Entered:
		r.queue = nil
		c.rec.Collision(a.ID)
		c.log.Info("agent stuck, recovering", "agent", a.ID, "tick", c.tick, "pos", a.Pos, "state", r.task.State)
	case recovery.Exited:
		r.queue = nil
	}
	if r.monitor.Recovering() || tr == recovery.Exited {
		c.rec.RecoveryStep(a.ID)
	}
	if tr == recovery.Exited {
		c.rec.RecoveryComplete(a.ID)
		c.log.Info("agent recovered", "agent", a.ID, "tick", c.tick, "pos", a.Pos, "steps", r.monitor.Steps())
	}

	if r.monitor.Recovering() && len(r.queue) == 0 {
		r.queue = recovery.Maneuver(a.IsCarrying(), c.tick, a.ID)
	}

	if len(r.queue) > 0 {
		act := r.queue[0]
		r.queue = r.queue[1:]
		return c.emit(r, act)
	}

	return c.emit(r, c.allocate(snap, a, r))
}

func (c *Controller) emit(r *agentRecord, a core.Action) core.Action {
	r.monitor.Emitted(a)
	return a
}

// confirmReturn counts a completed task once the snapshot shows the shelf
// dropped at home. A rejected drop is retried through syncCarrying.
func (c *Controller) confirmReturn(a *core.Agent, r *agentRecord) {
	shelf := r.dropped
	if shelf == core.NoShelf {
		return
	}
	r.dropped = core.NoShelf
	if a.IsCarrying() {
		c.log.Debug("drop at home rejected", "agent", a.ID, "tick", c.tick, "shelf", shelf)
		return
	}
	c.rec.TaskCompletion(a.ID, shelf)
}

// syncCarrying repairs a task state that disagrees with what the world
// says the agent holds.
func (c *Controller) syncCarrying(snap *core.Snapshot, a *core.Agent, r *agentRecord) {
	switch {
	case r.task.State == core.Charging:
	case a.IsCarrying() && !r.task.State.Carries():
		prev := r.task.State
		r.task = c.carryTask(snap, a)
		r.queue = nil
		c.releaseWaiting(a.ID)
		c.log.Warn("agent holds a shelf outside a carrying state", "agent", a.ID, "shelf", a.Carrying, "was", prev, "now", r.task.State)
	case !a.IsCarrying() && r.task.State.Carries():
		c.log.Warn("agent lost its shelf", "agent", a.ID, "state", r.task.State)
		r.task = core.Task{State: core.SeekShelf}
		r.queue = nil
	}
}

// carryTask picks the carrying state for a shelf the agent already holds.
func (c *Controller) carryTask(snap *core.Snapshot, a *core.Agent) core.Task {
	if snap.IsRequested(a.Carrying) {
		return core.Task{State: core.Deliver, Target: &core.Target{Shelf: a.Carrying}}
	}
	return core.Task{State: core.ReturnShelf, Target: &core.Target{Cell: c.homes[a.Carrying], Shelf: a.Carrying}}
}

// reevaluateIdle moves agents between SeekShelf and NoTask depending on
// whether any requested shelf is liftable and unclaimed.
func (c *Controller) reevaluateIdle(snap *core.Snapshot, a *core.Agent, r *agentRecord) {
	switch r.task.State {
	case core.SeekShelf:
		if !c.canCarryAny(snap, a) {
			c.ledger.ReleaseAgent(a.ID)
			r.task = core.Task{State: core.NoTask}
			r.queue = nil
			c.log.Debug("no liftable shelf", "agent", a.ID, "tick", c.tick)
		}
	case core.NoTask:
		if c.canCarryAny(snap, a) {
			r.task = core.Task{State: core.SeekShelf}
			r.queue = nil
			c.releaseWaiting(a.ID)
			c.log.Debug("shelf available again", "agent", a.ID, "tick", c.tick)
		}
	}
}

// canCarryAny reports whether some requested shelf is uncarried, not
// claimed by another agent and within the agent's carry limit.
func (c *Controller) canCarryAny(snap *core.Snapshot, a *core.Agent) bool {
	for _, id := range snap.Requests {
		sh := snap.ShelfByID(id)
		if sh == nil || snap.CarrierOf(id) != nil {
			continue
		}
		if c.ledger.IsReservedByOther(id, a.ID, c.tick) {
			continue
		}
		if a.CanLift(sh.Weight) {
			return true
		}
	}
	return false
}

// follow emits the first action of p and queues the rest.
func (c *Controller) follow(r *agentRecord, p core.Plan) core.Action {
	if len(p) == 0 {
		return core.Noop
	}
	r.queue = append(core.Plan(nil), p[1:]...)
	return p[0]
}

// moveTo plans from the agent's pose to cell under the blocking rules of
// its current state.
func (c *Controller) moveTo(snap *core.Snapshot, a *core.Agent, r *agentRecord, cell core.Pos) core.Action {
	blocked := planner.Blocked(snap, a, r.task.State)
	p, ok := c.planner.Plan(snap.Grid, a.Pose(), cell, blocked)
	if !ok {
		c.log.Debug("no path", "agent", a.ID, "tick", c.tick, "from", a.Pos, "to", cell, "state", r.task.State)
		return core.Noop
	}
	return c.follow(r, p)
}
