package metrics

import (
	"sort"
	"sync"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// Summary is the aggregate view of a run. Durations are in steps.
type Summary struct {
	DeliveriesAttempted int            `json:"deliveries_attempted"`
	DeliveriesSucceeded int            `json:"deliveries_succeeded"`
	DeliveriesFailed    int            `json:"deliveries_failed"`
	CompletedShelves    []core.ShelfID `json:"completed_shelves"`
	AvgTaskSteps        float64        `json:"avg_task_steps"`
	TotalSteps          int            `json:"total_steps"`

	Collisions       int     `json:"collisions"`
	Recoveries       int     `json:"recoveries"`
	AvgRecoverySteps float64 `json:"avg_recovery_steps"` // per collision

	OverCapacityAttempts int `json:"over_capacity_attempts"`

	LowBatteryEvents      int     `json:"low_battery_events"`
	CriticalBatteryEvents int     `json:"critical_battery_events"`
	BatteryFailures       int     `json:"battery_failures"`
	ChargingSessions      int     `json:"charging_sessions"`
	AvgChargingSteps      float64 `json:"avg_charging_steps"`

	DeliveriesByAgent map[core.AgentID]int `json:"deliveries_by_agent,omitempty"`
}

// SuccessRate returns succeeded / attempted, or 0 with no attempts.
func (s Summary) SuccessRate() float64 {
	if s.DeliveriesAttempted == 0 {
		return 0
	}
	return float64(s.DeliveriesSucceeded) / float64(s.DeliveriesAttempted)
}

// SuccessfulTasks is the termination-check view of completed work.
type SuccessfulTasks struct {
	Count    int
	ShelfIDs []core.ShelfID
}

type activeTask struct {
	shelf core.ShelfID
	start int
}

// Collector aggregates events in memory.
type Collector struct {
	mu sync.Mutex

	steps int

	active    map[core.AgentID]activeTask
	attempted int
	succeeded int
	failed    int
	completed []core.ShelfID
	taskSteps int
	byAgent   map[core.AgentID]int

	collisions    int
	recoveries    int
	recoverySteps int

	overCapacity int

	lowBattery      int
	criticalBattery int
	batteryFailures int

	charging         map[core.AgentID]int
	chargingSessions int
	chargingSteps    int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		active:   make(map[core.AgentID]activeTask),
		byAgent:  make(map[core.AgentID]int),
		charging: make(map[core.AgentID]int),
	}
}

// TaskStart opens a delivery attempt. Re-selecting the shelf already in
// progress is not a new attempt.
func (c *Collector) TaskStart(agent core.AgentID, shelf core.ShelfID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.active[agent]; ok && t.shelf == shelf {
		return
	}
	c.active[agent] = activeTask{shelf: shelf, start: c.steps}
	c.attempted++
}

func (c *Collector) TaskCompletion(agent core.AgentID, shelf core.ShelfID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.active[agent]; ok {
		c.taskSteps += c.steps - t.start
		delete(c.active, agent)
	}
	c.succeeded++
	c.completed = append(c.completed, shelf)
	c.byAgent[agent]++
}

func (c *Collector) Collision(core.AgentID) {
	c.mu.Lock()
	c.collisions++
	c.mu.Unlock()
}

func (c *Collector) RecoveryStep(core.AgentID) {
	c.mu.Lock()
	c.recoverySteps++
	c.mu.Unlock()
}

func (c *Collector) RecoveryComplete(core.AgentID) {
	c.mu.Lock()
	c.recoveries++
	c.mu.Unlock()
}

// OverCapacity counts a rejected pickup as a failed delivery.
func (c *Collector) OverCapacity(agent core.AgentID, _ core.ShelfID, _, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overCapacity++
	c.failed++
	delete(c.active, agent)
}

func (c *Collector) LowBattery(core.AgentID, float64) {
	c.mu.Lock()
	c.lowBattery++
	c.mu.Unlock()
}

func (c *Collector) CriticalBattery(core.AgentID, float64) {
	c.mu.Lock()
	c.criticalBattery++
	c.mu.Unlock()
}

// BatteryFailure counts a depletion; an open delivery attempt fails with it.
func (c *Collector) BatteryFailure(agent core.AgentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batteryFailures++
	if _, ok := c.active[agent]; ok {
		c.failed++
		delete(c.active, agent)
	}
}

func (c *Collector) ChargingStart(agent core.AgentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.charging[agent]; ok {
		return
	}
	c.charging[agent] = c.steps
}

func (c *Collector) ChargingEnd(agent core.AgentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start, ok := c.charging[agent]
	if !ok {
		return
	}
	delete(c.charging, agent)
	c.chargingSessions++
	c.chargingSteps += c.steps - start
}

func (c *Collector) StepCompletion() {
	c.mu.Lock()
	c.steps++
	c.mu.Unlock()
}

// Steps returns the number of completed steps.
func (c *Collector) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

// SuccessfulTasks returns completed deliveries in completion order.
func (c *Collector) SuccessfulTasks() SuccessfulTasks {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]core.ShelfID, len(c.completed))
	copy(ids, c.completed)
	return SuccessfulTasks{Count: c.succeeded, ShelfIDs: ids}
}

// Summary returns a snapshot of the aggregates.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		DeliveriesAttempted:   c.attempted,
		DeliveriesSucceeded:   c.succeeded,
		DeliveriesFailed:      c.failed,
		CompletedShelves:      make([]core.ShelfID, len(c.completed)),
		TotalSteps:            c.steps,
		Collisions:            c.collisions,
		Recoveries:            c.recoveries,
		OverCapacityAttempts:  c.overCapacity,
		LowBatteryEvents:      c.lowBattery,
		CriticalBatteryEvents: c.criticalBattery,
		BatteryFailures:       c.batteryFailures,
		ChargingSessions:      c.chargingSessions,
		DeliveriesByAgent:     make(map[core.AgentID]int, len(c.byAgent)),
	}
	copy(s.CompletedShelves, c.completed)
	for id, n := range c.byAgent {
		s.DeliveriesByAgent[id] = n
	}

	if c.succeeded > 0 {
		s.AvgTaskSteps = float64(c.taskSteps) / float64(c.succeeded)
	}
	if c.collisions > 0 {
		s.AvgRecoverySteps = float64(c.recoverySteps) / float64(c.collisions)
	}
	if c.chargingSessions > 0 {
		s.AvgChargingSteps = float64(c.chargingSteps) / float64(c.chargingSessions)
	}
	return s
}

// ActiveAgents returns agents with an open delivery attempt, ascending.
func (c *Collector) ActiveAgents() []core.AgentID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]core.AgentID, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
