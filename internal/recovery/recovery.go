// Package recovery detects agents that stopped making progress and supplies
// the corrective maneuvers that replace their plans until they move again.
package recovery

import "github.com/elektrokombinacija/warehouse-fleet/internal/core"

// DefaultThreshold is the number of consecutive failed forwards that
// starts recovery.
const DefaultThreshold = 2

// Transition reports what an observation changed.
type Transition int

const (
	None    Transition = iota
	Entered            // agent just entered recovery mode
	Exited             // agent moved forward and left recovery mode
)

func (t Transition) String() string {
	return [...]string{"none", "entered", "exited"}[t]
}

// Monitor tracks one agent's progress between ticks.
type Monitor struct {
	threshold int

	seen       bool
	lastPos    core.Pos
	lastAction core.Action

	failures   int
	recovering bool
	steps      int
}

// NewMonitor creates a monitor. A threshold below 1 selects
// DefaultThreshold.
func NewMonitor(threshold int) *Monitor {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Monitor{threshold: threshold}
}

// Recovering reports whether the agent is in recovery mode.
func (m *Monitor) Recovering() bool { return m.recovering }

// Failures returns the current count of consecutive failed forwards.
func (m *Monitor) Failures() int { return m.failures }

// Steps returns the ticks spent in the current or last recovery episode.
func (m *Monitor) Steps() int { return m.steps }

// Emitted records the action the agent was given this tick. The next
// Observe compares against it.
func (m *Monitor) Emitted(a core.Action) {
	m.lastAction = a
}

// Observe updates the monitor with the agent's position at the start of a
// tick. eligible is false when the agent must not enter recovery (already
// charging or parked without a task); it never blocks an exit.
func (m *Monitor) Observe(pos core.Pos, eligible bool) Transition {
	attempted := m.seen && m.lastAction == core.Forward
	moved := m.seen && pos != m.lastPos

	if attempted && !moved {
		m.failures++
	} else {
		m.failures = 0
	}

	m.lastPos = pos
	m.seen = true

	switch {
	case !m.recovering && eligible && m.failures >= m.threshold:
		m.recovering = true
		m.steps = 1
		return Entered
	case m.recovering && attempted && moved:
		m.steps++
		m.recovering = false
		m.failures = 0
		return Exited
	case m.recovering:
		m.steps++
	}
	return None
}

// Reset forgets history, abandoning any recovery in progress.
func (m *Monitor) Reset(pos core.Pos) {
	*m = Monitor{threshold: m.threshold, seen: true, lastPos: pos}
}

// Maneuver returns the corrective sequence for an agent in recovery. A
// carrying agent backs out conservatively; an empty-handed one picks one of
// three patterns by (tick + id) mod 3 so that agents stuck together split up.
func Maneuver(carrying bool, tick int, id core.AgentID) core.Plan {
	if carrying {
		return core.Plan{core.TurnLeft, core.TurnLeft, core.Forward, core.TurnRight, core.Forward}
	}
	switch (tick + int(id)) % 3 {
	case 0:
		return core.Plan{core.TurnLeft, core.Forward}
	case 1:
		return core.Plan{core.TurnRight, core.Forward}
	default:
		return core.Plan{core.TurnLeft, core.TurnLeft, core.Forward}
	}
}
