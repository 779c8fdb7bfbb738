// Package metrics records fleet events and exposes them to reporting sinks.
//
// The controller only talks to the Recorder interface. Collector keeps the
// in-memory aggregate used for termination checks and run summaries;
// EventLog, Prometheus and Store persist or export the same stream.
package metrics

import "github.com/elektrokombinacija/warehouse-fleet/internal/core"

// Recorder receives fleet events as they happen. Implementations must not
// block the tick loop for long.
type Recorder interface {
	TaskStart(agent core.AgentID, shelf core.ShelfID)
	TaskCompletion(agent core.AgentID, shelf core.ShelfID)
	Collision(agent core.AgentID)
	RecoveryStep(agent core.AgentID)
	RecoveryComplete(agent core.AgentID)
	OverCapacity(agent core.AgentID, shelf core.ShelfID, weight, capacity float64)
	LowBattery(agent core.AgentID, pct float64)
	CriticalBattery(agent core.AgentID, pct float64)
	BatteryFailure(agent core.AgentID)
	ChargingStart(agent core.AgentID)
	ChargingEnd(agent core.AgentID)
	StepCompletion()
}

// Nop discards every event.
type Nop struct{}

func (Nop) TaskStart(core.AgentID, core.ShelfID)                      {}
func (Nop) TaskCompletion(core.AgentID, core.ShelfID)                 {}
func (Nop) Collision(core.AgentID)                                    {}
func (Nop) RecoveryStep(core.AgentID)                                 {}
func (Nop) RecoveryComplete(core.AgentID)                             {}
func (Nop) OverCapacity(core.AgentID, core.ShelfID, float64, float64) {}
func (Nop) LowBattery(core.AgentID, float64)                          {}
func (Nop) CriticalBattery(core.AgentID, float64)                     {}
func (Nop) BatteryFailure(core.AgentID)                               {}
func (Nop) ChargingStart(core.AgentID)                                {}
func (Nop) ChargingEnd(core.AgentID)                                  {}
func (Nop) StepCompletion()                                           {}

// Multi fans every event out to each recorder in order.
type Multi []Recorder

func (m Multi) TaskStart(agent core.AgentID, shelf core.ShelfID) {
	for _, r := range m {
		r.TaskStart(agent, shelf)
	}
}

func (m Multi) TaskCompletion(agent core.AgentID, shelf core.ShelfID) {
	for _, r := range m {
		r.TaskCompletion(agent, shelf)
	}
}

func (m Multi) Collision(agent core.AgentID) {
	for _, r := range m {
		r.Collision(agent)
	}
}

func (m Multi) RecoveryStep(agent core.AgentID) {
	for _, r := range m {
		r.RecoveryStep(agent)
	}
}

func (m Multi) RecoveryComplete(agent core.AgentID) {
	for _, r := range m {
		r.RecoveryComplete(agent)
	}
}

func (m Multi) OverCapacity(agent core.AgentID, shelf core.ShelfID, weight, capacity float64) {
	for _, r := range m {
		r.OverCapacity(agent, shelf, weight, capacity)
	}
}

func (m Multi) LowBattery(agent core.AgentID, pct float64) {
	for _, r := range m {
		r.LowBattery(agent, pct)
	}
}

func (m Multi) CriticalBattery(agent core.AgentID, pct float64) {
	for _, r := range m {
		r.CriticalBattery(agent, pct)
	}
}

func (m Multi) BatteryFailure(agent core.AgentID) {
	for _, r := range m {
		r.BatteryFailure(agent)
	}
}

func (m Multi) ChargingStart(agent core.AgentID) {
	for _, r := range m {
		r.ChargingStart(agent)
	}
}

func (m Multi) ChargingEnd(agent core.AgentID) {
	for _, r := range m {
		r.ChargingEnd(agent)
	}
}

func (m Multi) StepCompletion() {
	for _, r := range m {
		r.StepCompletion()
	}
}
