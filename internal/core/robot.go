package core

// AgentID is a unique agent identifier. Agents are processed in
// ascending AgentID order every tick.
type AgentID int

// Agent is the world's view of one robot at the start of a tick.
type Agent struct {
	ID              AgentID
	Pos             Pos
	Dir             Direction
	Battery         float64 // current charge
	BatteryCapacity float64
	MaxCarryWeight  float64
	Carrying        ShelfID // NoShelf when empty-handed
}

// IsCarrying reports whether the agent holds a shelf.
func (a *Agent) IsCarrying() bool {
	return a.Carrying != NoShelf
}

// BatteryPercentage returns current battery level as percentage.
func (a *Agent) BatteryPercentage() float64 {
	if a.BatteryCapacity <= 0 {
		return 0
	}
	return (a.Battery / a.BatteryCapacity) * 100.0
}

// IsDepleted returns true once the battery is empty.
func (a *Agent) IsDepleted() bool {
	return a.Battery <= 0
}

// IsFull returns true when the battery is at capacity.
func (a *Agent) IsFull() bool {
	return a.Battery >= a.BatteryCapacity
}

// CanLift checks the agent's carry limit against a shelf weight.
func (a *Agent) CanLift(weight float64) bool {
	return weight <= a.MaxCarryWeight
}

// Pose returns the agent's position and facing.
func (a *Agent) Pose() Pose {
	return Pose{Pos: a.Pos, Dir: a.Dir}
}
