package core

// ShelfID is a unique shelf identifier. Valid IDs are positive.
type ShelfID int

// NoShelf marks the absence of a shelf.
const NoShelf ShelfID = 0

// Shelf is a movable storage unit.
type Shelf struct {
	ID     ShelfID
	Pos    Pos // current cell; follows the carrier while lifted
	Weight float64
}

// TaskState is the allocator state of one agent.
type TaskState int

const (
	SeekShelf   TaskState = iota // heading to a reserved shelf
	Deliver                      // carrying a shelf to the nearest goal
	ReturnShelf                  // carrying a delivered shelf back home
	Charging                     // heading to or sitting on a station
	NoTask                       // nothing liftable; parked in a waiting area
)

func (s TaskState) String() string {
	return [...]string{"SeekShelf", "Deliver", "ReturnShelf", "Charging", "NoTask"}[s]
}

// Carries reports whether the state implies holding a shelf.
func (s TaskState) Carries() bool {
	return s == Deliver || s == ReturnShelf
}

// Target is where the agent is currently heading.
type Target struct {
	Cell  Pos
	Shelf ShelfID // set for SeekShelf, Deliver and ReturnShelf
}

// Task is the tagged allocator state with its optional target.
type Task struct {
	State  TaskState
	Target *Target
}

// HasTarget returns true if a target is set.
func (t Task) HasTarget() bool {
	return t.Target != nil
}

// SavedContext is the task snapshot taken right before a forced switch
// into Charging.
type SavedContext struct {
	State    TaskState
	Target   *Target
	Carrying ShelfID
}
