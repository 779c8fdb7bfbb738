// Package core defines domain models for the warehouse fleet.
package core

import "fmt"

// Direction is an agent's facing on the grid.
// Y grows downward, so Up decreases Y.
type Direction int

const (
	Up    Direction = iota // y-1
	Down                   // y+1
	Left                   // x-1
	Right                  // x+1
)

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return [...]string{"UP", "DOWN", "LEFT", "RIGHT"}[d]
}

// Valid reports whether d is one of the four facings.
func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

// TurnLeft returns the facing after a left turn.
func (d Direction) TurnLeft() Direction {
	return [...]Direction{Left, Right, Down, Up}[d]
}

// TurnRight returns the facing after a right turn.
func (d Direction) TurnRight() Direction {
	return [...]Direction{Right, Left, Up, Down}[d]
}

// Delta returns the unit displacement of one step forward.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	default:
		return 0, 0
	}
}

// ParseDirection accepts the upper or lower case facing names.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "UP", "up", "u":
		return Up, nil
	case "DOWN", "down", "d":
		return Down, nil
	case "LEFT", "left", "l":
		return Left, nil
	case "RIGHT", "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Action is a primitive per-tick command. The numeric values are the
// simulator wire vocabulary and must not change.
type Action int

const (
	Noop       Action = 0
	Forward    Action = 1
	TurnLeft   Action = 2
	TurnRight  Action = 3
	ToggleLoad Action = 4
)

func (a Action) String() string {
	if a < Noop || a > ToggleLoad {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return [...]string{"NOOP", "FORWARD", "TURN_LEFT", "TURN_RIGHT", "TOGGLE_LOAD"}[a]
}

// TurnsToFace returns the shortest turn sequence from one facing to another.
// Reversal is always two left turns.
func TurnsToFace(from, to Direction) []Action {
	switch {
	case from == to:
		return nil
	case from.TurnLeft() == to:
		return []Action{TurnLeft}
	case from.TurnRight() == to:
		return []Action{TurnRight}
	default:
		return []Action{TurnLeft, TurnLeft}
	}
}
