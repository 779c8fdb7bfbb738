package core

import (
	"errors"
	"testing"
)

func TestTurns(t *testing.T) {
	tests := []struct {
		from        Direction
		left, right Direction
	}{
		{Up, Left, Right},
		{Down, Right, Left},
		{Left, Down, Up},
		{Right, Up, Down},
	}

	for _, tt := range tests {
		if got := tt.from.TurnLeft(); got != tt.left {
			t.Errorf("%v.TurnLeft() = %v, want %v", tt.from, got, tt.left)
		}
		if got := tt.from.TurnRight(); got != tt.right {
			t.Errorf("%v.TurnRight() = %v, want %v", tt.from, got, tt.right)
		}
	}
}

func TestTurnsToFace(t *testing.T) {
	for _, from := range []Direction{Up, Down, Left, Right} {
		for _, to := range []Direction{Up, Down, Left, Right} {
			turns := TurnsToFace(from, to)
			pose := Pose{Dir: from}
			for _, a := range turns {
				pose = pose.Apply(a)
			}
			if pose.Dir != to {
				t.Errorf("TurnsToFace(%v, %v) ends facing %v", from, to, pose.Dir)
			}
			if len(turns) > 2 {
				t.Errorf("TurnsToFace(%v, %v) uses %d turns", from, to, len(turns))
			}
		}
	}

	// Reversal uses two lefts
	got := TurnsToFace(Up, Down)
	if len(got) != 2 || got[0] != TurnLeft || got[1] != TurnLeft {
		t.Errorf("Expected [TURN_LEFT TURN_LEFT], got %v", got)
	}
}

func TestActionValues(t *testing.T) {
	// Wire vocabulary must stay bit-exact
	want := map[Action]int{Noop: 0, Forward: 1, TurnLeft: 2, TurnRight: 3, ToggleLoad: 4}
	for a, v := range want {
		if int(a) != v {
			t.Errorf("%v = %d, want %d", a, int(a), v)
		}
	}
}

func TestPlanReplay(t *testing.T) {
	g := Grid{Width: 3, Height: 3}
	start := Pose{Pos: Pos{0, 0}, Dir: Right}

	plan := Plan{Forward, Forward, TurnRight, Forward}
	end, ok := plan.Replay(g, start, nil)
	if !ok {
		t.Fatal("Expected replay to succeed")
	}
	if end.Pos != (Pos{2, 1}) || end.Dir != Down {
		t.Errorf("Expected (2,1) DOWN, got %v %v", end.Pos, end.Dir)
	}

	// Blocked intermediate cell
	if _, ok := plan.Replay(g, start, NewCellSet(Pos{1, 0})); ok {
		t.Error("Expected replay through blocked cell to fail")
	}

	// Out of bounds
	if _, ok := (Plan{Forward, Forward, Forward}).Replay(g, start, nil); ok {
		t.Error("Expected replay off the grid to fail")
	}
}

func TestPathToPlan(t *testing.T) {
	start := Pose{Pos: Pos{1, 1}, Dir: Up}
	path := []Pos{{1, 2}, {2, 2}}

	plan := PathToPlan(start, path)
	want := Plan{TurnLeft, TurnLeft, Forward, TurnLeft, Forward}
	if len(plan) != len(want) {
		t.Fatalf("Expected %v, got %v", want, plan)
	}
	for i := range want {
		if plan[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, plan)
		}
	}
	if !plan.Reaches(Grid{Width: 3, Height: 3}, start, Pos{2, 2}, nil) {
		t.Error("Expected plan to reach (2,2)")
	}
}

func TestSnapshotValidate(t *testing.T) {
	valid := func() *Snapshot {
		return &Snapshot{
			Grid: Grid{Width: 4, Height: 4},
			Agents: []Agent{
				{ID: 1, Pos: Pos{0, 0}, Battery: 50, BatteryCapacity: 100, MaxCarryWeight: 4},
				{ID: 2, Pos: Pos{1, 0}, Battery: 100, BatteryCapacity: 100, MaxCarryWeight: 4, Carrying: 7},
			},
			Shelves:  []Shelf{{ID: 7, Pos: Pos{1, 0}, Weight: 2}, {ID: 8, Pos: Pos{2, 2}, Weight: 3}},
			Requests: []ShelfID{7, 8},
			Goals:    []Pos{{3, 3}},
			Stations: []Pos{{0, 3}},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid snapshot, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"agent out of bounds", func(s *Snapshot) { s.Agents[0].Pos = Pos{4, 0} }},
		{"duplicate agent", func(s *Snapshot) { s.Agents[1].ID = 1 }},
		{"battery above capacity", func(s *Snapshot) { s.Agents[0].Battery = 101 }},
		{"bad facing", func(s *Snapshot) { s.Agents[0].Dir = Direction(9) }},
		{"double carrier", func(s *Snapshot) { s.Agents[0].Carrying = 7 }},
		{"unknown carried shelf", func(s *Snapshot) { s.Agents[0].Carrying = 99 }},
		{"unknown request", func(s *Snapshot) { s.Requests = append(s.Requests, 42) }},
		{"goal out of bounds", func(s *Snapshot) { s.Goals = append(s.Goals, Pos{-1, 0}) }},
		{"empty grid", func(s *Snapshot) { s.Grid = Grid{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("Expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

func TestAgentOrder(t *testing.T) {
	s := &Snapshot{Agents: []Agent{{ID: 3}, {ID: 1}, {ID: 2}}}
	order := s.AgentOrder()
	want := []int{1, 2, 0}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, order)
		}
	}
}

func TestBatteryPercentage(t *testing.T) {
	a := &Agent{Battery: 9, BatteryCapacity: 100}
	if got := a.BatteryPercentage(); got != 9 {
		t.Errorf("Expected 9%%, got %.1f", got)
	}
	a.BatteryCapacity = 0
	if got := a.BatteryPercentage(); got != 0 {
		t.Errorf("Expected 0%% for zero capacity, got %.1f", got)
	}
}
