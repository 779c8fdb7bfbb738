package sim

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/warehouse-fleet/internal/controller"
	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
	"github.com/elektrokombinacija/warehouse-fleet/internal/metrics"
)

func robot(id core.AgentID, x, y int, dir core.Direction, battery float64) core.Agent {
	return core.Agent{
		ID:              id,
		Pos:             core.Pos{X: x, Y: y},
		Dir:             dir,
		Battery:         battery,
		BatteryCapacity: 100,
		MaxCarryWeight:  10,
	}
}

func newWorld(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	if cfg.Grid.Width == 0 {
		cfg.Grid = core.Grid{Width: 3, Height: 3}
	}
	if cfg.Costs == (Costs{}) {
		cfg.Costs = DefaultCosts()
	}
	w, err := NewWorld(cfg)
	require.NoError(t, err)
	return w
}

func step(t *testing.T, w *World, actions ...core.Action) StepResult {
	t.Helper()
	res, err := w.Step(actions)
	require.NoError(t, err)
	return res
}

func TestWorld_ForwardBlockedByAgent(t *testing.T) {
	w := newWorld(t, WorldConfig{Agents: []core.Agent{
		robot(1, 0, 0, core.Right, 100),
		robot(2, 1, 0, core.Down, 100),
	}})

	res := step(t, w, core.Forward, core.Noop)
	assert.Equal(t, 0, res.Moved)

	snap := w.Snapshot()
	assert.Equal(t, core.Pos{X: 0, Y: 0}, snap.Agents[0].Pos)
	assert.InDelta(t, 99.9, snap.Agents[0].Battery, 1e-9)
}

func TestWorld_AscendingIDOrder(t *testing.T) {
	// Agent 2 is listed first but agent 1 moves first and clears the cell.
	w := newWorld(t, WorldConfig{Agents: []core.Agent{
		robot(2, 0, 0, core.Right, 100),
		robot(1, 1, 0, core.Right, 100),
	}})

	res := step(t, w, core.Forward, core.Forward)
	assert.Equal(t, 2, res.Moved)

	snap := w.Snapshot()
	assert.Equal(t, core.Pos{X: 1, Y: 0}, snap.Agents[0].Pos)
	assert.Equal(t, core.Pos{X: 2, Y: 0}, snap.Agents[1].Pos)
}

func TestWorld_ForwardBlockedByObstacleAndEdge(t *testing.T) {
	w := newWorld(t, WorldConfig{
		Agents:    []core.Agent{robot(1, 0, 0, core.Up, 100), robot(2, 2, 2, core.Left, 100)},
		Obstacles: []core.Pos{{X: 1, Y: 2}},
	})

	res := step(t, w, core.Forward, core.Forward)
	assert.Equal(t, 0, res.Moved)
}

func TestWorld_PickupDeliverReturn(t *testing.T) {
	w := newWorld(t, WorldConfig{
		Agents:   []core.Agent{robot(1, 1, 1, core.Down, 100)},
		Shelves:  []core.Shelf{{ID: 1, Pos: core.Pos{X: 1, Y: 1}, Weight: 5}, {ID: 2, Pos: core.Pos{X: 2, Y: 0}, Weight: 5}},
		Requests: []core.ShelfID{1},
		Goals:    []core.Pos{{X: 1, Y: 2}},
	})

	step(t, w, core.ToggleLoad)
	require.Equal(t, core.ShelfID(1), w.Snapshot().Agents[0].Carrying)

	step(t, w, core.Forward)
	snap := w.Snapshot()
	assert.Equal(t, core.Pos{X: 1, Y: 2}, snap.Agents[0].Pos)
	assert.Equal(t, core.Pos{X: 1, Y: 2}, snap.ShelfByID(1).Pos)

	res := step(t, w, core.ToggleLoad)
	assert.Equal(t, []core.ShelfID{1}, res.Delivered)
	assert.Equal(t, 1, w.Deliveries())

	snap = w.Snapshot()
	assert.Equal(t, []core.ShelfID{2}, snap.Requests, "only unrequested shelf replaces the delivered one")
	assert.Equal(t, core.ShelfID(1), snap.Agents[0].Carrying, "shelf stays lifted after delivery")

	// Dropping on a goal is refused.
	res = step(t, w, core.ToggleLoad)
	assert.Empty(t, res.Delivered)
	assert.True(t, w.Snapshot().Agents[0].IsCarrying())

	step(t, w, core.TurnLeft)
	step(t, w, core.TurnLeft)
	step(t, w, core.Forward)
	step(t, w, core.ToggleLoad)

	snap = w.Snapshot()
	assert.False(t, snap.Agents[0].IsCarrying())
	assert.Equal(t, core.Pos{X: 1, Y: 1}, snap.ShelfByID(1).Pos)
}

func TestWorld_OverweightPickupFails(t *testing.T) {
	w := newWorld(t, WorldConfig{
		Agents:  []core.Agent{robot(1, 1, 1, core.Down, 100)},
		Shelves: []core.Shelf{{ID: 1, Pos: core.Pos{X: 1, Y: 1}, Weight: 20}},
	})

	step(t, w, core.ToggleLoad)
	assert.False(t, w.Snapshot().Agents[0].IsCarrying())
}

func TestWorld_CarryingBlockedByShelf(t *testing.T) {
	w := newWorld(t, WorldConfig{
		Agents: []core.Agent{robot(1, 0, 0, core.Right, 100), robot(2, 0, 2, core.Right, 100)},
		Shelves: []core.Shelf{
			{ID: 1, Pos: core.Pos{X: 0, Y: 0}, Weight: 1},
			{ID: 2, Pos: core.Pos{X: 1, Y: 0}, Weight: 1},
			{ID: 3, Pos: core.Pos{X: 1, Y: 2}, Weight: 1},
		},
	})

	step(t, w, core.ToggleLoad, core.Noop)
	res := step(t, w, core.Forward, core.Forward)

	snap := w.Snapshot()
	assert.Equal(t, 1, res.Moved, "empty-handed agent passes under a shelf")
	assert.Equal(t, core.Pos{X: 0, Y: 0}, snap.Agents[0].Pos)
	assert.Equal(t, core.Pos{X: 1, Y: 2}, snap.Agents[1].Pos)
}

func TestWorld_BatteryAndCharging(t *testing.T) {
	w := newWorld(t, WorldConfig{
		Agents:     []core.Agent{robot(1, 0, 0, core.Right, 50), robot(2, 2, 2, core.Up, 99)},
		Stations:   []core.Pos{{X: 0, Y: 0}, {X: 2, Y: 2}},
		ChargeRate: 5,
	})

	step(t, w, core.Noop, core.Noop)
	snap := w.Snapshot()
	assert.InDelta(t, 54.9, snap.Agents[0].Battery, 1e-9)
	assert.Equal(t, 100.0, snap.Agents[1].Battery, "capped at capacity")

	// Leaving the station costs a move and earns nothing.
	step(t, w, core.Forward, core.TurnLeft)
	snap = w.Snapshot()
	assert.InDelta(t, 53.9, snap.Agents[0].Battery, 1e-9)
	assert.Equal(t, 100.0, snap.Agents[1].Battery)
}

func TestWorld_DepletedIgnoresActions(t *testing.T) {
	w := newWorld(t, WorldConfig{Agents: []core.Agent{robot(1, 0, 0, core.Right, 0)}})

	res := step(t, w, core.Forward)
	assert.Equal(t, 0, res.Moved)
	assert.Equal(t, core.Pos{X: 0, Y: 0}, w.Snapshot().Agents[0].Pos)
}

func TestWorld_ActionCount(t *testing.T) {
	w := newWorld(t, WorldConfig{Agents: []core.Agent{robot(1, 0, 0, core.Right, 10)}})

	_, err := w.Step(nil)
	assert.True(t, errors.Is(err, ErrActionCount))
}

func TestNewWorld_Invalid(t *testing.T) {
	_, err := NewWorld(WorldConfig{
		Grid:      core.Grid{Width: 3, Height: 3},
		Agents:    []core.Agent{robot(1, 1, 1, core.Up, 10)},
		Obstacles: []core.Pos{{X: 1, Y: 1}},
	})
	assert.True(t, errors.Is(err, core.ErrInvalidSnapshot))

	_, err = NewWorld(WorldConfig{
		Grid:   core.Grid{Width: 3, Height: 3},
		Agents: []core.Agent{robot(1, 1, 1, core.Up, 10), robot(2, 1, 1, core.Up, 10)},
	})
	assert.True(t, errors.Is(err, core.ErrInvalidSnapshot))
}

type noopDecider struct{ err error }

func (d noopDecider) Decide(snap *core.Snapshot) ([]core.Action, error) {
	if d.err != nil {
		return nil, d.err
	}
	return make([]core.Action, len(snap.Agents)), nil
}

func TestRunner_StopConditions(t *testing.T) {
	tests := []struct {
		name    string
		battery float64
		cfg     RunConfig
		reason  StopReason
		ticks   int
	}{
		{"max ticks", 100, RunConfig{MaxTicks: 10}, StopMaxTicks, 10},
		{"no movement", 100, RunConfig{MaxTicks: 10, NoMovementLimit: 3}, StopNoMovement, 3},
		{"all depleted", 0, RunConfig{MaxTicks: 10}, StopAllDepleted, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t, WorldConfig{Agents: []core.Agent{robot(1, 0, 0, core.Up, tt.battery)}})
			res, err := NewRunner(tt.cfg, w, noopDecider{}, nil).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.reason, res.StopReason)
			assert.Equal(t, tt.ticks, res.Ticks)
			assert.NotEmpty(t, res.RunID)
		})
	}
}

func TestRunner_Canceled(t *testing.T) {
	w := newWorld(t, WorldConfig{Agents: []core.Agent{robot(1, 0, 0, core.Up, 100)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(RunConfig{MaxTicks: 10}, w, noopDecider{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StopCanceled, res.StopReason)
	assert.Equal(t, 0, res.Ticks)
}

func TestRunner_DecideError(t *testing.T) {
	w := newWorld(t, WorldConfig{Agents: []core.Agent{robot(1, 0, 0, core.Up, 100)}})
	boom := errors.New("boom")

	_, err := NewRunner(RunConfig{MaxTicks: 10}, w, noopDecider{err: boom}, nil).Run(context.Background())
	assert.True(t, errors.Is(err, boom))
}

func deliveryWorld(t *testing.T) *World {
	return newWorld(t, WorldConfig{
		Grid:       core.Grid{Width: 4, Height: 4},
		Agents:     []core.Agent{robot(1, 0, 0, core.Down, 100)},
		Shelves:    []core.Shelf{{ID: 1, Pos: core.Pos{X: 1, Y: 1}, Weight: 5}},
		Requests:   []core.ShelfID{1},
		Goals:      []core.Pos{{X: 1, Y: 3}},
		Stations:   []core.Pos{{X: 3, Y: 0}},
		ChargeRate: 5,
		Seed:       7,
	})
}

func TestRunner_DeliveryCycle(t *testing.T) {
	w := deliveryWorld(t)
	collector := metrics.NewCollector()
	ctl := controller.New(controller.Config{Recorder: collector})

	res, err := NewRunner(RunConfig{RunID: "cycle", MaxTicks: 200, MaxDeliveries: 1}, w, ctl, collector).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopMaxDeliveries, res.StopReason)
	assert.Equal(t, "cycle", res.RunID)
	assert.Equal(t, 1, w.Deliveries())
	assert.Equal(t, 1, res.Summary.DeliveriesSucceeded)
	assert.Equal(t, []core.ShelfID{1}, res.Summary.CompletedShelves)
	assert.Equal(t, res.Ticks, res.Summary.TotalSteps)
	assert.Zero(t, res.Summary.Collisions)

	snap := w.Snapshot()
	assert.False(t, snap.Agents[0].IsCarrying())
	assert.Equal(t, core.Pos{X: 1, Y: 1}, snap.ShelfByID(1).Pos, "shelf back home")

	row := res.Record("delivery", "astar")
	assert.Equal(t, "max_deliveries", row.StopReason)
	assert.Equal(t, res.Ticks, row.Ticks)
}

func TestRunner_Deterministic(t *testing.T) {
	run := func() *RunResult {
		collector := metrics.NewCollector()
		ctl := controller.New(controller.Config{Recorder: collector})
		res, err := NewRunner(RunConfig{MaxTicks: 120}, deliveryWorld(t), ctl, collector).Run(context.Background())
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.Equal(t, a.Ticks, b.Ticks)
	assert.Equal(t, a.StopReason, b.StopReason)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestRunResult_ExportMetrics(t *testing.T) {
	res := &RunResult{RunID: "r1", StopReason: StopMaxTicks, Ticks: 3}
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, res.ExportMetrics(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, "max_ticks", got["stop_reason"])
	assert.Equal(t, 3.0, got["ticks"])
}
