package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// playScript drives a recorder through a short run: agent 1 completes a
// delivery, agent 2 dies mid-task, agent 3 hits an over-weight shelf.
func playScript(r Recorder) {
	r.TaskStart(1, 10)
	r.StepCompletion()
	r.TaskStart(1, 10) // re-selection of the same shelf
	r.StepCompletion()
	r.TaskStart(2, 11)
	r.Collision(2)
	r.RecoveryStep(2)
	r.RecoveryStep(2)
	r.RecoveryComplete(2)
	r.StepCompletion()
	r.TaskCompletion(1, 10)
	r.LowBattery(3, 18)
	r.ChargingStart(3)
	r.StepCompletion()
	r.StepCompletion()
	r.ChargingEnd(3)
	r.TaskStart(3, 12)
	r.OverCapacity(3, 12, 9, 5)
	r.CriticalBattery(2, 4)
	r.BatteryFailure(2)
	r.BatteryFailure(4) // idle agent, no task in progress
	r.StepCompletion()
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector()
	playScript(c)

	s := c.Summary()
	assert.Equal(t, 3, s.DeliveriesAttempted)
	assert.Equal(t, 1, s.DeliveriesSucceeded)
	assert.Equal(t, 2, s.DeliveriesFailed, "one over-capacity plus one battery failure in task")
	assert.Equal(t, []core.ShelfID{10}, s.CompletedShelves)
	assert.Equal(t, 3.0, s.AvgTaskSteps)
	assert.Equal(t, 6, s.TotalSteps)
	assert.Equal(t, 1, s.Collisions)
	assert.Equal(t, 1, s.Recoveries)
	assert.Equal(t, 2.0, s.AvgRecoverySteps)
	assert.Equal(t, 1, s.OverCapacityAttempts)
	assert.Equal(t, 1, s.LowBatteryEvents)
	assert.Equal(t, 1, s.CriticalBatteryEvents)
	assert.Equal(t, 2, s.BatteryFailures)
	assert.Equal(t, 1, s.ChargingSessions)
	assert.Equal(t, 2.0, s.AvgChargingSteps)
	assert.Equal(t, map[core.AgentID]int{1: 1}, s.DeliveriesByAgent)
	assert.InDelta(t, 1.0/3.0, s.SuccessRate(), 1e-9)

	assert.Empty(t, c.ActiveAgents())
}

func TestCollector_SuccessfulTasks(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, 0, c.SuccessfulTasks().Count)

	c.TaskStart(1, 5)
	c.TaskCompletion(1, 5)
	c.TaskStart(2, 6)
	c.TaskCompletion(2, 6)

	got := c.SuccessfulTasks()
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []core.ShelfID{5, 6}, got.ShelfIDs)

	// Returned slice is a copy.
	got.ShelfIDs[0] = 99
	assert.Equal(t, core.ShelfID(5), c.SuccessfulTasks().ShelfIDs[0])
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	playScript(Multi{a, Nop{}, b})
	assert.Equal(t, a.Summary(), b.Summary())
}

func TestEventLog_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l, err := NewEventLog(dir, "run-1")
	require.NoError(t, err)

	playScript(l)
	require.NoError(t, l.Close())
	assert.Equal(t, filepath.Join(dir, "run-1.jsonl.zst"), l.Path())

	events, err := ReadEvents(l.Path())
	require.NoError(t, err)
	require.NotEmpty(t, events)

	assert.Equal(t, Event{Run: "run-1", Step: 0, Kind: KindTaskStart, Agent: 1, Shelf: 10}, events[0])

	var over *Event
	steps := 0
	for i := range events {
		switch events[i].Kind {
		case KindOverCapacity:
			over = &events[i]
		case KindStep:
			steps++
		}
	}
	require.NotNil(t, over)
	assert.Equal(t, 5, over.Step)
	assert.Equal(t, 9.0, over.Value)
	assert.Equal(t, 5.0, over.Limit)
	assert.Equal(t, 6, steps)
}

func TestEventLog_CloseTwice(t *testing.T) {
	l, err := NewEventLog(t.TempDir(), "r")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.NoError(t, l.Close())

	// Writes after close are dropped.
	l.Collision(1)
	assert.NoError(t, l.Err())
}

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus("run-1")
	playScript(p)

	assert.Equal(t, 3.0, testutil.ToFloat64(p.deliveries.WithLabelValues("attempted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.deliveries.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.deliveries.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.collisions))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.recoverySteps))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.batteryEvents.WithLabelValues("depleted")))
	assert.Equal(t, 6.0, testutil.ToFloat64(p.steps))

	path := filepath.Join(t.TempDir(), "fleet.prom")
	require.NoError(t, p.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, `fleet_collisions_total{run="run-1"} 1`), text)
	assert.Contains(t, text, "fleet_charging_duration_steps_count")
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore(filepath.Join(t.TempDir(), "runs", "fleet.db"))
	require.NoError(t, err)
	defer s.Close()

	c := NewCollector()
	playScript(c)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := Run{ID: "a", Scenario: "small", Planner: "astar", StopReason: "max_ticks", Ticks: 6, StartedAt: started, Summary: c.Summary()}
	second := Run{ID: "b", Scenario: "small", Planner: "bfs", StopReason: "no_movement", Ticks: 3, StartedAt: started.Add(time.Minute)}
	require.NoError(t, s.SaveRun(ctx, second))
	require.NoError(t, s.SaveRun(ctx, first))

	got, err := s.Run(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, first.Summary, got.Summary)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, "max_ticks", got.StopReason)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	_, err = s.Run(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOpenStore_EmptyPath(t *testing.T) {
	_, err := OpenStore("")
	assert.Error(t, err)
}
