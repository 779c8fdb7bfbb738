package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
	"github.com/elektrokombinacija/warehouse-fleet/internal/metrics"
)

// Environment is the world a Runner drives. *World implements it; a
// physics engine can be plugged in behind the same two calls.
type Environment interface {
	Snapshot() *core.Snapshot
	Step(actions []core.Action) (StepResult, error)
}

// Decider turns a snapshot into one action per agent.
type Decider interface {
	Decide(snap *core.Snapshot) ([]core.Action, error)
}

// StopReason says why a run ended.
type StopReason string

const (
	StopCanceled      StopReason = "canceled"
	StopMaxTicks      StopReason = "max_ticks"
	StopMaxDeliveries StopReason = "max_deliveries"
	StopAllDepleted   StopReason = "all_depleted"
	StopNoMovement    StopReason = "no_movement"
)

// RunConfig configures the external stop conditions of a run
type RunConfig struct {
	// Run identifier; generated when empty
	RunID string

	// Hard cap on ticks
	MaxTicks int

	// Stop once this many deliveries completed (0 = unlimited)
	MaxDeliveries int

	// Stop after this many consecutive ticks without any agent moving (0 = disabled)
	NoMovementLimit int

	// Progress is logged every ProgressEvery ticks at debug level (0 = never)
	ProgressEvery int

	Logger *slog.Logger
}

// DefaultRunConfig returns default run limits
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxTicks:        5000,
		MaxDeliveries:   50,
		NoMovementLimit: 100,
		ProgressEvery:   500,
	}
}

// RunResult is the final output of a run
type RunResult struct {
	RunID      string          `json:"run_id"`
	StopReason StopReason      `json:"stop_reason"`
	Ticks      int             `json:"ticks"`
	StartedAt  time.Time       `json:"started_at"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	Summary    metrics.Summary `json:"summary"`
}

// Runner loops snapshot, decide and step until a stop condition holds.
type Runner struct {
	cfg       RunConfig
	env       Environment
	decider   Decider
	collector *metrics.Collector
	log       *slog.Logger
}

// NewRunner creates a runner. collector must be the one the decider
// records into; it backs the delivery stop condition and the summary.
func NewRunner(cfg RunConfig, env Environment, decider Decider, collector *metrics.Collector) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = DefaultRunConfig().MaxTicks
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Runner{
		cfg:       cfg,
		env:       env,
		decider:   decider,
		collector: collector,
		log:       cfg.Logger.With("run", cfg.RunID),
	}
}

// RunID returns the identifier of this run.
func (r *Runner) RunID() string { return r.cfg.RunID }

// Run executes the loop. It returns an error only when the decider or the
// environment fails; cancellation is a normal stop.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: r.cfg.RunID, StartedAt: time.Now()}
	idle := 0

	r.log.Info("run started", "max_ticks", r.cfg.MaxTicks, "max_deliveries", r.cfg.MaxDeliveries)

loop:
	for {
		select {
		case <-ctx.Done():
			res.StopReason = StopCanceled
			break loop
		default:
		}

		if res.Ticks >= r.cfg.MaxTicks {
			res.StopReason = StopMaxTicks
			break
		}

		snap := r.env.Snapshot()
		if allDepleted(snap) {
			res.StopReason = StopAllDepleted
			break
		}

		actions, err := r.decider.Decide(snap)
		if err != nil {
			return nil, fmt.Errorf("decide tick %d: %w", res.Ticks, err)
		}
		step, err := r.env.Step(actions)
		if err != nil {
			return nil, fmt.Errorf("step tick %d: %w", res.Ticks, err)
		}
		res.Ticks++

		for _, id := range step.Delivered {
			r.log.Debug("shelf delivered", "shelf", id, "tick", res.Ticks)
		}

		if r.cfg.MaxDeliveries > 0 && r.collector.SuccessfulTasks().Count >= r.cfg.MaxDeliveries {
			res.StopReason = StopMaxDeliveries
			break
		}

		if step.Moved == 0 {
			idle++
		} else {
			idle = 0
		}
		if r.cfg.NoMovementLimit > 0 && idle >= r.cfg.NoMovementLimit {
			res.StopReason = StopNoMovement
			break
		}

		if r.cfg.ProgressEvery > 0 && res.Ticks%r.cfg.ProgressEvery == 0 {
			r.log.Debug("progress",
				"tick", res.Ticks,
				"deliveries", r.collector.SuccessfulTasks().Count,
				"active", len(r.collector.ActiveAgents()))
		}
	}

	res.Elapsed = time.Since(res.StartedAt)
	res.Summary = r.collector.Summary()

	r.log.Info("run finished",
		"reason", res.StopReason,
		"ticks", res.Ticks,
		"deliveries", res.Summary.DeliveriesSucceeded,
		"collisions", res.Summary.Collisions)
	return res, nil
}

func allDepleted(snap *core.Snapshot) bool {
	if len(snap.Agents) == 0 {
		return false
	}
	for i := range snap.Agents {
		if !snap.Agents[i].IsDepleted() {
			return false
		}
	}
	return true
}

// Record converts the result into a persisted run row.
func (r *RunResult) Record(scenario, planner string) metrics.Run {
	return metrics.Run{
		ID:         r.RunID,
		Scenario:   scenario,
		Planner:    planner,
		StopReason: string(r.StopReason),
		Ticks:      r.Ticks,
		StartedAt:  r.StartedAt,
		Summary:    r.Summary,
	}
}

// ExportMetrics writes the result to a JSON file
func (r *RunResult) ExportMetrics(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
