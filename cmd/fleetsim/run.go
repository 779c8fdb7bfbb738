package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/warehouse-fleet/internal/config"
	"github.com/elektrokombinacija/warehouse-fleet/internal/controller"
	"github.com/elektrokombinacija/warehouse-fleet/internal/metrics"
	"github.com/elektrokombinacija/warehouse-fleet/internal/planner"
	"github.com/elektrokombinacija/warehouse-fleet/internal/scenario"
	"github.com/elektrokombinacija/warehouse-fleet/internal/sim"
)

type runOptions struct {
	configPath   string
	scenarioPath string
	outputPath   string

	logLevel      string
	planner       string
	maxTicks      int
	maxDeliveries int
	eventsDir     string
	sqlitePath    string
	promTextfile  string
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	f.StringVarP(&opts.scenarioPath, "scenario", "s", "", "Scenario file path (YAML)")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Write the run result as JSON to this file")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.planner, "planner", "", "Path planner (astar, bfs)")
	f.IntVar(&opts.maxTicks, "max-ticks", 0, "Stop after this many ticks")
	f.IntVar(&opts.maxDeliveries, "max-deliveries", 0, "Stop after this many completed deliveries (0 = unlimited)")
	f.StringVar(&opts.eventsDir, "events-dir", "", "Directory for the zstd event log")
	f.StringVar(&opts.sqlitePath, "db", "", "SQLite run history path")
	f.StringVar(&opts.promTextfile, "prom-textfile", "", "Prometheus textfile output path")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command, opts runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("planner") {
		cfg.Controller.Planner = opts.planner
	}
	if f.Changed("max-ticks") {
		cfg.Run.MaxTicks = opts.maxTicks
	}
	if f.Changed("max-deliveries") {
		cfg.Run.MaxDeliveries = opts.maxDeliveries
	}
	if f.Changed("events-dir") {
		cfg.Metrics.EventsDir = opts.eventsDir
	}
	if f.Changed("db") {
		cfg.Metrics.SQLitePath = opts.sqlitePath
	}
	if f.Changed("prom-textfile") {
		cfg.Metrics.PrometheusTextfile = opts.promTextfile
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, config.ValidationErrors(errs))
	}
	return cfg, nil
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, opts runOptions) error {
	logger := newLogger(cfg.Log.Level)

	doc, err := scenario.Load(opts.scenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	world, err := doc.NewWorld()
	if err != nil {
		return fmt.Errorf("build world: %w", err)
	}
	p, err := planner.New(cfg.Controller.Planner)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With("run", runID, "scenario", doc.Name)

	collector := metrics.NewCollector()
	recorders := metrics.Multi{collector}

	var events *metrics.EventLog
	if cfg.Metrics.EventsDir != "" {
		events, err = metrics.NewEventLog(cfg.Metrics.EventsDir, runID)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer events.Close()
		recorders = append(recorders, events)
	}

	var prom *metrics.Prometheus
	if cfg.Metrics.PrometheusTextfile != "" {
		prom = metrics.NewPrometheus(runID)
		recorders = append(recorders, prom)
	}

	ctlCfg := cfg.ControllerConfig()
	ctlCfg.Planner = p
	ctlCfg.Recorder = recorders
	ctlCfg.Logger = logger

	runner := sim.NewRunner(sim.RunConfig{
		RunID:           runID,
		MaxTicks:        cfg.Run.MaxTicks,
		MaxDeliveries:   cfg.Run.MaxDeliveries,
		NoMovementLimit: cfg.Run.NoMovementLimit,
		ProgressEvery:   sim.DefaultRunConfig().ProgressEvery,
		Logger:          logger,
	}, world, controller.New(ctlCfg), collector)

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	printResult(out, doc.Name, p.Name(), res)

	if opts.outputPath != "" {
		if err := res.ExportMetrics(opts.outputPath); err != nil {
			return fmt.Errorf("export result: %w", err)
		}
	}
	if events != nil {
		if err := events.Close(); err != nil {
			return fmt.Errorf("close event log: %w", err)
		}
		logger.Info("event log written", "path", events.Path())
	}
	if prom != nil {
		if err := prom.WriteTextfile(cfg.Metrics.PrometheusTextfile); err != nil {
			return fmt.Errorf("write prometheus textfile: %w", err)
		}
	}
	if cfg.Metrics.SQLitePath != "" {
		if err := saveRun(ctx, cfg.Metrics.SQLitePath, res.Record(doc.Name, p.Name()), logger); err != nil {
			return err
		}
	}
	return nil
}

func saveRun(ctx context.Context, path string, r metrics.Run, logger *slog.Logger) error {
	store, err := metrics.OpenStore(path)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	// A canceled run is still worth keeping.
	if err := store.SaveRun(context.WithoutCancel(ctx), r); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logger.Debug("run saved", "db", path)
	return nil
}

func printResult(w io.Writer, name, plannerName string, res *sim.RunResult) {
	s := res.Summary
	fmt.Fprintf(w, "Run %s (%s, %s)\n", res.RunID, name, plannerName)
	fmt.Fprintf(w, "  Stopped:      %s after %d ticks\n", res.StopReason, res.Ticks)
	fmt.Fprintf(w, "  Deliveries:   %d/%d (%.0f%%), avg %.1f steps\n",
		s.DeliveriesSucceeded, s.DeliveriesAttempted, s.SuccessRate()*100, s.AvgTaskSteps)
	fmt.Fprintf(w, "  Collisions:   %d, avg recovery %.1f steps\n", s.Collisions, s.AvgRecoverySteps)
	fmt.Fprintf(w, "  Over weight:  %d\n", s.OverCapacityAttempts)
	fmt.Fprintf(w, "  Battery:      %d low, %d critical, %d depleted\n",
		s.LowBatteryEvents, s.CriticalBatteryEvents, s.BatteryFailures)
	fmt.Fprintf(w, "  Charging:     %d sessions, avg %.1f steps\n", s.ChargingSessions, s.AvgChargingSteps)
}
