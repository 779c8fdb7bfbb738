// Package config loads controller and run settings through viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/elektrokombinacija/warehouse-fleet/internal/controller"
)

// EnvPrefix prefixes environment overrides, e.g. FLEET_RUN_MAX_TICKS.
const EnvPrefix = "FLEET"

// Config is the complete fleet configuration.
type Config struct {
	Controller ControllerConfig `mapstructure:"controller"`
	Run        RunConfig        `mapstructure:"run"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// ControllerConfig holds the decision thresholds.
type ControllerConfig struct {
	// LowBatteryPct sends an agent charging below this percentage
	LowBatteryPct float64 `mapstructure:"low_battery_pct"`
	// CriticalBatteryPct marks the alert as critical below this percentage
	CriticalBatteryPct float64 `mapstructure:"critical_battery_pct"`
	// ReservationTTL is the shelf reservation lifetime in ticks
	ReservationTTL int `mapstructure:"reservation_ttl"`
	// StuckThreshold is the number of consecutive failed forwards before recovery
	StuckThreshold int `mapstructure:"stuck_threshold"`
	// VacatingPct is the battery level above which a station occupant is expected to leave
	VacatingPct float64 `mapstructure:"vacating_pct"`
	// Planner selects the search strategy
	// Options: "astar", "bfs"
	Planner string `mapstructure:"planner"`
}

// RunConfig holds the external stop conditions of a simulation run.
type RunConfig struct {
	MaxTicks        int `mapstructure:"max_ticks"`
	MaxDeliveries   int `mapstructure:"max_deliveries"`    // 0 = unlimited
	NoMovementLimit int `mapstructure:"no_movement_limit"` // 0 = disabled
}

// MetricsConfig selects the metrics sinks. Empty paths disable a sink.
type MetricsConfig struct {
	EventsDir          string `mapstructure:"events_dir"`
	SQLitePath         string `mapstructure:"sqlite_path"`
	PrometheusTextfile string `mapstructure:"prometheus_textfile"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	ctl := controller.DefaultConfig()
	return &Config{
		Controller: ControllerConfig{
			LowBatteryPct:      ctl.LowBatteryPct,
			CriticalBatteryPct: ctl.CriticalBatteryPct,
			ReservationTTL:     ctl.ReservationTTL,
			StuckThreshold:     ctl.StuckThreshold,
			VacatingPct:        ctl.VacatingPct,
			Planner:            "astar",
		},
		Run: RunConfig{
			MaxTicks:        5000,
			MaxDeliveries:   50,
			NoMovementLimit: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("controller.low_battery_pct", defaults.Controller.LowBatteryPct)
	v.SetDefault("controller.critical_battery_pct", defaults.Controller.CriticalBatteryPct)
	v.SetDefault("controller.reservation_ttl", defaults.Controller.ReservationTTL)
	v.SetDefault("controller.stuck_threshold", defaults.Controller.StuckThreshold)
	v.SetDefault("controller.vacating_pct", defaults.Controller.VacatingPct)
	v.SetDefault("controller.planner", defaults.Controller.Planner)

	v.SetDefault("run.max_ticks", defaults.Run.MaxTicks)
	v.SetDefault("run.max_deliveries", defaults.Run.MaxDeliveries)
	v.SetDefault("run.no_movement_limit", defaults.Run.NoMovementLimit)

	v.SetDefault("metrics.events_dir", defaults.Metrics.EventsDir)
	v.SetDefault("metrics.sqlite_path", defaults.Metrics.SQLitePath)
	v.SetDefault("metrics.prometheus_textfile", defaults.Metrics.PrometheusTextfile)

	v.SetDefault("log.level", defaults.Log.Level)
}

// Load reads defaults, then path if non-empty, then the environment, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, ValidationErrors(errs))
	}
	return &cfg, nil
}

// ControllerConfig converts the thresholds. Collaborators are left for the
// caller to set.
func (c *Config) ControllerConfig() controller.Config {
	return controller.Config{
		LowBatteryPct:      c.Controller.LowBatteryPct,
		CriticalBatteryPct: c.Controller.CriticalBatteryPct,
		ReservationTTL:     c.Controller.ReservationTTL,
		StuckThreshold:     c.Controller.StuckThreshold,
		VacatingPct:        c.Controller.VacatingPct,
	}
}
