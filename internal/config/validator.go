package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/elektrokombinacija/warehouse-fleet/internal/planner"
)

// ErrInvalid is wrapped by Load when validation fails.
var ErrInvalid = errors.New("invalid config")

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // config key, e.g. "controller.reservation_ttl"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidPlanners returns the accepted planner strategies
func ValidPlanners() []string {
	return []string{planner.StrategyAStar, planner.StrategyBFS}
}

// Validate checks the Config and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateController()...)
	errs = append(errs, c.validateRun()...)
	if !slices.Contains(ValidLogLevels(), c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}
	return errs
}

func (c *Config) validateController() []ValidationError {
	var errs []ValidationError
	ctl := c.Controller

	if ctl.CriticalBatteryPct <= 0 {
		errs = append(errs, ValidationError{"controller.critical_battery_pct", ctl.CriticalBatteryPct, "must be positive"})
	}
	if ctl.LowBatteryPct > 100 {
		errs = append(errs, ValidationError{"controller.low_battery_pct", ctl.LowBatteryPct, "must be at most 100"})
	}
	if ctl.CriticalBatteryPct >= ctl.LowBatteryPct {
		errs = append(errs, ValidationError{"controller.critical_battery_pct", ctl.CriticalBatteryPct, "must be below low_battery_pct"})
	}
	if ctl.ReservationTTL <= 0 {
		errs = append(errs, ValidationError{"controller.reservation_ttl", ctl.ReservationTTL, "must be positive"})
	}
	if ctl.StuckThreshold < 1 {
		errs = append(errs, ValidationError{"controller.stuck_threshold", ctl.StuckThreshold, "must be at least 1"})
	}
	if ctl.VacatingPct <= 0 || ctl.VacatingPct > 100 {
		errs = append(errs, ValidationError{"controller.vacating_pct", ctl.VacatingPct, "must be in (0, 100]"})
	}
	if !slices.Contains(ValidPlanners(), ctl.Planner) {
		errs = append(errs, ValidationError{"controller.planner", ctl.Planner, fmt.Sprintf("must be one of %v", ValidPlanners())})
	}
	return errs
}

func (c *Config) validateRun() []ValidationError {
	var errs []ValidationError
	if c.Run.MaxTicks <= 0 {
		errs = append(errs, ValidationError{"run.max_ticks", c.Run.MaxTicks, "must be positive"})
	}
	if c.Run.MaxDeliveries < 0 {
		errs = append(errs, ValidationError{"run.max_deliveries", c.Run.MaxDeliveries, "must not be negative"})
	}
	if c.Run.NoMovementLimit < 0 {
		errs = append(errs, ValidationError{"run.no_movement_limit", c.Run.NoMovementLimit, "must not be negative"})
	}
	return errs
}
