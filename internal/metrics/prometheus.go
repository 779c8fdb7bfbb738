package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

const namespace = "fleet"

// Prometheus exports the event stream as counters and histograms on a
// private registry.
type Prometheus struct {
	registry *prometheus.Registry

	deliveries       *prometheus.CounterVec // outcome: attempted, succeeded, failed
	collisions       prometheus.Counter
	recoverySteps    prometheus.Counter
	recoveries       prometheus.Counter
	overCapacity     prometheus.Counter
	batteryEvents    *prometheus.CounterVec // level: low, critical, depleted
	batteryPct       prometheus.Histogram
	chargingDuration prometheus.Histogram
	steps            prometheus.Counter

	mu            sync.Mutex
	step          int
	active        map[core.AgentID]core.ShelfID
	chargingSince map[core.AgentID]int
}

// NewPrometheus registers the fleet collectors. run is attached as a
// constant label.
func NewPrometheus(run string) *Prometheus {
	labels := prometheus.Labels{"run": run}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "deliveries_total",
			Help:        "Delivery attempts by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "collisions_total",
			Help:        "Agents that entered recovery after repeated failed moves.",
			ConstLabels: labels,
		}),
		recoverySteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "recovery_steps_total",
			Help:        "Agent-steps spent in recovery mode.",
			ConstLabels: labels,
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "recoveries_total",
			Help:        "Completed recoveries.",
			ConstLabels: labels,
		}),
		overCapacity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "over_capacity_attempts_total",
			Help:        "Pickups rejected because the shelf exceeded the agent's carry limit.",
			ConstLabels: labels,
		}),
		batteryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "battery_events_total",
			Help:        "Battery threshold crossings by level.",
			ConstLabels: labels,
		}, []string{"level"}),
		batteryPct: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "battery_alert_percent",
			Help:        "Battery percentage at low and critical alerts.",
			Buckets:     prometheus.LinearBuckets(0, 5, 5),
			ConstLabels: labels,
		}),
		chargingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "charging_duration_steps",
			Help:        "Steps from charging start to charging end.",
			Buckets:     prometheus.ExponentialBuckets(4, 2, 8),
			ConstLabels: labels,
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "steps_total",
			Help:        "Completed simulation steps.",
			ConstLabels: labels,
		}),
		active:        make(map[core.AgentID]core.ShelfID),
		chargingSince: make(map[core.AgentID]int),
	}

	p.registry.MustRegister(
		p.deliveries,
		p.collisions,
		p.recoverySteps,
		p.recoveries,
		p.overCapacity,
		p.batteryEvents,
		p.batteryPct,
		p.chargingDuration,
		p.steps,
	)
	return p
}

// Registry exposes the registry for scraping or tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// WriteTextfile writes the current values in text exposition format, for
// the node exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

func (p *Prometheus) TaskStart(agent core.AgentID, shelf core.ShelfID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[agent] == shelf {
		return
	}
	p.active[agent] = shelf
	p.deliveries.WithLabelValues("attempted").Inc()
}

func (p *Prometheus) TaskCompletion(agent core.AgentID, _ core.ShelfID) {
	p.mu.Lock()
	delete(p.active, agent)
	p.mu.Unlock()
	p.deliveries.WithLabelValues("succeeded").Inc()
}

func (p *Prometheus) Collision(core.AgentID)        { p.collisions.Inc() }
func (p *Prometheus) RecoveryStep(core.AgentID)     { p.recoverySteps.Inc() }
func (p *Prometheus) RecoveryComplete(core.AgentID) { p.recoveries.Inc() }

func (p *Prometheus) OverCapacity(agent core.AgentID, _ core.ShelfID, _, _ float64) {
	p.mu.Lock()
	delete(p.active, agent)
	p.mu.Unlock()
	p.overCapacity.Inc()
	p.deliveries.WithLabelValues("failed").Inc()
}

func (p *Prometheus) LowBattery(_ core.AgentID, pct float64) {
	p.batteryEvents.WithLabelValues("low").Inc()
	p.batteryPct.Observe(pct)
}

func (p *Prometheus) CriticalBattery(_ core.AgentID, pct float64) {
	p.batteryEvents.WithLabelValues("critical").Inc()
	p.batteryPct.Observe(pct)
}

func (p *Prometheus) BatteryFailure(agent core.AgentID) {
	p.batteryEvents.WithLabelValues("depleted").Inc()
	p.mu.Lock()
	_, inTask := p.active[agent]
	delete(p.active, agent)
	p.mu.Unlock()
	if inTask {
		p.deliveries.WithLabelValues("failed").Inc()
	}
}

func (p *Prometheus) ChargingStart(agent core.AgentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.chargingSince[agent]; !ok {
		p.chargingSince[agent] = p.step
	}
}

func (p *Prometheus) ChargingEnd(agent core.AgentID) {
	p.mu.Lock()
	start, ok := p.chargingSince[agent]
	delete(p.chargingSince, agent)
	step := p.step
	p.mu.Unlock()
	if ok {
		p.chargingDuration.Observe(float64(step - start))
	}
}

func (p *Prometheus) StepCompletion() {
	p.mu.Lock()
	p.step++
	p.mu.Unlock()
	p.steps.Inc()
}
