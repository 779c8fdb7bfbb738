package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
)

// Event kinds written to the event log.
const (
	KindTaskStart        = "task_start"
	KindTaskCompletion   = "task_completion"
	KindCollision        = "collision"
	KindRecoveryStep     = "recovery_step"
	KindRecoveryComplete = "recovery_complete"
	KindOverCapacity     = "over_capacity"
	KindLowBattery       = "low_battery"
	KindCriticalBattery  = "critical_battery"
	KindBatteryFailure   = "battery_failure"
	KindChargingStart    = "charging_start"
	KindChargingEnd      = "charging_end"
	KindStep             = "step"
)

// Event is one line of the event log.
type Event struct {
	Run   string       `json:"run"`
	Step  int          `json:"step"`
	Kind  string       `json:"kind"`
	Agent core.AgentID `json:"agent"`
	Shelf core.ShelfID `json:"shelf,omitempty"`
	Value float64      `json:"value,omitempty"` // battery % or shelf weight
	Limit float64      `json:"limit,omitempty"` // agent carry capacity
}

// EventLog writes every recorded event as a JSON line into a
// zstd-compressed file. Write errors are sticky and reported by Err and
// Close.
type EventLog struct {
	mu sync.Mutex

	run  string
	path string
	step int

	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	err error
}

// NewEventLog creates dir/<run>.jsonl.zst.
func NewEventLog(dir, run string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl.zst", run))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &EventLog{
		run:  run,
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// Path returns the log file location.
func (l *EventLog) Path() string { return l.path }

// Err returns the first write error, if any.
func (l *EventLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *EventLog) write(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil || l.w == nil {
		return
	}
	e.Run = l.run
	e.Step = l.step
	b, err := json.Marshal(e)
	if err != nil {
		l.err = err
		return
	}
	if _, err := l.w.Write(b); err != nil {
		l.err = err
		return
	}
	if err := l.w.WriteByte('\n'); err != nil {
		l.err = err
	}
}

// Close flushes and closes the file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return l.err
	}
	if err := l.w.Flush(); err != nil && l.err == nil {
		l.err = err
	}
	if err := l.enc.Close(); err != nil && l.err == nil {
		l.err = err
	}
	if err := l.f.Close(); err != nil && l.err == nil {
		l.err = err
	}
	l.w, l.enc, l.f = nil, nil, nil
	return l.err
}

func (l *EventLog) TaskStart(agent core.AgentID, shelf core.ShelfID) {
	l.write(Event{Kind: KindTaskStart, Agent: agent, Shelf: shelf})
}

func (l *EventLog) TaskCompletion(agent core.AgentID, shelf core.ShelfID) {
	l.write(Event{Kind: KindTaskCompletion, Agent: agent, Shelf: shelf})
}

func (l *EventLog) Collision(agent core.AgentID) {
	l.write(Event{Kind: KindCollision, Agent: agent})
}

func (l *EventLog) RecoveryStep(agent core.AgentID) {
	l.write(Event{Kind: KindRecoveryStep, Agent: agent})
}

func (l *EventLog) RecoveryComplete(agent core.AgentID) {
	l.write(Event{Kind: KindRecoveryComplete, Agent: agent})
}

func (l *EventLog) OverCapacity(agent core.AgentID, shelf core.ShelfID, weight, capacity float64) {
	l.write(Event{Kind: KindOverCapacity, Agent: agent, Shelf: shelf, Value: weight, Limit: capacity})
}

func (l *EventLog) LowBattery(agent core.AgentID, pct float64) {
	l.write(Event{Kind: KindLowBattery, Agent: agent, Value: pct})
}

func (l *EventLog) CriticalBattery(agent core.AgentID, pct float64) {
	l.write(Event{Kind: KindCriticalBattery, Agent: agent, Value: pct})
}

func (l *EventLog) BatteryFailure(agent core.AgentID) {
	l.write(Event{Kind: KindBatteryFailure, Agent: agent})
}

func (l *EventLog) ChargingStart(agent core.AgentID) {
	l.write(Event{Kind: KindChargingStart, Agent: agent})
}

func (l *EventLog) ChargingEnd(agent core.AgentID) {
	l.write(Event{Kind: KindChargingEnd, Agent: agent})
}

// StepCompletion logs the step marker and advances the step stamp.
func (l *EventLog) StepCompletion() {
	l.write(Event{Kind: KindStep})
	l.mu.Lock()
	l.step++
	l.mu.Unlock()
}

// ReadEvents decodes a log written by EventLog.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var events []Event
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
