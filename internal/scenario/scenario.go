// Package scenario reads warehouse layouts from YAML and turns them into a
// reference world.
package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
	"github.com/elektrokombinacija/warehouse-fleet/internal/sim"
)

// ErrSchema is wrapped by every schema violation.
var ErrSchema = errors.New("scenario does not match schema")

// Defaults applied to fields a document leaves out.
const (
	DefaultBatteryCapacity = 100.0
	DefaultChargeRate      = 5.0
)

//go:embed scenario.schema.json
var schemaSource string

var schema = jsonschema.MustCompileString("scenario.schema.json", schemaSource)

// Cell is a grid position.
type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Grid is the workspace size.
type Grid struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Agent is one robot's initial state. Battery and BatteryCapacity default
// to a full DefaultBatteryCapacity.
type Agent struct {
	ID              int      `yaml:"id"`
	X               int      `yaml:"x"`
	Y               int      `yaml:"y"`
	Dir             string   `yaml:"dir"`
	Battery         *float64 `yaml:"battery,omitempty"`
	BatteryCapacity float64  `yaml:"battery_capacity,omitempty"`
	MaxCarryWeight  float64  `yaml:"max_carry_weight"`
	Carrying        int      `yaml:"carrying,omitempty"`
}

// Shelf is one shelf at its home cell.
type Shelf struct {
	ID     int     `yaml:"id"`
	X      int     `yaml:"x"`
	Y      int     `yaml:"y"`
	Weight float64 `yaml:"weight,omitempty"`
}

// World holds the physics parameters of the reference world.
type World struct {
	ChargeRate *float64   `yaml:"charge_rate,omitempty"`
	Costs      *sim.Costs `yaml:"costs,omitempty"`
}

// Document is a scenario file.
type Document struct {
	Name      string  `yaml:"name,omitempty"`
	Seed      int64   `yaml:"seed,omitempty"`
	Grid      Grid    `yaml:"grid"`
	Agents    []Agent `yaml:"agents"`
	Shelves   []Shelf `yaml:"shelves,omitempty"`
	Requests  []int   `yaml:"requests,omitempty"`
	Goals     []Cell  `yaml:"goals,omitempty"`
	Stations  []Cell  `yaml:"stations,omitempty"`
	Obstacles []Cell  `yaml:"obstacles,omitempty"`
	World     World   `yaml:"world,omitempty"`
}

// Load reads and validates a scenario file. The file name without
// extension becomes the name when the document has none.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Parse checks raw YAML against the scenario schema and decodes it.
func Parse(raw []byte) (*Document, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &doc, nil
}

// Validate checks raw YAML against the embedded JSON schema.
func Validate(raw []byte) error {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	// The validator wants JSON values, so take the tree through JSON.
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// Marshal encodes a document as YAML with two-space indentation.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WorldConfig converts the document, filling defaults.
func (d *Document) WorldConfig() (sim.WorldConfig, error) {
	cfg := sim.WorldConfig{
		Grid:       core.Grid{Width: d.Grid.Width, Height: d.Grid.Height},
		Goals:      cells(d.Goals),
		Stations:   cells(d.Stations),
		Obstacles:  cells(d.Obstacles),
		Costs:      sim.DefaultCosts(),
		ChargeRate: DefaultChargeRate,
		Seed:       d.Seed,
	}
	if d.World.Costs != nil {
		cfg.Costs = *d.World.Costs
	}
	if d.World.ChargeRate != nil {
		cfg.ChargeRate = *d.World.ChargeRate
	}

	for _, a := range d.Agents {
		dir, err := core.ParseDirection(a.Dir)
		if err != nil {
			return sim.WorldConfig{}, fmt.Errorf("agent %d: %w", a.ID, err)
		}
		capacity := a.BatteryCapacity
		if capacity == 0 {
			capacity = DefaultBatteryCapacity
		}
		battery := capacity
		if a.Battery != nil {
			battery = *a.Battery
		}
		cfg.Agents = append(cfg.Agents, core.Agent{
			ID:              core.AgentID(a.ID),
			Pos:             core.Pos{X: a.X, Y: a.Y},
			Dir:             dir,
			Battery:         battery,
			BatteryCapacity: capacity,
			MaxCarryWeight:  a.MaxCarryWeight,
			Carrying:        core.ShelfID(a.Carrying),
		})
	}
	for _, sh := range d.Shelves {
		cfg.Shelves = append(cfg.Shelves, core.Shelf{
			ID:     core.ShelfID(sh.ID),
			Pos:    core.Pos{X: sh.X, Y: sh.Y},
			Weight: sh.Weight,
		})
	}
	for _, id := range d.Requests {
		cfg.Requests = append(cfg.Requests, core.ShelfID(id))
	}
	return cfg, nil
}

// NewWorld builds the reference world described by the document.
func (d *Document) NewWorld() (*sim.World, error) {
	cfg, err := d.WorldConfig()
	if err != nil {
		return nil, err
	}
	return sim.NewWorld(cfg)
}

func cells(in []Cell) []core.Pos {
	if len(in) == 0 {
		return nil
	}
	out := make([]core.Pos, len(in))
	for i, c := range in {
		out[i] = core.Pos{X: c.X, Y: c.Y}
	}
	return out
}
