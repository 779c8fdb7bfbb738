// Package main generates warehouse scenario files.
// Generation is deterministic for a given seed.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/elektrokombinacija/warehouse-fleet/internal/core"
	"github.com/elektrokombinacija/warehouse-fleet/internal/scenario"
)

// ScenarioParams defines parameters for scenario generation.
type ScenarioParams struct {
	Seed        int64
	NumAgents   int
	GridWidth   int
	GridHeight  int
	BlockHeight int     // shelf rows between cross aisles
	Requests    int     // open requests at start
	MaxWeight   float64 // heaviest shelf
	MinBattery  float64 // lowest starting charge, percent
	ChargeRate  float64
}

// Agent carry limits are drawn from these classes.
var carryClasses = []float64{10, 15, 20}

// generateScenario builds a warehouse layout: pairs of shelf columns
// separated by aisles, an aisle above the goal row, goals centered on the
// bottom row and a charging station in every corner.
func generateScenario(params ScenarioParams) *scenario.Document {
	rng := rand.New(rand.NewSource(params.Seed))
	w, h := params.GridWidth, params.GridHeight

	doc := &scenario.Document{
		Name: fmt.Sprintf("warehouse_%d_%dx%d_%d", params.NumAgents, w, h, params.Seed),
		Seed: params.Seed,
		Grid: scenario.Grid{Width: w, Height: h},
	}
	charge := params.ChargeRate
	doc.World.ChargeRate = &charge

	used := core.NewCellSet()
	for _, c := range (core.Grid{Width: w, Height: h}).Corners() {
		if used.Has(c) {
			continue
		}
		used.Add(c)
		doc.Stations = append(doc.Stations, scenario.Cell{X: c.X, Y: c.Y})
	}

	// Goals: the middle third of the bottom row.
	for x := w / 3; x < w-w/3; x++ {
		p := core.Pos{X: x, Y: h - 1}
		if used.Has(p) {
			continue
		}
		used.Add(p)
		doc.Goals = append(doc.Goals, scenario.Cell{X: x, Y: h - 1})
	}

	// Shelves: columns 1..w-2 in pairs with an aisle after each pair,
	// rows 1..h-3 broken every BlockHeight rows by a cross aisle.
	id := 1
	for x := 1; x < w-1; x++ {
		if (x-1)%3 == 2 {
			continue
		}
		for y := 1; y < h-2; y++ {
			if params.BlockHeight > 0 && y%(params.BlockHeight+1) == 0 {
				continue
			}
			p := core.Pos{X: x, Y: y}
			used.Add(p)
			doc.Shelves = append(doc.Shelves, scenario.Shelf{
				ID:     id,
				X:      x,
				Y:      y,
				Weight: math.Round((1+rng.Float64()*(params.MaxWeight-1))*10) / 10,
			})
			id++
		}
	}

	// Requests: distinct random shelves.
	perm := rng.Perm(len(doc.Shelves))
	for i := 0; i < params.Requests && i < len(perm); i++ {
		doc.Requests = append(doc.Requests, doc.Shelves[perm[i]].ID)
	}

	// Agents start on free aisle cells.
	var free []core.Pos
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if p := (core.Pos{X: x, Y: y}); !used.Has(p) {
				free = append(free, p)
			}
		}
	}
	rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })

	dirs := []string{"UP", "DOWN", "LEFT", "RIGHT"}
	for i := 0; i < params.NumAgents && i < len(free); i++ {
		battery := params.MinBattery + rng.Float64()*(100-params.MinBattery)
		battery = math.Round(battery*10) / 10
		doc.Agents = append(doc.Agents, scenario.Agent{
			ID:              i,
			X:               free[i].X,
			Y:               free[i].Y,
			Dir:             dirs[rng.Intn(len(dirs))],
			Battery:         &battery,
			BatteryCapacity: 100,
			MaxCarryWeight:  carryClasses[rng.Intn(len(carryClasses))],
		})
	}

	return doc
}

// writeScenario validates the encoded document before writing it.
func writeScenario(dir string, doc *scenario.Document) (string, error) {
	data, err := scenario.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", doc.Name, err)
	}
	parsed, err := scenario.Parse(data)
	if err != nil {
		return "", fmt.Errorf("generated %s: %w", doc.Name, err)
	}
	if _, err := parsed.NewWorld(); err != nil {
		return "", fmt.Errorf("generated %s: %w", doc.Name, err)
	}

	filename := filepath.Join(dir, doc.Name+".yaml")
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

func main() {
	// Parse flags
	seed := flag.Int64("seed", 42, "Random seed for deterministic generation")
	numAgents := flag.Int("agents", 4, "Number of agents")
	gridWidth := flag.Int("width", 11, "Grid width")
	gridHeight := flag.Int("height", 10, "Grid height")
	blockHeight := flag.Int("block", 3, "Shelf rows between cross aisles (0 = none)")
	requests := flag.Int("requests", 4, "Open requests at start")
	maxWeight := flag.Float64("max-weight", 18, "Heaviest shelf weight")
	minBattery := flag.Float64("min-battery", 40, "Lowest starting battery (percent)")
	chargeRate := flag.Float64("charge-rate", scenario.DefaultChargeRate, "Battery units gained per tick on a station")
	outputDir := flag.String("output", "scenarios", "Output directory")
	scalingMode := flag.Bool("scaling", false, "Generate scaling scenarios (2, 4, 8, 16, 32 agents)")

	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	base := ScenarioParams{
		Seed:        *seed,
		NumAgents:   *numAgents,
		GridWidth:   *gridWidth,
		GridHeight:  *gridHeight,
		BlockHeight: *blockHeight,
		Requests:    *requests,
		MaxWeight:   *maxWeight,
		MinBattery:  *minBattery,
		ChargeRate:  *chargeRate,
	}

	var docs []*scenario.Document
	if *scalingMode {
		for _, size := range []int{2, 4, 8, 16, 32} {
			// Grid side grows with sqrt of agents
			side := int(math.Ceil(math.Sqrt(float64(size)) * 5))
			if side < 10 {
				side = 10
			}
			params := base
			params.NumAgents = size
			params.GridWidth = side + 1
			params.GridHeight = side
			params.Requests = size
			docs = append(docs, generateScenario(params))
		}
	} else {
		docs = append(docs, generateScenario(base))
	}

	failed := false
	for _, doc := range docs {
		filename, err := writeScenario(*outputDir, doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("Generated: %s (%d agents, %d shelves, %d requests, %dx%d grid)\n",
			filename, len(doc.Agents), len(doc.Shelves), len(doc.Requests), doc.Grid.Width, doc.Grid.Height)
	}
	if failed {
		os.Exit(1)
	}
}
