package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/warehouse-fleet/internal/metrics"
)

const basicScenario = "../../internal/scenario/testdata/basic.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fleetsim version "+Version)
}

func TestRun_WritesAllSinks(t *testing.T) {
	dir := t.TempDir()
	result := filepath.Join(dir, "result.json")
	db := filepath.Join(dir, "runs.db")
	prom := filepath.Join(dir, "fleet.prom")
	events := filepath.Join(dir, "events")

	out, err := execute(t, "run",
		"--scenario", basicScenario,
		"--max-ticks", "40",
		"--log-level", "error",
		"--output", result,
		"--db", db,
		"--prom-textfile", prom,
		"--events-dir", events)
	require.NoError(t, err)
	assert.Contains(t, out, "(basic, astar)")
	assert.Contains(t, out, "Stopped:")

	assert.FileExists(t, result)
	assert.FileExists(t, prom)

	logs, err := filepath.Glob(filepath.Join(events, "*.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	evs, err := metrics.ReadEvents(logs[0])
	require.NoError(t, err)
	assert.NotEmpty(t, evs)

	text, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(text), "fleet_steps_total")

	out, err = execute(t, "runs", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "basic")
	assert.Contains(t, lines[1], "astar")
}

func TestRun_RejectsBadPlanner(t *testing.T) {
	_, err := execute(t, "run", "--scenario", basicScenario, "--planner", "dijkstra")
	assert.Error(t, err)
}

func TestRun_RequiresScenario(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("grid: {width: 0, height: 2}\nagents: []\n"), 0o644))

	out, err := execute(t, "validate", basicScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+basicScenario)

	out, err = execute(t, "validate", basicScenario, bad)
	assert.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)
}
