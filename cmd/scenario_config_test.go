package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"08:00", 8 * 3600, false},
		{"08:30", 8*3600 + 30*60, false},
		{"00:00", 0, false},
		{"23:59", 23*3600 + 59*60, false},
		{"24:00", 0, true},
		{"08:60", 0, true},
		{"0800", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "parseClock(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "parseClock(%q)", tt.in)
		assert.Equal(t, tt.want, got, "parseClock(%q)", tt.in)
	}
}

func TestBuildGraph_OnewayControlsReversibility(t *testing.T) {
	fc := &FloorplanConfig{
		Nodes: []NodeConfig{
			{ID: "a", Kind: "room"},
			{ID: "b"}, // kind defaults to junction
			{ID: "c", Kind: "stair-landing", Floor: 1},
		},
		Edges: []EdgeConfig{
			{ID: "ab", From: "a", To: "b", LengthM: 10, WidthM: 2, CapacityPPS: 1},
			{ID: "bc", From: "b", To: "c", LengthM: 5, WidthM: 1.5, CapacityPPS: 1, Stairs: true, Oneway: true},
		},
	}

	g, err := BuildGraph(fc)
	require.NoError(t, err)

	// Two-way edge gets a reverse arc, one-way stays one-way.
	assert.Len(t, g.OutArcs("b"), 2) // ab reversed + bc forward
	assert.Empty(t, g.OutArcs("c"))
	e, ok := g.Edge("bc")
	require.True(t, ok)
	assert.True(t, e.Stairs)
	assert.False(t, e.Reversible)
}

func TestBuildGraph_RejectsUnknownKind(t *testing.T) {
	fc := &FloorplanConfig{Nodes: []NodeConfig{{ID: "a", Kind: "elevator"}}}
	_, err := BuildGraph(fc)
	assert.Error(t, err)
}

func TestBuildScenario_PeriodStartsBecomeTicks(t *testing.T) {
	sc := &ScenarioConfig{
		DayStart: "08:00",
		Periods: []PeriodConfig{
			{Name: "p1", Start: "08:00"},
			{Name: "p2", Start: "08:05"},
		},
		Movements: []MovementConfig{
			{Period: "p1", Origin: "a", Destination: "b", Count: 10},
			{Period: "p2", Origin: "b", Destination: "a", Count: 5, Class: "staff"},
		},
	}

	out, err := BuildScenario(sc, 1.0)
	require.NoError(t, err)
	require.Len(t, out.Movements, 2)
	assert.Equal(t, int64(0), out.Movements[0].RequestedTick)
	assert.Equal(t, int64(300), out.Movements[1].RequestedTick)
	assert.Equal(t, "staff", out.Movements[1].Class)
	assert.Nil(t, out.Classes, "no class overrides declared")
}

func TestBuildScenario_TickSecondsScalesTicks(t *testing.T) {
	sc := &ScenarioConfig{
		DayStart:  "08:00",
		Periods:   []PeriodConfig{{Name: "p1", Start: "08:01"}},
		Movements: []MovementConfig{{Period: "p1", Origin: "a", Destination: "b", Count: 1}},
	}
	out, err := BuildScenario(sc, 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(120), out.Movements[0].RequestedTick)
}

func TestBuildScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		sc   ScenarioConfig
	}{
		{"unknown period", ScenarioConfig{
			Movements: []MovementConfig{{Period: "missing", Origin: "a", Destination: "b", Count: 1}},
		}},
		{"duplicate period", ScenarioConfig{
			Periods: []PeriodConfig{{Name: "p", Start: "09:00"}, {Name: "p", Start: "10:00"}},
		}},
		{"period before day start", ScenarioConfig{
			DayStart: "08:00",
			Periods:  []PeriodConfig{{Name: "p", Start: "07:00"}},
		}},
		{"bad clock format", ScenarioConfig{
			Periods: []PeriodConfig{{Name: "p", Start: "9am"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildScenario(&tt.sc, 1.0)
			assert.Error(t, err)
		})
	}
}

func TestBuildScenario_ClassOverrides(t *testing.T) {
	sc := &ScenarioConfig{
		Periods:   []PeriodConfig{{Name: "p1", Start: "09:00"}},
		Movements: []MovementConfig{{Period: "p1", Origin: "a", Destination: "b", Count: 1}},
		Classes: map[string]ClassConfig{
			"visitor": {SpeedMeanMPS: 1.1, SpeedStddevMPS: 0.2, SpeedMinMPS: 0.5, SpeedMaxMPS: 1.8, StairsPenalty: 5},
		},
	}
	out, err := BuildScenario(sc, 1.0)
	require.NoError(t, err)
	require.Contains(t, out.Classes, "visitor")
	assert.Equal(t, "visitor", out.Classes["visitor"].Name)
	assert.Equal(t, 1.1, out.Classes["visitor"].SpeedMeanMPS)
}

func TestLoadFloorplan_RoundTrip(t *testing.T) {
	// GIVEN a floorplan YAML on disk
	dir := t.TempDir()
	path := filepath.Join(dir, "floorplan.yaml")
	doc := `
nodes:
  - id: roomA
    kind: room
  - id: hall
  - id: roomB
    kind: room
edges:
  - id: corr1
    from: roomA
    to: hall
    length_m: 12
    width_m: 2.5
    capacity_pps: 2
  - id: corr2
    from: hall
    to: roomB
    length_m: 8
    width_m: 2
    capacity_pps: 2
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	// WHEN loading
	g, err := LoadFloorplan(path)
	require.NoError(t, err)

	// THEN the graph matches the document
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 2, g.NumEdges())
	e, ok := g.Edge("corr1")
	require.True(t, ok)
	assert.Equal(t, 12.0, e.LengthM)
	assert.Equal(t, 2.5, e.WidthM)
	assert.True(t, e.Reversible)
}

func TestLoadScenario_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	doc := `
day_start: "08:00"
periods:
  - name: changeover1
    start: "08:50"
movements:
  - period: changeover1
    origin: roomA
    destination: roomB
    count: 28
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := LoadScenario(path, 1.0)
	require.NoError(t, err)
	require.Len(t, out.Movements, 1)
	assert.Equal(t, int64(50*60), out.Movements[0].RequestedTick)
	assert.Equal(t, 28, out.Movements[0].Count)
}

func TestLoadFloorplan_MissingFile(t *testing.T) {
	_, err := LoadFloorplan("/does/not/exist.yaml")
	assert.Error(t, err)
}
