// Loaders for the two YAML inputs of a run: the floorplan (building graph)
// and the scenario (periods, movements, classes).

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/smartflow-sim/smartflow/sim"
	"gopkg.in/yaml.v3"
)

// FloorplanConfig mirrors the floorplan YAML document.
type FloorplanConfig struct {
	Nodes []NodeConfig `yaml:"nodes"`
	Edges []EdgeConfig `yaml:"edges"`
}

type NodeConfig struct {
	ID    string  `yaml:"id"`
	Kind  string  `yaml:"kind"` // room | junction | stair-landing; empty -> junction
	Floor int     `yaml:"floor"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
}

// EdgeConfig is one corridor or staircase segment. Edges are two-way by
// default; set oneway to restrict traversal to the from -> to direction.
type EdgeConfig struct {
	ID          string  `yaml:"id"`
	From        string  `yaml:"from"`
	To          string  `yaml:"to"`
	LengthM     float64 `yaml:"length_m"`
	WidthM      float64 `yaml:"width_m"`
	CapacityPPS float64 `yaml:"capacity_pps"`
	Stairs      bool    `yaml:"stairs"`
	Oneway      bool    `yaml:"oneway"`
}

// ScenarioConfig mirrors the scenario YAML document.
type ScenarioConfig struct {
	// DayStart anchors the tick clock; period start times are measured from
	// it. Format "HH:MM", default "08:00".
	DayStart  string                   `yaml:"day_start"`
	Periods   []PeriodConfig           `yaml:"periods"`
	Movements []MovementConfig         `yaml:"movements"`
	Classes   map[string]ClassConfig   `yaml:"classes"`
}

type PeriodConfig struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"` // "HH:MM"
}

type MovementConfig struct {
	Period      string `yaml:"period"`
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	Count       int    `yaml:"count"`
	Class       string `yaml:"class"`
	ChainID     string `yaml:"chain_id"`
	DelayTicks  int64  `yaml:"delay_ticks"`
}

type ClassConfig struct {
	SpeedMeanMPS   float64 `yaml:"speed_mean_mps"`
	SpeedStddevMPS float64 `yaml:"speed_stddev_mps"`
	SpeedMinMPS    float64 `yaml:"speed_min_mps"`
	SpeedMaxMPS    float64 `yaml:"speed_max_mps"`
	StairsPenalty  float64 `yaml:"stairs_penalty"`
	Priority       bool    `yaml:"priority"`
}

// LoadFloorplan reads and validates a floorplan YAML file into a sim.Graph.
// Every non-oneway edge becomes reversible, so a single YAML record covers
// both traversal directions.
func LoadFloorplan(path string) (*sim.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading floorplan %s: %w", path, err)
	}
	var fc FloorplanConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing floorplan %s: %w", path, err)
	}
	return BuildGraph(&fc)
}

// BuildGraph converts a parsed floorplan into a validated sim.Graph.
func BuildGraph(fc *FloorplanConfig) (*sim.Graph, error) {
	nodes := make([]sim.Node, 0, len(fc.Nodes))
	for _, n := range fc.Nodes {
		kind := sim.NodeKind(n.Kind)
		switch kind {
		case sim.NodeRoom, sim.NodeJunction, sim.NodeStairLanding:
		case "":
			kind = sim.NodeJunction
		default:
			return nil, fmt.Errorf("node %q: unknown kind %q", n.ID, n.Kind)
		}
		nodes = append(nodes, sim.Node{ID: n.ID, Kind: kind, Floor: n.Floor, X: n.X, Y: n.Y})
	}
	edges := make([]sim.Edge, 0, len(fc.Edges))
	for _, e := range fc.Edges {
		edges = append(edges, sim.Edge{
			ID:          e.ID,
			From:        e.From,
			To:          e.To,
			LengthM:     e.LengthM,
			WidthM:      e.WidthM,
			CapacityPPS: e.CapacityPPS,
			Stairs:      e.Stairs,
			Reversible:  !e.Oneway,
		})
	}
	return sim.NewGraph(nodes, edges)
}

// LoadScenario reads a scenario YAML file and resolves it against the tick
// clock into a sim.Scenario.
func LoadScenario(path string, tickSeconds float64) (*sim.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	var sc ScenarioConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return BuildScenario(&sc, tickSeconds)
}

// BuildScenario converts a parsed scenario into sim.Scenario: period start
// times become requested ticks relative to day_start, and class records (if
// present) override the built-in defaults wholesale.
func BuildScenario(sc *ScenarioConfig, tickSeconds float64) (*sim.Scenario, error) {
	if tickSeconds <= 0 {
		return nil, fmt.Errorf("tick_seconds must be > 0, got %v", tickSeconds)
	}
	dayStart := sc.DayStart
	if dayStart == "" {
		dayStart = "08:00"
	}
	base, err := parseClock(dayStart)
	if err != nil {
		return nil, fmt.Errorf("day_start: %w", err)
	}

	periodTick := make(map[string]int64, len(sc.Periods))
	for _, p := range sc.Periods {
		if p.Name == "" {
			return nil, fmt.Errorf("period with empty name")
		}
		if _, dup := periodTick[p.Name]; dup {
			return nil, fmt.Errorf("duplicate period %q", p.Name)
		}
		start, err := parseClock(p.Start)
		if err != nil {
			return nil, fmt.Errorf("period %q start: %w", p.Name, err)
		}
		if start < base {
			return nil, fmt.Errorf("period %q starts before day_start", p.Name)
		}
		periodTick[p.Name] = int64(float64(start-base) / tickSeconds)
	}

	out := &sim.Scenario{}
	for i, m := range sc.Movements {
		tick, ok := periodTick[m.Period]
		if !ok {
			return nil, fmt.Errorf("movement[%d]: unknown period %q", i, m.Period)
		}
		out.Movements = append(out.Movements, sim.Movement{
			Period:        m.Period,
			RequestedTick: tick,
			Origin:        m.Origin,
			Destination:   m.Destination,
			Count:         m.Count,
			Class:         m.Class,
			ChainID:       m.ChainID,
			DelayTicks:    m.DelayTicks,
		})
	}

	if len(sc.Classes) > 0 {
		out.Classes = make(map[string]sim.ClassProfile, len(sc.Classes))
		for name, c := range sc.Classes {
			out.Classes[name] = sim.ClassProfile{
				Name:           name,
				SpeedMeanMPS:   c.SpeedMeanMPS,
				SpeedStddevMPS: c.SpeedStddevMPS,
				SpeedMinMPS:    c.SpeedMinMPS,
				SpeedMaxMPS:    c.SpeedMaxMPS,
				StairsPenalty:  c.StairsPenalty,
				Priority:       c.Priority,
			}
		}
	}
	return out, nil
}

// parseClock converts "HH:MM" to seconds since midnight.
func parseClock(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return int64(h)*3600 + int64(m)*60, nil
}
