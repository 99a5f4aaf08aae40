package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamondGraph is s -> {x, y} -> d plus a long direct corridor s -> d.
// Costs (length/width): via x = 10, via y = 20, direct = 30.
func diamondGraph(t *testing.T) *Graph {
	t.Helper()
	nodes := []Node{{ID: "s"}, {ID: "x"}, {ID: "y"}, {ID: "d"}}
	edges := []Edge{
		{ID: "sx", From: "s", To: "x", LengthM: 10, WidthM: 2, CapacityPPS: 1, Reversible: true},
		{ID: "xd", From: "x", To: "d", LengthM: 10, WidthM: 2, CapacityPPS: 1, Reversible: true},
		{ID: "sy", From: "s", To: "y", LengthM: 20, WidthM: 2, CapacityPPS: 1, Reversible: true},
		{ID: "yd", From: "y", To: "d", LengthM: 20, WidthM: 2, CapacityPPS: 1, Reversible: true},
		{ID: "sd", From: "s", To: "d", LengthM: 60, WidthM: 2, CapacityPPS: 1, Reversible: true},
	}
	g, err := NewGraph(nodes, edges)
	require.NoError(t, err)
	return g
}

func testRouter(g *Graph, cfg RouterConfig) *Router {
	return NewRouter(g, cfg, rand.New(rand.NewSource(1)))
}

func TestRouter_Paths_SortedByCost(t *testing.T) {
	// GIVEN the diamond graph and k=3
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 3, Temperature: 1.0})

	// WHEN computing paths s -> d
	paths, err := r.Paths("s", "d", 0)
	require.NoError(t, err)

	// THEN all three alternatives come back, cheapest first
	require.Len(t, paths, 3)
	assert.Equal(t, []string{"sx", "xd"}, paths[0].EdgeIDs())
	assert.Equal(t, 10.0, paths[0].Cost)
	assert.Equal(t, []string{"sy", "yd"}, paths[1].EdgeIDs())
	assert.Equal(t, 20.0, paths[1].Cost)
	assert.Equal(t, []string{"sd"}, paths[2].EdgeIDs())
	assert.Equal(t, 30.0, paths[2].Cost)
}

func TestRouter_Paths_SimpleAndDistinct(t *testing.T) {
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 10, Temperature: 1.0})

	paths, err := r.Paths("s", "d", 0)
	require.NoError(t, err)

	keys := map[string]struct{}{}
	for _, p := range paths {
		if _, dup := keys[p.key()]; dup {
			t.Errorf("duplicate path %v", p.Nodes)
		}
		keys[p.key()] = struct{}{}
		visited := map[string]struct{}{}
		for _, n := range p.Nodes {
			if _, seen := visited[n]; seen {
				t.Errorf("path %v revisits node %s", p.Nodes, n)
			}
			visited[n] = struct{}{}
		}
	}
}

func TestRouter_StairsPenaltyIsAdditive(t *testing.T) {
	// GIVEN the cheap branch goes over stairs
	nodes := []Node{{ID: "s"}, {ID: "x"}, {ID: "d"}}
	edges := []Edge{
		{ID: "sx", From: "s", To: "x", LengthM: 10, WidthM: 2, Stairs: true},
		{ID: "xd", From: "x", To: "d", LengthM: 10, WidthM: 2},
	}
	g, err := NewGraph(nodes, edges)
	require.NoError(t, err)
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0})

	// THEN the path cost carries the penalty once per stair edge
	paths, err := r.Paths("s", "d", 4.0)
	require.NoError(t, err)
	assert.Equal(t, 14.0, paths[0].Cost) // 5 + 4 + 5
}

func TestRouter_PathCacheKeyedByStairsPenalty(t *testing.T) {
	nodes := []Node{{ID: "s"}, {ID: "x"}, {ID: "d"}}
	edges := []Edge{
		{ID: "sx", From: "s", To: "x", LengthM: 10, WidthM: 2, Stairs: true},
		{ID: "xd", From: "x", To: "d", LengthM: 10, WidthM: 2},
	}
	g, err := NewGraph(nodes, edges)
	require.NoError(t, err)
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0})

	a, err := r.Paths("s", "d", 0)
	require.NoError(t, err)
	b, err := r.Paths("s", "d", 3.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, a[0].Cost)
	assert.Equal(t, 13.0, b[0].Cost)
}

func TestRouter_OnewayEdgeNotTraversedBackwards(t *testing.T) {
	// GIVEN a one-way corridor a -> b
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	edges := []Edge{{ID: "ab", From: "a", To: "b", LengthM: 10, WidthM: 2}}
	g, err := NewGraph(nodes, edges)
	require.NoError(t, err)
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0})

	// THEN b -> a is unreachable
	_, err = r.Paths("b", "a", 0)
	require.Error(t, err)
	var routeErr *RoutingError
	assert.ErrorAs(t, err, &routeErr)
}

func TestRouter_DisabledEdgeExcluded(t *testing.T) {
	// GIVEN the cheapest branch is disabled for this run
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0, DisabledEdges: []string{"sx"}})

	paths, err := r.Paths("s", "d", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sy", "yd"}, paths[0].EdgeIDs())
}

func TestRouter_Unreachable_ReturnsRoutingError(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}, {ID: "island"}}
	edges := []Edge{{ID: "ab", From: "a", To: "b", LengthM: 10, WidthM: 2, Reversible: true}}
	g, err := NewGraph(nodes, edges)
	require.NoError(t, err)
	r := testRouter(g, RouterConfig{KPaths: 3, Temperature: 1.0})

	_, err = r.Paths("a", "island", 0)
	require.Error(t, err)
	var routeErr *RoutingError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, "a", routeErr.Origin)
	assert.Equal(t, "island", routeErr.Destination)
}

func TestRouter_Choose_SingletonConsumesNoRandomness(t *testing.T) {
	g := diamondGraph(t)
	rng := rand.New(rand.NewSource(1))
	r := NewRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0}, rng)

	before := rand.New(rand.NewSource(1)).Float64()
	p, err := r.ChoosePath("s", "d", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sx", "xd"}, p.EdgeIDs())
	// The generator is untouched: its next draw equals a fresh source's first.
	assert.Equal(t, before, rng.Float64())
}

func TestRouter_Choose_LowTemperatureIsGreedy(t *testing.T) {
	// With a near-zero temperature the softmax collapses onto the cheapest
	// path; the costlier alternatives carry vanishing weight.
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 3, Temperature: 0.001})

	for i := 0; i < 200; i++ {
		p, err := r.ChoosePath("s", "d", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"sx", "xd"}, p.EdgeIDs())
	}
}

func TestRouter_Choose_HighTemperatureSpreads(t *testing.T) {
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 3, Temperature: 1000})

	counts := map[string]int{}
	for i := 0; i < 600; i++ {
		p, err := r.ChoosePath("s", "d", 0)
		require.NoError(t, err)
		counts[p.key()]++
	}
	// Near-uniform choice: every alternative must show up.
	assert.Len(t, counts, 3)
	for key, n := range counts {
		if n < 100 {
			t.Errorf("path %s chosen %d/600 times, want near-uniform", key, n)
		}
	}
}

func TestRouter_RerouteDue(t *testing.T) {
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0, RerouteIntervalTicks: 10})

	a := &AgentRuntimeState{LastReroute: 5}
	assert.False(t, r.RerouteDue(14, a))
	assert.True(t, r.RerouteDue(15, a))

	// Interval 0 disables rerouting entirely.
	off := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0, RerouteIntervalTicks: 0})
	assert.False(t, off.RerouteDue(1000, a))
}

func TestRouter_RerouteTriggered_ThresholdIsStrict(t *testing.T) {
	g := diamondGraph(t)
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0, RerouteDelayThresholdS: 5.0})

	at := &AgentRuntimeState{WaitingDelayS: 5.0}
	over := &AgentRuntimeState{WaitingDelayS: 4.0, SlowdownDelayS: 1.5}
	assert.False(t, r.RerouteTriggered(at), "delay equal to threshold must not trigger")
	assert.True(t, r.RerouteTriggered(over))
}

func TestRouter_RerouteSuffix_HysteresisBlocksMarginalWins(t *testing.T) {
	// GIVEN an agent whose remaining route is the sy-yd branch (cost 20)
	g := diamondGraph(t)
	remaining := []Arc{
		{EdgeID: "sy", From: "s", To: "y"},
		{EdgeID: "yd", From: "y", To: "d"},
	}

	// WHEN the margin demands a 10% improvement, the cost-10 alternative wins
	r := testRouter(g, RouterConfig{KPaths: 1, Temperature: 1.0, RerouteHysteresisMargin: 0.10})
	candidate, ok := r.RerouteSuffix("s", "d", remaining, 0)
	require.True(t, ok)
	assert.Equal(t, []string{"sx", "xd"}, candidate.EdgeIDs())

	// BUT a candidate that merely matches the current cost is rejected
	same := []Arc{
		{EdgeID: "sx", From: "s", To: "x"},
		{EdgeID: "xd", From: "x", To: "d"},
	}
	_, ok = r.RerouteSuffix("s", "d", same, 0)
	assert.False(t, ok, "equal-cost candidate must not clear the hysteresis margin")
}
