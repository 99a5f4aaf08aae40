package sim

import "fmt"

// NodeKind classifies a graph node.
type NodeKind string

const (
	NodeRoom         NodeKind = "room"
	NodeJunction     NodeKind = "junction"
	NodeStairLanding NodeKind = "stair-landing"
)

// Node is a junction or room in the building graph. Nodes carry no mutable
// state; position is kept only so exporters can place them on a plan.
type Node struct {
	ID    string
	Kind  NodeKind
	Floor int
	X     float64
	Y     float64
}

// Edge is a directed corridor or staircase segment. An edge with Reversible
// set also admits traversal from To back to From; both directions share the
// same physical occupancy. Invariants (checked by NewGraph): LengthM > 0,
// WidthM > 0, CapacityPPS >= 0, both endpoints exist.
type Edge struct {
	ID          string
	From        string
	To          string
	LengthM     float64
	WidthM      float64
	CapacityPPS float64 // admission rate, persons per second
	Stairs      bool
	Reversible  bool
}

// AreaM2 returns the walkable area of the edge in square metres.
func (e Edge) AreaM2() float64 {
	return e.LengthM * e.WidthM
}

// Arc is a single legal traversal direction of an edge. Reversed arcs exist
// only for edges with Reversible set; one-way policy is therefore enforced at
// graph construction, and path search never has to re-check it.
type Arc struct {
	EdgeID   string
	From     string
	To       string
	Reversed bool
}

// Graph is the immutable building graph handed to the engine by its host.
// Lookup maps are accompanied by insertion-order slices so that every
// iteration over nodes or edges is deterministic.
type Graph struct {
	nodes     map[string]Node
	edges     map[string]Edge
	out       map[string][]Arc
	nodeOrder []string
	edgeOrder []string
}

// NewGraph validates the node and edge sets and builds the adjacency index.
// Violations of the data-model invariants return a *ConfigError naming the
// offending record.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]Node, len(nodes)),
		edges: make(map[string]Edge, len(edges)),
		out:   make(map[string][]Arc),
	}
	for i, n := range nodes {
		if n.ID == "" {
			return nil, &ConfigError{Field: fmt.Sprintf("node[%d]", i), Detail: "empty id"}
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, &ConfigError{Field: fmt.Sprintf("node[%d]", i), Detail: fmt.Sprintf("duplicate id %q", n.ID)}
		}
		g.nodes[n.ID] = n
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}
	for i, e := range edges {
		field := fmt.Sprintf("edge[%d]", i)
		if e.ID == "" {
			return nil, &ConfigError{Field: field, Detail: "empty id"}
		}
		if _, dup := g.edges[e.ID]; dup {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("duplicate id %q", e.ID)}
		}
		if _, ok := g.nodes[e.From]; !ok {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("unknown from-node %q", e.From)}
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("unknown to-node %q", e.To)}
		}
		if e.LengthM <= 0 {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("length_m must be > 0, got %v", e.LengthM)}
		}
		if e.WidthM <= 0 {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("width_m must be > 0, got %v", e.WidthM)}
		}
		if e.CapacityPPS < 0 {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("capacity_pps must be >= 0, got %v", e.CapacityPPS)}
		}
		g.edges[e.ID] = e
		g.edgeOrder = append(g.edgeOrder, e.ID)
		g.out[e.From] = append(g.out[e.From], Arc{EdgeID: e.ID, From: e.From, To: e.To})
		if e.Reversible {
			g.out[e.To] = append(g.out[e.To], Arc{EdgeID: e.ID, From: e.To, To: e.From, Reversed: true})
		}
	}
	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// MustEdge returns the edge with the given id and panics if it is absent.
// Only used internally after validation has established the id is live.
func (g *Graph) MustEdge(id string) Edge {
	e, ok := g.edges[id]
	if !ok {
		panic(fmt.Sprintf("graph: unknown edge %q", id))
	}
	return e
}

// OutArcs returns the legal traversal arcs leaving the node, in edge
// insertion order. The returned slice is internal storage; callers must not
// modify it.
func (g *Graph) OutArcs(nodeID string) []Arc {
	return g.out[nodeID]
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	return g.nodeOrder
}

// EdgeIDs returns edge ids in insertion order.
func (g *Graph) EdgeIDs() []string {
	return g.edgeOrder
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int { return len(g.edges) }
