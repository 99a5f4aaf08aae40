package sim

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// Path is one simple route through the graph, annotated with its weighted
// cost: sum over arcs of length_m/width_m, plus the stairs penalty once per
// stair edge (additive; the multiplicative variant was considered and
// rejected, see DESIGN.md).
type Path struct {
	Nodes []string
	Arcs  []Arc
	Cost  float64
}

// EdgeIDs returns the ordered edge ids of the path.
func (p Path) EdgeIDs() []string {
	ids := make([]string, len(p.Arcs))
	for i, a := range p.Arcs {
		ids[i] = a.EdgeID
	}
	return ids
}

// key is a canonical identity for deduplication and deterministic tie-breaks.
func (p Path) key() string {
	return strings.Join(p.Nodes, ">")
}

// Router computes k alternative simple paths per (origin, destination) pair
// with a weighted cost function and draws path choices from a softmax over
// cost. Path sets are cached per (origin, destination, stairs penalty);
// the cache is never invalidated because the graph is immutable for the run.
type Router struct {
	graph    *Graph
	cfg      RouterConfig
	rng      *rand.Rand
	disabled map[string]struct{}
	cache    map[pathKey][]Path
}

type pathKey struct {
	origin        string
	destination   string
	stairsPenalty float64
}

// NewRouter builds a router over the immutable graph. rng must be the
// "router" subsystem generator of the run's PartitionedRNG.
func NewRouter(g *Graph, cfg RouterConfig, rng *rand.Rand) *Router {
	disabled := make(map[string]struct{}, len(cfg.DisabledEdges))
	for _, id := range cfg.DisabledEdges {
		disabled[id] = struct{}{}
	}
	return &Router{
		graph:    g,
		cfg:      cfg,
		rng:      rng,
		disabled: disabled,
		cache:    make(map[pathKey][]Path),
	}
}

func (r *Router) arcCost(a Arc, stairsPenalty float64) float64 {
	e := r.graph.MustEdge(a.EdgeID)
	c := e.LengthM / e.WidthM
	if e.Stairs {
		c += stairsPenalty
	}
	return c
}

// PathCost returns the weighted cost of a sequence of arcs under the given
// stairs penalty. Used for reroute hysteresis comparisons.
func (r *Router) PathCost(arcs []Arc, stairsPenalty float64) float64 {
	total := 0.0
	for _, a := range arcs {
		total += r.arcCost(a, stairsPenalty)
	}
	return total
}

// Paths returns up to KPaths distinct simple paths from origin to
// destination, sorted by (cost, canonical key) ascending. Results are
// cached. Returns *RoutingError when the destination is unreachable.
func (r *Router) Paths(origin, destination string, stairsPenalty float64) ([]Path, error) {
	k := pathKey{origin, destination, stairsPenalty}
	if cached, ok := r.cache[k]; ok {
		return cached, nil
	}
	paths, err := r.kShortest(origin, destination, stairsPenalty)
	if err != nil {
		return nil, err
	}
	r.cache[k] = paths
	return paths, nil
}

// Choose draws one path with probability proportional to
// exp(-cost/temperature). The input must be the sorted slice returned by
// Paths; sorting by (cost, key) plus a single generator draw makes ties
// fully deterministic. A single-element slice consumes no randomness.
func (r *Router) Choose(paths []Path) Path {
	if len(paths) == 0 {
		panic("Router.Choose: empty path set")
	}
	if len(paths) == 1 {
		return paths[0]
	}
	minCost := paths[0].Cost
	weights := make([]float64, len(paths))
	total := 0.0
	for i, p := range paths {
		// Shift by the minimum cost so exp never underflows for the
		// best path regardless of the absolute cost scale.
		weights[i] = math.Exp(-(p.Cost - minCost) / r.cfg.Temperature)
		total += weights[i]
	}
	pick := r.rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if pick <= acc {
			return paths[i]
		}
	}
	return paths[len(paths)-1]
}

// ChoosePath computes the path set and draws a choice in one step.
func (r *Router) ChoosePath(origin, destination string, stairsPenalty float64) (Path, error) {
	paths, err := r.Paths(origin, destination, stairsPenalty)
	if err != nil {
		return Path{}, err
	}
	return r.Choose(paths), nil
}

// RerouteDue reports whether an agent is due for a reroute check this tick.
func (r *Router) RerouteDue(tick int64, a *AgentRuntimeState) bool {
	if r.cfg.RerouteIntervalTicks <= 0 {
		return false
	}
	return tick-a.LastReroute >= r.cfg.RerouteIntervalTicks
}

// RerouteTriggered reports whether the agent's accumulated delay justifies
// recomputation.
func (r *Router) RerouteTriggered(a *AgentRuntimeState) bool {
	return a.DelayS() > r.cfg.RerouteDelayThresholdS
}

// RerouteSuffix proposes a replacement for the remaining route of an agent
// standing at fromNode, bound for destination. The candidate is drawn from
// the cached k-list for (fromNode, destination) and adopted only if its cost
// beats the current remaining suffix by the hysteresis margin. The bool
// result reports whether the candidate should be adopted.
func (r *Router) RerouteSuffix(fromNode, destination string, remaining []Arc, stairsPenalty float64) (Path, bool) {
	paths, err := r.Paths(fromNode, destination, stairsPenalty)
	if err != nil {
		// The original route proves a path exists; a failure here means the
		// suffix origin drifted off-route, and keeping the current route is
		// the safe answer.
		return Path{}, false
	}
	candidate := r.Choose(paths)
	oldCost := r.PathCost(remaining, stairsPenalty)
	if candidate.Cost >= oldCost*(1.0-r.cfg.RerouteHysteresisMargin) {
		return Path{}, false
	}
	if len(candidate.Arcs) == 0 {
		return Path{}, false
	}
	return candidate, true
}

// === shortest path machinery ===

// frontierItem is a node on the Dijkstra frontier.
type frontierItem struct {
	node string
	dist float64
}

// frontier implements heap.Interface ordered by (dist, node id) so equal-cost
// pops are deterministic.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) {
	*f = append(*f, x.(frontierItem))
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// dijkstra finds the least-cost simple path from origin to destination with
// an explicit heap frontier (no recursion, bounded memory on large graphs).
// bannedArcs and bannedNodes support the spur-path searches of kShortest.
func (r *Router) dijkstra(origin, destination string, stairsPenalty float64, bannedArcs map[Arc]struct{}, bannedNodes map[string]struct{}) (Path, bool) {
	dist := map[string]float64{origin: 0}
	prev := map[string]Arc{}
	done := map[string]struct{}{}

	f := &frontier{{node: origin, dist: 0}}
	heap.Init(f)
	for f.Len() > 0 {
		cur := heap.Pop(f).(frontierItem)
		if _, ok := done[cur.node]; ok {
			continue
		}
		done[cur.node] = struct{}{}
		if cur.node == destination {
			break
		}
		for _, arc := range r.graph.OutArcs(cur.node) {
			if _, off := r.disabled[arc.EdgeID]; off {
				continue
			}
			if bannedArcs != nil {
				if _, banned := bannedArcs[arc]; banned {
					continue
				}
			}
			if bannedNodes != nil {
				if _, banned := bannedNodes[arc.To]; banned {
					continue
				}
			}
			if _, ok := done[arc.To]; ok {
				continue
			}
			nd := cur.dist + r.arcCost(arc, stairsPenalty)
			if old, seen := dist[arc.To]; !seen || nd < old {
				dist[arc.To] = nd
				prev[arc.To] = arc
				heap.Push(f, frontierItem{node: arc.To, dist: nd})
			}
		}
	}

	if _, reached := done[destination]; !reached {
		return Path{}, false
	}
	var arcs []Arc
	for at := destination; at != origin; {
		a := prev[at]
		arcs = append(arcs, a)
		at = a.From
	}
	// Reverse into forward order.
	for i, j := 0, len(arcs)-1; i < j; i, j = i+1, j-1 {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}
	nodes := make([]string, 0, len(arcs)+1)
	nodes = append(nodes, origin)
	for _, a := range arcs {
		nodes = append(nodes, a.To)
	}
	return Path{Nodes: nodes, Arcs: arcs, Cost: dist[destination]}, true
}

// kShortest enumerates up to KPaths simple paths by Yen's algorithm:
// repeated spur-path searches off the previously accepted path, with root
// nodes banned to keep candidates simple and a key set to deduplicate.
func (r *Router) kShortest(origin, destination string, stairsPenalty float64) ([]Path, error) {
	best, ok := r.dijkstra(origin, destination, stairsPenalty, nil, nil)
	if !ok {
		return nil, &RoutingError{Origin: origin, Destination: destination}
	}
	accepted := []Path{best}
	seen := map[string]struct{}{best.key(): {}}
	var candidates []Path

	for len(accepted) < r.cfg.KPaths {
		prevPath := accepted[len(accepted)-1]
		for i := 0; i < len(prevPath.Nodes)-1; i++ {
			spurNode := prevPath.Nodes[i]
			rootArcs := prevPath.Arcs[:i]

			// Ban the next arc of every accepted path that shares this root,
			// forcing the spur search onto genuinely different routes.
			bannedArcs := map[Arc]struct{}{}
			for _, p := range accepted {
				if len(p.Arcs) > i && sameArcs(p.Arcs[:i], rootArcs) {
					bannedArcs[p.Arcs[i]] = struct{}{}
				}
			}
			// Ban root nodes (except the spur node) so the result is simple.
			bannedNodes := map[string]struct{}{}
			for _, n := range prevPath.Nodes[:i] {
				bannedNodes[n] = struct{}{}
			}

			spur, ok := r.dijkstra(spurNode, destination, stairsPenalty, bannedArcs, bannedNodes)
			if !ok {
				continue
			}
			total := Path{
				Nodes: append(append([]string{}, prevPath.Nodes[:i]...), spur.Nodes...),
				Arcs:  append(append([]Arc{}, rootArcs...), spur.Arcs...),
			}
			total.Cost = r.PathCost(total.Arcs, stairsPenalty)
			if _, dup := seen[total.key()]; dup {
				continue
			}
			seen[total.key()] = struct{}{}
			candidates = append(candidates, total)
		}
		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Cost != candidates[j].Cost {
				return candidates[i].Cost < candidates[j].Cost
			}
			return candidates[i].key() < candidates[j].key()
		})
		accepted = append(accepted, candidates[0])
		candidates = candidates[1:]
	}

	sort.Slice(accepted, func(i, j int) bool {
		if accepted[i].Cost != accepted[j].Cost {
			return accepted[i].Cost < accepted[j].Cost
		}
		return accepted[i].key() < accepted[j].key()
	})
	return accepted, nil
}

func sameArcs(a, b []Arc) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
