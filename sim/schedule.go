// Implements the ScheduleComposer: expansion of scenario movements into
// per-agent profiles with staggered departure ticks that bound the peak
// number of simultaneous departures inside the transition window.

package sim

import (
	"container/heap"
	"fmt"
	"sort"
)

// Movement is one scenario record: a population of identical agents that
// want to travel from Origin to Destination in the given period.
type Movement struct {
	Period        string
	RequestedTick int64 // start of the period's transition window
	Origin        string
	Destination   string
	Count         int
	Class         string // agent class name; empty means "student"
	ChainID       string // movements sharing a ChainID become multi-leg agents
	DelayTicks    int64  // chained legs: extra dwell before this leg departs
}

// Scenario is the composer's input: the movement list plus the class
// capability records it may reference.
type Scenario struct {
	Movements []Movement
	Classes   map[string]ClassProfile // nil means DefaultClassProfiles()
}

// ScheduleResult carries the composed profiles plus the staggering report.
// Degraded is informational, not an error: the run proceeds with the
// overflowed agents departing at the window end.
type ScheduleResult struct {
	Profiles   []*AgentProfile
	Overflowed int  // departures that did not fit under the per-bin cap
	Degraded   bool // true iff Overflowed > 0
	PeakPerBin int  // achieved peak departures per sub-interval
}

// ScheduleComposer turns a Scenario into AgentProfiles. Determinism: the
// same scenario and seed produce the identical profile slice, in the
// identical order, with identical depart ticks.
type ScheduleComposer struct {
	graph *Graph
	cfg   ScheduleConfig
	rng   *PartitionedRNG
}

// NewScheduleComposer builds a composer over a validated graph.
func NewScheduleComposer(g *Graph, cfg ScheduleConfig, rng *PartitionedRNG) *ScheduleComposer {
	return &ScheduleComposer{graph: g, cfg: cfg, rng: rng}
}

// binItem is one departure sub-interval on the placement heap.
type binItem struct {
	load int
	idx  int64
}

// binHeap implements heap.Interface ordered by (load, bin index) so the
// least-loaded earliest bin always wins, deterministically.
type binHeap []binItem

func (b binHeap) Len() int { return len(b) }
func (b binHeap) Less(i, j int) bool {
	if b[i].load != b[j].load {
		return b[i].load < b[j].load
	}
	return b[i].idx < b[j].idx
}
func (b binHeap) Swap(i, j int) { b[i], b[j] = b[j], b[i] }

func (b *binHeap) Push(x any) {
	*b = append(*b, x.(binItem))
}

func (b *binHeap) Pop() any {
	old := *b
	n := len(old)
	item := old[n-1]
	*b = old[:n-1]
	return item
}

// periodBins tracks the placement state of one period's window.
type periodBins struct {
	base  int64 // window start tick
	bins  *binHeap
	peak  int
	loads []int
}

func (c *ScheduleComposer) newPeriodBins(base int64) *periodBins {
	n := c.cfg.WindowTicks / c.cfg.BinTicks
	if n < 1 {
		n = 1
	}
	bh := make(binHeap, 0, n)
	for i := int64(0); i < n; i++ {
		bh = append(bh, binItem{load: 0, idx: i})
	}
	heap.Init(&bh)
	return &periodBins{base: base, bins: &bh, loads: make([]int, n)}
}

// place assigns one departure. It returns the depart tick and whether the
// departure overflowed past the window.
func (c *ScheduleComposer) place(pb *periodBins) (int64, bool) {
	item := heap.Pop(pb.bins).(binItem)
	if item.load >= c.cfg.MaxPerBin {
		// Window saturated at the configured separation: documented
		// overflow, agent departs at the window end.
		heap.Push(pb.bins, item)
		return pb.base + c.cfg.WindowTicks, true
	}
	jitter := c.rng.ForSubsystem(SubsystemSchedule).Int63n(c.cfg.BinTicks)
	tick := pb.base + item.idx*c.cfg.BinTicks + jitter
	if max := pb.base + c.cfg.WindowTicks; tick > max {
		tick = max
	}
	item.load++
	pb.loads[item.idx] = item.load
	if item.load > pb.peak {
		pb.peak = item.load
	}
	heap.Push(pb.bins, item)
	return tick, false
}

// Compose expands the scenario into one AgentProfile per individual.
// Validation errors (unknown node, origin == destination, broken chain,
// unknown class) return a *ConfigError naming the offending record; nothing
// is partially composed on error.
func (c *ScheduleComposer) Compose(sc Scenario) (*ScheduleResult, error) {
	classes := sc.Classes
	if classes == nil {
		classes = DefaultClassProfiles()
	}

	type indexed struct {
		Movement
		idx int
	}
	moves := make([]indexed, len(sc.Movements))
	for i, m := range sc.Movements {
		if m.Class == "" {
			m.Class = "student"
		}
		moves[i] = indexed{Movement: m, idx: i}
	}

	for _, m := range moves {
		field := fmt.Sprintf("movement[%d]", m.idx)
		if _, ok := c.graph.Node(m.Origin); !ok {
			return nil, &ConfigError{Field: field + ".origin", Detail: fmt.Sprintf("unknown node %q", m.Origin)}
		}
		if _, ok := c.graph.Node(m.Destination); !ok {
			return nil, &ConfigError{Field: field + ".destination", Detail: fmt.Sprintf("unknown node %q", m.Destination)}
		}
		if m.Origin == m.Destination {
			return nil, &ConfigError{Field: field, Detail: fmt.Sprintf("origin equals destination (%q)", m.Origin)}
		}
		if m.Count < 1 && m.ChainID == "" {
			return nil, &ConfigError{Field: field + ".count", Detail: fmt.Sprintf("must be >= 1, got %d", m.Count)}
		}
		if _, ok := classes[m.Class]; !ok {
			return nil, &ConfigError{Field: field + ".class", Detail: fmt.Sprintf("unknown class %q", m.Class)}
		}
		if m.RequestedTick < 0 {
			return nil, &ConfigError{Field: field + ".requested_tick", Detail: "must be >= 0"}
		}
		if m.DelayTicks < 0 {
			return nil, &ConfigError{Field: field + ".delay_ticks", Detail: "must be >= 0"}
		}
	}

	// Stable key: requested time first; stability keeps input order as the
	// secondary id order, so equal-time movements never swap between runs.
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].RequestedTick < moves[j].RequestedTick
	})

	// Chains: group in first-appearance order (post-sort) and check leg
	// continuity before any expansion.
	chainOrder := []string{}
	chains := map[string][]indexed{}
	var standalone []indexed
	for _, m := range moves {
		if m.ChainID == "" {
			standalone = append(standalone, m)
			continue
		}
		if _, seen := chains[m.ChainID]; !seen {
			chainOrder = append(chainOrder, m.ChainID)
		}
		chains[m.ChainID] = append(chains[m.ChainID], m)
	}
	for _, id := range chainOrder {
		legs := chains[id]
		for i := 1; i < len(legs); i++ {
			if legs[i].Origin != legs[i-1].Destination {
				return nil, &ConfigError{
					Field:  fmt.Sprintf("movement[%d]", legs[i].idx),
					Detail: fmt.Sprintf("chain %q breaks continuity: leg origin %q != previous destination %q", id, legs[i].Origin, legs[i-1].Destination),
				}
			}
		}
	}

	res := &ScheduleResult{}
	periods := map[string]*periodBins{}
	counter := 0

	placeOne := func(period string, base int64) (int64, bool) {
		pb, ok := periods[period]
		if !ok {
			pb = c.newPeriodBins(base)
			periods[period] = pb
		}
		return c.place(pb)
	}

	buildProfile := func(class ClassProfile, period string, legs []Leg) *AgentProfile {
		speed := class.SampleSpeed(c.rng.ForSubsystem(SubsystemSpeed))
		id := fmt.Sprintf("%s_%s_%d", class.Name, period, counter)
		counter++
		return &AgentProfile{
			ID:            id,
			Class:         class.Name,
			SpeedBaseMPS:  speed,
			StairsPenalty: class.StairsPenalty,
			Priority:      class.Priority,
			Legs:          legs,
		}
	}

	// Standalone movements: Count single-leg agents each, departures placed
	// through the period's bin heap in sorted movement order. RNG order per
	// agent is fixed: one jitter draw (unless overflowed), then one speed draw.
	for _, m := range standalone {
		class := classes[m.Class]
		for i := 0; i < m.Count; i++ {
			tick, overflowed := placeOne(m.Period, m.RequestedTick)
			if overflowed {
				res.Overflowed++
			}
			legs := []Leg{{
				Period:             m.Period,
				Origin:             m.Origin,
				Destination:        m.Destination,
				EarliestDepartTick: tick,
				DeadlineTick:       m.RequestedTick + c.cfg.WindowTicks,
			}}
			res.Profiles = append(res.Profiles, buildProfile(class, m.Period, legs))
		}
	}

	// Chains: Count (of the first leg) agents, each carrying the full leg
	// sequence. Only the first leg competes for a departure bin; later legs
	// inherit the placement plus their cumulative dwell delays, and the
	// runtime additionally gates each leg on completion of the previous one.
	for _, id := range chainOrder {
		legMoves := chains[id]
		first := legMoves[0]
		class := classes[first.Class]
		count := first.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			tick, overflowed := placeOne(first.Period, first.RequestedTick)
			if overflowed {
				res.Overflowed++
			}
			legs := make([]Leg, 0, len(legMoves))
			depart := tick
			for j, lm := range legMoves {
				if j > 0 {
					depart += lm.DelayTicks
				}
				legs = append(legs, Leg{
					Period:             lm.Period,
					Origin:             lm.Origin,
					Destination:        lm.Destination,
					EarliestDepartTick: depart,
					DeadlineTick:       lm.RequestedTick + c.cfg.WindowTicks,
				})
			}
			res.Profiles = append(res.Profiles, buildProfile(class, first.Period, legs))
		}
	}

	for _, pb := range periods {
		if pb.peak > res.PeakPerBin {
			res.PeakPerBin = pb.peak
		}
	}
	res.Degraded = res.Overflowed > 0
	return res, nil
}

// HistogramPeak returns the maximum number of values falling into any bin of
// the given width. Tests use it to verify the staggering objective
// independently of the composer's own bookkeeping.
func HistogramPeak(ticks []int64, binTicks int64) int {
	if binTicks <= 0 {
		return 0
	}
	bins := map[int64]int{}
	peak := 0
	for _, t := range ticks {
		idx := t / binTicks
		bins[idx]++
		if bins[idx] > peak {
			peak = bins[idx]
		}
	}
	return peak
}
