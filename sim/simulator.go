// sim/simulator.go
package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Simulator is the core object that holds simulation time, system state, and
// the tick loop. One tick is a fixed slice of simulated time (TickSeconds);
// within a tick the eight phases below always execute in the same order,
// because later phases read state mutated by earlier ones:
//
//	1. release   — activate agents whose leg depart tick has arrived
//	2. density   — recompute every edge's density from current occupancy
//	3. admission — pop edge entry queues while capacity allows, FIFO
//	4. movement  — advance every on-edge agent by speed * factor * dt
//	5. completion— edge exits, leg transitions, agent completion
//	6. reroute   — interval-gated, delay-triggered route recomputation
//	7. snapshot  — append one MetricsSnapshot per edge
//	8. boundary  — progress callback, cancellation, invariants, termination
//
// The loop is single-threaded and deterministic given (graph, profiles,
// seed, config); hosts run it off their responsiveness-critical goroutine.
type Simulator struct {
	Clock     int64
	Graph     *Graph
	Config    SimulationConfig
	Router    *Router
	Dynamics  *DynamicsEngine
	Collector *MetricsCollector

	agents     []*AgentRuntimeState
	agentByID  map[string]*AgentRuntimeState
	edgeStates map[string]*EdgeRuntimeState
	rng        *PartitionedRNG

	degraded   bool
	overflowed int

	lastCompletionTick int64
	anyCompletion      bool
}

// NewSimulator validates configuration and profiles and assembles a run.
// All validation errors surface here, synchronously, before any tick
// executes.
func NewSimulator(g *Graph, profiles []*AgentProfile, cfg SimulationConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateProfiles(g, profiles); err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	s := &Simulator{
		Graph:      g,
		Config:     cfg,
		Router:     NewRouter(g, cfg.Router, rng.ForSubsystem(SubsystemRouter)),
		Dynamics:   NewDynamicsEngine(cfg.Dynamics, cfg.TickSeconds),
		Collector:  NewMetricsCollector(g.EdgeIDs()),
		agentByID:  make(map[string]*AgentRuntimeState, len(profiles)),
		edgeStates: make(map[string]*EdgeRuntimeState, g.NumEdges()),
		rng:        rng,
	}
	for _, id := range g.EdgeIDs() {
		s.edgeStates[id] = newEdgeRuntimeState(id)
	}
	for _, p := range profiles {
		st := newAgentRuntimeState(p)
		s.agents = append(s.agents, st)
		s.agentByID[p.ID] = st
	}
	return s, nil
}

func validateProfiles(g *Graph, profiles []*AgentProfile) error {
	seen := make(map[string]struct{}, len(profiles))
	for i, p := range profiles {
		field := fmt.Sprintf("agent[%d]", i)
		if p.ID == "" {
			return &ConfigError{Field: field, Detail: "empty id"}
		}
		if _, dup := seen[p.ID]; dup {
			return &ConfigError{Field: field, Detail: fmt.Sprintf("duplicate id %q", p.ID)}
		}
		seen[p.ID] = struct{}{}
		if p.SpeedBaseMPS <= 0 {
			return &ConfigError{Field: field + ".speed_base", Detail: fmt.Sprintf("must be > 0, got %v", p.SpeedBaseMPS)}
		}
		if len(p.Legs) == 0 {
			return &ConfigError{Field: field + ".legs", Detail: "empty leg sequence"}
		}
		for j, leg := range p.Legs {
			lf := fmt.Sprintf("%s.leg[%d]", field, j)
			if _, ok := g.Node(leg.Origin); !ok {
				return &ConfigError{Field: lf + ".origin", Detail: fmt.Sprintf("unknown node %q", leg.Origin)}
			}
			if _, ok := g.Node(leg.Destination); !ok {
				return &ConfigError{Field: lf + ".destination", Detail: fmt.Sprintf("unknown node %q", leg.Destination)}
			}
			if leg.Origin == leg.Destination {
				return &ConfigError{Field: lf, Detail: fmt.Sprintf("origin equals destination (%q)", leg.Origin)}
			}
			if j > 0 && leg.Origin != p.Legs[j-1].Destination {
				return &ConfigError{Field: lf + ".origin", Detail: fmt.Sprintf("leg origin %q != previous destination %q", leg.Origin, p.Legs[j-1].Destination)}
			}
			if leg.EarliestDepartTick < 0 {
				return &ConfigError{Field: lf + ".depart_tick", Detail: "must be >= 0"}
			}
		}
	}
	return nil
}

// SetScheduleReport carries the composer's degradation report into the run
// summary. Optional; runs built from hand-made profiles simply skip it.
func (s *Simulator) SetScheduleReport(r *ScheduleResult) {
	if r == nil {
		return
	}
	s.degraded = r.Degraded
	s.overflowed = r.Overflowed
}

// Run executes the simulation to completion, budget exhaustion,
// cancellation, or invariant violation. On RoutingError nothing has moved
// and the result is nil; on a mid-run InvariantError the partial result is
// returned alongside the error, flagged incomplete.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	// Resolve every distinct origin/destination pair up front: a missing
	// route is an invalid scenario/graph pairing and must abort before any
	// movement begins.
	for _, a := range s.agents {
		for _, leg := range a.Profile.Legs {
			if _, err := s.Router.Paths(leg.Origin, leg.Destination, a.Profile.StairsPenalty); err != nil {
				return nil, err
			}
		}
	}

	logrus.Infof("run start: %d agents, %d nodes, %d edges, seed=%d",
		len(s.agents), s.Graph.NumNodes(), s.Graph.NumEdges(), s.Config.Seed)

	for s.Clock = 0; s.Clock < s.Config.MaxTicks; s.Clock++ {
		s.phaseRelease()
		s.phaseDensityRefresh()
		s.phaseAdmission()
		s.phaseMovement()
		if err := s.phaseCompletion(); err != nil {
			res := s.buildResult(s.Clock+1, true)
			return res, err
		}
		s.phaseReroute()
		s.phaseSnapshot()

		active := s.activeCount()
		if s.Config.Progress != nil {
			s.Config.Progress(Progress{Tick: s.Clock, ActiveAgents: active})
		}
		if err := s.checkInvariants(); err != nil {
			res := s.buildResult(s.Clock+1, true)
			return res, err
		}
		if err := ctx.Err(); err != nil {
			logrus.Warnf("run cancelled at tick %d", s.Clock)
			return s.buildResult(s.Clock+1, true), nil
		}
		if active == 0 && s.allCompleted() {
			// Early termination: nothing active, nothing scheduled.
			ticks := s.Clock + 1
			logrus.Infof("run complete after %d ticks", ticks)
			return s.buildResult(ticks, false), nil
		}
	}

	logrus.Warnf("tick budget exhausted after %d ticks", s.Config.MaxTicks)
	return s.buildResult(s.Config.MaxTicks, true), nil
}

// phaseRelease activates every inactive agent whose current leg's depart
// tick has arrived. Activation chooses a path from the cached k-list and
// joins the FIFO entry queue of its first edge.
func (s *Simulator) phaseRelease() {
	for _, a := range s.agents {
		if a.Active || a.Completed {
			continue
		}
		leg := a.CurrentLeg()
		if leg.EarliestDepartTick > s.Clock {
			continue
		}
		path, err := s.Router.ChoosePath(leg.Origin, leg.Destination, a.Profile.StairsPenalty)
		if err != nil {
			// Unreachable: every pair was resolved before tick 0.
			panic(err)
		}
		a.Active = true
		a.Path = path
		a.PathArcIndex = 0
		a.Node = leg.Origin
		a.LastReroute = s.Clock
		if a.LegIndex == 0 {
			a.ReleaseTick = s.Clock
		}
		first := path.Arcs[0]
		s.edgeStates[first.EdgeID].Enqueue(a.Profile.ID)
		a.Queued = true
		a.QueuedEdge = first.EdgeID
		logrus.Debugf("[tick %07d] release %s leg=%d path=%v", s.Clock, a.Profile.ID, a.LegIndex, path.Nodes)
	}
}

// phaseDensityRefresh recomputes density and tops up admission credit for
// every edge, in edge insertion order, before any movement this tick.
func (s *Simulator) phaseDensityRefresh() {
	for _, id := range s.Graph.EdgeIDs() {
		s.Dynamics.RefreshTick(s.edgeStates[id], s.Graph.MustEdge(id))
	}
}

// phaseAdmission admits queued agents strictly in arrival order while
// capacity allows. Agents left queued accrue one tick of waiting delay.
func (s *Simulator) phaseAdmission() {
	dt := s.Config.TickSeconds
	for _, id := range s.Graph.EdgeIDs() {
		es := s.edgeStates[id]
		e := s.Graph.MustEdge(id)
		for es.QueueLen() > 0 && s.Dynamics.CanAdmit(es, e) {
			a := s.agentByID[es.Dequeue()]
			s.Dynamics.Admit(es)
			s.Collector.RecordEntry(id)
			a.Queued = false
			a.QueuedEdge = ""
			a.arc = a.Path.Arcs[a.PathArcIndex]
			a.EdgeID = id
			a.ProgressM = 0
			a.Node = ""
			a.TraversedEdges = append(a.TraversedEdges, id)
			logrus.Debugf("[tick %07d] admit %s -> %s", s.Clock, a.Profile.ID, id)
		}
		for _, agentID := range es.Queued() {
			a := s.agentByID[agentID]
			a.WaitingDelayS += dt
			a.TravelTimeS += dt
		}
	}
}

// phaseMovement advances every on-edge agent by
// speed_base * traversal_factor * tick_seconds, accruing slowdown delay for
// any tick spent below full speed.
func (s *Simulator) phaseMovement() {
	dt := s.Config.TickSeconds
	for _, a := range s.agents {
		if !a.Active || a.EdgeID == "" {
			continue
		}
		es := s.edgeStates[a.EdgeID]
		e := s.Graph.MustEdge(a.EdgeID)
		factor := s.Dynamics.TraversalFactor(es, e)
		a.ProgressM += a.Profile.SpeedBaseMPS * factor * dt
		a.TravelTimeS += dt
		if factor < 1.0 {
			a.SlowdownDelayS += (1.0 - factor) * dt
		}
	}
}

// phaseCompletion handles agents whose progress reached the edge length:
// exit the edge, then either queue for the next edge of the path, start the
// next leg, or finish entirely.
func (s *Simulator) phaseCompletion() error {
	for _, a := range s.agents {
		if !a.Active || a.EdgeID == "" {
			continue
		}
		e := s.Graph.MustEdge(a.EdgeID)
		if a.ProgressM < e.LengthM {
			continue
		}
		es := s.edgeStates[a.EdgeID]
		es.Occupancy--
		if es.Occupancy < 0 {
			return &InvariantError{Tick: s.Clock, Detail: fmt.Sprintf("edge %s occupancy went negative", a.EdgeID)}
		}
		a.Node = a.arc.To
		a.EdgeID = ""
		a.ProgressM = 0
		a.PathArcIndex++

		if a.PathArcIndex < len(a.Path.Arcs) {
			if a.ReroutePends {
				s.applyReroute(a)
				a.ReroutePends = false
			}
			next := a.Path.Arcs[a.PathArcIndex]
			s.edgeStates[next.EdgeID].Enqueue(a.Profile.ID)
			a.Queued = true
			a.QueuedEdge = next.EdgeID
			continue
		}

		// Leg complete.
		leg := a.CurrentLeg()
		if leg.DeadlineTick > 0 && s.Clock > leg.DeadlineTick {
			a.Late = true
		}
		a.LegIndex++
		a.Active = false
		a.ReroutePends = false
		if a.LegIndex >= len(a.Profile.Legs) {
			a.Completed = true
			a.CompletionTick = s.Clock
			s.lastCompletionTick = s.Clock
			s.anyCompletion = true
			logrus.Debugf("[tick %07d] complete %s travel=%.1fs", s.Clock, a.Profile.ID, a.TravelTimeS)
		}
	}
	return nil
}

// applyReroute replaces the remaining suffix of the agent's path. The agent
// is standing at a node; only the route from here to the leg destination may
// change.
func (s *Simulator) applyReroute(a *AgentRuntimeState) {
	dest := a.CurrentLeg().Destination
	if a.Node == dest {
		return
	}
	remaining := a.Path.Arcs[a.PathArcIndex:]
	candidate, ok := s.Router.RerouteSuffix(a.Node, dest, remaining, a.Profile.StairsPenalty)
	if !ok {
		return
	}
	a.Path = candidate
	a.PathArcIndex = 0
	a.LastReroute = s.Clock
	logrus.Debugf("[tick %07d] reroute %s via %v", s.Clock, a.Profile.ID, candidate.Nodes)
}

// phaseReroute runs the interval-gated reroute check. A queued agent can
// switch immediately (leaving its queue slot only if the candidate is
// adopted); an agent mid-edge finishes the traversal first and has the
// switch latched for its next node.
func (s *Simulator) phaseReroute() {
	for _, a := range s.agents {
		if !a.Active || a.Completed {
			continue
		}
		if !s.Router.RerouteDue(s.Clock, a) {
			continue
		}
		a.LastReroute = s.Clock
		if !s.Router.RerouteTriggered(a) {
			continue
		}
		if a.Queued {
			dest := a.CurrentLeg().Destination
			node := a.Path.Arcs[a.PathArcIndex].From
			if node == dest {
				continue
			}
			remaining := a.Path.Arcs[a.PathArcIndex:]
			candidate, ok := s.Router.RerouteSuffix(node, dest, remaining, a.Profile.StairsPenalty)
			if !ok {
				continue
			}
			// Adopted: leave the old queue, join the new edge's queue at
			// the back. This is the single sanctioned FIFO removal.
			s.edgeStates[a.QueuedEdge].Remove(a.Profile.ID)
			a.Path = candidate
			a.PathArcIndex = 0
			first := candidate.Arcs[0]
			s.edgeStates[first.EdgeID].Enqueue(a.Profile.ID)
			a.QueuedEdge = first.EdgeID
			logrus.Debugf("[tick %07d] reroute %s (queued) via %v", s.Clock, a.Profile.ID, candidate.Nodes)
		} else if a.EdgeID != "" {
			a.ReroutePends = true
		}
	}
}

// phaseSnapshot appends one MetricsSnapshot per edge, in edge order.
func (s *Simulator) phaseSnapshot() {
	for _, id := range s.Graph.EdgeIDs() {
		es := s.edgeStates[id]
		s.Collector.RecordSnapshot(MetricsSnapshot{
			Tick:      s.Clock,
			EdgeID:    id,
			Occupancy: es.Occupancy,
			Density:   es.Density,
			QueueLen:  es.QueueLen(),
		})
	}
}

func (s *Simulator) activeCount() int {
	n := 0
	for _, a := range s.agents {
		if a.Active {
			n++
		}
	}
	return n
}

func (s *Simulator) allCompleted() bool {
	for _, a := range s.agents {
		if !a.Completed {
			return false
		}
	}
	return true
}

// checkInvariants cross-checks occupancy accounting against agent locations
// once per tick. Any mismatch is corrupted state; continuing would propagate
// it, so the loop halts.
func (s *Simulator) checkInvariants() error {
	onEdge := make(map[string]int, len(s.edgeStates))
	for _, a := range s.agents {
		if a.Active && a.EdgeID != "" {
			onEdge[a.EdgeID]++
		}
	}
	for _, id := range s.Graph.EdgeIDs() {
		es := s.edgeStates[id]
		if es.Occupancy != onEdge[id] {
			return &InvariantError{Tick: s.Clock, Detail: fmt.Sprintf("edge %s occupancy=%d but %d agents on edge", id, es.Occupancy, onEdge[id])}
		}
		if es.Occupancy < 0 {
			return &InvariantError{Tick: s.Clock, Detail: fmt.Sprintf("edge %s occupancy negative", id)}
		}
	}
	return nil
}

func (s *Simulator) buildResult(ticks int64, incomplete bool) *Result {
	res := &Result{Ticks: ticks, Incomplete: incomplete}

	var travelTimes []float64
	for _, a := range s.agents {
		late := a.Late
		if !a.Completed {
			leg := a.Profile.Legs[min(a.LegIndex, len(a.Profile.Legs)-1)]
			if leg.DeadlineTick > 0 && s.Clock > leg.DeadlineTick {
				late = true
			}
		}
		res.Agents = append(res.Agents, AgentRecord{
			ID:          a.Profile.ID,
			Class:       a.Profile.Class,
			Priority:    a.Profile.Priority,
			TravelTimeS: a.TravelTimeS,
			DelayWaitS:  a.WaitingDelayS,
			DelaySlowS:  a.SlowdownDelayS,
			Path:        a.TraversedEdges,
			Completed:   a.Completed,
			Late:        late,
		})
		if a.Completed {
			travelTimes = append(travelTimes, a.TravelTimeS)
		}
		if late {
			res.Summary.LateAgents++
		}
	}

	res.Edges = s.Collector.EdgeRecords(s.Config.CongestionThreshold)
	res.Summary.TopBottlenecks = RankBottlenecks(res.Edges, s.Config.TopN)
	res.Summary.CompletedAgents = len(travelTimes)
	res.Summary.Degraded = s.degraded
	res.Summary.OverflowedAgents = s.overflowed
	res.Summary.Complete = !incomplete && s.allCompleted()

	if len(travelTimes) > 0 {
		sorted := SortedTravelTimes(travelTimes)
		res.Summary.MeanTravelTimeS = CalculateMean(sorted)
		res.Summary.P50TravelTimeS = CalculatePercentile(sorted, 50)
		res.Summary.P90TravelTimeS = CalculatePercentile(sorted, 90)
		res.Summary.P95TravelTimeS = CalculatePercentile(sorted, 95)
		res.Summary.MaxTravelTimeS = sorted[len(sorted)-1]
	}
	if res.Summary.Complete && s.anyCompletion {
		res.Summary.TimeToClearS = float64(s.lastCompletionTick) * s.Config.TickSeconds
	}
	return res
}
