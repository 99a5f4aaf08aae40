package sim

import "math/rand"

// ClassProfile is a capability record describing one agent class (students,
// staff, ...). Behaviour differences between classes are pure data: a speed
// distribution, a stairs aversion, and a priority flag, not a type hierarchy.
type ClassProfile struct {
	Name           string
	SpeedMeanMPS   float64
	SpeedStddevMPS float64
	SpeedMinMPS    float64
	SpeedMaxMPS    float64
	StairsPenalty  float64
	Priority       bool
}

// DefaultClassProfiles returns the built-in student and staff classes.
// Walking-speed parameters follow the usual pedestrian literature values
// (mean ~1.35 m/s with individual variation, clamped to 0.6..2.2 m/s).
func DefaultClassProfiles() map[string]ClassProfile {
	return map[string]ClassProfile{
		"student": {
			Name:           "student",
			SpeedMeanMPS:   1.35,
			SpeedStddevMPS: 0.15,
			SpeedMinMPS:    0.6,
			SpeedMaxMPS:    2.2,
			StairsPenalty:  3.0,
		},
		"staff": {
			Name:           "staff",
			SpeedMeanMPS:   1.25,
			SpeedStddevMPS: 0.10,
			SpeedMinMPS:    0.6,
			SpeedMaxMPS:    2.0,
			StairsPenalty:  4.0,
			Priority:       true,
		},
	}
}

// SampleSpeed draws a base walking speed from the class's bounded normal
// distribution. Exactly one draw is consumed per call.
func (c ClassProfile) SampleSpeed(rng *rand.Rand) float64 {
	v := c.SpeedMeanMPS + rng.NormFloat64()*c.SpeedStddevMPS
	if v < c.SpeedMinMPS {
		v = c.SpeedMinMPS
	}
	if v > c.SpeedMaxMPS {
		v = c.SpeedMaxMPS
	}
	return v
}

// Leg is one origin/destination movement of an agent's schedule.
type Leg struct {
	Period             string
	Origin             string
	Destination        string
	EarliestDepartTick int64
	// DeadlineTick is the end of the transition window for this leg;
	// arriving after it marks the agent late. Zero means no deadline.
	DeadlineTick int64
}

// AgentProfile is the immutable description of one individual: identity,
// sampled base speed, class capabilities, and the ordered leg sequence.
// Profiles are produced once by ScheduleComposer and shared read-only
// between runs.
type AgentProfile struct {
	ID            string
	Class         string
	SpeedBaseMPS  float64
	StairsPenalty float64
	Priority      bool
	Legs          []Leg
}

// AgentRuntimeState is owned exclusively by the simulation loop for the
// duration of one run. Location is either "at node" (EdgeID empty, Node set)
// or "on edge" (EdgeID set, ProgressM in [0, length]).
type AgentRuntimeState struct {
	Profile *AgentProfile

	LegIndex  int
	Active    bool
	Completed bool

	// Location.
	Node      string // current node when not on an edge
	EdgeID    string // current edge when traversing
	arc       Arc    // traversal direction of EdgeID
	ProgressM float64

	// Route state.
	Path          Path // chosen path for the current leg
	PathArcIndex  int  // index into Path.Arcs of the current/next arc
	Queued        bool // waiting in an edge entry queue
	QueuedEdge    string
	ReroutePends  bool // reroute latched mid-edge, applied on completion
	LastReroute   int64

	// Accumulators (seconds).
	TravelTimeS    float64
	WaitingDelayS  float64
	SlowdownDelayS float64

	// Bookkeeping for records.
	ReleaseTick    int64
	CompletionTick int64
	Late           bool
	TraversedEdges []string // edge ids entered, in order, across all legs
}

// CurrentLeg returns the leg the agent is executing or waiting to start.
func (a *AgentRuntimeState) CurrentLeg() Leg {
	return a.Profile.Legs[a.LegIndex]
}

// DelayS returns the combined waiting and slowdown delay used by the
// reroute trigger.
func (a *AgentRuntimeState) DelayS() float64 {
	return a.WaitingDelayS + a.SlowdownDelayS
}

func newAgentRuntimeState(p *AgentProfile) *AgentRuntimeState {
	st := &AgentRuntimeState{Profile: p, CompletionTick: -1}
	if len(p.Legs) > 0 {
		st.Node = p.Legs[0].Origin
	}
	return st
}
