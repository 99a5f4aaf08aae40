package sim

// The types in this file are the entire contract toward exporters,
// persistence layers, charts, and report generators. The engine knows
// nothing about their output formats; everything here is an immutable
// snapshot safe to consume without synchronization once Run returns.

// AgentRecord is the per-agent outcome of a run.
type AgentRecord struct {
	ID          string
	Class       string
	Priority    bool // class capability flag, passed through for exporters
	TravelTimeS float64
	DelayWaitS  float64
	DelaySlowS  float64
	Path        []string // ordered edge ids actually traversed
	Completed   bool
	Late        bool
}

// EdgeRecord is the per-edge congestion summary of a run.
type EdgeRecord struct {
	EdgeID            string
	PeakDensity       float64
	PeakDurationTicks int64
	Throughput        int
	AvgDensity        float64
	CongestionEvents  int
	BottleneckScore   float64 // PeakDensity * PeakDurationTicks
}

// Summary is the global aggregation over completed agents.
type Summary struct {
	CompletedAgents  int
	LateAgents       int
	MeanTravelTimeS  float64
	P50TravelTimeS   float64
	P90TravelTimeS   float64
	P95TravelTimeS   float64
	MaxTravelTimeS   float64
	TimeToClearS     float64 // valid only when Complete
	Complete         bool    // every agent finished within the tick budget
	Degraded         bool    // scheduling overflowed the transition window
	OverflowedAgents int
	TopBottlenecks   []EdgeRecord
}

// Progress is the per-tick record handed to the host's progress callback.
type Progress struct {
	Tick         int64
	ActiveAgents int
}

// Result is everything a run produces. Incomplete is set when the tick
// budget ran out, the context was cancelled, or an invariant violation
// halted the loop; in all three cases the records cover everything
// collected up to the stopping tick.
type Result struct {
	Agents     []AgentRecord
	Edges      []EdgeRecord
	Summary    Summary
	Ticks      int64
	Incomplete bool
}
