package sim

import "fmt"

// RouterConfig groups path search and path choice parameters.
type RouterConfig struct {
	KPaths                  int      // number of alternative simple paths per OD pair (>= 1)
	StairsPenalty           float64  // additive cost per stair edge in a path
	Temperature             float64  // softmax temperature; lower = greedier choice (> 0)
	RerouteIntervalTicks    int64    // spacing between reroute checks per agent; 0 disables rerouting
	RerouteDelayThresholdS  float64  // minimum accumulated delay (wait + slowdown) before a reroute triggers
	RerouteHysteresisMargin float64  // fractional cost improvement required to adopt a new suffix, e.g. 0.1 = 10%
	DisabledEdges           []string // edge ids excluded from path search for this run
}

// DynamicsConfig groups the density -> speed relationship and admission model.
type DynamicsConfig struct {
	DensityJam        float64 // density at which movement stalls, persons/m^2 (> 0)
	Exponent          float64 // power-law exponent of the slowdown curve (> 0)
	MinFactor         float64 // floor of the speed multiplier, in (0, 1]
	StairsSpeedFactor float64 // extra multiplier while traversing stair edges, in (0, 1]
}

// ScheduleConfig groups staggered-release parameters for ScheduleComposer.
type ScheduleConfig struct {
	WindowTicks int64 // transition window length in ticks (> 0)
	BinTicks    int64 // sub-interval width for departure placement (> 0, <= WindowTicks)
	MaxPerBin   int   // hard cap on departures per sub-interval (>= 1)
}

// SimulationConfig is the complete, explicit configuration of one run.
// There are no hidden defaults: construct with DefaultSimulationConfig and
// override, or fill every field and let Validate catch omissions.
type SimulationConfig struct {
	TickSeconds         float64 // duration of one tick in simulated seconds (> 0)
	MaxTicks            int64   // tick budget; exhausting it yields an incomplete run, not an error (> 0)
	Seed                int64   // master seed for the partitioned RNG
	CongestionThreshold float64 // density at or above which a tick counts as congested, persons/m^2 (> 0)
	TopN                int     // number of bottleneck edges exposed in the summary (>= 1)

	Router   RouterConfig
	Dynamics DynamicsConfig
	Schedule ScheduleConfig

	// Progress, when non-nil, is invoked once per tick from the simulation
	// goroutine with a small immutable record. Hosts wanting a channel wrap
	// it themselves; the callback must not block.
	Progress func(Progress)
}

// DefaultSimulationConfig returns the documented baseline configuration.
// Dynamics defaults follow the pedestrian fundamental-diagram constants the
// model was calibrated against (jam at 3.5 p/m^2, floor at 10% speed).
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickSeconds:         1.0,
		MaxTicks:            3600,
		Seed:                42,
		CongestionThreshold: 1.0,
		TopN:                5,
		Router: RouterConfig{
			KPaths:                  3,
			StairsPenalty:           3.0,
			Temperature:             1.0,
			RerouteIntervalTicks:    10,
			RerouteDelayThresholdS:  5.0,
			RerouteHysteresisMargin: 0.10,
		},
		Dynamics: DynamicsConfig{
			DensityJam:        3.5,
			Exponent:          2.0,
			MinFactor:         0.1,
			StairsSpeedFactor: 0.7,
		},
		Schedule: ScheduleConfig{
			WindowTicks: 300,
			BinTicks:    5,
			MaxPerBin:   10,
		},
	}
}

// Validate checks every option against its documented range and returns a
// *ConfigError for the first violation. It is called by NewSimulator before
// any tick executes.
func (c SimulationConfig) Validate() error {
	checks := []struct {
		ok     bool
		field  string
		detail string
	}{
		{c.TickSeconds > 0, "tick_seconds", fmt.Sprintf("must be > 0, got %v", c.TickSeconds)},
		{c.MaxTicks > 0, "max_ticks", fmt.Sprintf("must be > 0, got %v", c.MaxTicks)},
		{c.CongestionThreshold > 0, "congestion_threshold", fmt.Sprintf("must be > 0, got %v", c.CongestionThreshold)},
		{c.TopN >= 1, "top_n", fmt.Sprintf("must be >= 1, got %v", c.TopN)},
		{c.Router.KPaths >= 1, "router.k_paths", fmt.Sprintf("must be >= 1, got %v", c.Router.KPaths)},
		{c.Router.StairsPenalty >= 0, "router.stairs_penalty", fmt.Sprintf("must be >= 0, got %v", c.Router.StairsPenalty)},
		{c.Router.Temperature > 0, "router.temperature", fmt.Sprintf("must be > 0, got %v", c.Router.Temperature)},
		{c.Router.RerouteIntervalTicks >= 0, "router.reroute_interval_ticks", fmt.Sprintf("must be >= 0, got %v", c.Router.RerouteIntervalTicks)},
		{c.Router.RerouteDelayThresholdS >= 0, "router.reroute_delay_threshold", fmt.Sprintf("must be >= 0, got %v", c.Router.RerouteDelayThresholdS)},
		{c.Router.RerouteHysteresisMargin >= 0 && c.Router.RerouteHysteresisMargin < 1, "router.reroute_hysteresis_margin", fmt.Sprintf("must be in [0, 1), got %v", c.Router.RerouteHysteresisMargin)},
		{c.Dynamics.DensityJam > 0, "dynamics.density_jam", fmt.Sprintf("must be > 0, got %v", c.Dynamics.DensityJam)},
		{c.Dynamics.Exponent > 0, "dynamics.exponent", fmt.Sprintf("must be > 0, got %v", c.Dynamics.Exponent)},
		{c.Dynamics.MinFactor > 0 && c.Dynamics.MinFactor <= 1, "dynamics.min_factor", fmt.Sprintf("must be in (0, 1], got %v", c.Dynamics.MinFactor)},
		{c.Dynamics.StairsSpeedFactor > 0 && c.Dynamics.StairsSpeedFactor <= 1, "dynamics.stairs_speed_factor", fmt.Sprintf("must be in (0, 1], got %v", c.Dynamics.StairsSpeedFactor)},
		{c.Schedule.WindowTicks > 0, "schedule.window_ticks", fmt.Sprintf("must be > 0, got %v", c.Schedule.WindowTicks)},
		{c.Schedule.BinTicks > 0 && c.Schedule.BinTicks <= c.Schedule.WindowTicks, "schedule.bin_ticks", fmt.Sprintf("must be in [1, window_ticks], got %v", c.Schedule.BinTicks)},
		{c.Schedule.MaxPerBin >= 1, "schedule.max_per_bin", fmt.Sprintf("must be >= 1, got %v", c.Schedule.MaxPerBin)},
	}
	for _, ch := range checks {
		if !ch.ok {
			return &ConfigError{Field: ch.field, Detail: ch.detail}
		}
	}
	return nil
}
