package sim

import "math"

// DynamicsEngine converts edge occupancy into density, density into a speed
// multiplier, and arbitrates edge-entry admission under capacity.
type DynamicsEngine struct {
	cfg         DynamicsConfig
	tickSeconds float64
}

// NewDynamicsEngine builds the engine from validated configuration.
func NewDynamicsEngine(cfg DynamicsConfig, tickSeconds float64) *DynamicsEngine {
	return &DynamicsEngine{cfg: cfg, tickSeconds: tickSeconds}
}

// DensityOf returns occupancy / (length * width) in persons/m^2.
func (d *DynamicsEngine) DensityOf(occupancy int, e Edge) float64 {
	return float64(occupancy) / e.AreaM2()
}

// SpeedFactor maps density to a speed multiplier:
//
//	factor = max(minFactor, 1 - (density/densityJam)^exponent)
//
// clamped to [minFactor, 1]. The curve is monotonically non-increasing in
// density, which tests rely on.
func (d *DynamicsEngine) SpeedFactor(density float64) float64 {
	if density <= 0 {
		return 1.0
	}
	f := 1.0 - math.Pow(density/d.cfg.DensityJam, d.cfg.Exponent)
	if f < d.cfg.MinFactor {
		return d.cfg.MinFactor
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}

// RefreshTick recomputes the edge's density from current occupancy and tops
// up its admission credit. Credit accrues at capacity_pps * tick_seconds per
// tick and is capped at max(1, capacity_pps * tick_seconds) so unused budget
// from an idle tick cannot accumulate into an unbounded burst, while edges
// with sub-unit per-tick capacity still admit eventually.
func (d *DynamicsEngine) RefreshTick(es *EdgeRuntimeState, e Edge) {
	es.Density = d.DensityOf(es.Occupancy, e)
	quota := e.CapacityPPS * d.tickSeconds
	es.entryCredit += quota
	limit := quota
	if limit < 1.0 {
		limit = 1.0
	}
	if e.CapacityPPS == 0 {
		// A zero-capacity edge never admits; keep credit pinned at zero.
		es.entryCredit = 0
		return
	}
	if es.entryCredit > limit {
		es.entryCredit = limit
	}
}

// CanAdmit reports whether one more agent may enter the edge this tick:
// there must be a whole unit of admission credit, and the resulting density
// must stay at or below the jam density.
func (d *DynamicsEngine) CanAdmit(es *EdgeRuntimeState, e Edge) bool {
	if es.entryCredit < 1.0 {
		return false
	}
	return d.DensityOf(es.Occupancy+1, e) <= d.cfg.DensityJam
}

// Admit consumes one unit of credit and records the entry. Callers must have
// checked CanAdmit in the same tick.
func (d *DynamicsEngine) Admit(es *EdgeRuntimeState) {
	es.entryCredit -= 1.0
	es.Occupancy++
	es.Throughput++
}

// TraversalFactor returns the combined speed multiplier for an agent moving
// on the edge this tick: the density factor, times the stairs factor on
// stair edges. The impeding density counts the other occupants only, so a
// lone walker always moves at free-flow speed.
func (d *DynamicsEngine) TraversalFactor(es *EdgeRuntimeState, e Edge) float64 {
	others := es.Occupancy - 1
	if others < 0 {
		others = 0
	}
	f := d.SpeedFactor(d.DensityOf(others, e))
	if e.Stairs {
		f *= d.cfg.StairsSpeedFactor
	}
	return f
}
