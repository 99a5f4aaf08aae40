package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDynamics() *DynamicsEngine {
	return NewDynamicsEngine(DynamicsConfig{
		DensityJam:        3.5,
		Exponent:          2.0,
		MinFactor:         0.1,
		StairsSpeedFactor: 0.7,
	}, 1.0)
}

func TestSpeedFactor_FreeFlowAtZeroDensity(t *testing.T) {
	d := testDynamics()
	assert.Equal(t, 1.0, d.SpeedFactor(0))
	assert.Equal(t, 1.0, d.SpeedFactor(-1)) // defensive input, still free flow
}

func TestSpeedFactor_MonotonicallyNonIncreasing(t *testing.T) {
	// GIVEN increasing densities
	d := testDynamics()
	densities := []float64{0, 0.25, 0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 5.0}

	// THEN the factor never increases
	prev := d.SpeedFactor(densities[0])
	for _, rho := range densities[1:] {
		f := d.SpeedFactor(rho)
		if f > prev {
			t.Errorf("SpeedFactor(%v) = %v > previous %v, want non-increasing", rho, f, prev)
		}
		prev = f
	}
}

func TestSpeedFactor_ClampedToMinFactor(t *testing.T) {
	d := testDynamics()
	// At and beyond jam density the curve would go to zero or negative;
	// the floor holds it at MinFactor.
	assert.Equal(t, 0.1, d.SpeedFactor(3.5))
	assert.Equal(t, 0.1, d.SpeedFactor(10.0))
}

func TestSpeedFactor_PowerLawValue(t *testing.T) {
	d := testDynamics()
	// rho = jam/2 with exponent 2: 1 - (0.5)^2 = 0.75
	assert.InDelta(t, 0.75, d.SpeedFactor(1.75), 1e-12)
}

func TestDensityOf(t *testing.T) {
	d := testDynamics()
	e := Edge{ID: "c", LengthM: 10, WidthM: 2}
	assert.Equal(t, 0.0, d.DensityOf(0, e))
	assert.Equal(t, 0.5, d.DensityOf(10, e))
}

func TestRefreshTick_CreditAccrualAndCap(t *testing.T) {
	// GIVEN an edge admitting 0.4 persons per tick
	d := testDynamics()
	e := Edge{ID: "c", LengthM: 10, WidthM: 2, CapacityPPS: 0.4}
	es := newEdgeRuntimeState("c")

	// THEN credit builds up across ticks until a whole admission fits
	d.RefreshTick(es, e)
	assert.False(t, d.CanAdmit(es, e), "0.4 credit must not admit")
	d.RefreshTick(es, e)
	assert.False(t, d.CanAdmit(es, e), "0.8 credit must not admit")
	d.RefreshTick(es, e)
	assert.True(t, d.CanAdmit(es, e), "1.2 credit must admit")

	// AND the credit is capped, so idle ticks never bank a burst
	for i := 0; i < 10; i++ {
		d.RefreshTick(es, e)
	}
	d.Admit(es)
	assert.False(t, d.CanAdmit(es, e), "cap must prevent more than one banked admission")
}

func TestRefreshTick_ZeroCapacityNeverAdmits(t *testing.T) {
	d := testDynamics()
	e := Edge{ID: "c", LengthM: 10, WidthM: 2, CapacityPPS: 0}
	es := newEdgeRuntimeState("c")

	for i := 0; i < 100; i++ {
		d.RefreshTick(es, e)
	}
	assert.False(t, d.CanAdmit(es, e))
}

func TestCanAdmit_JamDensityBound(t *testing.T) {
	// GIVEN a 1m x 1m edge already at jam occupancy
	d := testDynamics()
	e := Edge{ID: "c", LengthM: 1, WidthM: 1, CapacityPPS: 100}
	es := newEdgeRuntimeState("c")
	es.Occupancy = 3 // next entry -> 4 p/m^2 > 3.5 jam

	d.RefreshTick(es, e)
	assert.False(t, d.CanAdmit(es, e), "entry beyond jam density must be refused")

	es.Occupancy = 2 // next entry -> 3 p/m^2 <= jam
	d.RefreshTick(es, e)
	assert.True(t, d.CanAdmit(es, e))
}

func TestAdmit_ConsumesCreditAndCounts(t *testing.T) {
	d := testDynamics()
	e := Edge{ID: "c", LengthM: 10, WidthM: 2, CapacityPPS: 2}
	es := newEdgeRuntimeState("c")

	d.RefreshTick(es, e)
	d.Admit(es)
	d.Admit(es)

	assert.Equal(t, 2, es.Occupancy)
	assert.Equal(t, 2, es.Throughput)
	assert.False(t, d.CanAdmit(es, e), "per-tick quota of 2 exhausted")
}

func TestTraversalFactor_StairsMultiplier(t *testing.T) {
	d := testDynamics()
	flat := Edge{ID: "c", LengthM: 10, WidthM: 2}
	stairs := Edge{ID: "s", LengthM: 10, WidthM: 2, Stairs: true}
	es := newEdgeRuntimeState("x") // empty edge

	assert.Equal(t, 1.0, d.TraversalFactor(es, flat))
	assert.InDelta(t, 0.7, d.TraversalFactor(es, stairs), 1e-12)
}

func TestTraversalFactor_ExcludesSelf(t *testing.T) {
	// A lone walker is not impeded by their own presence.
	d := testDynamics()
	e := Edge{ID: "c", LengthM: 10, WidthM: 2}
	es := newEdgeRuntimeState("c")
	es.Occupancy = 1

	assert.Equal(t, 1.0, d.TraversalFactor(es, e))

	// A second occupant starts to slow things down.
	es.Occupancy = 2
	assert.Less(t, d.TraversalFactor(es, e), 1.0)
}
