package sim

import (
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===
//
// Consumption order is part of the determinism contract:
//  1. "schedule" — ScheduleComposer, one draw per staggered departure
//     (bin jitter), in stable movement order.
//  2. "speed" — ScheduleComposer, one bounded-normal draw per agent,
//     immediately after that agent's departure is placed.
//  3. "router" — Router.Choose, one draw per path choice, in agent
//     activation/reroute order inside the tick loop.

const (
	// SubsystemSchedule is the RNG subsystem for departure staggering.
	SubsystemSchedule = "schedule"

	// SubsystemSpeed is the RNG subsystem for agent walking-speed sampling.
	SubsystemSpeed = "speed"

	// SubsystemRouter is the RNG subsystem for softmax path choice.
	SubsystemRouter = "router"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName). Isolation means
// adding draws to one subsystem (say, more reroutes) never perturbs another
// (speed sampling), which keeps parameter sweeps comparable run-to-run.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine;
// the tick loop is single-threaded by contract so this is never shared.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
