// Package sim provides the core discrete-time simulation engine for SmartFlow,
// a congestion-aware model of crowd movement across a building graph during
// scheduled transitions (lesson changeovers, assemblies, one-way drills).
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - agent.go: agent profiles, leg sequences, and the per-run runtime state machine
//   - simulator.go: the tick loop and its eight ordered phases
//   - dynamics.go: density, speed factors, and edge admission control
//
// # Architecture
//
// The engine is a library: it performs no I/O and reads no files. Hosts supply
// an immutable Graph, a set of AgentProfiles (usually produced by
// ScheduleComposer from a Scenario), and a SimulationConfig, then call
// Simulator.Run with a context for cooperative cancellation.
//
//   - graph.go: immutable building graph (nodes, directed edges, adjacency arcs)
//   - schedule.go: ScheduleComposer, staggered-release departure assignment
//   - router.go: k-shortest simple paths, softmax path choice, rerouting policy
//   - dynamics.go: density -> speed factor, per-tick admission credits
//   - edge_state.go: per-edge occupancy, FIFO entry queues, throughput counters
//   - metrics.go: snapshot aggregation, bottleneck ranking, run summary
//   - result.go: the exporter-facing records returned to hosts
//
// # Determinism
//
// Given identical (graph, scenario, seed, configuration) a run is bit-for-bit
// reproducible. All randomness flows through a PartitionedRNG (rng.go) in a
// fixed documented call order, and every iteration over agents, edges, or
// queues uses an explicit deterministic ordering. The loop is single-threaded
// by contract; hosts run it off their responsiveness-critical goroutine and
// cancel via context.
package sim
