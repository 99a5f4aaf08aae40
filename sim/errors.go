package sim

import "fmt"

// ConfigError reports an invalid scenario or configuration record.
// It is always raised before any tick executes.
type ConfigError struct {
	Field  string // offending record or option, e.g. "movement[3].origin"
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Detail)
}

// RoutingError reports that no path exists between an origin/destination
// pair referenced by a scenario movement. It is fatal for the run and is
// raised before movement begins.
type RoutingError struct {
	Origin      string
	Destination string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing: no path from %s to %s", e.Origin, e.Destination)
}

// InvariantError reports corrupted runtime state (negative occupancy, queue
// corruption). The loop halts immediately on the first violation; everything
// collected so far is returned marked incomplete.
type InvariantError struct {
	Tick   int64
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated at tick %d: %s", e.Tick, e.Detail)
}
