// Implements per-edge runtime state: occupancy accounting, the FIFO entry
// queue at the edge's source node, and admission credit bookkeeping.

package sim

// EdgeRuntimeState is reset at run start and mutated only by the tick loop.
//
// A reversible edge keeps ONE entry queue shared by both traversal
// directions: admission rate and jam density are properties of the physical
// corridor, not of a direction, so entrants at either endpoint contend in a
// single arrival-ordered line. Each agent's traversal direction lives in its
// own runtime state, not here.
//
// Invariants maintained across a run:
//   - Throughput equals the number of admission events ever recorded.
//   - Occupancy equals entries minus exits since run start.
//   - The entry queue is FIFO and is never reordered; the only removal that
//     is not a front dequeue is an explicit reroute removal.
type EdgeRuntimeState struct {
	EdgeID     string
	Occupancy  int
	Density    float64 // persons/m^2, refreshed once per tick before movement
	Throughput int     // admission events since run start

	queue       []string // agent ids waiting at the source node, FIFO
	entryCredit float64  // fractional admission budget, see DynamicsEngine
}

func newEdgeRuntimeState(edgeID string) *EdgeRuntimeState {
	return &EdgeRuntimeState{EdgeID: edgeID}
}

// Enqueue appends an agent to the back of the entry queue.
func (es *EdgeRuntimeState) Enqueue(agentID string) {
	es.queue = append(es.queue, agentID)
}

// Peek returns the agent id at the front of the queue, or "" if empty.
func (es *EdgeRuntimeState) Peek() string {
	if len(es.queue) == 0 {
		return ""
	}
	return es.queue[0]
}

// Dequeue removes and returns the front agent id, or "" if empty.
func (es *EdgeRuntimeState) Dequeue() string {
	if len(es.queue) == 0 {
		return ""
	}
	id := es.queue[0]
	es.queue = es.queue[1:]
	return id
}

// Remove deletes the agent from the queue wherever it sits, preserving the
// relative order of everyone else. Returns false if the agent was not queued.
// Only rerouting may call this; ordinary admission is strictly FIFO.
func (es *EdgeRuntimeState) Remove(agentID string) bool {
	for i, id := range es.queue {
		if id == agentID {
			es.queue = append(es.queue[:i], es.queue[i+1:]...)
			return true
		}
	}
	return false
}

// QueueLen returns the number of waiting agents.
func (es *EdgeRuntimeState) QueueLen() int {
	return len(es.queue)
}

// Queued returns the queue contents for iteration. The returned slice is the
// internal storage; callers must not append to or reslice it.
func (es *EdgeRuntimeState) Queued() []string {
	return es.queue
}
