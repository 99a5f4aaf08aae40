// Tracks per-tick edge samples and aggregates them into per-edge congestion
// statistics and the bottleneck ranking.

package sim

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// MetricsSnapshot is one per-edge, per-tick sample. Snapshots are consumed
// append-only; nothing in the engine ever mutates one after recording.
type MetricsSnapshot struct {
	Tick      int64
	EdgeID    string
	Occupancy int
	Density   float64
	QueueLen  int
}

// MetricsCollector aggregates snapshots and admission events over a run.
type MetricsCollector struct {
	edgeOrder []string
	series    map[string][]MetricsSnapshot
	entries   map[string]int
}

// NewMetricsCollector prepares a collector for the given edge id ordering;
// all per-edge output follows this order deterministically.
func NewMetricsCollector(edgeIDs []string) *MetricsCollector {
	order := make([]string, len(edgeIDs))
	copy(order, edgeIDs)
	return &MetricsCollector{
		edgeOrder: order,
		series:    make(map[string][]MetricsSnapshot, len(edgeIDs)),
		entries:   make(map[string]int, len(edgeIDs)),
	}
}

// RecordEntry counts one successful admission into the edge.
func (m *MetricsCollector) RecordEntry(edgeID string) {
	m.entries[edgeID]++
}

// RecordSnapshot appends one per-tick sample.
func (m *MetricsCollector) RecordSnapshot(s MetricsSnapshot) {
	m.series[s.EdgeID] = append(m.series[s.EdgeID], s)
}

// Entries returns the admission count for an edge.
func (m *MetricsCollector) Entries(edgeID string) int {
	return m.entries[edgeID]
}

// Series returns the snapshot sequence for an edge.
func (m *MetricsCollector) Series(edgeID string) []MetricsSnapshot {
	return m.series[edgeID]
}

// EdgeRecords aggregates every edge's snapshot sequence. Threshold crossing
// is strict and without hysteresis: a tick with density >= threshold extends
// the current congestion run, any tick below it ends the run.
func (m *MetricsCollector) EdgeRecords(threshold float64) []EdgeRecord {
	records := make([]EdgeRecord, 0, len(m.edgeOrder))
	for _, id := range m.edgeOrder {
		records = append(records, m.aggregateEdge(id, threshold))
	}
	return records
}

func (m *MetricsCollector) aggregateEdge(edgeID string, threshold float64) EdgeRecord {
	rec := EdgeRecord{EdgeID: edgeID, Throughput: m.entries[edgeID]}
	series := m.series[edgeID]
	if len(series) == 0 {
		return rec
	}

	var sum float64
	var run, peakRun int64
	for _, s := range series {
		if s.Density > rec.PeakDensity {
			rec.PeakDensity = s.Density
		}
		sum += s.Density
		if s.Density >= threshold {
			if run == 0 {
				rec.CongestionEvents++
			}
			run++
			if run > peakRun {
				peakRun = run
			}
		} else {
			run = 0
		}
	}
	// Ticks are uniform, so the time-weighted mean reduces to the sample mean.
	rec.AvgDensity = sum / float64(len(series))
	rec.PeakDurationTicks = peakRun
	rec.BottleneckScore = rec.PeakDensity * float64(rec.PeakDurationTicks)
	return rec
}

// RankBottlenecks returns the top-n records by bottleneck score, descending,
// ties broken by ascending edge id. The input is not modified; rerunning the
// ranking on the same records yields an identical list.
func RankBottlenecks(records []EdgeRecord, topN int) []EdgeRecord {
	ranked := make([]EdgeRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].BottleneckScore != ranked[j].BottleneckScore {
			return ranked[i].BottleneckScore > ranked[j].BottleneckScore
		}
		return ranked[i].EdgeID < ranked[j].EdgeID
	})
	if topN < len(ranked) {
		ranked = ranked[:topN]
	}
	return ranked
}

// PrintSummary logs the run outcome at info level. Hosts with their own
// reporting consume Result directly instead.
func PrintSummary(res *Result) {
	s := res.Summary
	logrus.Infof("=== Run Summary ===")
	logrus.Infof("Completed agents : %d (late: %d)", s.CompletedAgents, s.LateAgents)
	if s.CompletedAgents > 0 {
		logrus.Infof("Travel time (s)  : mean=%.2f p50=%.2f p90=%.2f p95=%.2f max=%.2f",
			s.MeanTravelTimeS, s.P50TravelTimeS, s.P90TravelTimeS, s.P95TravelTimeS, s.MaxTravelTimeS)
	}
	if s.Complete {
		logrus.Infof("Time to clear    : %.1fs over %d ticks", s.TimeToClearS, res.Ticks)
	} else {
		logrus.Warnf("Run incomplete after %d ticks", res.Ticks)
	}
	if s.Degraded {
		logrus.Warnf("Scheduling degraded: %d departures overflowed the window", s.OverflowedAgents)
	}
	for i, b := range s.TopBottlenecks {
		logrus.Infof("Bottleneck #%d: %s score=%.2f peak=%.2f p/m^2 for %d ticks, %d events",
			i+1, b.EdgeID, b.BottleneckScore, b.PeakDensity, b.PeakDurationTicks, b.CongestionEvents)
	}
}
