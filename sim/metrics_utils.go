// sim/metrics_utils.go
package sim

import (
	"math"
	"sort"
)

type IntOrFloat64 interface {
	int | int64 | float64
}

// CalculatePercentile returns the p-th percentile of sorted data using
// linear interpolation between the two nearest ranks. The input must
// already be sorted ascending; callers use SortedTravelTimes to obtain a
// deterministic sorted copy.
func CalculatePercentile[T IntOrFloat64](sorted []T, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0.0
	}
	if n == 1 {
		return float64(sorted[0])
	}
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if lowerIdx == upperIdx {
		return float64(sorted[lowerIdx])
	}
	if upperIdx >= n {
		return float64(sorted[n-1])
	}
	lowerVal := float64(sorted[lowerIdx])
	upperVal := float64(sorted[upperIdx])
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// CalculateMean returns the arithmetic mean of a data list.
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, number := range numbers {
		sum += float64(number)
	}
	return sum / float64(len(numbers))
}

// SortedTravelTimes returns a stable-sorted copy of the input. A stable
// O(n log n) sort is used deliberately: percentile results must be
// reproducible bit-for-bit across runs and Go versions, so the summary
// never depends on an unstable intrinsic sort.
func SortedTravelTimes(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.SliceStable(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
