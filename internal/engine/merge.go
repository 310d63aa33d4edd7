package engine

import (
	"sort"
	"time"
)

// MergeRates builds the series searched for the cheapest period.
// Current intervals that ended at or before now are dropped; future intervals
// are kept whole. Overlapping intervals from both sources are not deduplicated.
func MergeRates(current, future []RateInterval, now time.Time) RateSeries {
	merged := make(RateSeries, 0, len(current)+len(future))

	for _, r := range current {
		if r.End.After(now) {
			merged = append(merged, r)
		}
	}
	merged = append(merged, future...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})

	return merged
}

// Contiguous reports whether every interval starts exactly where the previous one ended.
// The search does not require it; callers use it for diagnostics.
func Contiguous(series RateSeries) bool {
	for i := 1; i < len(series); i++ {
		if !series[i].Start.Equal(series[i-1].End) {
			return false
		}
	}
	return true
}
