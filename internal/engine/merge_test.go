package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slot(offset int, price float64) RateInterval {
	return RateInterval{
		Start:       baseTime.Add(time.Duration(offset) * SlotLength),
		End:         baseTime.Add(time.Duration(offset+1) * SlotLength),
		ValueIncVAT: price,
	}
}

func TestMergeRates_DropsElapsedCurrentSlots(t *testing.T) {
	current := []RateInterval{slot(0, 1), slot(1, 2), slot(2, 3)}
	now := baseTime.Add(time.Hour) // slot 1 ends exactly now

	merged := MergeRates(current, nil, now)

	require.Len(t, merged, 1)
	assert.Equal(t, 3.0, merged[0].ValueIncVAT)
}

func TestMergeRates_KeepsFutureSlotsWhole(t *testing.T) {
	// future intervals are not filtered even if they already ended
	future := []RateInterval{slot(0, 1), slot(1, 2)}

	merged := MergeRates(nil, future, baseTime.Add(24*time.Hour))

	assert.Len(t, merged, 2)
}

func TestMergeRates_SortsByStart(t *testing.T) {
	current := []RateInterval{slot(3, 4), slot(1, 2)}
	future := []RateInterval{slot(5, 6), slot(2, 3), slot(4, 5)}

	merged := MergeRates(current, future, baseTime)

	require.Len(t, merged, 5)
	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i-1].Start.Before(merged[i].Start), "series not sorted at %d", i)
	}
	assert.Equal(t, 2.0, merged[0].ValueIncVAT)
	assert.True(t, Contiguous(merged))
}

func TestMergeRates_KeepsDuplicates(t *testing.T) {
	current := []RateInterval{slot(0, 10)}
	future := []RateInterval{slot(0, 20)}

	merged := MergeRates(current, future, baseTime)

	require.Len(t, merged, 2)
	// stable sort keeps the current interval first
	assert.Equal(t, 10.0, merged[0].ValueIncVAT)
	assert.Equal(t, 20.0, merged[1].ValueIncVAT)
	assert.False(t, Contiguous(merged))
}

func TestMergeRates_BothAbsent(t *testing.T) {
	merged := MergeRates(nil, nil, baseTime)

	assert.Empty(t, merged)
	assert.Equal(t, 0.0, merged.Hours())
}

func TestContiguous_Gap(t *testing.T) {
	assert.False(t, Contiguous(RateSeries{slot(0, 1), slot(2, 1)}))
	assert.True(t, Contiguous(RateSeries{slot(0, 1)}))
}
