package engine

import "time"

// SlotLength is the fixed length of a tariff slot
const SlotLength = 30 * time.Minute

// RateInterval represents one half-hour tariff slot as published by the host
type RateInterval struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ValueIncVAT float64   `json:"value_inc_vat"`
}

// RateSeries is a merged sequence of rate intervals, sorted by Start
type RateSeries []RateInterval

// Hours returns the number of hours the series covers, counted in slots
func (s RateSeries) Hours() float64 {
	return float64(len(s)) * 0.5
}

// SearchConfig holds the constraints for a single cheapest-period search
type SearchConfig struct {
	DurationHours float64
	MaxPrice      *float64 // compared against the scaled average; nil = no ceiling
	Multiplier    float64  // 0 is treated as 1
}

// scale returns the effective multiplier
func (c SearchConfig) scale() float64 {
	if c.Multiplier == 0 {
		return 1
	}
	return c.Multiplier
}

// BestPeriod is the cheapest qualifying window found by a search
type BestPeriod struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AveragePrice float64   `json:"average_price"` // unscaled mean of value_inc_vat
	ScaledPrice  float64   `json:"scaled_price"`  // AveragePrice * multiplier
}
