package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidDuration    = errors.New("invalid durationHours: must be a positive multiple of 0.5")
	ErrInsufficientData   = errors.New("insufficient rate data")
	ErrNoQualifyingPeriod = errors.New("no suitable period found")
)

// maxSlots bounds numSlots so the conversion from float never overflows
const maxSlots = math.MaxInt32

// InsufficientDataError reports a series shorter than the requested window
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %g hours available, %g required",
		e.AvailableHours(), float64(e.Required)*0.5)
}

// Is lets errors.Is(err, ErrInsufficientData) match
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// AvailableHours is the span of data that was available, in hours
func (e *InsufficientDataError) AvailableHours() float64 {
	return float64(e.Available) * 0.5
}

// SlotsFor converts a duration in hours to the number of half-hour slots.
// The duration must be a positive, finite multiple of 0.5.
func SlotsFor(durationHours float64) (int, error) {
	if math.IsNaN(durationHours) || math.IsInf(durationHours, 0) || durationHours <= 0 {
		return 0, ErrInvalidDuration
	}
	if math.Mod(durationHours, 0.5) != 0 {
		return 0, ErrInvalidDuration
	}
	n := durationHours / 0.5
	if n > maxSlots {
		return 0, ErrInvalidDuration
	}
	return int(n), nil
}

// Option configures a Finder
type Option func(*Finder)

// WithBruteForce makes the finder sum every window from scratch
func WithBruteForce() Option {
	return func(f *Finder) {
		f.bruteForce = true
	}
}

// Finder searches a rate series for the cheapest contiguous window
type Finder struct {
	logger     *zap.Logger
	bruteForce bool
}

// NewFinder creates a finder; a nil logger disables logging
func NewFinder(logger *zap.Logger, opts ...Option) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Finder{logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find returns the window of cfg.DurationHours with the lowest average price.
//
// Windows whose last slot ended before now are skipped, as are windows whose
// scaled average exceeds cfg.MaxPrice. Candidates are ranked by the unscaled
// average and ties keep the earliest start.
func (f *Finder) Find(series RateSeries, cfg SearchConfig, now time.Time) (*BestPeriod, error) {
	numSlots, err := SlotsFor(cfg.DurationHours)
	if err != nil {
		return nil, err
	}

	if len(series) < numSlots {
		return nil, &InsufficientDataError{Required: numSlots, Available: len(series)}
	}

	t := newTracker(cfg, numSlots)
	if f.bruteForce {
		f.bruteForceSearch(series, numSlots, now, t)
	} else {
		slidingSearch(series, numSlots, now, t)
	}

	if t.best == nil {
		return nil, ErrNoQualifyingPeriod
	}
	return t.best, nil
}

// FindCheapest runs a search with a default finder
func FindCheapest(series RateSeries, cfg SearchConfig, now time.Time) (*BestPeriod, error) {
	return NewFinder(nil).Find(series, cfg, now)
}

// tracker keeps the best candidate seen so far
type tracker struct {
	slots    decimal.Decimal
	mult     decimal.Decimal
	maxPrice *decimal.Decimal
	bestAvg  decimal.Decimal
	best     *BestPeriod
}

func newTracker(cfg SearchConfig, numSlots int) *tracker {
	t := &tracker{
		slots: decimal.NewFromInt(int64(numSlots)),
		mult:  decimal.NewFromFloat(cfg.scale()),
	}
	if cfg.MaxPrice != nil {
		m := decimal.NewFromFloat(*cfg.MaxPrice)
		t.maxPrice = &m
	}
	return t
}

func (t *tracker) consider(first, last RateInterval, sum decimal.Decimal) {
	avg := sum.Div(t.slots)
	scaled := avg.Mul(t.mult)

	if t.maxPrice != nil && scaled.GreaterThan(*t.maxPrice) {
		return
	}

	if t.best == nil || avg.LessThan(t.bestAvg) {
		t.bestAvg = avg
		t.best = &BestPeriod{
			Start:        first.Start,
			End:          last.End,
			AveragePrice: avg.InexactFloat64(),
			ScaledPrice:  scaled.InexactFloat64(),
		}
	}
}

// bruteForceSearch sums every window independently, O(n*numSlots)
func (f *Finder) bruteForceSearch(series RateSeries, numSlots int, now time.Time, t *tracker) {
	for i := 0; i <= len(series)-numSlots; i++ {
		last := series[i+numSlots-1]
		if last.End.Before(now) {
			continue
		}

		sum := decimal.Zero
		valid := true
		for j := 0; j < numSlots; j++ {
			if i+j >= len(series) {
				f.logger.Warn("rate index out of bounds during window sum",
					zap.Int("start", i), zap.Int("offset", j), zap.Int("len", len(series)))
				continue
			}
			v := series[i+j].ValueIncVAT
			if !finite(v) {
				valid = false
				break
			}
			sum = sum.Add(decimal.NewFromFloat(v))
		}

		if valid {
			t.consider(series[i], last, sum)
		}
	}
}

// slidingSearch keeps a running window sum, O(n)
func slidingSearch(series RateSeries, numSlots int, now time.Time, t *tracker) {
	sum := decimal.Zero
	invalid := 0 // non-finite values inside the current window

	add := func(r RateInterval) {
		if !finite(r.ValueIncVAT) {
			invalid++
			return
		}
		sum = sum.Add(decimal.NewFromFloat(r.ValueIncVAT))
	}
	remove := func(r RateInterval) {
		if !finite(r.ValueIncVAT) {
			invalid--
			return
		}
		sum = sum.Sub(decimal.NewFromFloat(r.ValueIncVAT))
	}

	for j := 0; j < numSlots; j++ {
		add(series[j])
	}

	for i := 0; i+numSlots <= len(series); i++ {
		if i > 0 {
			remove(series[i-1])
			add(series[i+numSlots-1])
		}

		last := series[i+numSlots-1]
		if last.End.Before(now) || invalid > 0 {
			continue
		}
		t.consider(series[i], last, sum)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
