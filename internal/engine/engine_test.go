package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"
)

var baseTime = time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC)

// buildSeries creates contiguous half-hour slots starting at baseTime
func buildSeries(prices ...float64) RateSeries {
	series := make(RateSeries, 0, len(prices))
	for i, price := range prices {
		series = append(series, RateInterval{
			Start:       baseTime.Add(time.Duration(i) * SlotLength),
			End:         baseTime.Add(time.Duration(i+1) * SlotLength),
			ValueIncVAT: price,
		})
	}
	return series
}

func TestFind(t *testing.T) {
	tests := []struct {
		name      string
		series    RateSeries
		cfg       SearchConfig
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantAvg   float64
		wantErr   error
	}{
		{
			name:      "cheapest hour at the start",
			series:    buildSeries(10, 10, 30, 30),
			cfg:       SearchConfig{DurationHours: 1},
			now:       baseTime,
			wantStart: baseTime,
			wantEnd:   baseTime.Add(time.Hour),
			wantAvg:   10,
		},
		{
			name:    "ceiling excludes every window",
			series:  buildSeries(10, 10, 30, 30),
			cfg:     SearchConfig{DurationHours: 1, MaxPrice: ptrFloat(5)},
			now:     baseTime,
			wantErr: ErrNoQualifyingPeriod,
		},
		{
			name:    "single slot for a one hour window",
			series:  buildSeries(10),
			cfg:     SearchConfig{DurationHours: 1},
			now:     baseTime,
			wantErr: ErrInsufficientData,
		},
		{
			name:      "window ending exactly now still counts",
			series:    buildSeries(10, 10, 30, 30),
			cfg:       SearchConfig{DurationHours: 1},
			now:       baseTime.Add(time.Hour),
			wantStart: baseTime,
			wantEnd:   baseTime.Add(time.Hour),
			wantAvg:   10,
		},
		{
			name:      "fully elapsed window is skipped",
			series:    buildSeries(10, 10, 30, 30),
			cfg:       SearchConfig{DurationHours: 1},
			now:       baseTime.Add(61 * time.Minute),
			wantStart: baseTime.Add(30 * time.Minute),
			wantEnd:   baseTime.Add(90 * time.Minute),
			wantAvg:   20,
		},
		{
			name:      "ties keep the earliest start",
			series:    buildSeries(5, 5, 5, 5),
			cfg:       SearchConfig{DurationHours: 0.5},
			now:       baseTime,
			wantStart: baseTime,
			wantEnd:   baseTime.Add(30 * time.Minute),
			wantAvg:   5,
		},
		{
			name:      "negative prices",
			series:    buildSeries(-2, -4, 3),
			cfg:       SearchConfig{DurationHours: 1},
			now:       baseTime,
			wantStart: baseTime,
			wantEnd:   baseTime.Add(time.Hour),
			wantAvg:   -3,
		},
		{
			name:      "ceiling compares the scaled price",
			series:    buildSeries(0.10, 0.10, 0.30, 0.30),
			cfg:       SearchConfig{DurationHours: 1, Multiplier: 100, MaxPrice: ptrFloat(15)},
			now:       baseTime,
			wantStart: baseTime,
			wantEnd:   baseTime.Add(time.Hour),
			wantAvg:   0.10,
		},
		{
			name:    "scaled price above ceiling",
			series:  buildSeries(0.10, 0.10, 0.30, 0.30),
			cfg:     SearchConfig{DurationHours: 1, Multiplier: 100, MaxPrice: ptrFloat(9.99)},
			now:     baseTime,
			wantErr: ErrNoQualifyingPeriod,
		},
		{
			name:      "cheapest window in the middle",
			series:    buildSeries(20, 15, 8, 9, 25, 30),
			cfg:       SearchConfig{DurationHours: 1},
			now:       baseTime,
			wantStart: baseTime.Add(time.Hour),
			wantEnd:   baseTime.Add(2 * time.Hour),
			wantAvg:   8.5,
		},
		{
			name:    "everything in the past",
			series:  buildSeries(1, 2, 3),
			cfg:     SearchConfig{DurationHours: 0.5},
			now:     baseTime.Add(3 * time.Hour),
			wantErr: ErrNoQualifyingPeriod,
		},
	}

	for _, tt := range tests {
		for _, mode := range []struct {
			name   string
			finder *Finder
		}{
			{"sliding", NewFinder(nil)},
			{"brute force", NewFinder(nil, WithBruteForce())},
		} {
			t.Run(tt.name+"/"+mode.name, func(t *testing.T) {
				best, err := mode.finder.Find(tt.series, tt.cfg, tt.now)

				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("expected error %v, got %v", tt.wantErr, err)
					}
					if best != nil {
						t.Errorf("expected no period, got %+v", best)
					}
					return
				}

				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !best.Start.Equal(tt.wantStart) || !best.End.Equal(tt.wantEnd) {
					t.Errorf("got window %s-%s, want %s-%s",
						best.Start.Format("15:04"), best.End.Format("15:04"),
						tt.wantStart.Format("15:04"), tt.wantEnd.Format("15:04"))
				}
				if math.Abs(best.AveragePrice-tt.wantAvg) > 1e-9 {
					t.Errorf("average price = %v, want %v", best.AveragePrice, tt.wantAvg)
				}
			})
		}
	}
}

func TestFindInsufficientDataReportsHours(t *testing.T) {
	_, err := FindCheapest(buildSeries(10), SearchConfig{DurationHours: 1}, baseTime)

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.AvailableHours() != 0.5 {
		t.Errorf("available hours = %v, want 0.5", insufficient.AvailableHours())
	}
	if errors.Is(err, ErrNoQualifyingPeriod) {
		t.Errorf("insufficient data must not match ErrNoQualifyingPeriod")
	}
}

func TestFindRejectsDurationBeforeDataAccess(t *testing.T) {
	for _, d := range []float64{0, -1, 0.3, 1.25, math.NaN(), math.Inf(1), math.Inf(-1)} {
		// a nil series would be reported as insufficient if it were inspected
		_, err := FindCheapest(nil, SearchConfig{DurationHours: d}, baseTime)
		if !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("duration %v: expected ErrInvalidDuration, got %v", d, err)
		}
	}
}

func TestSlotsFor(t *testing.T) {
	tests := []struct {
		hours float64
		want  int
	}{
		{0.5, 1},
		{1, 2},
		{1.5, 3},
		{4, 8},
		{24, 48},
	}

	for _, tt := range tests {
		got, err := SlotsFor(tt.hours)
		if err != nil {
			t.Errorf("SlotsFor(%v) unexpected error: %v", tt.hours, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SlotsFor(%v) = %d, want %d", tt.hours, got, tt.want)
		}
	}
}

func TestFindSkipsNonFiniteWindows(t *testing.T) {
	series := buildSeries(1, math.NaN(), 5, 6)

	for _, f := range []*Finder{NewFinder(nil), NewFinder(nil, WithBruteForce())} {
		best, err := f.Find(series, SearchConfig{DurationHours: 1}, baseTime)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !best.Start.Equal(baseTime.Add(time.Hour)) {
			t.Errorf("expected window starting at 01:00, got %s", best.Start.Format("15:04"))
		}
	}
}

func TestSlidingMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sliding := NewFinder(nil)
	brute := NewFinder(nil, WithBruteForce())

	for trial := 0; trial < 500; trial++ {
		prices := make([]float64, rng.Intn(60))
		for i := range prices {
			prices[i] = math.Round((rng.Float64()*60-10)*100) / 100
		}
		series := buildSeries(prices...)

		cfg := SearchConfig{
			DurationHours: float64(1+rng.Intn(8)) * 0.5,
			Multiplier:    []float64{0, 1, 100}[rng.Intn(3)],
		}
		if rng.Intn(2) == 0 {
			cfg.MaxPrice = ptrFloat(float64(rng.Intn(40)) * cfg.scale())
		}
		now := baseTime.Add(time.Duration(rng.Intn(len(prices)+1)) * SlotLength)

		a, errA := sliding.Find(series, cfg, now)
		b, errB := brute.Find(series, cfg, now)

		if fmt.Sprint(errA) != fmt.Sprint(errB) {
			t.Fatalf("trial %d: errors differ: sliding=%v brute=%v", trial, errA, errB)
		}
		if (a == nil) != (b == nil) {
			t.Fatalf("trial %d: results differ: sliding=%+v brute=%+v", trial, a, b)
		}
		if a != nil && *a != *b {
			t.Fatalf("trial %d: results differ: sliding=%+v brute=%+v", trial, *a, *b)
		}

		if a != nil {
			if a.End.Before(now) {
				t.Errorf("trial %d: window ends %s before now %s", trial, a.End, now)
			}
			if a.Start.After(a.End) {
				t.Errorf("trial %d: window starts after it ends", trial)
			}
			if cfg.MaxPrice != nil && a.ScaledPrice > *cfg.MaxPrice+1e-9 {
				t.Errorf("trial %d: scaled price %v above ceiling %v", trial, a.ScaledPrice, *cfg.MaxPrice)
			}
		}
	}
}

func TestFindIsIdempotent(t *testing.T) {
	series := buildSeries(12, 7, 9, 3, 3, 11)
	cfg := SearchConfig{DurationHours: 1, Multiplier: 100}

	first, err := FindCheapest(series, cfg, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := FindCheapest(series, cfg, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first != *second {
		t.Errorf("results differ: %+v vs %+v", *first, *second)
	}
}

func ptrFloat(f float64) *float64 {
	return &f
}
