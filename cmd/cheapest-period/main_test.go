package main

import (
	"strings"
	"testing"
	"time"

	"github.com/awaistahir/cheapest-period/internal/card"
	"github.com/awaistahir/cheapest-period/internal/engine"
)

func TestPrintResult(t *testing.T) {
	start := time.Date(2030, 1, 15, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		result card.Result
		want   []string
	}{
		{
			name: "best period over midnight",
			result: card.Result{
				Outcome:       card.OutcomeBest,
				DurationHours: 1.5,
				Period:        &engine.BestPeriod{Start: start, End: start.Add(90 * time.Minute)},
				Tier:          card.TierLow,
				Display: &card.Display{
					StartDate: "Tue 15 Jan", StartTime: "23:30",
					EndDate: "Wed 16 Jan", EndTime: "01:00",
					TimeUntil: "2 hours", Price: "9.87", Unit: "p/kWh",
				},
			},
			want: []string{
				"Cheapest 1.5 hour period:",
				"Start: Tue 15 Jan, 23:30",
				"End: Wed 16 Jan, 01:00",
				"Starts in: 2 hours",
				"Average Price: 9.87p/kWh (price-low)",
			},
		},
		{
			name:   "message only",
			result: card.Result{Outcome: card.OutcomeNoPeriod, Message: "No suitable 2 hour period found."},
			want:   []string{"No suitable 2 hour period found."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			printResult(&buf, tt.result)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}
