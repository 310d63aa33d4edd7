package card

import "testing"

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		params MessageParams
		want   string
	}{
		{
			name:   "default without max price",
			tmpl:   DefaultNoPeriodMessage,
			params: MessageParams{DurationHours: 1.5, UnitStr: "p/kWh", RoundUnits: 2},
			want:   "No suitable 1.5 hour period found.",
		},
		{
			name:   "default with max price",
			tmpl:   DefaultNoPeriodMessage,
			params: MessageParams{DurationHours: 2, MaxPrice: ptr(12.3), UnitStr: "p/kWh", RoundUnits: 2},
			want:   "No suitable 2 hour period found below 12.30p/kWh.",
		},
		{
			name:   "max price rounded",
			tmpl:   DefaultNoPeriodMessage,
			params: MessageParams{DurationHours: 3, MaxPrice: ptr(7.456), UnitStr: "c", RoundUnits: 1},
			want:   "No suitable 3 hour period found below 7.5c.",
		},
		{
			name:   "placeholders outside the clause need a max price",
			tmpl:   "Nothing under {{ maxPrice }}{{ unitstr }} for {{ durationHours }}h",
			params: MessageParams{DurationHours: 4, UnitStr: "p"},
			want:   "Nothing under {{ maxPrice }}{{ unitstr }} for 4h",
		},
		{
			name:   "custom template with max price",
			tmpl:   "{{ durationHours }}h{{ maxPrice !== undefined ? ' (cap {{ maxPrice }})' : '' }} unavailable, {{ unitstr }}",
			params: MessageParams{DurationHours: 0.5, MaxPrice: ptr(-1.0), UnitStr: "p", RoundUnits: 0},
			want:   "0.5h (cap -1) unavailable, p",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderMessage(tt.tmpl, tt.params); got != tt.want {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
