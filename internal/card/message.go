package card

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultNoPeriodMessage is shown when no period is found
const DefaultNoPeriodMessage = "No suitable {{ durationHours }} hour period found{{ maxPrice !== undefined ? ' below {{ maxPrice }}{{ unitstr }}' : '' }}."

// Placeholders understood by RenderMessage
const (
	placeholderDuration = "{{ durationHours }}"
	placeholderMaxPrice = "{{ maxPrice }}"
	placeholderUnit     = "{{ unitstr }}"
)

// maxPriceSegment matches the clause kept only when a max price is configured
var maxPriceSegment = regexp.MustCompile(`\{\{ maxPrice !== undefined \? '(.*?)' : '' \}\}`)

// MessageParams are the values substituted into a message template
type MessageParams struct {
	DurationHours float64
	MaxPrice      *float64
	UnitStr       string
	RoundUnits    int
}

// RenderMessage expands a no-period message template.
// The duration is substituted first. With a max price the conditional clause
// is unwrapped and the max price and unit placeholders filled; without one
// the clause is removed and the other placeholders are left alone.
func RenderMessage(tmpl string, p MessageParams) string {
	msg := strings.ReplaceAll(tmpl, placeholderDuration, formatNumber(p.DurationHours))

	if p.MaxPrice == nil {
		return maxPriceSegment.ReplaceAllString(msg, "")
	}

	msg = maxPriceSegment.ReplaceAllString(msg, "${1}")
	msg = strings.ReplaceAll(msg, placeholderMaxPrice, formatFixed(*p.MaxPrice, p.RoundUnits))
	msg = strings.ReplaceAll(msg, placeholderUnit, p.UnitStr)
	return msg
}

// formatNumber prints a float without trailing zeros: 1 -> "1", 1.5 -> "1.5"
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatFixed prints v rounded to a fixed number of decimals, half away from zero
func formatFixed(v float64, places int) string {
	return decimal.NewFromFloat(v).StringFixed(int32(places))
}
