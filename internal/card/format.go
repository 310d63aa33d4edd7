package card

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Tier is the CSS class used to colour a price
type Tier string

const (
	TierNegative Tier = "price-negative"
	TierLow      Tier = "price-low"
	TierMedium   Tier = "price-medium"
	TierHigh     Tier = "price-high"
)

// Thresholds are the tier limits in display units, before scaling
type Thresholds struct {
	Low    *float64
	Medium *float64
	High   *float64
}

// Classify maps a scaled price onto a tier. The thresholds are scaled by the
// multiplier before comparison; unset thresholds are skipped.
func Classify(scaled float64, th Thresholds, multiplier float64) Tier {
	if multiplier == 0 {
		multiplier = 1
	}
	switch {
	case scaled <= 0:
		return TierNegative
	case th.High != nil && scaled > *th.High*multiplier:
		return TierHigh
	case th.Medium != nil && scaled > *th.Medium*multiplier:
		return TierMedium
	default:
		return TierLow
	}
}

// TimeUntil describes how long until start, e.g. "1 hour 5 minutes"
func TimeUntil(start, now time.Time) string {
	d := start.Sub(now)
	if d <= time.Minute {
		return "Now"
	}

	total := int(d / time.Minute)
	hours, minutes := total/60, total%60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%s %s", plural(hours, "hour"), plural(minutes, "minute"))
	case hours > 0:
		return plural(hours, "hour")
	default:
		return plural(minutes, "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// regions that write the month before the day
var monthFirst = map[language.Region]bool{
	language.MustParseRegion("US"): true,
	language.MustParseRegion("CA"): true,
	language.MustParseRegion("PH"): true,
}

// Formatter renders times, dates and prices for one locale
type Formatter struct {
	printer    *message.Printer
	monthFirst bool
	hour12     bool
	loc        *time.Location
}

// NewFormatter builds a formatter for a BCP 47 locale; unknown tags fall back to en-GB
func NewFormatter(locale string, hour12 bool, loc *time.Location) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BritishEnglish
	}
	if loc == nil {
		loc = time.Local
	}
	region, _ := tag.Region()
	return &Formatter{
		printer:    message.NewPrinter(tag),
		monthFirst: monthFirst[region],
		hour12:     hour12,
		loc:        loc,
	}
}

// Time formats the clock time
func (f *Formatter) Time(t time.Time) string {
	if f.hour12 {
		return t.In(f.loc).Format("03:04 PM")
	}
	return t.In(f.loc).Format("15:04")
}

// Date formats the weekday, day and short month
func (f *Formatter) Date(t time.Time) string {
	if f.monthFirst {
		return t.In(f.loc).Format("Mon, Jan 2")
	}
	return t.In(f.loc).Format("Mon 2 Jan")
}

// SameDay reports whether a and b fall on the same local calendar day
func (f *Formatter) SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(f.loc).Date()
	by, bm, bd := b.In(f.loc).Date()
	return ay == by && am == bm && ad == bd
}

// Price rounds half away from zero to places decimals and prints it with the
// locale's decimal separator
func (f *Formatter) Price(v float64, places int) string {
	rounded := decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
	return f.printer.Sprintf("%.*f", places, rounded)
}
