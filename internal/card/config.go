package card

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied to unset configuration fields
const (
	DefaultTitle           = "Cheapest Period"
	DefaultUnitStr         = "p/kWh"
	DefaultMultiplier      = 100.0
	DefaultRoundUnits      = 2
	DefaultLowLimit        = 5.0
	DefaultMediumLimit     = 20.0
	DefaultHighLimit       = 30.0
	DefaultRefreshInterval = 60 * time.Second
	DefaultLocale          = "en-GB"
)

// Config describes one cheapest-period card.
// Keys follow the Lovelace card options so existing YAML can be reused.
type Config struct {
	Name                       string   `mapstructure:"name" json:"name"`
	Title                      string   `mapstructure:"title" json:"title"`
	CurrentEntity              string   `mapstructure:"currentEntity" json:"currentEntity,omitempty"`
	FutureEntity               string   `mapstructure:"futureEntity" json:"futureEntity,omitempty"`
	DurationHours              string   `mapstructure:"durationHours" json:"durationHours"`
	MaxPrice                   *float64 `mapstructure:"maxPrice" json:"maxPrice,omitempty"`
	Multiplier                 *float64 `mapstructure:"multiplier" json:"multiplier,omitempty"`
	RoundUnits                 *int     `mapstructure:"roundUnits" json:"roundUnits,omitempty"`
	UnitStr                    *string  `mapstructure:"unitstr" json:"unitstr,omitempty"`
	Hour12                     bool     `mapstructure:"hour12" json:"hour12"`
	LowLimit                   *float64 `mapstructure:"lowlimit" json:"lowlimit,omitempty"`
	MediumLimit                *float64 `mapstructure:"mediumlimit" json:"mediumlimit,omitempty"`
	HighLimit                  *float64 `mapstructure:"highlimit" json:"highlimit,omitempty"`
	NoPeriodMessage            string   `mapstructure:"noPeriodMessage" json:"noPeriodMessage,omitempty"`
	CardRefreshIntervalSeconds int      `mapstructure:"cardRefreshIntervalSeconds" json:"cardRefreshIntervalSeconds,omitempty"`
	Locale                     string   `mapstructure:"locale" json:"locale,omitempty"`
	Timezone                   string   `mapstructure:"timezone" json:"timezone,omitempty"`
}

// ConfigError rejects a card configuration at setup time
type ConfigError struct {
	Card   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Card == "" {
		return e.Reason
	}
	return fmt.Sprintf("card %q: %s", e.Card, e.Reason)
}

// Validate checks the fields that have no default
func (c Config) Validate() error {
	if c.CurrentEntity == "" && c.FutureEntity == "" {
		return &ConfigError{Card: c.Name, Reason: "You need to define at least one of currentEntity or futureEntity"}
	}
	if strings.TrimSpace(c.DurationHours) == "" {
		return &ConfigError{Card: c.Name, Reason: "You need to define durationHours"}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return &ConfigError{Card: c.Name, Reason: fmt.Sprintf("unknown timezone %q", c.Timezone)}
		}
	}
	return nil
}

// WithDefaults returns a copy with every optional field filled in
func (c Config) WithDefaults() Config {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Name == "" {
		c.Name = slug(c.Title + " " + c.DurationHours)
	}
	if c.Multiplier == nil {
		c.Multiplier = ptr(DefaultMultiplier)
	}
	if c.RoundUnits == nil {
		c.RoundUnits = ptr(DefaultRoundUnits)
	}
	if c.UnitStr == nil {
		c.UnitStr = ptr(DefaultUnitStr)
	}
	if c.LowLimit == nil {
		c.LowLimit = ptr(DefaultLowLimit)
	}
	if c.MediumLimit == nil {
		c.MediumLimit = ptr(DefaultMediumLimit)
	}
	if c.HighLimit == nil {
		c.HighLimit = ptr(DefaultHighLimit)
	}
	if c.NoPeriodMessage == "" {
		c.NoPeriodMessage = DefaultNoPeriodMessage
	}
	if c.CardRefreshIntervalSeconds <= 0 {
		c.CardRefreshIntervalSeconds = int(DefaultRefreshInterval / time.Second)
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	return c
}

// RefreshInterval is the minimum time between two evaluations
func (c Config) RefreshInterval() time.Duration {
	if c.CardRefreshIntervalSeconds <= 0 {
		return DefaultRefreshInterval
	}
	return time.Duration(c.CardRefreshIntervalSeconds) * time.Second
}

// multiplier returns the price scale; zero means unscaled
func (c Config) multiplier() float64 {
	if c.Multiplier == nil || *c.Multiplier == 0 {
		return 1
	}
	return *c.Multiplier
}

func (c Config) roundUnits() int {
	if c.RoundUnits == nil || *c.RoundUnits < 0 {
		return DefaultRoundUnits
	}
	return *c.RoundUnits
}

func (c Config) unitStr() string {
	if c.UnitStr == nil {
		return ""
	}
	return *c.UnitStr
}

func (c Config) thresholds() Thresholds {
	return Thresholds{Low: c.LowLimit, Medium: c.MediumLimit, High: c.HighLimit}
}

func (c Config) location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func ptr[T any](v T) *T {
	return &v
}
