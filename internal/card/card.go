package card

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/awaistahir/cheapest-period/internal/engine"
	"github.com/awaistahir/cheapest-period/internal/hass"
)

// Outcome is the kind of result an evaluation produced
type Outcome string

const (
	OutcomeBest             Outcome = "best"
	OutcomeInvalidDuration  Outcome = "invalid_duration"
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeNoPeriod         Outcome = "no_period"
)

const invalidDurationMessage = "Invalid durationHours configured. Must be a positive multiple of 0.5."

// Display holds the formatted strings for a best period
type Display struct {
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time"`
	EndDate   string `json:"end_date,omitempty"` // empty when the period ends on the start day
	EndTime   string `json:"end_time"`
	TimeUntil string `json:"time_until"`
	Price     string `json:"price"`
	Unit      string `json:"unit"`
}

// Result is the outcome of one evaluation
type Result struct {
	Card           string             `json:"card"`
	Outcome        Outcome            `json:"outcome"`
	EvaluatedAt    time.Time          `json:"evaluated_at"`
	DurationHours  float64            `json:"duration_hours,omitempty"`
	Period         *engine.BestPeriod `json:"period,omitempty"`
	Tier           Tier               `json:"tier,omitempty"`
	Display        *Display           `json:"display,omitempty"`
	Message        string             `json:"message,omitempty"`
	AvailableHours float64            `json:"available_hours,omitempty"`
}

// Observer is notified after every evaluation
type Observer func(card string, r Result)

// Option configures a Card
type Option func(*Card)

// WithLogger sets the card logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Card) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Card) {
		c.now = now
	}
}

// WithFinder sets the window search implementation
func WithFinder(f *engine.Finder) Option {
	return func(c *Card) {
		c.finder = f
	}
}

// WithObserver registers a callback run after each evaluation
func WithObserver(o Observer) Option {
	return func(c *Card) {
		c.observers = append(c.observers, o)
	}
}

// Card finds and presents the cheapest period for one configuration
type Card struct {
	cfg       Config
	source    hass.StateSource
	finder    *engine.Finder
	formatter *Formatter
	logger    *zap.Logger
	now       func() time.Time
	observers []Observer

	mu          sync.Mutex
	lastRefresh time.Time
	last        *Result
}

// New validates cfg and returns a card reading from source
func New(cfg Config, source hass.StateSource, opts ...Option) (*Card, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	c := &Card{
		cfg:    cfg,
		source: source,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.finder == nil {
		c.finder = engine.NewFinder(c.logger)
	}
	c.logger = c.logger.With(zap.String("card", cfg.Name))
	c.formatter = NewFormatter(cfg.Locale, cfg.Hour12, cfg.location())
	return c, nil
}

// Name returns the card name used in URLs and history
func (c *Card) Name() string {
	return c.cfg.Name
}

// Config returns the effective configuration with defaults applied
func (c *Card) Config() Config {
	return c.cfg
}

// Size is the layout height hint in rows
func (c *Card) Size() int {
	return 4
}

// Last returns the most recent result, if any
func (c *Card) Last() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Update evaluates the card unless the last refresh was less than the
// refresh interval ago. It reports whether an evaluation ran.
func (c *Card) Update(ctx context.Context) bool {
	now := c.now()

	c.mu.Lock()
	if !c.lastRefresh.IsZero() && now.Sub(c.lastRefresh) < c.cfg.RefreshInterval() {
		c.mu.Unlock()
		return false
	}
	c.lastRefresh = now
	c.mu.Unlock()

	c.refresh(ctx, now)
	return true
}

// Refresh evaluates the card now, ignoring the throttle
func (c *Card) Refresh(ctx context.Context) Result {
	now := c.now()

	c.mu.Lock()
	c.lastRefresh = now
	c.mu.Unlock()

	return c.refresh(ctx, now)
}

func (c *Card) refresh(ctx context.Context, now time.Time) Result {
	snap, err := c.source.Snapshot(ctx, c.cfg.CurrentEntity, c.cfg.FutureEntity)
	if err != nil {
		c.logger.Warn("fetching entity states", zap.Error(err))
	}

	r := c.Evaluate(snap, now)

	c.mu.Lock()
	c.last = &r
	c.mu.Unlock()

	for _, o := range c.observers {
		o(c.cfg.Name, r)
	}
	return r
}

// Evaluate merges the rate entities in snap and searches them for the
// cheapest period. It never fails; every problem becomes an outcome.
func (c *Card) Evaluate(snap hass.Snapshot, now time.Time) Result {
	r := Result{Card: c.cfg.Name, EvaluatedAt: now}

	duration, err := strconv.ParseFloat(strings.TrimSpace(c.cfg.DurationHours), 64)
	if err == nil {
		_, err = engine.SlotsFor(duration)
	}
	if err != nil {
		c.logger.Debug("invalid duration", zap.String("durationHours", c.cfg.DurationHours))
		r.Outcome = OutcomeInvalidDuration
		r.Message = invalidDurationMessage
		return r
	}
	r.DurationHours = duration

	current := c.rates(snap, c.cfg.CurrentEntity)
	future := c.rates(snap, c.cfg.FutureEntity)
	series := engine.MergeRates(current, future, now)
	if !engine.Contiguous(series) {
		c.logger.Debug("rate series has gaps or overlaps", zap.Int("slots", len(series)))
	}

	search := engine.SearchConfig{
		DurationHours: duration,
		MaxPrice:      c.cfg.MaxPrice,
		Multiplier:    c.cfg.multiplier(),
	}
	best, err := c.finder.Find(series, search, now)

	var insufficient *engine.InsufficientDataError
	switch {
	case err == nil:
		r.Outcome = OutcomeBest
		r.Period = best
		r.Tier = Classify(best.ScaledPrice, c.cfg.thresholds(), search.Multiplier)
		r.Display = c.display(best, now)
	case errors.As(err, &insufficient):
		r.Outcome = OutcomeInsufficientData
		r.AvailableHours = insufficient.AvailableHours()
		r.Message = c.noPeriodMessage(duration) +
			fmt.Sprintf(" (Insufficient data: %s hours available)", formatNumber(r.AvailableHours))
	default:
		if !errors.Is(err, engine.ErrNoQualifyingPeriod) {
			c.logger.Warn("searching rates", zap.Error(err))
		}
		r.Outcome = OutcomeNoPeriod
		r.Message = c.noPeriodMessage(duration)
	}
	return r
}

// rates decodes one entity, treating a malformed attribute as absent
func (c *Card) rates(snap hass.Snapshot, entityID string) []engine.RateInterval {
	rates, skipped, err := snap.Rates(entityID)
	if err != nil {
		c.logger.Warn("ignoring rates", zap.String("entity", entityID), zap.Error(err))
		return nil
	}
	if skipped > 0 {
		c.logger.Debug("skipped malformed rate records", zap.String("entity", entityID), zap.Int("skipped", skipped))
	}
	return rates
}

func (c *Card) noPeriodMessage(duration float64) string {
	return RenderMessage(c.cfg.NoPeriodMessage, MessageParams{
		DurationHours: duration,
		MaxPrice:      c.cfg.MaxPrice,
		UnitStr:       c.cfg.unitStr(),
		RoundUnits:    c.cfg.roundUnits(),
	})
}

func (c *Card) display(best *engine.BestPeriod, now time.Time) *Display {
	f := c.formatter
	d := &Display{
		StartDate: f.Date(best.Start),
		StartTime: f.Time(best.Start),
		EndTime:   f.Time(best.End),
		TimeUntil: TimeUntil(best.Start, now),
		Price:     f.Price(best.ScaledPrice, c.cfg.roundUnits()),
		Unit:      c.cfg.unitStr(),
	}
	if !f.SameDay(best.Start, best.End) {
		d.EndDate = f.Date(best.End)
	}
	return d
}
