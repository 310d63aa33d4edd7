// Package app wires configuration, sources, cards and storage together for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/awaistahir/cheapest-period/internal/card"
	"github.com/awaistahir/cheapest-period/internal/config"
	"github.com/awaistahir/cheapest-period/internal/hass"
	"github.com/awaistahir/cheapest-period/internal/prices"
	"github.com/awaistahir/cheapest-period/internal/store"
)

// BuildSource returns the state source selected by cfg. The MQTT source is
// connected before it is returned and disconnects when ctx ends. cache may be
// nil and is only used by the octopus source.
func BuildSource(ctx context.Context, cfg config.Source, cache prices.RateCache, logger *zap.Logger) (hass.StateSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case config.SourceREST:
		return hass.NewRESTClient(cfg.URL, cfg.Token), nil

	case config.SourceMQTT:
		src := hass.NewStatestreamSource(hass.StatestreamOptions{
			Broker:    cfg.Broker,
			ClientID:  cfg.ClientID,
			Username:  cfg.Username,
			Password:  cfg.Password,
			BaseTopic: cfg.BaseTopic,
		}, logger)
		if err := src.Start(ctx); err != nil {
			return nil, err
		}
		return src, nil

	case config.SourceOctopus:
		var opts []prices.ClientOption
		if cfg.Product != "" {
			opts = append(opts, prices.WithProduct(cfg.Product))
		}
		if !cfg.Cache {
			cache = nil
		}
		return prices.NewSource(prices.NewOctopusClient(cfg.Region, opts...), cache, logger), nil

	case config.SourceFile:
		return hass.NewFileSource(cfg.Path), nil
	}

	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

// EvaluationRecorder persists card evaluations
type EvaluationRecorder interface {
	RecordEvaluation(e *store.Evaluation) error
}

// Recorder returns a card observer that appends every evaluation to rec
func Recorder(rec EvaluationRecorder, logger *zap.Logger) card.Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(name string, r card.Result) {
		if err := rec.RecordEvaluation(EvaluationFromResult(name, r)); err != nil {
			logger.Warn("recording evaluation", zap.String("card", name), zap.Error(err))
		}
	}
}

// EvaluationFromResult converts a card result into a history row
func EvaluationFromResult(name string, r card.Result) *store.Evaluation {
	e := &store.Evaluation{
		Card:        name,
		EvaluatedAt: r.EvaluatedAt,
		Outcome:     string(r.Outcome),
		Message:     r.Message,
	}
	if p := r.Period; p != nil {
		start, end := p.Start, p.End
		avg, scaled := p.AveragePrice, p.ScaledPrice
		e.Start, e.End = &start, &end
		e.AveragePrice, e.ScaledPrice = &avg, &scaled
	}
	return e
}

// Pruner drops cached rate days
type Pruner interface {
	PruneRates(before time.Time) (int64, error)
}

// Refresher periodically updates cards; each card's own throttle decides
// whether it re-evaluates on a given tick
type Refresher struct {
	Cards    []*card.Card
	Interval time.Duration
	Pruner   Pruner // optional
	Logger   *zap.Logger

	now       func() time.Time
	lastPrune time.Time
}

// Run updates all cards immediately and then on every tick until ctx ends
func (r *Refresher) Run(ctx context.Context) {
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	for _, c := range r.Cards {
		if c.Update(ctx) {
			if res, ok := c.Last(); ok {
				r.Logger.Debug("card evaluated",
					zap.String("card", c.Name()),
					zap.String("outcome", string(res.Outcome)))
			}
		}
	}
	r.prune(r.now())
}

// prune keeps yesterday's and later days, once per UTC day
func (r *Refresher) prune(now time.Time) {
	if r.Pruner == nil {
		return
	}
	u := now.UTC()
	today := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if !r.lastPrune.Before(today) {
		return
	}
	r.lastPrune = today

	n, err := r.Pruner.PruneRates(today.AddDate(0, 0, -1))
	if err != nil {
		r.Logger.Warn("pruning rate cache", zap.Error(err))
		return
	}
	if n > 0 {
		r.Logger.Info("pruned rate cache", zap.Int64("days", n))
	}
}
