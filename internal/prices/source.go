package prices

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/awaistahir/cheapest-period/internal/engine"
	"github.com/awaistahir/cheapest-period/internal/hass"
)

// Entity IDs published by Source, mirroring the Home Assistant Octopus integration
const (
	DefaultCurrentEntity = "octopus.current_rates"
	DefaultFutureEntity  = "octopus.future_rates"
)

var hundred = decimal.NewFromInt(100)

// RateCache stores fetched days of rates
type RateCache interface {
	CachedRates(tariff string, day time.Time) ([]engine.RateInterval, error)
	CacheRates(tariff string, day time.Time, rates []engine.RateInterval) error
}

// Source exposes today's and tomorrow's Agile rates as two entities whose
// rates attribute is in GBP/kWh, like the Home Assistant integration.
type Source struct {
	client        *OctopusClient
	cache         RateCache
	logger        *zap.Logger
	CurrentEntity string
	FutureEntity  string
	now           func() time.Time
}

// NewSource creates a source; cache may be nil
func NewSource(client *OctopusClient, cache RateCache, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		client:        client,
		cache:         cache,
		logger:        logger,
		CurrentEntity: DefaultCurrentEntity,
		FutureEntity:  DefaultFutureEntity,
		now:           time.Now,
	}
}

// Snapshot builds the requested entities. Tomorrow's rates are only published
// in the afternoon, so failing to fetch them leaves the future entity absent.
func (s *Source) Snapshot(ctx context.Context, entityIDs ...string) (hass.Snapshot, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	snap := make(hass.Snapshot, 2)
	for _, id := range entityIDs {
		switch id {
		case s.CurrentEntity:
			rates, err := s.day(ctx, today)
			if err != nil {
				return snap, err
			}
			if err := s.put(snap, id, rates, now); err != nil {
				return snap, err
			}
		case s.FutureEntity:
			rates, err := s.day(ctx, today.Add(24*time.Hour))
			if err != nil {
				s.logger.Debug("future rates unavailable", zap.Error(err))
				continue
			}
			if len(rates) == 0 {
				continue
			}
			if err := s.put(snap, id, rates, now); err != nil {
				return snap, err
			}
		}
	}
	return snap, nil
}

// day returns rates for a UTC day in pence, preferring the cache
func (s *Source) day(ctx context.Context, day time.Time) ([]engine.RateInterval, error) {
	tariff := s.client.TariffCode()

	if s.cache != nil {
		cached, err := s.cache.CachedRates(tariff, day)
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	rates, err := s.client.HalfHourly(ctx, day)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(rates) > 0 {
		if err := s.cache.CacheRates(tariff, day, rates); err != nil {
			s.logger.Warn("failed to cache rates", zap.String("tariff", tariff), zap.Error(err))
		}
	}
	return rates, nil
}

func (s *Source) put(snap hass.Snapshot, entityID string, pence []engine.RateInterval, now time.Time) error {
	pounds := make([]engine.RateInterval, len(pence))
	for i, r := range pence {
		pounds[i] = r
		pounds[i].ValueIncVAT = decimal.NewFromFloat(r.ValueIncVAT).Div(hundred).InexactFloat64()
	}

	payload, err := json.Marshal(pounds)
	if err != nil {
		return err
	}

	snap[entityID] = &hass.EntityState{
		EntityID:    entityID,
		State:       s.client.TariffCode(),
		Attributes:  map[string]json.RawMessage{hass.RatesAttribute: payload},
		LastUpdated: now,
	}
	return nil
}
