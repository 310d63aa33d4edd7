// Package hass reads entity snapshots from Home Assistant.
package hass

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/awaistahir/cheapest-period/internal/engine"
)

// RatesAttribute is the attribute holding the half-hourly rates of an entity
const RatesAttribute = "rates"

// ErrMalformedRates is returned when the rates attribute is not a list of records
var ErrMalformedRates = errors.New("malformed rates attribute")

// EntityState is a read-only view of one Home Assistant entity
type EntityState struct {
	EntityID    string                     `json:"entity_id"`
	State       string                     `json:"state"`
	Attributes  map[string]json.RawMessage `json:"attributes"`
	LastUpdated time.Time                  `json:"last_updated"`
}

// Snapshot maps entity IDs to their state; missing entities are absent keys
type Snapshot map[string]*EntityState

// StateSource supplies snapshots of named entities on demand
type StateSource interface {
	Snapshot(ctx context.Context, entityIDs ...string) (Snapshot, error)
}

// Rates decodes the rates attribute of an entity.
// A missing entity or attribute yields nil without error. Records whose
// timestamps cannot be parsed are skipped and counted.
func (s Snapshot) Rates(entityID string) ([]engine.RateInterval, int, error) {
	if entityID == "" {
		return nil, 0, nil
	}
	state, ok := s[entityID]
	if !ok || state == nil {
		return nil, 0, nil
	}
	raw, ok := state.Attributes[RatesAttribute]
	if !ok {
		return nil, 0, nil
	}
	rates, skipped, err := DecodeRates(raw)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "entity %s", entityID)
	}
	return rates, skipped, nil
}

type rawRate struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	ValueIncVAT *float64 `json:"value_inc_vat"`
}

// DecodeRates parses a JSON list of rate records
func DecodeRates(raw json.RawMessage) ([]engine.RateInterval, int, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, 0, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, 0, errors.Wrap(ErrMalformedRates, err.Error())
	}

	rates := make([]engine.RateInterval, 0, len(records))
	skipped := 0
	for _, rec := range records {
		var r rawRate
		if err := json.Unmarshal(rec, &r); err != nil || r.ValueIncVAT == nil {
			skipped++
			continue
		}
		start, err := parseTimestamp(r.Start)
		if err != nil {
			skipped++
			continue
		}
		end, err := parseTimestamp(r.End)
		if err != nil {
			skipped++
			continue
		}
		rates = append(rates, engine.RateInterval{
			Start:       start,
			End:         end,
			ValueIncVAT: *r.ValueIncVAT,
		})
	}

	return rates, skipped, nil
}

// Home Assistant serialises datetimes with isoformat(), sometimes with a space separator
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}
