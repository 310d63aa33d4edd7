package hass

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRates(t *testing.T) {
	raw := json.RawMessage(`[
		{"start": "2030-01-15T00:00:00Z", "end": "2030-01-15T00:30:00Z", "value_inc_vat": 0.1523},
		{"start": "2030-01-15T00:30:00+00:00", "end": "2030-01-15T01:00:00+00:00", "value_inc_vat": -0.02, "is_capped": false},
		{"start": "2030-01-15 01:00:00+00:00", "end": "2030-01-15 01:30:00+00:00", "value_inc_vat": 0}
	]`)

	rates, skipped, err := DecodeRates(raw)

	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rates, 3)
	assert.Equal(t, 0.1523, rates[0].ValueIncVAT)
	assert.Equal(t, -0.02, rates[1].ValueIncVAT)
	assert.True(t, rates[2].Start.Equal(time.Date(2030, 1, 15, 1, 0, 0, 0, time.UTC)))
}

func TestDecodeRates_SkipsBadRecords(t *testing.T) {
	raw := json.RawMessage(`[
		{"start": "yesterday", "end": "2030-01-15T00:30:00Z", "value_inc_vat": 1},
		{"start": "2030-01-15T00:00:00Z", "end": "2030-01-15T00:30:00Z"},
		"not a record",
		{"start": "2030-01-15T00:30:00Z", "end": "2030-01-15T01:00:00Z", "value_inc_vat": 2}
	]`)

	rates, skipped, err := DecodeRates(raw)

	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, rates, 1)
	assert.Equal(t, 2.0, rates[0].ValueIncVAT)
}

func TestDecodeRates_Malformed(t *testing.T) {
	_, _, err := DecodeRates(json.RawMessage(`{"start": "2030-01-15T00:00:00Z"}`))

	assert.True(t, errors.Is(err, ErrMalformedRates))
}

func TestDecodeRates_Null(t *testing.T) {
	rates, _, err := DecodeRates(json.RawMessage(`null`))

	assert.NoError(t, err)
	assert.Nil(t, rates)
}

func TestSnapshotRates(t *testing.T) {
	snap := Snapshot{
		"event.current_rates": {
			EntityID: "event.current_rates",
			Attributes: map[string]json.RawMessage{
				"rates": json.RawMessage(`[{"start": "2030-01-15T00:00:00Z", "end": "2030-01-15T00:30:00Z", "value_inc_vat": 0.2}]`),
			},
		},
		"event.no_rates": {
			EntityID:   "event.no_rates",
			Attributes: map[string]json.RawMessage{"friendly_name": json.RawMessage(`"x"`)},
		},
		"event.broken": {
			EntityID:   "event.broken",
			Attributes: map[string]json.RawMessage{"rates": json.RawMessage(`"oops"`)},
		},
	}

	rates, _, err := snap.Rates("event.current_rates")
	require.NoError(t, err)
	assert.Len(t, rates, 1)

	rates, _, err = snap.Rates("event.no_rates")
	assert.NoError(t, err)
	assert.Nil(t, rates)

	rates, _, err = snap.Rates("event.missing")
	assert.NoError(t, err)
	assert.Nil(t, rates)

	rates, _, err = snap.Rates("")
	assert.NoError(t, err)
	assert.Nil(t, rates)

	_, _, err = snap.Rates("event.broken")
	assert.True(t, errors.Is(err, ErrMalformedRates))
	assert.Contains(t, err.Error(), "event.broken")
}
