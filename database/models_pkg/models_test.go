package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sentinel/signals"
)

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

// Price fields must survive a JSON round trip without floating-point
// drift. 100.2001 and 0.1 are classic binary-float casualties.
func TestCaptureRowJSONRoundTrip(t *testing.T) {
	hitAt := time.Date(2026, 3, 2, 14, 35, 0, 0, time.UTC)
	hitType := signals.HitTarget
	row := CaptureRow{
		ID:              7,
		SessionID:       42,
		Country:         "US",
		Symbol:          "ES",
		CapturedAt:      hitAt,
		Last:            dp("100.2001"),
		Bid:             dp("100.1"),
		Ask:             dp("100.3"),
		Spread:          dp("0.2"),
		Change24H:       dp("0.1"),
		Signal:          signals.SignalBuy,
		StatValue:       dp("1"),
		Weight:          3,
		EntryPrice:      dp("100.3"),
		TargetHigh:      dp("110.3"),
		TargetLow:       dp("95.3"),
		Outcome:         signals.OutcomeWorked,
		OutcomeHitPrice: dp("110.3"),
		OutcomeHitType:  &hitType,
		OutcomeHitAt:    &hitAt,
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded CaptureRow
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for name, pair := range map[string][2]*decimal.Decimal{
		"last":              {row.Last, decoded.Last},
		"bid":               {row.Bid, decoded.Bid},
		"ask":               {row.Ask, decoded.Ask},
		"spread":            {row.Spread, decoded.Spread},
		"change_24h":        {row.Change24H, decoded.Change24H},
		"stat_value":        {row.StatValue, decoded.StatValue},
		"entry_price":       {row.EntryPrice, decoded.EntryPrice},
		"target_high":       {row.TargetHigh, decoded.TargetHigh},
		"target_low":        {row.TargetLow, decoded.TargetLow},
		"outcome_hit_price": {row.OutcomeHitPrice, decoded.OutcomeHitPrice},
	} {
		require.NotNil(t, pair[1], name)
		assert.True(t, pair[0].Equal(*pair[1]), "%s drifted: %s != %s", name, pair[0], pair[1])
	}

	assert.Equal(t, row.Signal, decoded.Signal)
	assert.Equal(t, row.Outcome, decoded.Outcome)
	assert.Equal(t, hitType, *decoded.OutcomeHitType)
	assert.True(t, decoded.OutcomeHitAt.Equal(hitAt))
}

func TestCaptureRowPredicates(t *testing.T) {
	total := CaptureRow{Symbol: TotalSymbol}
	instrument := CaptureRow{Symbol: "ES"}
	assert.True(t, total.IsTotal())
	assert.False(t, instrument.IsTotal())

	placeable := CaptureRow{
		Signal:     signals.SignalBuy,
		EntryPrice: dp("100"),
		TargetHigh: dp("110"),
		TargetLow:  dp("95"),
	}
	assert.True(t, placeable.Placeable())

	hold := placeable
	hold.Signal = signals.SignalHold
	assert.False(t, hold.Placeable())

	noTargets := placeable
	noTargets.TargetHigh = nil
	assert.False(t, noTargets.Placeable())

	noEntry := placeable
	noEntry.EntryPrice = nil
	assert.False(t, noEntry.Placeable())
}
