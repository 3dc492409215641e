package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMarket() *Market {
	return &Market{
		Country:     "US",
		Name:        "US Futures",
		Timezone:    "America/Chicago",
		OpenMinute:  17 * 60,
		CloseMinute: 16 * 60,
		TradingDays: 31,
	}
}

func TestValidateMarket(t *testing.T) {
	t.Run("overnight session is valid", func(t *testing.T) {
		assert.NoError(t, validateMarket(validMarket()))
	})

	t.Run("day session is valid", func(t *testing.T) {
		m := validMarket()
		m.OpenMinute = 9*60 + 30
		m.CloseMinute = 16 * 60
		m.TradingDays = 62
		assert.NoError(t, validateMarket(m))
	})

	invalid := []struct {
		name   string
		mutate func(*Market)
		field  string
	}{
		{"missing country", func(m *Market) { m.Country = "" }, "country"},
		{"missing timezone", func(m *Market) { m.Timezone = "" }, "timezone"},
		{"negative open", func(m *Market) { m.OpenMinute = -1 }, "open_minute"},
		{"open past midnight", func(m *Market) { m.OpenMinute = 1440 }, "open_minute"},
		{"close past midnight", func(m *Market) { m.CloseMinute = 1500 }, "close_minute"},
		{"open equals close", func(m *Market) { m.CloseMinute = m.OpenMinute }, "close_minute"},
		{"empty trading mask", func(m *Market) { m.TradingDays = 0 }, "trading_days"},
		{"mask beyond seven days", func(m *Market) { m.TradingDays = 128 }, "trading_days"},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			tt.mutate(m)

			err := validateMarket(m)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
