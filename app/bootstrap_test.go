package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sentinel/config"
	models "futures-sentinel/database/models_pkg"
)

type fakeMarketStore struct {
	markets []models.Market
	saved   []*models.Market
}

func (s *fakeMarketStore) ActiveMarkets() ([]models.Market, error) {
	var active []models.Market
	for _, m := range s.markets {
		if m.Active {
			active = append(active, m)
		}
	}
	return active, nil
}

func (s *fakeMarketStore) MarketByCountry(country string) (*models.Market, error) {
	for i := range s.markets {
		if s.markets[i].Country == country {
			return &s.markets[i], nil
		}
	}
	return nil, nil
}

func (s *fakeMarketStore) SaveMarket(market *models.Market) error {
	s.saved = append(s.saved, market)
	s.markets = append(s.markets, *market)
	return nil
}

func defaultMarketConfig() config.MarketConfig {
	return config.MarketConfig{
		Country:     "US",
		Name:        "US Futures",
		Timezone:    "America/Chicago",
		OpenMinute:  17 * 60,
		CloseMinute: 16 * 60,
		TradingDays: 31,
	}
}

func TestEnsureDefaultMarketSeedsEmptyTable(t *testing.T) {
	store := &fakeMarketStore{}

	require.NoError(t, ensureDefaultMarket(store, defaultMarketConfig()))

	require.Len(t, store.saved, 1)
	m := store.saved[0]
	assert.Equal(t, "US", m.Country)
	assert.Equal(t, 17*60, m.OpenMinute)
	assert.Equal(t, 16*60, m.CloseMinute)
	assert.Equal(t, 31, m.TradingDays)
	assert.True(t, m.Active)
	assert.True(t, m.SessionTrackingEnabled)
	assert.True(t, m.OpenCaptureEnabled)
}

func TestEnsureDefaultMarketLeavesExistingConfiguration(t *testing.T) {
	store := &fakeMarketStore{markets: []models.Market{
		{Country: "EU", Active: true},
	}}

	require.NoError(t, ensureDefaultMarket(store, defaultMarketConfig()))
	assert.Empty(t, store.saved)
}

func TestEnsureDefaultMarketDoesNotResurrectDeactivated(t *testing.T) {
	store := &fakeMarketStore{markets: []models.Market{
		{Country: "US", Active: false},
	}}

	require.NoError(t, ensureDefaultMarket(store, defaultMarketConfig()))
	assert.Empty(t, store.saved)
}
