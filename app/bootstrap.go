package app

import (
	"fmt"
	"log"

	"futures-sentinel/config"
	models "futures-sentinel/database/models_pkg"
)

// MarketStore is the persistence surface of the startup seeding
type MarketStore interface {
	ActiveMarkets() ([]models.Market, error)
	MarketByCountry(country string) (*models.Market, error)
	SaveMarket(market *models.Market) error
}

// ensureDefaultMarket seeds the configured default market on a fresh
// deployment. It only acts when NO market row exists at all: once an
// operator has touched the markets table — including deactivating a
// market — their configuration stands.
func ensureDefaultMarket(store MarketStore, cfg config.MarketConfig) error {
	markets, err := store.ActiveMarkets()
	if err != nil {
		return fmt.Errorf("ensureDefaultMarket: %w", err)
	}
	if len(markets) > 0 {
		return nil
	}

	existing, err := store.MarketByCountry(cfg.Country)
	if err != nil {
		return fmt.Errorf("ensureDefaultMarket: %w", err)
	}
	if existing != nil {
		// Present but deactivated; not ours to resurrect
		return nil
	}

	market := &models.Market{
		Country:                cfg.Country,
		Name:                   cfg.Name,
		Timezone:               cfg.Timezone,
		OpenMinute:             cfg.OpenMinute,
		CloseMinute:            cfg.CloseMinute,
		TradingDays:            cfg.TradingDays,
		Active:                 true,
		SessionTrackingEnabled: true,
		OpenCaptureEnabled:     true,
	}
	if err := store.SaveMarket(market); err != nil {
		return fmt.Errorf("ensureDefaultMarket: %w", err)
	}

	log.Printf("✅ Seeded default market %s (%s, open %02d:%02d close %02d:%02d)",
		market.Country, market.Timezone,
		market.OpenMinute/60, market.OpenMinute%60,
		market.CloseMinute/60, market.CloseMinute%60)
	return nil
}
