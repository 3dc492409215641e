package signals

import (
	"log"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// TargetCalculator derives a profit target and a stop price from an entry
// price using the per-instrument target configuration.
//
// The calculator is direction-agnostic: target_high is always above the
// entry and target_low always below it. The caller decides which side is
// the profit target and which is the stop based on trade direction (for a
// BUY the high is the target and the low the stop; for a SELL it is
// inverted).
type TargetCalculator struct {
	config *ConfigCache
}

// NewTargetCalculator creates a target calculator over the shared config cache
func NewTargetCalculator(config *ConfigCache) *TargetCalculator {
	return &TargetCalculator{config: config}
}

// ComputeTargets returns (target_high, target_low) for an entry price.
// Both are nil when the instrument's target configuration is missing or
// DISABLED — an instrument without targets is captured but never trades.
func (tc *TargetCalculator) ComputeTargets(country, symbol string, entry decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	cfg, err := tc.config.TargetsFor(symbol)
	if err != nil {
		log.Printf("⚠️ Targets: config lookup failed for %s (%s): %v", symbol, country, err)
		return nil, nil
	}
	if cfg == nil || cfg.Mode == TargetModeDisabled {
		return nil, nil
	}

	var high, low decimal.Decimal
	switch cfg.Mode {
	case TargetModePoints:
		high = entry.Add(cfg.OffsetHigh)
		low = entry.Sub(cfg.OffsetLow)
	case TargetModePercent:
		high = entry.Mul(decimal.NewFromInt(1).Add(cfg.OffsetHigh.Div(oneHundred)))
		low = entry.Mul(decimal.NewFromInt(1).Sub(cfg.OffsetLow.Div(oneHundred)))
	default:
		log.Printf("⚠️ Targets: unknown mode %q for %s, treating as disabled", cfg.Mode, symbol)
		return nil, nil
	}
	return &high, &low
}
