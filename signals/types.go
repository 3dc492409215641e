// Package signals implements the signal classification and target/stop
// calculation core of the futures-sentinel capture pipeline.
//
// All price, threshold, and weight arithmetic in this package uses exact
// decimal math (shopspring/decimal). Binary floats are accepted only at the
// coercion boundary and converted immediately.
package signals

import "github.com/shopspring/decimal"

// Signal is one of the five classifier buckets derived from net price change.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// IsBuy reports whether the signal is a buy-direction signal
func (s Signal) IsBuy() bool {
	return s == SignalStrongBuy || s == SignalBuy
}

// IsSell reports whether the signal is a sell-direction signal
func (s Signal) IsSell() bool {
	return s == SignalStrongSell || s == SignalSell
}

// IsActionable reports whether the signal opens a position.
// HOLD and an empty (unclassifiable) signal never trade.
func (s Signal) IsActionable() bool {
	return s.IsBuy() || s.IsSell()
}

// Outcome is the grading state of a capture row
type Outcome string

const (
	OutcomePending   Outcome = "PENDING"
	OutcomeWorked    Outcome = "WORKED"
	OutcomeDidntWork Outcome = "DIDNT_WORK"
	OutcomeNeutral   Outcome = "NEUTRAL"
)

// HitType records which side of the band resolved a position
type HitType string

const (
	HitTarget HitType = "TARGET"
	HitStop   HitType = "STOP"
)

// TargetMode selects how target/stop offsets are applied to an entry price
type TargetMode string

const (
	TargetModePoints   TargetMode = "POINTS"
	TargetModePercent  TargetMode = "PERCENT"
	TargetModeDisabled TargetMode = "DISABLED"
)

// Thresholds holds the per-instrument classification ladder.
// Any nil threshold makes the instrument unclassifiable (fail soft, never
// substitute a default for money-moving logic). The per-bucket stat values
// are carried into the weighted composite.
type Thresholds struct {
	StrongBuy  *decimal.Decimal
	Buy        *decimal.Decimal
	Sell       *decimal.Decimal
	StrongSell *decimal.Decimal
	Weight     int

	StatStrongBuy  decimal.Decimal
	StatBuy        decimal.Decimal
	StatHold       decimal.Decimal
	StatSell       decimal.Decimal
	StatStrongSell decimal.Decimal
}

// Complete reports whether all four ladder thresholds are configured
func (t *Thresholds) Complete() bool {
	return t != nil && t.StrongBuy != nil && t.Buy != nil && t.Sell != nil && t.StrongSell != nil
}

// Targets holds the per-instrument target/stop configuration
type Targets struct {
	Mode       TargetMode
	OffsetHigh decimal.Decimal
	OffsetLow  decimal.Decimal
}

// ConfigSource provides per-instrument configuration lookups.
// Implementations return (nil, nil) when no configuration exists for the
// symbol; an error means the lookup itself failed.
type ConfigSource interface {
	ThresholdsFor(symbol string) (*Thresholds, error)
	TargetsFor(symbol string) (*Targets, error)
}
