// Package models defines the persisted data models for the futures-sentinel
// capture pipeline.
//
// Models live in their own package (imported as "models") to avoid circular
// import dependencies between the database layer and the domain packages.
//
// All price, threshold, and weight columns are DECIMAL in Postgres and
// shopspring decimals in Go. Price fields are never stored as binary floats.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"futures-sentinel/signals"
)

// TotalSymbol is the pseudo-instrument symbol of the aggregate row that
// summarizes one capture session for one market.
const TotalSymbol = "TOTAL"

// CaptureRow is one instrument's snapshot within one capture session.
//
// Identity is (session_id, country, symbol); the composite unique index is
// the capture idempotence guard. A duplicate-key error on insert means the
// instrument was already captured for the session and must be resolved by
// fetch-and-return, never surfaced as a failure.
//
// Price, derived-range, and signal fields are frozen at capture time. The
// outcome fields are written exactly once, by the grader, on the first
// transition out of PENDING.
type CaptureRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  int64     `gorm:"uniqueIndex:idx_capture_identity,priority:1;index:idx_capture_session;not null" json:"session_id"`
	Country    string    `gorm:"type:text;uniqueIndex:idx_capture_identity,priority:2;not null" json:"country"`
	Symbol     string    `gorm:"type:text;uniqueIndex:idx_capture_identity,priority:3;index;not null" json:"symbol"`
	CapturedAt time.Time `gorm:"index;not null" json:"captured_at"`

	// Price snapshot at capture time
	Last    *decimal.Decimal `gorm:"type:decimal(15,4)" json:"last,omitempty"`
	Bid     *decimal.Decimal `gorm:"type:decimal(15,4)" json:"bid,omitempty"`
	BidSize *decimal.Decimal `gorm:"type:decimal(15,4)" json:"bid_size,omitempty"`
	Ask     *decimal.Decimal `gorm:"type:decimal(15,4)" json:"ask,omitempty"`
	AskSize *decimal.Decimal `gorm:"type:decimal(15,4)" json:"ask_size,omitempty"`
	Spread  *decimal.Decimal `gorm:"type:decimal(15,4)" json:"spread,omitempty"`
	Volume  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"volume,omitempty"`

	// Derived range fields, computed once at capture and never recomputed.
	// OpenPrice is the only exception: it is back-filled best-effort from
	// the first live tick after capture when the snapshot had no last price.
	OpenPrice    *decimal.Decimal `gorm:"type:decimal(15,4)" json:"open_price,omitempty"`
	Change24H    *decimal.Decimal `gorm:"type:decimal(15,4)" json:"change_24h,omitempty"`
	Change24HPct *decimal.Decimal `gorm:"type:decimal(10,4)" json:"change_24h_pct,omitempty"`
	High52W      *decimal.Decimal `gorm:"type:decimal(15,4)" json:"high_52w,omitempty"`
	Low52W       *decimal.Decimal `gorm:"type:decimal(15,4)" json:"low_52w,omitempty"`
	Pos52WPct    *decimal.Decimal `gorm:"type:decimal(10,4)" json:"pos_52w_pct,omitempty"`

	// Signal fields. EntryPrice is set only for actionable signals;
	// TargetHigh/TargetLow only when EntryPrice is set. StatValue is the configured stat of the chosen bucket
	// (the weighted composite's input); on the TOTAL row it holds the
	// composite value itself.
	Signal     signals.Signal   `gorm:"type:text" json:"signal"`
	StatValue  *decimal.Decimal `gorm:"type:decimal(10,4)" json:"stat_value,omitempty"`
	Weight     int              `json:"weight"`
	EntryPrice *decimal.Decimal `gorm:"type:decimal(15,4)" json:"entry_price,omitempty"`
	TargetHigh *decimal.Decimal `gorm:"type:decimal(15,4)" json:"target_high,omitempty"`
	TargetLow  *decimal.Decimal `gorm:"type:decimal(15,4)" json:"target_low,omitempty"`

	// Outcome fields, terminal after the first write
	Outcome         signals.Outcome  `gorm:"size:20;index;not null" json:"outcome"`
	OutcomeHitPrice *decimal.Decimal `gorm:"type:decimal(15,4)" json:"outcome_hit_price,omitempty"`
	OutcomeHitType  *signals.HitType `gorm:"size:10" json:"outcome_hit_type,omitempty"`
	OutcomeHitAt    *time.Time       `json:"outcome_hit_at,omitempty"`
}

// TableName specifies the table name for CaptureRow
func (CaptureRow) TableName() string {
	return "capture_rows"
}

// IsTotal reports whether this is the aggregate row of its session
func (r *CaptureRow) IsTotal() bool {
	return r.Symbol == TotalSymbol
}

// Placeable reports whether the row described a placeable trade at capture
// time. Rows that were never placeable grade straight to NEUTRAL.
func (r *CaptureRow) Placeable() bool {
	return r.Signal.IsActionable() && r.EntryPrice != nil && r.TargetHigh != nil && r.TargetLow != nil
}

// Market is one tracked market, keyed by its canonical country code.
// Open/close are minutes from local midnight in the market's timezone;
// OpenMinute > CloseMinute describes an overnight session that closes the
// following day. TradingDays is a bitmask with bit 0 = Sunday .. bit 6 =
// Saturday, marking the days a session opens.
type Market struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Country     string `gorm:"type:text;uniqueIndex;not null" json:"country"`
	Name        string `gorm:"type:text;not null" json:"name"`
	Timezone    string `gorm:"type:text;not null" json:"timezone"`
	OpenMinute  int    `gorm:"not null" json:"open_minute"`
	CloseMinute int    `gorm:"not null" json:"close_minute"`
	TradingDays int    `gorm:"not null;default:62" json:"trading_days"` // Mon-Fri

	Active                 bool `gorm:"not null;default:true" json:"active"`
	SessionTrackingEnabled bool `gorm:"not null;default:true" json:"session_tracking_enabled"`
	OpenCaptureEnabled     bool `gorm:"not null;default:true" json:"open_capture_enabled"`
}

// TableName specifies the table name for Market
func (Market) TableName() string {
	return "markets"
}

// MarketInstrument scopes an instrument to a market's country. The set of
// rows for one country is the allowed instrument set for that market's
// capture; rows created from the global fallback set carry FromFallback.
type MarketInstrument struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Country      string `gorm:"type:text;uniqueIndex:idx_market_instrument,priority:1;not null" json:"country"`
	Symbol       string `gorm:"type:text;uniqueIndex:idx_market_instrument,priority:2;not null" json:"symbol"`
	FromFallback bool   `gorm:"not null;default:false" json:"from_fallback"`
}

// TableName specifies the table name for MarketInstrument
func (MarketInstrument) TableName() string {
	return "market_instruments"
}

// SignalThreshold is the per-instrument classification ladder plus the
// composite weight and per-bucket stat values. Threshold columns are
// nullable on purpose: an instrument with an incomplete ladder is never
// classified.
type SignalThreshold struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol string `gorm:"type:text;uniqueIndex;not null" json:"symbol"`

	StrongBuy  *decimal.Decimal `gorm:"type:decimal(10,4)" json:"strong_buy,omitempty"`
	Buy        *decimal.Decimal `gorm:"type:decimal(10,4)" json:"buy,omitempty"`
	Sell       *decimal.Decimal `gorm:"type:decimal(10,4)" json:"sell,omitempty"`
	StrongSell *decimal.Decimal `gorm:"type:decimal(10,4)" json:"strong_sell,omitempty"`
	Weight     int              `gorm:"not null;default:1" json:"weight"`

	StatStrongBuy  decimal.Decimal `gorm:"type:decimal(10,4);default:2" json:"stat_strong_buy"`
	StatBuy        decimal.Decimal `gorm:"type:decimal(10,4);default:1" json:"stat_buy"`
	StatHold       decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"stat_hold"`
	StatSell       decimal.Decimal `gorm:"type:decimal(10,4);default:-1" json:"stat_sell"`
	StatStrongSell decimal.Decimal `gorm:"type:decimal(10,4);default:-2" json:"stat_strong_sell"`
}

// TableName specifies the table name for SignalThreshold
func (SignalThreshold) TableName() string {
	return "signal_thresholds"
}

// TargetConfig is the per-instrument target/stop configuration.
// Offsets are positive magnitudes in the unit selected by Mode.
type TargetConfig struct {
	ID         int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol     string             `gorm:"type:text;uniqueIndex;not null" json:"symbol"`
	Mode       signals.TargetMode `gorm:"size:10;not null;default:DISABLED" json:"mode"`
	OffsetHigh decimal.Decimal    `gorm:"type:decimal(10,4);default:0" json:"offset_high"`
	OffsetLow  decimal.Decimal    `gorm:"type:decimal(10,4);default:0" json:"offset_low"`
}

// TableName specifies the table name for TargetConfig
func (TargetConfig) TableName() string {
	return "target_configs"
}
