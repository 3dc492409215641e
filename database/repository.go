package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"futures-sentinel/signals"
)

// CaptureRepository handles database operations for capture rows and the
// market/instrument/signal configuration tables
type CaptureRepository struct {
	db *Database
}

// NewCaptureRepository creates a new capture repository
func NewCaptureRepository(db *Database) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// InitSchema performs auto-migration and creates the reporting view
func (r *CaptureRepository) InitSchema() error {
	fmt.Println("🔄 Starting database schema initialization...")

	err := r.db.db.AutoMigrate(
		&Market{},
		&MarketInstrument{},
		&SignalThreshold{},
		&TargetConfig{},
		&CaptureRow{},
	)
	if err != nil {
		return WrapDBError("InitSchema", err)
	}

	// Win/loss rollups per day, country, and signal bucket. Refreshed by
	// the stats refresher; a creation failure only degrades reporting.
	fmt.Println("📊 Creating capture_performance_daily materialized view...")
	if err := r.db.db.Exec(`
		CREATE MATERIALIZED VIEW IF NOT EXISTS capture_performance_daily AS
		SELECT
			date_trunc('day', cr.captured_at) AS day,
			cr.country,
			cr.signal,
			COUNT(*) AS total_rows,
			SUM(CASE WHEN cr.outcome = 'WORKED' THEN 1 ELSE 0 END) AS worked,
			SUM(CASE WHEN cr.outcome = 'DIDNT_WORK' THEN 1 ELSE 0 END) AS didnt_work,
			SUM(CASE WHEN cr.outcome = 'NEUTRAL' THEN 1 ELSE 0 END) AS neutral,
			SUM(CASE WHEN cr.outcome = 'PENDING' THEN 1 ELSE 0 END) AS pending
		FROM capture_rows cr
		WHERE cr.symbol <> 'TOTAL'
		GROUP BY day, cr.country, cr.signal
	`).Error; err != nil {
		fmt.Printf("⚠️ Warning: Failed to create view capture_performance_daily: %v\n", err)
	} else {
		// CONCURRENTLY refresh needs a unique index on the view
		r.db.db.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_capture_perf_daily
			ON capture_performance_daily (day, country, signal)
		`)
		fmt.Println("✅ capture_performance_daily view created successfully")
	}

	fmt.Println("✅ Database schema initialization completed successfully")
	return nil
}

// ============================================================================
// Capture Rows
// ============================================================================

// GetOrCreateCaptureRow inserts row inside its own transaction, keyed on
// (session_id, country, symbol). On a uniqueness collision the existing
// row is fetched into row and created is false — a concurrent capture of
// the same instrument is "already captured", never an error. Each row gets
// its own transaction boundary so one collision cannot abort sibling rows.
func (r *CaptureRepository) GetOrCreateCaptureRow(row *CaptureRow) (bool, error) {
	err := r.db.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, fmt.Errorf("GetOrCreateCaptureRow %s/%s: %w", row.Country, row.Symbol, err)
	}

	var existing CaptureRow
	fetchErr := r.db.db.
		Where("session_id = ? AND country = ? AND symbol = ?", row.SessionID, row.Country, row.Symbol).
		First(&existing).Error
	if fetchErr != nil {
		return false, fmt.Errorf("GetOrCreateCaptureRow fetch %s/%s: %w", row.Country, row.Symbol, fetchErr)
	}
	*row = existing
	return false, nil
}

// HasTotalRow reports whether the aggregate row exists for one
// (session, country) pair — the "already captured" gate for that market
func (r *CaptureRepository) HasTotalRow(sessionID int64, country string) (bool, error) {
	var count int64
	err := r.db.db.Model(&CaptureRow{}).
		Where("session_id = ? AND country = ? AND symbol = ?", sessionID, country, TotalSymbol).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("HasTotalRow: %w", err)
	}
	return count > 0, nil
}

// CountriesCaptured returns the countries that already hold a TOTAL row
// for the session. The scanner uses this for its cheap skip check.
func (r *CaptureRepository) CountriesCaptured(sessionID int64) (map[string]bool, error) {
	var countries []string
	err := r.db.db.Model(&CaptureRow{}).
		Where("session_id = ? AND symbol = ?", sessionID, TotalSymbol).
		Distinct().
		Pluck("country", &countries).Error
	if err != nil {
		return nil, fmt.Errorf("CountriesCaptured: %w", err)
	}

	captured := make(map[string]bool, len(countries))
	for _, c := range countries {
		captured[c] = true
	}
	return captured, nil
}

// PendingCaptureRows retrieves rows still awaiting grading, oldest first
func (r *CaptureRepository) PendingCaptureRows(limit int) ([]CaptureRow, error) {
	var rows []CaptureRow
	query := r.db.db.
		Where("outcome = ?", signals.OutcomePending).
		Order("captured_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("PendingCaptureRows: %w", err)
	}
	return rows, nil
}

// CloseCaptureRow transitions one row out of PENDING, writing the outcome
// and the three hit fields in a single guarded UPDATE. The WHERE clause on
// outcome makes the write a compare-and-set: the returned boolean is false
// when another grader resolved the row first, and the hit fields are then
// left untouched.
func (r *CaptureRepository) CloseCaptureRow(id int64, outcome signals.Outcome, hitPrice *decimal.Decimal, hitType *signals.HitType, hitAt time.Time) (bool, error) {
	result := r.db.db.Model(&CaptureRow{}).
		Where("id = ? AND outcome = ?", id, signals.OutcomePending).
		Updates(map[string]interface{}{
			"outcome":           outcome,
			"outcome_hit_price": hitPrice,
			"outcome_hit_type":  hitType,
			"outcome_hit_at":    hitAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("CloseCaptureRow %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateOpenPrice back-fills the session open price from the first live
// tick. Guarded so an already-populated open price is never overwritten.
func (r *CaptureRepository) UpdateOpenPrice(id int64, price decimal.Decimal) error {
	err := r.db.db.Model(&CaptureRow{}).
		Where("id = ? AND open_price IS NULL", id).
		Update("open_price", price).Error
	if err != nil {
		return fmt.Errorf("UpdateOpenPrice %d: %w", id, err)
	}
	return nil
}

// ============================================================================
// Markets & Instruments
// ============================================================================

// ActiveMarkets retrieves all actively-tracked markets
func (r *CaptureRepository) ActiveMarkets() ([]Market, error) {
	var markets []Market
	if err := r.db.db.Where("active = ?", true).Order("country ASC").Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("ActiveMarkets: %w", err)
	}
	return markets, nil
}

// MarketByCountry retrieves one market by its canonical country key
func (r *CaptureRepository) MarketByCountry(country string) (*Market, error) {
	var market Market
	err := r.db.db.Where("country = ?", country).First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("MarketByCountry %s: %w", country, err)
	}
	return &market, nil
}

// SaveMarket upserts a market definition, keyed by country
func (r *CaptureRepository) SaveMarket(market *Market) error {
	if err := validateMarket(market); err != nil {
		return err
	}
	if err := r.db.db.Save(market).Error; err != nil {
		return WrapDBError("SaveMarket", err)
	}
	return nil
}

const minutesPerDay = 24 * 60

// validateMarket rejects market rows the clock cannot interpret.
// OpenMinute == CloseMinute is ambiguous (always-closed or 24h), so it
// is refused rather than guessed at.
func validateMarket(m *Market) error {
	if m.Country == "" {
		return &ValidationError{Field: "country", Message: "is required"}
	}
	if m.Timezone == "" {
		return &ValidationError{Field: "timezone", Message: "is required"}
	}
	if m.OpenMinute < 0 || m.OpenMinute >= minutesPerDay {
		return &ValidationError{Field: "open_minute", Message: "must be within 0..1439"}
	}
	if m.CloseMinute < 0 || m.CloseMinute >= minutesPerDay {
		return &ValidationError{Field: "close_minute", Message: "must be within 0..1439"}
	}
	if m.OpenMinute == m.CloseMinute {
		return &ValidationError{Field: "close_minute", Message: "must differ from open_minute"}
	}
	if m.TradingDays <= 0 || m.TradingDays > 127 {
		return &ValidationError{Field: "trading_days", Message: "must be a weekday bitmask within 1..127"}
	}
	return nil
}

// MarketInstruments retrieves the allowed instrument set for a country
func (r *CaptureRepository) MarketInstruments(country string) ([]MarketInstrument, error) {
	var instruments []MarketInstrument
	err := r.db.db.Where("country = ?", country).Order("symbol ASC").Find(&instruments).Error
	if err != nil {
		return nil, fmt.Errorf("MarketInstruments %s: %w", country, err)
	}
	return instruments, nil
}

// SaveMarketInstrument persists one (country, symbol) pair, tolerating a
// concurrent insert of the same pair
func (r *CaptureRepository) SaveMarketInstrument(instrument *MarketInstrument) error {
	err := r.db.db.Create(instrument).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("SaveMarketInstrument %s/%s: %w", instrument.Country, instrument.Symbol, err)
	}
	return nil
}

// ============================================================================
// Signal & Target Configuration
// ============================================================================

// ThresholdsFor looks up the classification ladder for a symbol.
// Returns (nil, nil) when the symbol has no configuration. Implements
// signals.ConfigSource together with TargetsFor.
func (r *CaptureRepository) ThresholdsFor(symbol string) (*signals.Thresholds, error) {
	var row SignalThreshold
	err := r.db.db.Where("symbol = ?", symbol).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ThresholdsFor %s: %w", symbol, err)
	}

	return &signals.Thresholds{
		StrongBuy:      row.StrongBuy,
		Buy:            row.Buy,
		Sell:           row.Sell,
		StrongSell:     row.StrongSell,
		Weight:         row.Weight,
		StatStrongBuy:  row.StatStrongBuy,
		StatBuy:        row.StatBuy,
		StatHold:       row.StatHold,
		StatSell:       row.StatSell,
		StatStrongSell: row.StatStrongSell,
	}, nil
}

// TargetsFor looks up the target/stop configuration for a symbol.
// Returns (nil, nil) when the symbol has no configuration.
func (r *CaptureRepository) TargetsFor(symbol string) (*signals.Targets, error) {
	var row TargetConfig
	err := r.db.db.Where("symbol = ?", symbol).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("TargetsFor %s: %w", symbol, err)
	}

	return &signals.Targets{
		Mode:       row.Mode,
		OffsetHigh: row.OffsetHigh,
		OffsetLow:  row.OffsetLow,
	}, nil
}

