// Package database provides persistence for the futures-sentinel capture
// pipeline.
//
// This package includes:
//   - GORM connection management over PostgreSQL
//   - The capture repository (capture rows, markets, instrument and
//     signal configuration)
//   - A raw database/sql connection used for materialized-view refreshes
//
// Data Models:
//
//	All data models (CaptureRow, Market, SignalThreshold, etc.) are defined
//	in the models_pkg package to avoid circular import dependencies.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "futures-sentinel/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the underlying DB instance.
// It serves as the central connection point for all database operations in the application.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes database connection using GORM.
// TranslateError is on so a unique-index collision surfaces as
// gorm.ErrDuplicatedKey regardless of driver.
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // Silent logging for production
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// Model Type Aliases
// ============================================================================

// Type aliases so callers can use database.CaptureRow etc. without importing
// the models package directly.

// TotalSymbol re-exported for callers working through the repository
const TotalSymbol = models.TotalSymbol

type CaptureRow = models.CaptureRow
type Market = models.Market
type MarketInstrument = models.MarketInstrument
type SignalThreshold = models.SignalThreshold
type TargetConfig = models.TargetConfig
