package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// Quote feed configuration
	Feed FeedConfig

	// Capture pipeline configuration
	Capture CaptureConfig

	// Grader configuration
	Grader GraderConfig

	// Default market seeded on first start
	Market MarketConfig
}

// MarketConfig describes the market row seeded when no market is
// configured yet, so a fresh deployment captures without manual setup.
// Defaults describe the CME overnight session: opens 17:00, closes 16:00
// the next day, session-open days Sunday through Thursday.
type MarketConfig struct {
	Country     string
	Name        string
	Timezone    string
	OpenMinute  int
	CloseMinute int
	TradingDays int
}

// FeedConfig holds quote feed configuration
type FeedConfig struct {
	Enabled      bool
	URL          string
	PingInterval time.Duration
	QuoteTTL     time.Duration // expiry on published live quotes
}

// CaptureConfig holds capture scanner parameters
type CaptureConfig struct {
	// ScanInterval is the scanner tick. Enforced floor of 1 second so a
	// mistyped value cannot hot-loop against the market clock.
	ScanInterval time.Duration

	// BenchmarkSymbol keys the TOTAL row's entry price and the composite
	// signal label. One designated instrument per deployment, typically
	// the equity-index future.
	BenchmarkSymbol string

	// DefaultInstruments is the global fallback instrument set used when
	// a market's country has no configured instruments.
	DefaultInstruments []string

	// PersistFallback controls whether the fallback set is written back
	// country-scoped after its first use.
	PersistFallback bool

	// ThresholdCacheTTL bounds staleness of cached signal/target config
	ThresholdCacheTTL time.Duration
}

// GraderConfig holds grading loop parameters
type GraderConfig struct {
	Interval     time.Duration
	BatchLimit   int           // max PENDING rows per tick
	QuoteTimeout time.Duration // cap on one tick's quote lookups
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "futures_sentinel"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "sentinel"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "sentinel123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		// Quote feed configuration
		Feed: FeedConfig{
			Enabled:      getEnvOrDefault("FEED_ENABLED", "true") == "true",
			URL:          getEnvOrDefault("FEED_WS_URL", ""),
			PingInterval: getEnvDuration("FEED_PING_INTERVAL", 25*time.Second),
			QuoteTTL:     getEnvDuration("FEED_QUOTE_TTL", 30*time.Second),
		},

		// Capture configuration
		Capture: CaptureConfig{
			ScanInterval:       getEnvDuration("CAPTURE_SCAN_INTERVAL", time.Second),
			BenchmarkSymbol:    getEnvOrDefault("CAPTURE_BENCHMARK_SYMBOL", "ES"),
			DefaultInstruments: getEnvList("CAPTURE_DEFAULT_INSTRUMENTS", []string{"ES", "NQ", "YM", "RTY", "CL", "GC"}),
			PersistFallback:    getEnvOrDefault("CAPTURE_PERSIST_FALLBACK", "true") == "true",
			ThresholdCacheTTL:  getEnvDuration("CAPTURE_THRESHOLD_CACHE_TTL", 5*time.Minute),
		},

		// Grader configuration
		Grader: GraderConfig{
			Interval:     getEnvDuration("GRADER_INTERVAL", 500*time.Millisecond),
			BatchLimit:   getEnvInt("GRADER_BATCH_LIMIT", 500),
			QuoteTimeout: getEnvDuration("GRADER_QUOTE_TIMEOUT", 3*time.Second),
		},

		// Default market configuration
		Market: MarketConfig{
			Country:     getEnvOrDefault("MARKET_COUNTRY", "US"),
			Name:        getEnvOrDefault("MARKET_NAME", "US Futures"),
			Timezone:    getEnvOrDefault("MARKET_TIMEZONE", "America/Chicago"),
			OpenMinute:  getEnvInt("MARKET_OPEN_MINUTE", 17*60),
			CloseMinute: getEnvInt("MARKET_CLOSE_MINUTE", 16*60),
			TradingDays: getEnvInt("MARKET_TRADING_DAYS", 31),
		},
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration gets environment variable as a duration ("500ms", "2s")
// or returns default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("⚠️ Invalid duration for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvList gets environment variable as a comma-separated list or
// returns default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
