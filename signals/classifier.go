package signals

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCacheTTL bounds how long per-symbol configuration stays cached.
// Thresholds are editable at runtime, so the cache must not outlive a
// reasonable admin-edit window.
const DefaultCacheTTL = 5 * time.Minute

type cachedThresholds struct {
	thresholds *Thresholds
	fetchedAt  time.Time
}

type cachedTargets struct {
	targets   *Targets
	fetchedAt time.Time
}

// ConfigCache wraps a ConfigSource with a TTL cache, shared by the
// Classifier and the TargetCalculator so both see the same view of an
// instrument's configuration.
type ConfigCache struct {
	source ConfigSource
	ttl    time.Duration

	mu         sync.RWMutex
	thresholds map[string]cachedThresholds
	targets    map[string]cachedTargets
}

// NewConfigCache creates a config cache over source. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewConfigCache(source ConfigSource, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ConfigCache{
		source:     source,
		ttl:        ttl,
		thresholds: make(map[string]cachedThresholds),
		targets:    make(map[string]cachedTargets),
	}
}

// ThresholdsFor returns the cached ladder for symbol, refreshing from the
// underlying source when the entry is missing or expired.
func (c *ConfigCache) ThresholdsFor(symbol string) (*Thresholds, error) {
	c.mu.RLock()
	entry, ok := c.thresholds[symbol]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.thresholds, nil
	}

	t, err := c.source.ThresholdsFor(symbol)
	if err != nil {
		return nil, fmt.Errorf("ThresholdsFor %s: %w", symbol, err)
	}

	c.mu.Lock()
	c.thresholds[symbol] = cachedThresholds{thresholds: t, fetchedAt: time.Now()}
	c.mu.Unlock()
	return t, nil
}

// TargetsFor returns the cached target configuration for symbol
func (c *ConfigCache) TargetsFor(symbol string) (*Targets, error) {
	c.mu.RLock()
	entry, ok := c.targets[symbol]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.targets, nil
	}

	t, err := c.source.TargetsFor(symbol)
	if err != nil {
		return nil, fmt.Errorf("TargetsFor %s: %w", symbol, err)
	}

	c.mu.Lock()
	c.targets[symbol] = cachedTargets{targets: t, fetchedAt: time.Now()}
	c.mu.Unlock()
	return t, nil
}

// Invalidate drops any cached configuration for symbol
func (c *ConfigCache) Invalidate(symbol string) {
	c.mu.Lock()
	delete(c.thresholds, symbol)
	delete(c.targets, symbol)
	c.mu.Unlock()
}

// Classifier maps a net price change into one of the five signal buckets
// using the per-instrument threshold ladder.
type Classifier struct {
	config *ConfigCache
}

// NewClassifier creates a classifier over the shared config cache
func NewClassifier(config *ConfigCache) *Classifier {
	return &Classifier{config: config}
}

// Classify maps netChange for symbol into a signal bucket.
//
// It returns the chosen bucket, the configured stat value for that bucket
// (consumed by the weighted composite), and the instrument weight. The
// signal is empty and the stat nil when the change cannot be coerced to a
// decimal or when any ladder threshold is unconfigured.
//
// The ladder is evaluated in order, first match wins:
//
//	change >  strong_buy  → STRONG_BUY
//	change >  buy         → BUY
//	change >= sell        → HOLD
//	change >  strong_sell → SELL
//	otherwise             → STRONG_SELL
//
// The HOLD band is exclusive on the buy side and inclusive on the sell
// side. That asymmetry is deliberate; a value exactly at the buy threshold
// is a HOLD, a value exactly at the sell threshold is also a HOLD.
func (c *Classifier) Classify(symbol string, netChange interface{}) (Signal, *decimal.Decimal, int) {
	t, err := c.config.ThresholdsFor(symbol)
	if err != nil {
		log.Printf("⚠️ Classifier: threshold lookup failed for %s: %v", symbol, err)
		return "", nil, 0
	}
	if t == nil {
		return "", nil, 0
	}

	change, ok := ToDecimal(netChange)
	if !ok {
		return "", nil, t.Weight
	}
	if !t.Complete() {
		log.Printf("⚠️ Classifier: incomplete threshold ladder for %s, refusing to classify", symbol)
		return "", nil, t.Weight
	}

	var sig Signal
	var stat decimal.Decimal
	switch {
	case change.GreaterThan(*t.StrongBuy):
		sig, stat = SignalStrongBuy, t.StatStrongBuy
	case change.GreaterThan(*t.Buy):
		sig, stat = SignalBuy, t.StatBuy
	case change.GreaterThanOrEqual(*t.Sell):
		sig, stat = SignalHold, t.StatHold
	case change.GreaterThan(*t.StrongSell):
		sig, stat = SignalSell, t.StatSell
	default:
		sig, stat = SignalStrongSell, t.StatStrongSell
	}
	return sig, &stat, t.Weight
}

// Weight returns the configured composite weight for symbol, zero when the
// instrument has no threshold configuration.
func (c *Classifier) Weight(symbol string) int {
	t, err := c.config.ThresholdsFor(symbol)
	if err != nil || t == nil {
		return 0
	}
	return t.Weight
}

// ToDecimal coerces a net-change value that may arrive as a string, float,
// integer, or decimal into an exact decimal. The boolean is false when the
// value is nil or unparseable.
func ToDecimal(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, false
		}
		return *x, true
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	default:
		return decimal.Decimal{}, false
	}
}
