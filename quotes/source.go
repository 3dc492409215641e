// Package quotes provides the enriched quote source consumed by the
// market-open capture: per-instrument quote rows plus the weighted
// composite signal across them.
package quotes

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/shopspring/decimal"

	"futures-sentinel/cache"
	"futures-sentinel/signals"
)

// QuoteRow is one instrument's enriched quote. Country is optional: a row
// without a country may be captured by any market, a row with one only by
// the matching market.
type QuoteRow struct {
	Symbol  string `json:"symbol"`
	Country string `json:"country,omitempty"`

	Last      *decimal.Decimal `json:"last,omitempty"`
	Bid       *decimal.Decimal `json:"bid,omitempty"`
	BidSize   *decimal.Decimal `json:"bid_size,omitempty"`
	Ask       *decimal.Decimal `json:"ask,omitempty"`
	AskSize   *decimal.Decimal `json:"ask_size,omitempty"`
	Volume    *decimal.Decimal `json:"volume,omitempty"`
	NetChange *decimal.Decimal `json:"net_change,omitempty"`
	High52W   *decimal.Decimal `json:"high_52w,omitempty"`
	Low52W    *decimal.Decimal `json:"low_52w,omitempty"`
}

// Composite is the weighted-average signal across one batch of quote rows
type Composite struct {
	Signal signals.Signal   `json:"signal"`
	Value  *decimal.Decimal `json:"value,omitempty"`
}

// Source fetches the enriched quote rows in a single call. The caller
// derives the composite itself over whatever subset it keeps (see
// BuildComposite). A fetch failure aborts the caller's capture attempt;
// the caller retries on its next scan tick, so implementations do not
// retry internally.
type Source interface {
	GetEnrichedQuotes(ctx context.Context) ([]QuoteRow, error)
}

// RedisSource reads enriched snapshots published to Redis by the quote feed
type RedisSource struct {
	redis *cache.RedisClient
}

// NewRedisSource creates a Redis-backed enriched quote source
func NewRedisSource(redisClient *cache.RedisClient) *RedisSource {
	return &RedisSource{redis: redisClient}
}

// GetEnrichedQuotes returns all published enriched rows
func (s *RedisSource) GetEnrichedQuotes(ctx context.Context) ([]QuoteRow, error) {
	symbols, err := s.redis.EnrichedSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetEnrichedQuotes: %w", err)
	}
	sort.Strings(symbols)

	rows := make([]QuoteRow, 0, len(symbols))
	for _, symbol := range symbols {
		var row QuoteRow
		found, err := s.redis.GetEnrichedQuote(ctx, symbol, &row)
		if err != nil {
			// One unreadable snapshot should not sink the whole batch
			log.Printf("⚠️ Skipping unreadable enriched quote for %s: %v", symbol, err)
			continue
		}
		if !found {
			continue // snapshot expired between SMEMBERS and GET
		}
		if row.Symbol == "" {
			row.Symbol = symbol
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// BuildComposite computes the weight-normalized average of the per-bucket
// stat values across rows and resolves the aggregate signal label through
// the benchmark instrument's thresholds. Rows that cannot be classified
// (no thresholds, no net change) contribute nothing.
func BuildComposite(rows []QuoteRow, classifier *signals.Classifier, benchmark string) Composite {
	sum := decimal.Zero
	totalWeight := decimal.Zero

	for i := range rows {
		_, stat, weight := classifier.Classify(rows[i].Symbol, rows[i].NetChange)
		if stat == nil || weight == 0 {
			continue
		}
		w := decimal.NewFromInt(int64(weight))
		sum = sum.Add(stat.Mul(w))
		totalWeight = totalWeight.Add(w)
	}

	if totalWeight.IsZero() {
		return Composite{}
	}

	value := sum.Div(totalWeight)
	label, _, _ := classifier.Classify(benchmark, value)
	return Composite{Signal: label, Value: &value}
}
