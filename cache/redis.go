// Package cache wraps the Redis connection that serves as the live quote
// store and the shared capture session counter.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Key layout. The feed publishes, the capture and grader loops read.
const (
	latestQuoteKeyPrefix   = "quote:latest:"
	enrichedQuoteKeyPrefix = "quote:enriched:"
	enrichedSymbolsKey     = "quote:enriched:symbols"
	sessionCounterKey      = "capture:session:active"
)

// LatestQuote is the live per-symbol quote the grader reads exit prices
// from. Fields are nullable: a one-sided book leaves bid or ask nil.
type LatestQuote struct {
	Bid    *decimal.Decimal `json:"bid,omitempty"`
	Ask    *decimal.Decimal `json:"ask,omitempty"`
	Last   *decimal.Decimal `json:"last,omitempty"`
	Volume *decimal.Decimal `json:"volume,omitempty"`
}

// RedisClient wraps redis.Client
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(host, port, password string) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Failed to connect to Redis at %s: %v", addr, err)
		return nil
	}

	log.Printf("✅ Connected to Redis at %s", addr)
	return &RedisClient{client: client}
}

// GetLatestQuote returns the live quote for symbol, or (nil, nil) when the
// symbol is unknown or has no published quote. Absence is not an error;
// the grader leaves the row PENDING and retries.
func (r *RedisClient) GetLatestQuote(ctx context.Context, symbol string) (*LatestQuote, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	val, err := r.client.Get(ctx, latestQuoteKeyPrefix+symbol).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatestQuote %s: %w", symbol, err)
	}

	var quote LatestQuote
	if err := json.Unmarshal([]byte(val), &quote); err != nil {
		return nil, fmt.Errorf("GetLatestQuote %s: %w", symbol, err)
	}
	return &quote, nil
}

// SetLatestQuote publishes the live quote for symbol with an expiry, so a
// stalled feed ages out instead of serving stale prices forever
func (r *RedisClient) SetLatestQuote(ctx context.Context, symbol string, quote *LatestQuote, expiration time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, latestQuoteKeyPrefix+symbol, jsonBytes, expiration).Err()
}

// SetEnrichedQuote publishes a full enriched quote snapshot for symbol and
// registers the symbol in the enriched universe set
func (r *RedisClient) SetEnrichedQuote(ctx context.Context, symbol string, snapshot interface{}, expiration time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, enrichedQuoteKeyPrefix+symbol, jsonBytes, expiration).Err(); err != nil {
		return err
	}
	return r.client.SAdd(ctx, enrichedSymbolsKey, symbol).Err()
}

// GetEnrichedQuote reads the enriched snapshot for symbol into dest.
// Returns false when no snapshot is published.
func (r *RedisClient) GetEnrichedQuote(ctx context.Context, symbol string, dest interface{}) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client not initialized")
	}

	val, err := r.client.Get(ctx, enrichedQuoteKeyPrefix+symbol).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("GetEnrichedQuote %s: %w", symbol, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("GetEnrichedQuote %s: %w", symbol, err)
	}
	return true, nil
}

// EnrichedSymbols returns the symbols with a published enriched snapshot
func (r *RedisClient) EnrichedSymbols(ctx context.Context) ([]string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	symbols, err := r.client.SMembers(ctx, enrichedSymbolsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("EnrichedSymbols: %w", err)
	}
	return symbols, nil
}

// GetActiveSessionNumber reads the shared capture session counter. The
// boolean is false when the counter is unset or Redis is unreachable; the
// scanner skips the tick in that case.
func (r *RedisClient) GetActiveSessionNumber(ctx context.Context) (int64, bool) {
	if r.client == nil {
		return 0, false
	}

	val, err := r.client.Get(ctx, sessionCounterKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		log.Printf("⚠️  Session counter read failed: %v", err)
		return 0, false
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Printf("⚠️  Session counter holds non-numeric value %q", val)
		return 0, false
	}
	return n, true
}

// AdvanceSessionNumber atomically increments the shared session counter
// and returns the new value. Exposed for the operator tooling that rolls
// sessions over; the capture loops only ever read.
func (r *RedisClient) AdvanceSessionNumber(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}
	n, err := r.client.Incr(ctx, sessionCounterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("AdvanceSessionNumber: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
