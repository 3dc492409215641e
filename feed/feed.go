// Package feed ingests live quotes over a websocket and publishes the
// latest per-symbol quote and enriched snapshot into Redis, where the
// capture and grading loops read them.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"futures-sentinel/cache"
	"futures-sentinel/config"
	"futures-sentinel/quotes"
)

// quoteFrame is one inbound quote message. Prices arrive as JSON strings
// or numbers; decimal's unmarshaler keeps them exact either way.
type quoteFrame struct {
	Symbol    string           `json:"symbol"`
	Country   string           `json:"country,omitempty"`
	Bid       *decimal.Decimal `json:"bid,omitempty"`
	BidSize   *decimal.Decimal `json:"bid_size,omitempty"`
	Ask       *decimal.Decimal `json:"ask,omitempty"`
	AskSize   *decimal.Decimal `json:"ask_size,omitempty"`
	Last      *decimal.Decimal `json:"last,omitempty"`
	Volume    *decimal.Decimal `json:"volume,omitempty"`
	NetChange *decimal.Decimal `json:"net_change,omitempty"`
	High52W   *decimal.Decimal `json:"high_52w,omitempty"`
	Low52W    *decimal.Decimal `json:"low_52w,omitempty"`
}

// QuoteFeed maintains the websocket connection to the upstream quote
// publisher and fans inbound quotes out to Redis
type QuoteFeed struct {
	url   string
	cfg   config.FeedConfig
	redis *cache.RedisClient

	// connMu guards conn: the read loop swaps it on reconnect while the
	// ping loop and Close touch it concurrently
	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewQuoteFeed creates a quote feed client
func NewQuoteFeed(cfg config.FeedConfig, redisClient *cache.RedisClient) *QuoteFeed {
	return &QuoteFeed{
		url:   cfg.URL,
		cfg:   cfg,
		redis: redisClient,
	}
}

// Connect establishes the websocket connection
func (f *QuoteFeed) Connect() error {
	header := make(http.Header)
	header.Set("User-Agent", "futures-sentinel")

	conn, _, err := websocket.DefaultDialer.Dial(f.url, header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", f.url, err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	log.Printf("✅ Quote feed connected to %s", f.url)
	return nil
}

func (f *QuoteFeed) currentConn() *websocket.Conn {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	return f.conn
}

// Run reads quote frames until the context is cancelled, reconnecting
// with exponential backoff on connection errors
func (f *QuoteFeed) Run(ctx context.Context) {
	reconnectDelay := 5 * time.Second
	maxReconnectDelay := 60 * time.Second

	go f.pingLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			f.Close()
			return
		default:
		}

		conn := f.currentConn()
		if conn == nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				f.Close()
				return
			default:
			}

			log.Printf("⚠️  Quote feed error: %v", err)
			log.Printf("🔄 Reconnecting in %v...", reconnectDelay)

			select {
			case <-ctx.Done():
				f.Close()
				return
			case <-time.After(reconnectDelay):
			}

			if err := f.Connect(); err != nil {
				log.Printf("❌ Quote feed reconnection failed: %v", err)
				reconnectDelay = reconnectDelay * 2
				if reconnectDelay > maxReconnectDelay {
					reconnectDelay = maxReconnectDelay
				}
				continue
			}
			reconnectDelay = 5 * time.Second
			continue
		}

		if err := f.handleFrame(ctx, message); err != nil {
			// Bad frames are logged and skipped, never terminal
			log.Printf("⚠️  Quote frame dropped: %v", err)
		}
	}
}

// handleFrame publishes one inbound quote into Redis
func (f *QuoteFeed) handleFrame(ctx context.Context, raw []byte) error {
	var frame quoteFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if frame.Symbol == "" {
		return fmt.Errorf("frame without symbol")
	}

	latest := &cache.LatestQuote{
		Bid:    frame.Bid,
		Ask:    frame.Ask,
		Last:   frame.Last,
		Volume: frame.Volume,
	}
	if err := f.redis.SetLatestQuote(ctx, frame.Symbol, latest, f.cfg.QuoteTTL); err != nil {
		return fmt.Errorf("publish latest %s: %w", frame.Symbol, err)
	}

	enriched := quotes.QuoteRow{
		Symbol:    frame.Symbol,
		Country:   frame.Country,
		Last:      frame.Last,
		Bid:       frame.Bid,
		BidSize:   frame.BidSize,
		Ask:       frame.Ask,
		AskSize:   frame.AskSize,
		Volume:    frame.Volume,
		NetChange: frame.NetChange,
		High52W:   frame.High52W,
		Low52W:    frame.Low52W,
	}
	// Enriched snapshots live longer than the fast quote: the capture
	// only needs them around a market open
	if err := f.redis.SetEnrichedQuote(ctx, frame.Symbol, enriched, 10*f.cfg.QuoteTTL); err != nil {
		return fmt.Errorf("publish enriched %s: %w", frame.Symbol, err)
	}
	return nil
}

// pingLoop keeps the connection alive
func (f *QuoteFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Printf("⚠️  Quote feed ping failed: %v", err)
				}
			}
			f.connMu.Unlock()
		}
	}
}

// Close closes the websocket connection. Safe to call more than once;
// the connection is released on the first call.
func (f *QuoteFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}
