package app

import (
	"context"
	"log"
	"time"

	models "futures-sentinel/database/models_pkg"
	"futures-sentinel/marketclock"
)

// MinScanInterval is the enforced floor on the scanner tick
const MinScanInterval = time.Second

// ScannerStore is the persistence surface the scanner reads
type ScannerStore interface {
	ActiveMarkets() ([]models.Market, error)
	CountriesCaptured(sessionID int64) (map[string]bool, error)
}

// SessionCounter resolves the shared capture session identifier
type SessionCounter interface {
	GetActiveSessionNumber(ctx context.Context) (int64, bool)
}

// CaptureScanner polls the market clock for every tracked market and
// triggers a market-open capture the first time each market is seen open
// within the current session.
type CaptureScanner struct {
	store    ScannerStore
	sessions SessionCounter
	capturer *Capturer
	clock    *marketclock.Clock
	interval time.Duration
	done     chan bool
}

// NewCaptureScanner creates a capture scanner. Intervals below the floor
// are clamped to MinScanInterval.
func NewCaptureScanner(store ScannerStore, sessions SessionCounter, capturer *Capturer, clock *marketclock.Clock, interval time.Duration) *CaptureScanner {
	if interval < MinScanInterval {
		interval = MinScanInterval
	}
	return &CaptureScanner{
		store:    store,
		sessions: sessions,
		capturer: capturer,
		clock:    clock,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start begins the scan loop. It returns when the context is cancelled or
// Stop is called; the tick in flight is allowed to finish.
func (cs *CaptureScanner) Start(ctx context.Context) {
	log.Printf("📸 Capture Scanner started (interval %v)", cs.interval)

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	// Run immediately on start
	cs.Tick(ctx)

	for {
		select {
		case <-ticker.C:
			cs.Tick(ctx)
		case <-ctx.Done():
			log.Println("📸 Capture Scanner stopped")
			return
		case <-cs.done:
			log.Println("📸 Capture Scanner stopped")
			return
		}
	}
}

// Stop gracefully stops the scanner
func (cs *CaptureScanner) Stop() {
	close(cs.done)
}

// Tick runs one scan pass. Exported so a cooperative scheduler can drive
// the scanner without the internal loop.
func (cs *CaptureScanner) Tick(ctx context.Context) {
	sessionID, ok := cs.sessions.GetActiveSessionNumber(ctx)
	if !ok {
		// No session counter, nothing to key captures on
		return
	}

	markets, err := cs.store.ActiveMarkets()
	if err != nil {
		log.Printf("❌ Scanner: market list failed: %v", err)
		return
	}
	if len(markets) == 0 {
		return
	}

	captured, err := cs.store.CountriesCaptured(sessionID)
	if err != nil {
		log.Printf("❌ Scanner: captured-countries lookup failed: %v", err)
		return
	}

	// Cheap skip when every tracked market already holds its TOTAL row
	// for this session
	remaining := 0
	for i := range markets {
		if !captured[markets[i].Country] {
			remaining++
		}
	}
	if remaining == 0 {
		return
	}

	for i := range markets {
		market := &markets[i]
		if captured[market.Country] {
			continue
		}
		if !cs.clock.IsOpenNow(market) {
			continue
		}
		// One market's failure must not block the others in this tick
		if _, err := cs.capturer.CaptureMarketOpen(ctx, market, sessionID); err != nil {
			log.Printf("❌ Capture failed for %s session %d: %v", market.Country, sessionID, err)
		}
	}
}
