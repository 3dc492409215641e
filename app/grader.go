package app

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"futures-sentinel/cache"
	"futures-sentinel/config"
	models "futures-sentinel/database/models_pkg"
	"futures-sentinel/marketclock"
	"futures-sentinel/signals"
)

// GraderStore is the persistence surface the grader works through
type GraderStore interface {
	ActiveMarkets() ([]models.Market, error)
	PendingCaptureRows(limit int) ([]models.CaptureRow, error)
	CloseCaptureRow(id int64, outcome signals.Outcome, hitPrice *decimal.Decimal, hitType *signals.HitType, hitAt time.Time) (bool, error)
}

// Grader continuously resolves PENDING capture rows to a terminal outcome
// by comparing live prices against each row's target/stop band.
//
// The terminal write goes through the store's compare-and-set, so rows are
// resolved exactly once even with multiple grader workers.
type Grader struct {
	store GraderStore
	live  LiveQuotes
	clock *marketclock.Clock
	cfg   config.GraderConfig
	done  chan bool
	now   func() time.Time
}

// NewGrader creates a grader loop
func NewGrader(store GraderStore, live LiveQuotes, clock *marketclock.Clock, cfg config.GraderConfig) *Grader {
	return &Grader{
		store: store,
		live:  live,
		clock: clock,
		cfg:   cfg,
		done:  make(chan bool),
		now:   time.Now,
	}
}

// Start begins the grading loop
func (g *Grader) Start(ctx context.Context) {
	log.Printf("📊 Grader started (interval %v)", g.cfg.Interval)

	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Tick(ctx)
		case <-ctx.Done():
			log.Println("📊 Grader stopped")
			return
		case <-g.done:
			log.Println("📊 Grader stopped")
			return
		}
	}
}

// Stop gracefully stops the grader
func (g *Grader) Stop() {
	close(g.done)
}

// Tick runs one grading pass over the PENDING rows
func (g *Grader) Tick(ctx context.Context) {
	markets, err := g.store.ActiveMarkets()
	if err != nil {
		log.Printf("❌ Grader: market list failed: %v", err)
		return
	}
	// Cost gate: nothing moves while every tracked market is closed
	if !g.clock.AnyOpen(markets) {
		return
	}

	rows, err := g.store.PendingCaptureRows(g.cfg.BatchLimit)
	if err != nil {
		log.Printf("❌ Grader: pending rows query failed: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	// One stalled quote lookup must not stall the whole backlog: the
	// entire tick's lookups share one deadline
	tickCtx, cancel := context.WithTimeout(ctx, g.cfg.QuoteTimeout)
	defer cancel()

	resolved := 0
	for i := range rows {
		closed, err := g.gradeRow(tickCtx, &rows[i])
		if err != nil {
			// Row stays PENDING and is retried next tick
			log.Printf("❌ Grading failed for %s/%s (row %d): %v",
				rows[i].Country, rows[i].Symbol, rows[i].ID, err)
			continue
		}
		if closed {
			resolved++
		}
	}

	if resolved > 0 {
		log.Printf("📊 Grading pass: %d of %d pending rows resolved", resolved, len(rows))
	}
}

// gradeRow advances one PENDING row through the outcome state machine.
// The boolean reports whether the row reached a terminal state.
func (g *Grader) gradeRow(ctx context.Context, row *models.CaptureRow) (bool, error) {
	// Rows that never described a placeable trade resolve immediately
	if !row.Placeable() {
		return g.close(row, signals.OutcomeNeutral, nil, nil)
	}

	quote, err := g.live.GetLatestQuote(ctx, row.Symbol)
	if err != nil {
		return false, err
	}
	exit := exitPriceFor(row.Signal, quote)
	if exit == nil {
		// No live price yet; retry next tick
		return false, nil
	}

	outcome, hitType, hit := resolveOutcome(row.Signal, *exit, *row.TargetHigh, *row.TargetLow)
	if !hit {
		// Price still inside the band
		return false, nil
	}
	return g.close(row, outcome, exit, &hitType)
}

func (g *Grader) close(row *models.CaptureRow, outcome signals.Outcome, hitPrice *decimal.Decimal, hitType *signals.HitType) (bool, error) {
	closed, err := g.store.CloseCaptureRow(row.ID, outcome, hitPrice, hitType, g.now())
	if err != nil {
		return false, err
	}
	if !closed {
		// Another worker resolved the row first; its hit fields stand
		return false, nil
	}
	log.Printf("✅ Resolved %s/%s session %d: %s", row.Country, row.Symbol, row.SessionID, outcome)
	return true, nil
}

// exitPriceFor picks the closing side for a position: a long closes by
// selling at the bid, a short closes by buying at the ask
func exitPriceFor(sig signals.Signal, quote *cache.LatestQuote) *decimal.Decimal {
	if quote == nil {
		return nil
	}
	switch {
	case sig.IsBuy():
		return quote.Bid
	case sig.IsSell():
		return quote.Ask
	default:
		return nil
	}
}

// resolveOutcome applies the directional target/stop comparison.
//
// BUY direction: the high is the profit target, the low the stop.
// SELL direction is inverted: the low is the target, the high the stop.
// The boolean is false while the exit price is still inside the band.
func resolveOutcome(sig signals.Signal, exit, targetHigh, targetLow decimal.Decimal) (signals.Outcome, signals.HitType, bool) {
	switch {
	case sig.IsBuy():
		if exit.GreaterThanOrEqual(targetHigh) {
			return signals.OutcomeWorked, signals.HitTarget, true
		}
		if exit.LessThanOrEqual(targetLow) {
			return signals.OutcomeDidntWork, signals.HitStop, true
		}
	case sig.IsSell():
		if exit.LessThanOrEqual(targetLow) {
			return signals.OutcomeWorked, signals.HitTarget, true
		}
		if exit.GreaterThanOrEqual(targetHigh) {
			return signals.OutcomeDidntWork, signals.HitStop, true
		}
	}
	return "", "", false
}
