package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"futures-sentinel/cache"
	"futures-sentinel/config"
	models "futures-sentinel/database/models_pkg"
	"futures-sentinel/quotes"
	"futures-sentinel/signals"
)

// CaptureStore is the persistence surface the capturer writes through
type CaptureStore interface {
	HasTotalRow(sessionID int64, country string) (bool, error)
	GetOrCreateCaptureRow(row *models.CaptureRow) (bool, error)
	MarketInstruments(country string) ([]models.MarketInstrument, error)
	SaveMarketInstrument(instrument *models.MarketInstrument) error
	UpdateOpenPrice(id int64, price decimal.Decimal) error
}

// LiveQuotes is the live per-symbol price surface
type LiveQuotes interface {
	GetLatestQuote(ctx context.Context, symbol string) (*cache.LatestQuote, error)
}

// statsHook is the best-effort reporting recomputation triggered after a
// successful capture. Failures are logged and never fail the capture.
type statsHook interface {
	RefreshOnce() error
}

// Capturer snapshots enriched quotes into capture rows at a market-open
// event: one row per configured instrument plus one aggregate TOTAL row.
type Capturer struct {
	store      CaptureStore
	source     quotes.Source
	classifier *signals.Classifier
	targets    *signals.TargetCalculator
	live       LiveQuotes
	stats      statsHook // optional
	cfg        config.CaptureConfig
	now        func() time.Time
}

// NewCapturer creates a market-open capturer
func NewCapturer(store CaptureStore, source quotes.Source, classifier *signals.Classifier, targets *signals.TargetCalculator, live LiveQuotes, stats statsHook, cfg config.CaptureConfig) *Capturer {
	return &Capturer{
		store:      store,
		source:     source,
		classifier: classifier,
		targets:    targets,
		live:       live,
		stats:      stats,
		cfg:        cfg,
		now:        time.Now,
	}
}

// CaptureMarketOpen captures one (market, session) pair.
//
// Gating (market flags off, session already captured) is a silent no-op
// returning (nil, nil) — these are business rules, not errors. On success
// it returns the TOTAL row. A quote-fetch failure or an empty filtered
// batch aborts the capture with no partial writes; the scanner retries on
// its next tick.
func (c *Capturer) CaptureMarketOpen(ctx context.Context, market *models.Market, sessionID int64) (*models.CaptureRow, error) {
	if !market.SessionTrackingEnabled || !market.OpenCaptureEnabled {
		log.Printf("ℹ️ Capture skipped for %s: tracking=%v capture=%v",
			market.Country, market.SessionTrackingEnabled, market.OpenCaptureEnabled)
		return nil, nil
	}

	captured, err := c.store.HasTotalRow(sessionID, market.Country)
	if err != nil {
		return nil, fmt.Errorf("capture %s session %d: %w", market.Country, sessionID, err)
	}
	if captured {
		log.Printf("ℹ️ Session %d already captured for %s", sessionID, market.Country)
		return nil, nil
	}

	allowed, err := c.allowedInstruments(market.Country)
	if err != nil {
		return nil, fmt.Errorf("capture %s session %d: %w", market.Country, sessionID, err)
	}

	rows, err := c.source.GetEnrichedQuotes(ctx)
	if err != nil {
		log.Printf("❌ Quote fetch failed for %s session %d: %v", market.Country, sessionID, err)
		return nil, fmt.Errorf("capture %s session %d: %w", market.Country, sessionID, err)
	}

	filtered := filterQuoteRows(rows, allowed, market.Country)
	if len(filtered) == 0 {
		log.Printf("❌ No quote rows left for %s session %d after filtering (%d fetched)",
			market.Country, sessionID, len(rows))
		return nil, nil
	}

	// Composite over the instruments this market actually captures, not
	// the full fetched universe
	composite := quotes.BuildComposite(filtered, c.classifier, c.cfg.BenchmarkSymbol)

	created := make([]*models.CaptureRow, 0, len(filtered)+1)
	for i := range filtered {
		row := c.buildCaptureRow(market, sessionID, &filtered[i])
		isNew, err := c.store.GetOrCreateCaptureRow(row)
		if err != nil {
			// One instrument's failure never aborts its siblings
			log.Printf("❌ Row creation failed for %s/%s session %d: %v",
				market.Country, row.Symbol, sessionID, err)
			continue
		}
		if isNew {
			created = append(created, row)
		}
	}

	total := c.buildTotalRow(market, sessionID, filtered, composite)
	isNew, err := c.store.GetOrCreateCaptureRow(total)
	if err != nil {
		log.Printf("❌ TOTAL row creation failed for %s session %d: %v", market.Country, sessionID, err)
		return nil, fmt.Errorf("capture %s session %d: %w", market.Country, sessionID, err)
	}
	if isNew {
		created = append(created, total)
	}

	log.Printf("✅ Captured session %d for %s: %d instruments, signal %s",
		sessionID, market.Country, len(filtered), total.Signal)

	// Reporting side effects: each sub-step fails independently and never
	// rolls back the capture
	c.backfillOpenPrices(ctx, created)
	if c.stats != nil {
		if err := c.stats.RefreshOnce(); err != nil {
			log.Printf("⚠️ Post-capture stats refresh failed: %v", err)
		}
	}

	return total, nil
}

// allowedInstruments resolves the instrument set for a country, falling
// back to the global default set when the country has none configured.
// The fallback set is optionally persisted country-scoped so subsequent
// captures are country-specific.
func (c *Capturer) allowedInstruments(country string) (map[string]bool, error) {
	instruments, err := c.store.MarketInstruments(country)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		allowed[inst.Symbol] = true
	}
	if len(allowed) > 0 {
		return allowed, nil
	}

	log.Printf("⚠️ No instruments configured for %s, using global fallback set (%d symbols)",
		country, len(c.cfg.DefaultInstruments))
	for _, symbol := range c.cfg.DefaultInstruments {
		allowed[symbol] = true
		if c.cfg.PersistFallback {
			inst := &models.MarketInstrument{Country: country, Symbol: symbol, FromFallback: true}
			if err := c.store.SaveMarketInstrument(inst); err != nil {
				log.Printf("⚠️ Failed to persist fallback instrument %s/%s: %v", country, symbol, err)
			}
		}
	}
	return allowed, nil
}

// filterQuoteRows keeps rows whose symbol is in the allowed set and whose
// country matches the capturing market. Rows with no country attached are
// accepted; rows with a mismatched country are always dropped, never
// borrowed across markets.
func filterQuoteRows(rows []quotes.QuoteRow, allowed map[string]bool, country string) []quotes.QuoteRow {
	out := make([]quotes.QuoteRow, 0, len(rows))
	for _, row := range rows {
		if !allowed[row.Symbol] {
			continue
		}
		if row.Country != "" && row.Country != country {
			continue
		}
		out = append(out, row)
	}
	return out
}

// buildCaptureRow freezes one instrument's snapshot, signal, and targets
func (c *Capturer) buildCaptureRow(market *models.Market, sessionID int64, q *quotes.QuoteRow) *models.CaptureRow {
	row := &models.CaptureRow{
		SessionID:  sessionID,
		Country:    market.Country,
		Symbol:     q.Symbol,
		CapturedAt: c.now(),
		Last:       q.Last,
		Bid:        q.Bid,
		BidSize:    q.BidSize,
		Ask:        q.Ask,
		AskSize:    q.AskSize,
		Volume:     q.Volume,
		OpenPrice:  q.Last,
		Outcome:    signals.OutcomePending,
	}

	if q.Bid != nil && q.Ask != nil {
		spread := q.Ask.Sub(*q.Bid)
		row.Spread = &spread
	}
	row.Change24H = q.NetChange
	if q.NetChange != nil && q.Last != nil && !q.Last.IsZero() {
		pct := q.NetChange.Div(*q.Last).Mul(decimal.NewFromInt(100))
		row.Change24HPct = &pct
	}
	row.High52W = q.High52W
	row.Low52W = q.Low52W
	if q.Last != nil && q.High52W != nil && q.Low52W != nil {
		if span := q.High52W.Sub(*q.Low52W); span.IsPositive() {
			pos := q.Last.Sub(*q.Low52W).Div(span).Mul(decimal.NewFromInt(100))
			row.Pos52WPct = &pos
		}
	}

	sig, stat, weight := c.classifier.Classify(q.Symbol, q.NetChange)
	row.Signal = sig
	row.StatValue = stat
	row.Weight = weight

	row.EntryPrice = entryPriceFor(sig, q.Bid, q.Ask)
	if row.EntryPrice != nil {
		row.TargetHigh, row.TargetLow = c.targets.ComputeTargets(market.Country, q.Symbol, *row.EntryPrice)
	}
	return row
}

// buildTotalRow composes the aggregate pseudo-instrument row. Its entry
// price and targets key off the designated benchmark instrument's quote so
// the composite signal is gradeable against a real market price.
func (c *Capturer) buildTotalRow(market *models.Market, sessionID int64, filtered []quotes.QuoteRow, composite quotes.Composite) *models.CaptureRow {
	row := &models.CaptureRow{
		SessionID:  sessionID,
		Country:    market.Country,
		Symbol:     models.TotalSymbol,
		CapturedAt: c.now(),
		Signal:     composite.Signal,
		StatValue:  composite.Value,
		Outcome:    signals.OutcomePending,
	}

	for i := range filtered {
		row.Weight += c.classifier.Weight(filtered[i].Symbol)
	}

	benchmark := findQuoteRow(filtered, c.cfg.BenchmarkSymbol)
	if benchmark == nil {
		log.Printf("⚠️ Benchmark %s not in captured set for %s session %d, TOTAL row has no entry",
			c.cfg.BenchmarkSymbol, market.Country, sessionID)
		return row
	}

	row.Last = benchmark.Last
	row.Bid = benchmark.Bid
	row.Ask = benchmark.Ask
	row.OpenPrice = benchmark.Last

	row.EntryPrice = entryPriceFor(composite.Signal, benchmark.Bid, benchmark.Ask)
	if row.EntryPrice != nil {
		row.TargetHigh, row.TargetLow = c.targets.ComputeTargets(market.Country, c.cfg.BenchmarkSymbol, *row.EntryPrice)
	}
	return row
}

// entryPriceFor picks the entry side for a signal: a BUY enters at the
// ask, a SELL enters at the bid. HOLD and empty signals never enter.
func entryPriceFor(sig signals.Signal, bid, ask *decimal.Decimal) *decimal.Decimal {
	switch {
	case sig.IsBuy():
		return ask
	case sig.IsSell():
		return bid
	default:
		return nil
	}
}

func findQuoteRow(rows []quotes.QuoteRow, symbol string) *quotes.QuoteRow {
	for i := range rows {
		if rows[i].Symbol == symbol {
			return &rows[i]
		}
	}
	return nil
}

// backfillOpenPrices fills the open price of rows captured before a last
// price existed, using the first live tick. Best effort.
func (c *Capturer) backfillOpenPrices(ctx context.Context, rows []*models.CaptureRow) {
	for _, row := range rows {
		if row.OpenPrice != nil {
			continue
		}
		quote, err := c.live.GetLatestQuote(ctx, row.Symbol)
		if err != nil || quote == nil || quote.Last == nil {
			continue
		}
		if err := c.store.UpdateOpenPrice(row.ID, *quote.Last); err != nil {
			log.Printf("⚠️ Open price backfill failed for %s/%s: %v", row.Country, row.Symbol, err)
		}
	}
}
