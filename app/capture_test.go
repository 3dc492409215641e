package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sentinel/config"
	models "futures-sentinel/database/models_pkg"
	"futures-sentinel/quotes"
	"futures-sentinel/signals"
)

type fakeConfigSource struct {
	thresholds map[string]*signals.Thresholds
	targets    map[string]*signals.Targets
}

func (f *fakeConfigSource) ThresholdsFor(symbol string) (*signals.Thresholds, error) {
	return f.thresholds[symbol], nil
}

func (f *fakeConfigSource) TargetsFor(symbol string) (*signals.Targets, error) {
	return f.targets[symbol], nil
}

func standardLadder(weight int) *signals.Thresholds {
	return &signals.Thresholds{
		StrongBuy:      dp("60"),
		Buy:            dp("10"),
		Sell:           dp("-10"),
		StrongSell:     dp("-60"),
		Weight:         weight,
		StatStrongBuy:  d("2"),
		StatBuy:        d("1"),
		StatHold:       d("0"),
		StatSell:       d("-1"),
		StatStrongSell: d("-2"),
	}
}

type fakeCaptureStore struct {
	rows        map[string]*models.CaptureRow
	instruments map[string][]models.MarketInstrument
	nextID      int64
	creates     int
}

func newFakeCaptureStore() *fakeCaptureStore {
	return &fakeCaptureStore{
		rows:        make(map[string]*models.CaptureRow),
		instruments: make(map[string][]models.MarketInstrument),
	}
}

func captureKey(sessionID int64, country, symbol string) string {
	return fmt.Sprintf("%d/%s/%s", sessionID, country, symbol)
}

func (s *fakeCaptureStore) HasTotalRow(sessionID int64, country string) (bool, error) {
	_, ok := s.rows[captureKey(sessionID, country, models.TotalSymbol)]
	return ok, nil
}

func (s *fakeCaptureStore) GetOrCreateCaptureRow(row *models.CaptureRow) (bool, error) {
	key := captureKey(row.SessionID, row.Country, row.Symbol)
	if existing, ok := s.rows[key]; ok {
		*row = *existing
		return false, nil
	}
	s.nextID++
	s.creates++
	row.ID = s.nextID
	clone := *row
	s.rows[key] = &clone
	return true, nil
}

func (s *fakeCaptureStore) MarketInstruments(country string) ([]models.MarketInstrument, error) {
	return s.instruments[country], nil
}

func (s *fakeCaptureStore) SaveMarketInstrument(instrument *models.MarketInstrument) error {
	s.instruments[instrument.Country] = append(s.instruments[instrument.Country], *instrument)
	return nil
}

func (s *fakeCaptureStore) UpdateOpenPrice(id int64, price decimal.Decimal) error {
	for _, row := range s.rows {
		if row.ID == id {
			row.OpenPrice = &price
		}
	}
	return nil
}

type fakeQuoteSource struct {
	rows []quotes.QuoteRow
	err  error
}

func (f *fakeQuoteSource) GetEnrichedQuotes(ctx context.Context) ([]quotes.QuoteRow, error) {
	return f.rows, f.err
}

func quoteRow(symbol, netChange, bid, ask string) quotes.QuoteRow {
	last := d(bid).Add(d(ask)).Div(d("2"))
	return quotes.QuoteRow{
		Symbol:    symbol,
		Last:      &last,
		Bid:       dp(bid),
		Ask:       dp(ask),
		NetChange: dp(netChange),
	}
}

func newTestCapturer(store *fakeCaptureStore, source quotes.Source) *Capturer {
	src := &fakeConfigSource{
		thresholds: map[string]*signals.Thresholds{
			"ES": standardLadder(2),
			"NQ": standardLadder(1),
		},
		targets: map[string]*signals.Targets{
			"ES": {Mode: signals.TargetModePoints, OffsetHigh: d("10"), OffsetLow: d("5")},
			"NQ": {Mode: signals.TargetModePoints, OffsetHigh: d("20"), OffsetLow: d("10")},
		},
	}
	cache := signals.NewConfigCache(src, time.Minute)

	cfg := config.CaptureConfig{
		ScanInterval:       time.Second,
		BenchmarkSymbol:    "ES",
		DefaultInstruments: []string{"ES", "NQ"},
		PersistFallback:    true,
	}
	return NewCapturer(store, source,
		signals.NewClassifier(cache),
		signals.NewTargetCalculator(cache),
		&fakeLiveQuotes{},
		nil, cfg)
}

func TestCaptureMarketOpen(t *testing.T) {
	store := newFakeCaptureStore()
	source := &fakeQuoteSource{rows: []quotes.QuoteRow{
		quoteRow("ES", "15", "100", "100.25"), // BUY
		quoteRow("NQ", "-15", "200", "200.5"), // SELL
	}}
	c := newTestCapturer(store, source)
	market := alwaysOpenMarket()

	total, err := c.CaptureMarketOpen(context.Background(), &market, 1)
	require.NoError(t, err)
	require.NotNil(t, total)

	// One row per instrument plus the aggregate
	assert.Equal(t, 3, store.creates)

	es := store.rows[captureKey(1, "US", "ES")]
	require.NotNil(t, es)
	assert.Equal(t, signals.SignalBuy, es.Signal)
	require.NotNil(t, es.EntryPrice)
	assert.True(t, es.EntryPrice.Equal(d("100.25")), "buy enters at the ask, got %s", es.EntryPrice)
	require.NotNil(t, es.TargetHigh)
	assert.True(t, es.TargetHigh.Equal(d("110.25")))
	require.NotNil(t, es.TargetLow)
	assert.True(t, es.TargetLow.Equal(d("95.25")))
	assert.Equal(t, signals.OutcomePending, es.Outcome)

	nq := store.rows[captureKey(1, "US", "NQ")]
	require.NotNil(t, nq)
	assert.Equal(t, signals.SignalSell, nq.Signal)
	require.NotNil(t, nq.EntryPrice)
	assert.True(t, nq.EntryPrice.Equal(d("200")), "sell enters at the bid, got %s", nq.EntryPrice)

	// Composite: ES stat 1 weight 2, NQ stat -1 weight 1 → 1/3, HOLD on
	// the benchmark ladder
	assert.True(t, total.IsTotal())
	assert.Equal(t, signals.SignalHold, total.Signal)
	require.NotNil(t, total.StatValue)
	assert.True(t, total.StatValue.Equal(d("1").Div(d("3"))), "composite = %s", total.StatValue)
	assert.Equal(t, 3, total.Weight)
	// TOTAL keys off the benchmark quote but a HOLD composite never enters
	assert.Nil(t, total.EntryPrice)
}

func TestCaptureIdempotent(t *testing.T) {
	store := newFakeCaptureStore()
	source := &fakeQuoteSource{rows: []quotes.QuoteRow{
		quoteRow("ES", "15", "100", "100.25"),
	}}
	c := newTestCapturer(store, source)
	market := alwaysOpenMarket()

	first, err := c.CaptureMarketOpen(context.Background(), &market, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	created := store.creates

	// Second attempt for the same session is a silent no-op
	second, err := c.CaptureMarketOpen(context.Background(), &market, 1)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, created, store.creates)

	// A new session captures again
	third, err := c.CaptureMarketOpen(context.Background(), &market, 2)
	require.NoError(t, err)
	require.NotNil(t, third)
}

func TestCaptureDisabledMarket(t *testing.T) {
	store := newFakeCaptureStore()
	source := &fakeQuoteSource{rows: []quotes.QuoteRow{
		quoteRow("ES", "15", "100", "100.25"),
	}}
	c := newTestCapturer(store, source)

	market := alwaysOpenMarket()
	market.OpenCaptureEnabled = false

	total, err := c.CaptureMarketOpen(context.Background(), &market, 1)
	require.NoError(t, err)
	assert.Nil(t, total)
	assert.Equal(t, 0, store.creates)
}

func TestCaptureEmptyBatchAborts(t *testing.T) {
	store := newFakeCaptureStore()
	source := &fakeQuoteSource{rows: []quotes.QuoteRow{
		quoteRow("ZC", "15", "100", "100.25"), // not in the instrument set
	}}
	c := newTestCapturer(store, source)
	market := alwaysOpenMarket()

	total, err := c.CaptureMarketOpen(context.Background(), &market, 1)
	require.NoError(t, err)
	assert.Nil(t, total)
	assert.Equal(t, 0, store.creates)
}

func TestCapturePersistsFallbackInstruments(t *testing.T) {
	store := newFakeCaptureStore()
	source := &fakeQuoteSource{rows: []quotes.QuoteRow{
		quoteRow("ES", "15", "100", "100.25"),
	}}
	c := newTestCapturer(store, source)
	market := alwaysOpenMarket()

	_, err := c.CaptureMarketOpen(context.Background(), &market, 1)
	require.NoError(t, err)

	saved := store.instruments["US"]
	require.Len(t, saved, 2)
	for _, inst := range saved {
		assert.True(t, inst.FromFallback)
		assert.Equal(t, "US", inst.Country)
	}
}

func TestFilterQuoteRows(t *testing.T) {
	allowed := map[string]bool{"ES": true, "NQ": true}
	rows := []quotes.QuoteRow{
		{Symbol: "ES"},                // allowed, no country
		{Symbol: "NQ", Country: "US"}, // allowed, matching country
		{Symbol: "ES", Country: "EU"}, // mismatched country
		{Symbol: "ZC"},                // not in the set
		{Symbol: "GC", Country: "US"}, // matching country but not allowed
	}

	filtered := filterQuoteRows(rows, allowed, "US")
	require.Len(t, filtered, 2)
	assert.Equal(t, "ES", filtered[0].Symbol)
	assert.Equal(t, "NQ", filtered[1].Symbol)
}

func TestEntryPriceFor(t *testing.T) {
	bid, ask := dp("99"), dp("101")

	tests := []struct {
		name     string
		signal   signals.Signal
		expected *decimal.Decimal
	}{
		{"strong buy enters at ask", signals.SignalStrongBuy, ask},
		{"buy enters at ask", signals.SignalBuy, ask},
		{"sell enters at bid", signals.SignalSell, bid},
		{"strong sell enters at bid", signals.SignalStrongSell, bid},
		{"hold never enters", signals.SignalHold, nil},
		{"unclassified never enters", signals.Signal(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, entryPriceFor(tt.signal, bid, ask))
		})
	}
}
