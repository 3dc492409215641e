package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigSource struct {
	thresholds map[string]*Thresholds
	targets    map[string]*Targets
	lookups    int
}

func (f *fakeConfigSource) ThresholdsFor(symbol string) (*Thresholds, error) {
	f.lookups++
	return f.thresholds[symbol], nil
}

func (f *fakeConfigSource) TargetsFor(symbol string) (*Targets, error) {
	return f.targets[symbol], nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func ladder() *Thresholds {
	return &Thresholds{
		StrongBuy:      dp("60"),
		Buy:            dp("10"),
		Sell:           dp("-10"),
		StrongSell:     dp("-60"),
		Weight:         3,
		StatStrongBuy:  d("2"),
		StatBuy:        d("1"),
		StatHold:       d("0"),
		StatSell:       d("-1"),
		StatStrongSell: d("-2"),
	}
}

func newTestClassifier(src ConfigSource) *Classifier {
	return NewClassifier(NewConfigCache(src, time.Minute))
}

func TestClassifyLadder(t *testing.T) {
	src := &fakeConfigSource{thresholds: map[string]*Thresholds{"ES": ladder()}}
	c := newTestClassifier(src)

	tests := []struct {
		name     string
		change   interface{}
		expected Signal
		stat     string
	}{
		{"far above strong buy", "100", SignalStrongBuy, "2"},
		{"just above strong buy", "60.01", SignalStrongBuy, "2"},
		{"exactly strong buy is plain buy", "60", SignalBuy, "1"},
		{"just above buy", "10.01", SignalBuy, "1"},
		{"exactly buy threshold holds", "10", SignalHold, "0"},
		{"flat", "0", SignalHold, "0"},
		{"exactly sell threshold holds", "-10", SignalHold, "0"},
		{"just below sell", "-10.01", SignalSell, "-1"},
		{"just above strong sell", "-59.99", SignalSell, "-1"},
		{"exactly strong sell", "-60", SignalStrongSell, "-2"},
		{"far below strong sell", "-100", SignalStrongSell, "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, stat, weight := c.Classify("ES", tt.change)
			assert.Equal(t, tt.expected, sig)
			require.NotNil(t, stat)
			assert.True(t, stat.Equal(d(tt.stat)), "stat %s != %s", stat, tt.stat)
			assert.Equal(t, 3, weight)
		})
	}
}

func TestClassifyCoercion(t *testing.T) {
	src := &fakeConfigSource{thresholds: map[string]*Thresholds{"ES": ladder()}}
	c := newTestClassifier(src)

	t.Run("float input", func(t *testing.T) {
		sig, _, _ := c.Classify("ES", 10.01)
		assert.Equal(t, SignalBuy, sig)
	})

	t.Run("decimal input", func(t *testing.T) {
		sig, _, _ := c.Classify("ES", d("-10.01"))
		assert.Equal(t, SignalSell, sig)
	})

	t.Run("unparseable string fails soft", func(t *testing.T) {
		sig, stat, weight := c.Classify("ES", "not-a-number")
		assert.Equal(t, Signal(""), sig)
		assert.Nil(t, stat)
		assert.Equal(t, 3, weight)
	})

	t.Run("nil change fails soft", func(t *testing.T) {
		sig, stat, weight := c.Classify("ES", nil)
		assert.Equal(t, Signal(""), sig)
		assert.Nil(t, stat)
		assert.Equal(t, 3, weight)
	})
}

func TestClassifyMissingConfiguration(t *testing.T) {
	incomplete := ladder()
	incomplete.Buy = nil

	src := &fakeConfigSource{thresholds: map[string]*Thresholds{"NQ": incomplete}}
	c := newTestClassifier(src)

	t.Run("incomplete ladder refuses to classify", func(t *testing.T) {
		sig, stat, weight := c.Classify("NQ", "50")
		assert.Equal(t, Signal(""), sig)
		assert.Nil(t, stat)
		assert.Equal(t, 3, weight)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		sig, stat, weight := c.Classify("ZZ", "50")
		assert.Equal(t, Signal(""), sig)
		assert.Nil(t, stat)
		assert.Equal(t, 0, weight)
	})
}

func TestConfigCacheTTL(t *testing.T) {
	src := &fakeConfigSource{thresholds: map[string]*Thresholds{"ES": ladder()}}
	cache := NewConfigCache(src, 50*time.Millisecond)
	c := NewClassifier(cache)

	c.Classify("ES", "0")
	c.Classify("ES", "0")
	assert.Equal(t, 1, src.lookups, "second classify within TTL should hit the cache")

	time.Sleep(60 * time.Millisecond)
	c.Classify("ES", "0")
	assert.Equal(t, 2, src.lookups, "expired entry should be refetched")

	cache.Invalidate("ES")
	c.Classify("ES", "0")
	assert.Equal(t, 3, src.lookups, "invalidation should force a refetch")
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		ok    bool
	}{
		{"nil", nil, false},
		{"string", "1.25", true},
		{"bad string", "x", false},
		{"float64", 1.25, true},
		{"int", 7, true},
		{"int64", int64(-3), true},
		{"decimal", d("0.001"), true},
		{"nil decimal pointer", (*decimal.Decimal)(nil), false},
		{"unsupported type", struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ToDecimal(tt.input)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSignalDirections(t *testing.T) {
	assert.True(t, SignalStrongBuy.IsBuy())
	assert.True(t, SignalBuy.IsBuy())
	assert.True(t, SignalSell.IsSell())
	assert.True(t, SignalStrongSell.IsSell())
	assert.False(t, SignalHold.IsActionable())
	assert.False(t, Signal("").IsActionable())
}
