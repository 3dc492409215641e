// Package marketclock answers "is this market open right now" for the
// tracked markets, using each market's own timezone and trading calendar.
package marketclock

import (
	"log"
	"time"

	models "futures-sentinel/database/models_pkg"
)

// Session labels relative to a market's trading day
const (
	SessionPreOpen    = "PRE_OPEN"
	SessionOpen       = "OPEN"
	SessionAfterHours = "AFTER_HOURS"
	SessionClosed     = "CLOSED" // non-trading day
)

// PreOpenWindowMinutes is how long before the open the PRE_OPEN label applies
const PreOpenWindowMinutes = 15

// Clock evaluates market open/close state. The zero value is usable; Now
// is overridable for tests.
type Clock struct {
	Now func() time.Time
}

// New returns a clock running on wall time
func New() *Clock {
	return &Clock{Now: time.Now}
}

// IsOpenNow reports whether the market is inside its trading hours right now
func (c *Clock) IsOpenNow(m *models.Market) bool {
	return c.IsOpenAt(m, c.now())
}

// IsOpenAt reports whether the market is inside its trading hours at t.
//
// A market with OpenMinute > CloseMinute runs an overnight session: it
// opens one day and closes the next (futures markets open in the evening
// and trade into the following afternoon). The trading-days mask always
// applies to the day a session OPENS, so the morning tail of an overnight
// session is open iff the previous day is in the mask.
func (c *Clock) IsOpenAt(m *models.Market, t time.Time) bool {
	local := t.In(c.location(m))
	minute := local.Hour()*60 + local.Minute()

	if m.OpenMinute > m.CloseMinute {
		if minute >= m.OpenMinute {
			return tradesOn(m, local.Weekday())
		}
		if minute < m.CloseMinute {
			return tradesOn(m, previousDay(local.Weekday()))
		}
		return false
	}

	if !tradesOn(m, local.Weekday()) {
		return false
	}
	return minute >= m.OpenMinute && minute < m.CloseMinute
}

// SessionLabel returns the market's session phase at t
func (c *Clock) SessionLabel(m *models.Market, t time.Time) string {
	if c.IsOpenAt(m, t) {
		return SessionOpen
	}
	local := t.In(c.location(m))
	if !tradesOn(m, local.Weekday()) {
		return SessionClosed
	}
	minute := local.Hour()*60 + local.Minute()
	if minute >= m.OpenMinute-PreOpenWindowMinutes && minute < m.OpenMinute {
		return SessionPreOpen
	}
	return SessionAfterHours
}

// AnyOpen reports whether at least one of the markets is open right now.
// Used by the grader as a cheap early-exit gate.
func (c *Clock) AnyOpen(markets []models.Market) bool {
	now := c.now()
	for i := range markets {
		if c.IsOpenAt(&markets[i], now) {
			return true
		}
	}
	return false
}

func (c *Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// location resolves the market timezone, falling back to UTC when the
// configured zone name cannot be loaded
func (c *Clock) location(m *models.Market) *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		log.Printf("⚠️ Failed to load timezone %s for market %s: %v", m.Timezone, m.Country, err)
		return time.UTC
	}
	return loc
}

// tradesOn checks the market's trading-days bitmask (bit 0 = Sunday)
func tradesOn(m *models.Market, day time.Weekday) bool {
	return m.TradingDays&(1<<uint(day)) != 0
}

func previousDay(day time.Weekday) time.Weekday {
	return (day + 6) % 7
}
