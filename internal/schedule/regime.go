package schedule

import (
	"fmt"
	"time"
)

// Regime is a trading-session phase with its own collection cadence.
type Regime int

const (
	PreMarket Regime = iota
	MarketHours
	AfterHours
)

func (r Regime) String() string {
	switch r {
	case PreMarket:
		return "pre_market"
	case MarketHours:
		return "market_hours"
	case AfterHours:
		return "after_hours"
	default:
		return "unknown"
	}
}

// Windows holds the session boundaries as minutes from midnight in Loc.
// The pre-market window is [PreMarketOpen, MarketOpen), market hours are
// [MarketOpen, MarketClose), everything else is after-hours.
type Windows struct {
	Loc           *time.Location
	PreMarketOpen int
	MarketOpen    int
	MarketClose   int
}

// NewWindows parses "HH:MM" boundaries in the named timezone.
func NewWindows(timezone, preMarketOpen, marketOpen, marketClose string) (Windows, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Windows{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	w := Windows{Loc: loc}
	for _, b := range []struct {
		value string
		dst   *int
	}{
		{preMarketOpen, &w.PreMarketOpen},
		{marketOpen, &w.MarketOpen},
		{marketClose, &w.MarketClose},
	} {
		m, err := parseClock(b.value)
		if err != nil {
			return Windows{}, err
		}
		*b.dst = m
	}

	if !(w.PreMarketOpen < w.MarketOpen && w.MarketOpen < w.MarketClose) {
		return Windows{}, fmt.Errorf("session boundaries out of order: %s / %s / %s",
			preMarketOpen, marketOpen, marketClose)
	}
	return w, nil
}

// At returns the regime in effect at t.
func (w Windows) At(t time.Time) Regime {
	local := t.In(w.Loc)
	m := local.Hour()*60 + local.Minute()

	switch {
	case m >= w.PreMarketOpen && m < w.MarketOpen:
		return PreMarket
	case m >= w.MarketOpen && m < w.MarketClose:
		return MarketHours
	default:
		return AfterHours
	}
}

// Intervals maps each regime to its collection interval.
type Intervals struct {
	PreMarket   time.Duration
	MarketHours time.Duration
	AfterHours  time.Duration
}

// For returns the interval for a regime.
func (iv Intervals) For(r Regime) time.Duration {
	switch r {
	case PreMarket:
		return iv.PreMarket
	case MarketHours:
		return iv.MarketHours
	default:
		return iv.AfterHours
	}
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
