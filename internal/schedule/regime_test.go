package schedule

import (
	"testing"
	"time"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func testWindows(t *testing.T) Windows {
	t.Helper()
	w, err := NewWindows("Asia/Kolkata", "06:00", "09:15", "15:30")
	if err != nil {
		t.Fatalf("NewWindows failed: %v", err)
	}
	return w
}

func TestRegimeAt(t *testing.T) {
	w := testWindows(t)

	at := func(hour, min int) time.Time {
		return time.Date(2024, 9, 26, hour, min, 0, 0, ist)
	}

	tests := []struct {
		name string
		t    time.Time
		want Regime
	}{
		{"before pre-market", at(5, 59), AfterHours},
		{"pre-market opens", at(6, 0), PreMarket},
		{"mid pre-market", at(8, 30), PreMarket},
		{"last pre-market minute", at(9, 14), PreMarket},
		{"market opens", at(9, 15), MarketHours},
		{"shortly after open", at(9, 20), MarketHours},
		{"last market minute", at(15, 29), MarketHours},
		{"market closes", at(15, 30), AfterHours},
		{"evening", at(20, 0), AfterHours},
		{"midnight", at(0, 0), AfterHours},
		{"early morning", at(2, 0), AfterHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.At(tt.t); got != tt.want {
				t.Errorf("At(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestRegimeAtConvertsLocation(t *testing.T) {
	w := testWindows(t)

	// 03:50 UTC is 09:20 IST — market hours regardless of the caller's zone.
	utc := time.Date(2024, 9, 26, 3, 50, 0, 0, time.UTC)
	if got := w.At(utc); got != MarketHours {
		t.Errorf("At(%v UTC) = %v, want MarketHours", utc, got)
	}
}

func TestIntervalsFor(t *testing.T) {
	iv := Intervals{
		PreMarket:   3 * time.Minute,
		MarketHours: 1 * time.Minute,
		AfterHours:  60 * time.Minute,
	}

	tests := []struct {
		regime Regime
		want   time.Duration
	}{
		{PreMarket, 3 * time.Minute},
		{MarketHours, 1 * time.Minute},
		{AfterHours, 60 * time.Minute},
	}
	for _, tt := range tests {
		if got := iv.For(tt.regime); got != tt.want {
			t.Errorf("For(%v) = %v, want %v", tt.regime, got, tt.want)
		}
	}
}

func TestNewWindowsRejectsBadInput(t *testing.T) {
	if _, err := NewWindows("Mars/Olympus", "06:00", "09:15", "15:30"); err == nil {
		t.Error("bad timezone accepted")
	}
	if _, err := NewWindows("Asia/Kolkata", "6am", "09:15", "15:30"); err == nil {
		t.Error("bad clock format accepted")
	}
	if _, err := NewWindows("Asia/Kolkata", "09:15", "06:00", "15:30"); err == nil {
		t.Error("out-of-order boundaries accepted")
	}
}

func TestRegimeString(t *testing.T) {
	if PreMarket.String() != "pre_market" || MarketHours.String() != "market_hours" || AfterHours.String() != "after_hours" {
		t.Error("unexpected regime names")
	}
}
