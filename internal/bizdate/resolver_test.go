package bizdate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tradewatch/circuit-data/internal/model"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// fakeStore serves canned strike rows and spot days.
type fakeStore struct {
	strikes    []model.QuoteRecord
	strikesErr error
	spotDays   []model.SpotDay
	spotErr    error
}

func (f *fakeStore) StrikeLatest(ctx context.Context) ([]model.QuoteRecord, error) {
	return f.strikes, f.strikesErr
}

func (f *fakeStore) RecentSpotDays(ctx context.Context, index string, limit int) ([]model.SpotDay, error) {
	return f.spotDays, f.spotErr
}

func newTestResolver(store Store, now time.Time) *Resolver {
	r := New(store, "NIFTY 50", ist, nil)
	r.now = func() time.Time { return now }
	return r
}

func liveSpot(open float64) *model.QuoteSnapshot {
	return &model.QuoteSnapshot{
		OHLC: model.OHLC{Open: open, High: open + 100, Low: open - 100, Close: open - 20},
	}
}

func TestResolveStrikeLTT(t *testing.T) {
	ltt := time.Date(2024, 9, 26, 15, 12, 0, 0, ist)
	store := &fakeStore{
		strikes: []model.QuoteRecord{
			{Strike: 23500, LastTradeTime: ltt.AddDate(0, 0, -3)},
			{Strike: 24100, LastTradeTime: ltt}, // nearest to spot 24123
			{Strike: 24800, LastTradeTime: ltt.AddDate(0, 0, -1)},
		},
		// A spot day also exists; strike-LTT must win.
		spotDays: []model.SpotDay{{TradingDate: time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC)}},
	}

	r := newTestResolver(store, ltt.Add(3*time.Hour))
	got := r.Resolve(context.Background(), liveSpot(24123))

	want := time.Date(2024, 9, 26, 0, 0, 0, 0, ist)
	if !got.Equal(want) {
		t.Errorf("Resolve = %v, want %v (date of nearest strike's LTT)", got, want)
	}
}

func TestResolvePrefersOpenWhileTrading(t *testing.T) {
	ltt := time.Date(2024, 9, 26, 11, 0, 0, 0, ist)
	store := &fakeStore{
		strikes: []model.QuoteRecord{
			// 24000 is nearest to the open (24010), 25000 to the close (25100).
			{Strike: 24000, LastTradeTime: ltt},
			{Strike: 25000, LastTradeTime: ltt.AddDate(0, 0, -7)},
		},
	}

	spot := &model.QuoteSnapshot{
		OHLC: model.OHLC{Open: 24010, High: 24200, Low: 23990, Close: 25100},
	}
	r := newTestResolver(store, ltt)
	got := r.Resolve(context.Background(), spot)

	want := time.Date(2024, 9, 26, 0, 0, 0, 0, ist)
	if !got.Equal(want) {
		t.Errorf("Resolve = %v, want %v (open must anchor the strike search)", got, want)
	}
}

func TestResolveUsesCloseBeforeOpen(t *testing.T) {
	ltt := time.Date(2024, 9, 25, 15, 29, 0, 0, ist)
	store := &fakeStore{
		strikes: []model.QuoteRecord{
			{Strike: 24100, LastTradeTime: ltt},
		},
	}

	// Pre-open: O/H/L zeroed, only the previous close is real.
	spot := &model.QuoteSnapshot{OHLC: model.OHLC{Close: 24100}}
	r := newTestResolver(store, time.Date(2024, 9, 26, 7, 0, 0, 0, ist))
	got := r.Resolve(context.Background(), spot)

	want := time.Date(2024, 9, 25, 0, 0, 0, 0, ist)
	if !got.Equal(want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolveSpotHistoryFallback(t *testing.T) {
	store := &fakeStore{
		strikes: nil, // no traded strikes at all
		spotDays: []model.SpotDay{
			{TradingDate: time.Date(2024, 9, 24, 0, 0, 0, 0, time.UTC)},
		},
	}

	r := newTestResolver(store, time.Date(2024, 9, 26, 7, 0, 0, 0, ist))
	got := r.Resolve(context.Background(), liveSpot(24000))

	want := time.Date(2024, 9, 24, 0, 0, 0, 0, ist)
	if !got.Equal(want) {
		t.Errorf("Resolve = %v, want %v (historical spot beats weekday fallback)", got, want)
	}
}

func TestResolveWeekdayFallback(t *testing.T) {
	store := &fakeStore{} // nothing anywhere

	// Monday morning: the previous trading day is the preceding Friday.
	monday := time.Date(2024, 9, 30, 7, 0, 0, 0, ist)
	r := newTestResolver(store, monday)
	got := r.Resolve(context.Background(), nil)

	friday := time.Date(2024, 9, 27, 0, 0, 0, 0, ist)
	if !got.Equal(friday) {
		t.Errorf("Resolve = %v, want %v (Friday)", got, friday)
	}

	// Mid-week: plain yesterday.
	thursday := time.Date(2024, 9, 26, 7, 0, 0, 0, ist)
	r = newTestResolver(store, thursday)
	got = r.Resolve(context.Background(), nil)

	wednesday := time.Date(2024, 9, 25, 0, 0, 0, 0, ist)
	if !got.Equal(wednesday) {
		t.Errorf("Resolve = %v, want %v (Wednesday)", got, wednesday)
	}
}

func TestResolveStoreErrorsDegrade(t *testing.T) {
	store := &fakeStore{
		strikesErr: errors.New("connection refused"),
		spotErr:    errors.New("connection refused"),
	}

	monday := time.Date(2024, 9, 30, 7, 0, 0, 0, ist)
	r := newTestResolver(store, monday)
	got := r.Resolve(context.Background(), liveSpot(24000))

	friday := time.Date(2024, 9, 27, 0, 0, 0, 0, ist)
	if !got.Equal(friday) {
		t.Errorf("Resolve = %v, want %v (errors must degrade, not propagate)", got, friday)
	}
}

func TestCurrentServesCache(t *testing.T) {
	ltt := time.Date(2024, 9, 26, 15, 0, 0, 0, ist)
	store := &fakeStore{
		strikes: []model.QuoteRecord{{Strike: 24000, LastTradeTime: ltt}},
	}

	r := newTestResolver(store, ltt)
	first := r.Current(context.Background(), liveSpot(24000))

	// Remove the data; the cache must still answer.
	store.strikes = nil
	store.strikesErr = errors.New("down")
	second := r.Current(context.Background(), liveSpot(24000))

	if !first.Equal(second) {
		t.Errorf("Current after cache fill = %v, want cached %v", second, first)
	}

	// Past the TTL the cache no longer answers: Current recomputes.
	monday := time.Date(2024, 9, 30, 7, 0, 0, 0, ist)
	r.now = func() time.Time { return monday }
	stale := r.Current(context.Background(), nil)
	friday := time.Date(2024, 9, 27, 0, 0, 0, 0, ist)
	if !stale.Equal(friday) {
		t.Errorf("Current past TTL = %v, want recomputed %v", stale, friday)
	}

	// Resolve always bypasses the cache.
	recomputed := r.Resolve(context.Background(), nil)
	if !recomputed.Equal(friday) {
		t.Errorf("Resolve after data loss = %v, want %v", recomputed, friday)
	}
}
