package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tradewatch/circuit-data/internal/ingest"
	"github.com/tradewatch/circuit-data/internal/model"
)

// fakeQuotes answers OptionQuotes from a per-call script.
type fakeQuotes struct {
	mu          sync.Mutex
	optionCalls [][]model.Instrument
	spotCalls   int

	// respond maps attempt number (1-based) to the tokens answered.
	respond func(call int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error)

	spot    model.QuoteSnapshot
	spotOK  bool
	spotErr error
}

func (f *fakeQuotes) OptionQuotes(_ context.Context, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
	f.mu.Lock()
	f.optionCalls = append(f.optionCalls, req)
	call := len(f.optionCalls)
	f.mu.Unlock()

	if f.respond == nil {
		return map[model.InstrumentKey]model.QuoteSnapshot{}, nil
	}
	return f.respond(call, req)
}

func (f *fakeQuotes) SpotQuote(context.Context) (model.QuoteSnapshot, bool, error) {
	f.mu.Lock()
	f.spotCalls++
	f.mu.Unlock()
	return f.spot, f.spotOK, f.spotErr
}

type fakeUniverse struct {
	insts []model.Instrument
	err   error
}

func (f *fakeUniverse) ActiveUniverse(context.Context) ([]model.Instrument, error) {
	return f.insts, f.err
}

type fakeIngestor struct {
	mu      sync.Mutex
	batches [][]model.QuoteSnapshot
	err     error
	result  ingest.Result
}

func (f *fakeIngestor) Ingest(_ context.Context, snaps []model.QuoteSnapshot, _ *model.QuoteSnapshot) (ingest.Result, error) {
	f.mu.Lock()
	f.batches = append(f.batches, snaps)
	f.mu.Unlock()
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeIngestor) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeSpotSink struct {
	mu   sync.Mutex
	days []model.SpotDay
}

func (f *fakeSpotSink) UpsertSpotDay(_ context.Context, d model.SpotDay) error {
	f.mu.Lock()
	f.days = append(f.days, d)
	f.mu.Unlock()
	return nil
}

func universeOf(n int) []model.Instrument {
	expiry := time.Date(2024, 9, 26, 0, 0, 0, 0, time.UTC)
	insts := make([]model.Instrument, 0, n)
	for i := 0; i < n; i++ {
		insts = append(insts, model.Instrument{
			Token:      uint32(1000 + i),
			Strike:     float64(24000 + 50*i),
			OptionType: model.OptionTypeCall,
			Expiry:     expiry,
		})
	}
	return insts
}

func snapsFor(insts []model.Instrument) map[model.InstrumentKey]model.QuoteSnapshot {
	out := make(map[model.InstrumentKey]model.QuoteSnapshot, len(insts))
	for _, inst := range insts {
		out[inst.Key()] = model.QuoteSnapshot{
			Token:        inst.Token,
			Strike:       inst.Strike,
			OptionType:   inst.OptionType,
			Expiry:       inst.Expiry,
			LowerCircuit: 10,
			UpperCircuit: 20,
		}
	}
	return out
}

func testConfig(t *testing.T) Config {
	return Config{
		Windows: testWindows(t),
		Intervals: Intervals{
			PreMarket:   time.Millisecond,
			MarketHours: time.Millisecond,
			AfterHours:  time.Millisecond,
		},
		SpotIndex:        "NIFTY 50",
		CoverageAttempts: 3,
		CoverageBackoff:  time.Millisecond,
	}
}

func TestCoverageStopsWhenComplete(t *testing.T) {
	universe := universeOf(4)

	// First call answers half the set, second call the rest.
	quotes := &fakeQuotes{
		respond: func(call int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
			switch call {
			case 1:
				return snapsFor(req[:2]), nil
			default:
				return snapsFor(req), nil
			}
		},
	}

	s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, &fakeIngestor{}, nil, nil)

	got := s.collectWithCoverage(context.Background(), universe)

	if len(got) != len(universe) {
		t.Fatalf("collected %d snapshots, want %d", len(got), len(universe))
	}
	if calls := len(quotes.optionCalls); calls != 2 {
		t.Errorf("OptionQuotes called %d times, want 2 (stop once coverage is full)", calls)
	}
	// The second attempt must only re-request the gap.
	if got := len(quotes.optionCalls[1]); got != 2 {
		t.Errorf("second attempt requested %d instruments, want 2", got)
	}
}

func TestCoverageBoundedAttempts(t *testing.T) {
	universe := universeOf(3)

	quotes := &fakeQuotes{
		respond: func(int, []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
			return nil, errors.New("gateway timeout")
		},
	}

	s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, &fakeIngestor{}, nil, nil)

	got := s.collectWithCoverage(context.Background(), universe)

	if len(got) != 0 {
		t.Errorf("collected %d snapshots from a dead source, want 0", len(got))
	}
	if calls := len(quotes.optionCalls); calls != 3 {
		t.Errorf("OptionQuotes called %d times, want exactly 3", calls)
	}
}

func TestCoveragePersistsPartial(t *testing.T) {
	universe := universeOf(4)

	// Only one instrument ever answers.
	quotes := &fakeQuotes{
		respond: func(_ int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
			return snapsFor(universe[:1]), nil
		},
	}

	s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, &fakeIngestor{}, nil, nil)

	got := s.collectWithCoverage(context.Background(), universe)

	if len(got) != 1 {
		t.Errorf("collected %d snapshots, want the 1 that answered", len(got))
	}
	if calls := len(quotes.optionCalls); calls != 3 {
		t.Errorf("OptionQuotes called %d times, want 3", calls)
	}
}

func TestTickSpotPerRegime(t *testing.T) {
	universe := universeOf(2)

	for _, tt := range []struct {
		regime    Regime
		wantSpots int
	}{
		{PreMarket, 1},
		{MarketHours, 1},
		{AfterHours, 0},
	} {
		t.Run(tt.regime.String(), func(t *testing.T) {
			quotes := &fakeQuotes{
				respond: func(_ int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
					return snapsFor(req), nil
				},
			}
			ing := &fakeIngestor{}
			s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, ing, nil, nil)

			if err := s.tick(context.Background(), tt.regime); err != nil {
				t.Fatalf("tick failed: %v", err)
			}
			if quotes.spotCalls != tt.wantSpots {
				t.Errorf("spot fetches = %d, want %d", quotes.spotCalls, tt.wantSpots)
			}
			if ing.batchCount() != 1 {
				t.Fatalf("ingested %d batches, want 1", ing.batchCount())
			}
			if got := len(ing.batches[0]); got != len(universe) {
				t.Errorf("batch size = %d, want %d", got, len(universe))
			}
		})
	}
}

func TestTickSpotRollup(t *testing.T) {
	universe := universeOf(1)
	businessDate := time.Date(2024, 9, 26, 0, 0, 0, 0, ist)

	quotes := &fakeQuotes{
		respond: func(_ int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
			return snapsFor(req), nil
		},
		spot: model.QuoteSnapshot{
			OHLC: model.OHLC{Open: 24010, High: 24200, Low: 23990, Close: 24100},
		},
		spotOK: true,
	}
	sink := &fakeSpotSink{}
	ing := &fakeIngestor{result: ingest.Result{Saved: 1, BusinessDate: businessDate}}

	s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, ing, sink, nil)

	if err := s.tick(context.Background(), MarketHours); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if len(sink.days) != 1 {
		t.Fatalf("spot rollup wrote %d rows, want 1", len(sink.days))
	}
	day := sink.days[0]
	if day.Index != "NIFTY 50" {
		t.Errorf("Index = %q, want %q", day.Index, "NIFTY 50")
	}
	if !day.TradingDate.Equal(businessDate) {
		t.Errorf("TradingDate = %v, want %v", day.TradingDate, businessDate)
	}
}

func TestRunSurvivesTickFailures(t *testing.T) {
	universe := universeOf(1)

	quotes := &fakeQuotes{
		respond: func(_ int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
			return snapsFor(req), nil
		},
	}
	ing := &fakeIngestor{err: errors.New("store down")}

	s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, ing, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Let several failing ticks elapse, then shut down.
	deadline := time.After(2 * time.Second)
	for ing.batchCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop did not keep ticking after failures")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}

	if ing.batchCount() < 3 {
		t.Errorf("only %d ticks ran, want >= 3 despite failures", ing.batchCount())
	}
}

func TestLastTick(t *testing.T) {
	universe := universeOf(1)
	quotes := &fakeQuotes{
		respond: func(_ int, req []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
			return snapsFor(req), nil
		},
	}
	ing := &fakeIngestor{result: ingest.Result{Saved: 1}}
	s := New(testConfig(t), quotes, &fakeUniverse{insts: universe}, ing, nil, nil)

	if at, _ := s.LastTick(); !at.IsZero() {
		t.Error("LastTick non-zero before any tick")
	}

	if err := s.tick(context.Background(), AfterHours); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	at, res := s.LastTick()
	if at.IsZero() {
		t.Error("LastTick zero after a tick")
	}
	if res.Saved != 1 {
		t.Errorf("LastTick result = %+v, want Saved 1", res)
	}
}
