package quote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/sync/errgroup"

	"github.com/tradewatch/circuit-data/internal/model"
)

// quoteAPI is the slice of the Kite Connect client the source needs.
// *kiteconnect.Client satisfies it; tests substitute a fake.
type quoteAPI interface {
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
}

// Config holds quote source configuration.
type Config struct {
	Exchange   string // Option segment exchange prefix, e.g. "NFO"
	SpotID     string // Full spot instrument id, e.g. "NSE:NIFTY 50"
	Underlying string // Underlying stamped onto option snapshots
	BatchSize  int    // Max instruments per quote call (API ceiling: 500)
	Parallel   int    // Max concurrent quote calls
}

// DefaultConfig returns sensible defaults for NIFTY options.
func DefaultConfig() Config {
	return Config{
		Exchange:   "NFO",
		SpotID:     "NSE:NIFTY 50",
		Underlying: "NIFTY",
		BatchSize:  500,
		Parallel:   4,
	}
}

// Kite fetches quote snapshots from the Kite Connect API.
type Kite struct {
	cfg    Config
	api    quoteAPI
	logger *slog.Logger
	now    func() time.Time
}

// NewKite creates a Kite-backed quote source.
func NewKite(cfg Config, api quoteAPI, logger *slog.Logger) *Kite {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	return &Kite{
		cfg:    cfg,
		api:    api,
		logger: logger,
		now:    time.Now,
	}
}

// OptionQuotes fetches snapshots for the given option instruments.
//
// The returned map may cover a strict subset of the request: instruments
// the API did not answer for are simply absent. When a batch fails, the
// snapshots already collected are returned alongside the error so the
// caller can still fold them into its coverage set.
func (k *Kite) OptionQuotes(ctx context.Context, instruments []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error) {
	out := make(map[model.InstrumentKey]model.QuoteSnapshot, len(instruments))
	if len(instruments) == 0 {
		return out, nil
	}

	// The quote API is keyed by "EXCHANGE:TRADINGSYMBOL".
	byID := make(map[string]model.Instrument, len(instruments))
	ids := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		id := k.cfg.Exchange + ":" + inst.TradingSymbol
		byID[id] = inst
		ids = append(ids, id)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(k.cfg.Parallel)

	for start := 0; start < len(ids); start += k.cfg.BatchSize {
		end := min(start+k.cfg.BatchSize, len(ids))
		batch := ids[start:end]

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			quotes, err := k.api.GetQuote(batch...)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			received := k.now()
			for id, q := range quotes {
				inst, ok := byID[id]
				if !ok {
					continue
				}
				out[inst.Key()] = model.QuoteSnapshot{
					Token:         inst.Token,
					TradingSymbol: inst.TradingSymbol,
					Underlying:    inst.Underlying,
					Strike:        inst.Strike,
					OptionType:    inst.OptionType,
					Expiry:        inst.Expiry,
					OHLC: model.OHLC{
						Open:  q.OHLC.Open,
						High:  q.OHLC.High,
						Low:   q.OHLC.Low,
						Close: q.OHLC.Close,
					},
					LastPrice:     q.LastPrice,
					LowerCircuit:  q.LowerCircuitLimit,
					UpperCircuit:  q.UpperCircuitLimit,
					LastTradeTime: q.LastTradeTime.Time,
					ReceivedAt:    received,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}

	if len(out) < len(instruments) {
		k.logger.Debug("quote response covered a subset",
			"requested", len(instruments),
			"received", len(out),
		)
	}

	return out, nil
}

// SpotQuote fetches the current snapshot of the configured spot index.
// The second return is false when the API answered without the index,
// which callers treat like any other partial coverage.
func (k *Kite) SpotQuote(ctx context.Context) (model.QuoteSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.QuoteSnapshot{}, false, err
	}

	quotes, err := k.api.GetQuote(k.cfg.SpotID)
	if err != nil {
		return model.QuoteSnapshot{}, false, err
	}

	q, ok := quotes[k.cfg.SpotID]
	if !ok {
		return model.QuoteSnapshot{}, false, nil
	}

	return model.QuoteSnapshot{
		Token:         uint32(q.InstrumentToken),
		TradingSymbol: k.cfg.SpotID,
		Underlying:    k.cfg.Underlying,
		OptionType:    model.OptionTypeIndex,
		OHLC: model.OHLC{
			Open:  q.OHLC.Open,
			High:  q.OHLC.High,
			Low:   q.OHLC.Low,
			Close: q.OHLC.Close,
		},
		LastPrice:     q.LastPrice,
		LowerCircuit:  q.LowerCircuitLimit,
		UpperCircuit:  q.UpperCircuitLimit,
		LastTradeTime: q.LastTradeTime.Time,
		ReceivedAt:    k.now(),
	}, true, nil
}
