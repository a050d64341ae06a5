package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tradewatch/circuit-data/internal/ingest"
	"github.com/tradewatch/circuit-data/internal/model"
)

// QuoteSource supplies fresh snapshots. May answer a strict subset of
// the request; a partial map alongside an error is still usable.
type QuoteSource interface {
	OptionQuotes(ctx context.Context, instruments []model.Instrument) (map[model.InstrumentKey]model.QuoteSnapshot, error)
	SpotQuote(ctx context.Context) (model.QuoteSnapshot, bool, error)
}

// UniverseSource supplies the target instrument universe.
type UniverseSource interface {
	ActiveUniverse(ctx context.Context) ([]model.Instrument, error)
}

// Ingestor turns a snapshot batch into history rows.
type Ingestor interface {
	Ingest(ctx context.Context, snaps []model.QuoteSnapshot, spot *model.QuoteSnapshot) (ingest.Result, error)
}

// SpotSink records the day's spot OHLC after market-hours ticks.
type SpotSink interface {
	UpsertSpotDay(ctx context.Context, d model.SpotDay) error
}

// Config holds scheduler configuration. The value is immutable once the
// scheduler is constructed.
type Config struct {
	Windows   Windows
	Intervals Intervals

	// SpotIndex names the spot_history rows the spot rollup writes.
	SpotIndex string

	// Market-hours coverage protocol.
	CoverageAttempts int
	CoverageBackoff  time.Duration
}

// Scheduler drives collection ticks at the cadence of the current regime.
type Scheduler struct {
	cfg      Config
	quotes   QuoteSource
	universe UniverseSource
	pipeline Ingestor
	spot     SpotSink
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastTickAt time.Time
	lastResult ingest.Result
}

// New creates a Scheduler. spot may be nil to disable the spot rollup.
func New(cfg Config, quotes QuoteSource, universe UniverseSource, pipeline Ingestor, spot SpotSink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CoverageAttempts < 1 {
		cfg.CoverageAttempts = 1
	}
	return &Scheduler{
		cfg:      cfg,
		quotes:   quotes,
		universe: universe,
		pipeline: pipeline,
		spot:     spot,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the collection loop until ctx is cancelled. A tick in
// flight completes before cancellation is observed.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("collection scheduler started",
		"pre_market_interval", s.cfg.Intervals.PreMarket,
		"market_interval", s.cfg.Intervals.MarketHours,
		"after_hours_interval", s.cfg.Intervals.AfterHours,
	)

	for {
		regime := s.cfg.Windows.At(s.now())

		if err := s.tick(ctx, regime); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("collection scheduler stopped")
				return ctx.Err()
			}
			// Tick failures never terminate the loop.
			s.logger.Error("tick failed",
				"regime", regime.String(),
				"err", err,
			)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("collection scheduler stopped")
			return ctx.Err()
		case <-time.After(s.cfg.Intervals.For(regime)):
		}
	}
}

// LastTick reports when the last tick completed and what it ingested,
// for health reporting. The time is zero before the first tick.
func (s *Scheduler) LastTick() (time.Time, ingest.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTickAt, s.lastResult
}

// tick performs one fetch → diff → persist → date-stamp pass.
func (s *Scheduler) tick(ctx context.Context, regime Regime) error {
	start := s.now()

	universe, err := s.universe.ActiveUniverse(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if len(universe) == 0 {
		s.logger.Warn("no active instruments to collect", "regime", regime.String())
		return nil
	}

	// After-hours ticks skip the spot refresh: they exist for low-frequency
	// band-change detection only.
	var spot *model.QuoteSnapshot
	if regime != AfterHours {
		sp, ok, err := s.quotes.SpotQuote(ctx)
		switch {
		case err != nil:
			s.logger.Warn("spot fetch failed", "err", err)
		case ok:
			spot = &sp
		}
	}

	var snaps map[model.InstrumentKey]model.QuoteSnapshot
	if regime == MarketHours {
		snaps = s.collectWithCoverage(ctx, universe)
	} else {
		// Single best-effort attempt outside market hours.
		snaps, err = s.quotes.OptionQuotes(ctx, universe)
		if err != nil {
			if len(snaps) == 0 {
				return fmt.Errorf("fetch quotes: %w", err)
			}
			s.logger.Warn("quote fetch partially failed", "err", err, "received", len(snaps))
		}
	}

	batch := sortedBatch(snaps)
	res, err := s.pipeline.Ingest(ctx, batch, spot)
	if err != nil {
		return fmt.Errorf("ingest batch: %w", err)
	}

	if s.spot != nil && spot != nil && spot.OHLC.ActivelyTrading() {
		day := model.SpotDay{
			Index:       s.cfg.SpotIndex,
			TradingDate: res.BusinessDate,
			OHLC:        spot.OHLC,
			LastUpdated: s.now(),
		}
		if err := s.spot.UpsertSpotDay(ctx, day); err != nil {
			s.logger.Warn("spot day rollup failed", "err", err)
		}
	}

	s.mu.Lock()
	s.lastTickAt = s.now()
	s.lastResult = res
	s.mu.Unlock()

	s.logger.Info("tick complete",
		"regime", regime.String(),
		"collection_id", res.CollectionID,
		"universe", len(universe),
		"fetched", len(batch),
		"saved", res.Saved,
		"skipped", res.Skipped,
		"duration", s.now().Sub(start),
	)
	return nil
}

// collectWithCoverage runs the market-hours coverage protocol: fetch the
// still-missing part of the target set, union the results, and stop as
// soon as coverage is complete or the attempts are spent. Whatever was
// collected is returned regardless of residual gaps.
func (s *Scheduler) collectWithCoverage(ctx context.Context, universe []model.Instrument) map[model.InstrumentKey]model.QuoteSnapshot {
	collected := make(map[model.InstrumentKey]model.QuoteSnapshot, len(universe))

	for attempt := 1; attempt <= s.cfg.CoverageAttempts; attempt++ {
		missing := universe[:0:0]
		for _, inst := range universe {
			if _, ok := collected[inst.Key()]; !ok {
				missing = append(missing, inst)
			}
		}
		if len(missing) == 0 {
			break
		}

		snaps, err := s.quotes.OptionQuotes(ctx, missing)
		for k, v := range snaps {
			collected[k] = v
		}
		if err != nil {
			s.logger.Warn("coverage attempt failed",
				"attempt", attempt,
				"err", err,
				"collected", len(collected),
			)
		}

		if len(collected) == len(universe) || attempt == s.cfg.CoverageAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return collected
		case <-time.After(s.cfg.CoverageBackoff):
		}
	}

	if missing := len(universe) - len(collected); missing > 0 {
		s.logger.Warn("coverage incomplete after retries",
			"missing", missing,
			"target", len(universe),
			"coverage", fmt.Sprintf("%.1f%%", 100*float64(len(collected))/float64(len(universe))),
		)
	}
	return collected
}

// sortedBatch flattens a snapshot map into token/expiry order so inserts
// land deterministically.
func sortedBatch(snaps map[model.InstrumentKey]model.QuoteSnapshot) []model.QuoteSnapshot {
	batch := make([]model.QuoteSnapshot, 0, len(snaps))
	for _, s := range snaps {
		batch = append(batch, s)
	}
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Token != batch[j].Token {
			return batch[i].Token < batch[j].Token
		}
		return batch[i].Expiry.Before(batch[j].Expiry)
	})
	return batch
}
