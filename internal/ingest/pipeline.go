package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradewatch/circuit-data/internal/model"
)

// Store is the slice of the persistent store the pipeline writes through.
type Store interface {
	LatestQuote(ctx context.Context, key model.InstrumentKey) (model.QuoteRecord, bool, error)
	MaxDaySeq(ctx context.Context, key model.InstrumentKey, businessDate time.Time) (int64, error)
	MaxGlobalSeq(ctx context.Context, key model.InstrumentKey) (int64, error)
	InsertQuotes(ctx context.Context, recs []model.QuoteRecord) error
	StampBusinessDate(ctx context.Context, date, since time.Time) (int64, error)
}

// Resolver supplies the business date: Current for stamping rows at
// insert, Resolve for the forced recomputation after a change.
type Resolver interface {
	Current(ctx context.Context, spot *model.QuoteSnapshot) time.Time
	Resolve(ctx context.Context, spot *model.QuoteSnapshot) time.Time
}

// Config holds pipeline configuration.
type Config struct {
	// StampWindow is the trailing window over which a freshly resolved
	// business date is retroactively applied.
	StampWindow time.Duration
}

// Result summarises one ingested batch.
type Result struct {
	Saved        int       // Rows appended
	Skipped      int       // Snapshots discarded as band duplicates
	Stamped      int64     // Rows whose business date was retro-patched
	BusinessDate time.Time // Date in effect after the batch
	CollectionID uuid.UUID // Tick id carried on every appended row
}

// Pipeline converts snapshot batches into history rows.
type Pipeline struct {
	cfg      Config
	store    Store
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Pipeline.
func New(cfg Config, store Store, resolver Resolver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StampWindow <= 0 {
		cfg.StampWindow = 24 * time.Hour
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest diffs a batch of snapshots against persisted state and appends
// exactly the changed ones, in one transaction. spot may be nil when no
// index quote was available this tick.
//
// A persistence failure aborts the whole batch and is returned to the
// caller; nothing partial commits. When at least one row was appended the
// business date is recomputed and stamped retroactively — by then the
// rows are durable, so a stamp failure is reported alongside a populated
// Result rather than voiding it.
func (p *Pipeline) Ingest(ctx context.Context, snaps []model.QuoteSnapshot, spot *model.QuoteSnapshot) (Result, error) {
	res := Result{CollectionID: uuid.New()}
	if len(snaps) == 0 {
		return res, nil
	}

	businessDate := p.resolver.Current(ctx, spot)
	res.BusinessDate = businessDate
	recordedAt := p.now()

	var pending []model.QuoteRecord
	for _, snap := range snaps {
		key := snap.Key()

		latest, found, err := p.store.LatestQuote(ctx, key)
		if err != nil {
			return res, fmt.Errorf("load latest for %s: %w", key, err)
		}

		if found && latest.SameBand(snap) {
			res.Skipped++
			continue
		}

		daySeq, globalSeq := int64(1), int64(1)
		if found {
			maxDay, err := p.store.MaxDaySeq(ctx, key, businessDate)
			if err != nil {
				return res, fmt.Errorf("max day seq for %s: %w", key, err)
			}
			maxGlobal, err := p.store.MaxGlobalSeq(ctx, key)
			if err != nil {
				return res, fmt.Errorf("max global seq for %s: %w", key, err)
			}
			daySeq, globalSeq = maxDay+1, maxGlobal+1
		}

		pending = append(pending, model.QuoteRecord{
			Token:         snap.Token,
			TradingSymbol: snap.TradingSymbol,
			Strike:        snap.Strike,
			OptionType:    snap.OptionType,
			Expiry:        snap.Expiry,
			OHLC:          snap.OHLC,
			LastPrice:     snap.LastPrice,
			LowerCircuit:  snap.LowerCircuit,
			UpperCircuit:  snap.UpperCircuit,
			LastTradeTime: snap.LastTradeTime,
			RecordedAt:    recordedAt,
			BusinessDate:  businessDate,
			DaySeq:        daySeq,
			GlobalSeq:     globalSeq,
			CollectionID:  res.CollectionID,
		})
	}

	if err := p.store.InsertQuotes(ctx, pending); err != nil {
		return res, fmt.Errorf("insert batch: %w", err)
	}
	res.Saved = len(pending)

	p.logger.Info("batch ingested",
		"collection_id", res.CollectionID,
		"saved", res.Saved,
		"skipped", res.Skipped,
		"business_date", businessDate.Format(model.DateLayout),
	)

	if res.Saved == 0 {
		return res, nil
	}

	// Rows written before the date was knowable reconcile to the fresh value.
	fresh := p.resolver.Resolve(ctx, spot)
	res.BusinessDate = fresh

	stamped, err := p.store.StampBusinessDate(ctx, fresh, recordedAt.Add(-p.cfg.StampWindow))
	if err != nil {
		return res, fmt.Errorf("stamp business date: %w", err)
	}
	res.Stamped = stamped

	if stamped > 0 {
		p.logger.Info("business date stamped",
			"date", fresh.Format(model.DateLayout),
			"rows", stamped,
		)
	}

	return res, nil
}
