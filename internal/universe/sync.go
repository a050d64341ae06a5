package universe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/tradewatch/circuit-data/internal/model"
)

// instrumentAPI is the slice of the Kite Connect client the syncer needs.
type instrumentAPI interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
}

// Store is the slice of the persistent store the syncer writes through.
type Store interface {
	UpsertInstruments(ctx context.Context, insts []model.Instrument) error
	MarkExpired(ctx context.Context, asOf time.Time) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

// Config holds universe syncer configuration.
type Config struct {
	Exchange   string // Instrument dump segment, e.g. "NFO"
	Underlying string // Option underlying to track, e.g. "NIFTY"
}

// Syncer reconciles the tracked universe against the instrument dump.
type Syncer struct {
	cfg    Config
	api    instrumentAPI
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Syncer.
func New(cfg Config, api instrumentAPI, store Store, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cfg:    cfg,
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Refresh pulls the instrument dump, upserts the underlying's option
// contracts, and recomputes expired flags against businessDate.
func (s *Syncer) Refresh(ctx context.Context, businessDate time.Time) error {
	start := s.now()

	dump, err := s.api.GetInstrumentsByExchange(s.cfg.Exchange)
	if err != nil {
		return fmt.Errorf("fetch instrument dump: %w", err)
	}

	cutoff := model.Day(businessDate)
	insts := make([]model.Instrument, 0, 1024)
	for _, d := range dump {
		if d.Name != s.cfg.Underlying {
			continue
		}
		if d.InstrumentType != string(model.OptionTypeCall) && d.InstrumentType != string(model.OptionTypePut) {
			continue
		}
		insts = append(insts, model.Instrument{
			Token:         uint32(d.InstrumentToken),
			TradingSymbol: d.Tradingsymbol,
			Underlying:    d.Name,
			Strike:        d.StrikePrice,
			OptionType:    model.OptionType(d.InstrumentType),
			Expiry:        d.Expiry.Time,
			FirstSeen:     start,
			LastFetched:   start,
			Expired:       model.Day(d.Expiry.Time).Before(cutoff),
		})
	}

	if len(insts) == 0 {
		return fmt.Errorf("instrument dump listed no %s options on %s", s.cfg.Underlying, s.cfg.Exchange)
	}

	if err := s.store.UpsertInstruments(ctx, insts); err != nil {
		return fmt.Errorf("upsert universe: %w", err)
	}

	flipped, err := s.store.MarkExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("recompute expired flags: %w", err)
	}

	active, err := s.store.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count active universe: %w", err)
	}

	s.logger.Info("universe refreshed",
		"dump_size", len(dump),
		"tracked", len(insts),
		"expired_flipped", flipped,
		"active", active,
		"duration", s.now().Sub(start),
	)
	return nil
}

// EnsureSeeded refreshes the universe when the store holds no active
// contracts, so a fresh deployment can start collecting immediately.
func (s *Syncer) EnsureSeeded(ctx context.Context, businessDate time.Time) error {
	active, err := s.store.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count active universe: %w", err)
	}
	if active > 0 {
		return nil
	}
	s.logger.Info("universe empty, seeding from instrument dump")
	return s.Refresh(ctx, businessDate)
}
