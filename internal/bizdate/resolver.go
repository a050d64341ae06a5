package bizdate

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tradewatch/circuit-data/internal/model"
)

// Store is the slice of the persistent store the resolver reads.
type Store interface {
	// StrikeLatest returns the most recent traded option row per strike.
	StrikeLatest(ctx context.Context) ([]model.QuoteRecord, error)
	// RecentSpotDays returns daily spot rows, most recent first.
	RecentSpotDays(ctx context.Context, index string, limit int) ([]model.SpotDay, error)
}

// cacheTTL bounds how long Current may serve a prior resolution. The
// cache spares store round-trips within one tick; it is not a source of
// truth across ticks, so the TTL sits below the shortest tick interval.
const cacheTTL = 45 * time.Second

// Resolver computes and caches the current business date.
type Resolver struct {
	store  Store
	index  string // spot_history index name
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	cached     time.Time
	resolvedAt time.Time
}

// New creates a Resolver. index names the spot_history rows consulted by
// the historical fallback.
func New(store Store, index string, loc *time.Location, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		index:  index,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// Current returns the cached business date while the cache is fresh,
// resolving otherwise. Change-bearing batches always force Resolve.
func (r *Resolver) Current(ctx context.Context, spot *model.QuoteSnapshot) time.Time {
	r.mu.Lock()
	cached, resolvedAt := r.cached, r.resolvedAt
	r.mu.Unlock()

	if !cached.IsZero() && r.now().Sub(resolvedAt) < cacheTTL {
		return cached
	}
	return r.Resolve(ctx, spot)
}

// Resolve recomputes the business date and refreshes the cache. It never
// fails: each step of the priority chain degrades to the next.
func (r *Resolver) Resolve(ctx context.Context, spot *model.QuoteSnapshot) time.Time {
	date := r.resolve(ctx, spot)

	r.mu.Lock()
	r.cached = date
	r.resolvedAt = r.now()
	r.mu.Unlock()

	return date
}

func (r *Resolver) resolve(ctx context.Context, spot *model.QuoteSnapshot) time.Time {
	if date, ok := r.fromStrikeLTT(ctx, spot); ok {
		return date
	}
	if date, ok := r.fromSpotHistory(ctx); ok {
		return date
	}
	return r.previousWeekday()
}

// fromStrikeLTT derives the date from the last-trade time of the strike
// nearest the reference spot price.
func (r *Resolver) fromStrikeLTT(ctx context.Context, spot *model.QuoteSnapshot) (time.Time, bool) {
	if spot == nil {
		return time.Time{}, false
	}

	ref := referencePrice(spot.OHLC)
	if ref <= 0 {
		return time.Time{}, false
	}

	rows, err := r.store.StrikeLatest(ctx)
	if err != nil {
		r.logger.Warn("strike-LTT lookup failed, falling back", "err", err)
		return time.Time{}, false
	}
	if len(rows) == 0 {
		return time.Time{}, false
	}

	best := rows[0]
	bestDist := math.Abs(best.Strike - ref)
	for _, row := range rows[1:] {
		if d := math.Abs(row.Strike - ref); d < bestDist {
			best, bestDist = row, d
		}
	}

	date := model.Day(best.LastTradeTime.In(r.loc))
	r.logger.Debug("business date from strike LTT",
		"date", date.Format(model.DateLayout),
		"strike", best.Strike,
		"reference_spot", ref,
	)
	return date, true
}

// fromSpotHistory derives the date from the most recent daily spot row.
func (r *Resolver) fromSpotHistory(ctx context.Context) (time.Time, bool) {
	days, err := r.store.RecentSpotDays(ctx, r.index, 1)
	if err != nil {
		r.logger.Warn("spot history lookup failed, falling back", "err", err)
		return time.Time{}, false
	}
	if len(days) == 0 {
		return time.Time{}, false
	}

	d := days[0].TradingDate
	date := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
	r.logger.Debug("business date from spot history", "date", date.Format(model.DateLayout))
	return date, true
}

// previousWeekday walks back from yesterday until a weekday is reached.
func (r *Resolver) previousWeekday() time.Time {
	d := model.Day(r.now().In(r.loc)).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	r.logger.Debug("business date from weekday fallback", "date", d.Format(model.DateLayout))
	return d
}

// referencePrice picks the spot price the strike search anchors on: the
// open while the session is live, the previous close otherwise.
func referencePrice(o model.OHLC) float64 {
	if o.ActivelyTrading() {
		return o.Open
	}
	return o.Close
}
