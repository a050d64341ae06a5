package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tradewatch/circuit-data/internal/model"
)

const quoteColumns = `instrument_token, trading_symbol, strike, option_type, expiry,
	open, high, low, close, last_price, lower_circuit, upper_circuit,
	last_trade_time, recorded_at, business_date, day_seq, global_seq, collection_id`

// LatestQuote returns the most recently persisted row for a key, ordered
// by global sequence. The bool is false when no row exists yet.
func (s *Store) LatestQuote(ctx context.Context, key model.InstrumentKey) (model.QuoteRecord, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+quoteColumns+`
		FROM quote_history
		WHERE instrument_token = $1 AND expiry = $2::date
		ORDER BY global_seq DESC
		LIMIT 1
	`, int64(key.Token), key.Expiry)

	rec, err := scanQuote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.QuoteRecord{}, false, nil
	}
	if err != nil {
		return model.QuoteRecord{}, false, fmt.Errorf("latest quote for %s: %w", key, err)
	}
	return rec, true, nil
}

// MaxDaySeq returns the highest insertion sequence for a key on a business
// date, 0 when the key has no rows that day.
func (s *Store) MaxDaySeq(ctx context.Context, key model.InstrumentKey, businessDate time.Time) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(day_seq), 0)
		FROM quote_history
		WHERE instrument_token = $1 AND expiry = $2::date AND business_date = $3::date
	`, int64(key.Token), key.Expiry, businessDate.Format(model.DateLayout)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max day seq for %s: %w", key, err)
	}
	return seq, nil
}

// MaxGlobalSeq returns the highest global sequence for a key, 0 when the
// key has never been observed.
func (s *Store) MaxGlobalSeq(ctx context.Context, key model.InstrumentKey) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(global_seq), 0)
		FROM quote_history
		WHERE instrument_token = $1 AND expiry = $2::date
	`, int64(key.Token), key.Expiry).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max global seq for %s: %w", key, err)
	}
	return seq, nil
}

// InsertQuotes appends a batch of rows in one transaction. Either every
// row commits or none does.
func (s *Store) InsertQuotes(ctx context.Context, recs []model.QuoteRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range recs {
		var ltt *time.Time
		if !r.LastTradeTime.IsZero() {
			t := r.LastTradeTime
			ltt = &t
		}
		batch.Queue(`
			INSERT INTO quote_history (`+quoteColumns+`)
			VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::date, $16, $17, $18)
		`,
			int64(r.Token), r.TradingSymbol, r.Strike, string(r.OptionType), r.Expiry.Format(model.DateLayout),
			r.OHLC.Open, r.OHLC.High, r.OHLC.Low, r.OHLC.Close,
			r.LastPrice, r.LowerCircuit, r.UpperCircuit,
			ltt, r.RecordedAt, r.BusinessDate.Format(model.DateLayout),
			r.DaySeq, r.GlobalSeq, r.CollectionID,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range recs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert quote row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

// StampBusinessDate bulk-applies a business date to every row recorded at
// or after since. Re-applying the same date is a no-op.
func (s *Store) StampBusinessDate(ctx context.Context, date time.Time, since time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, `
		UPDATE quote_history
		SET business_date = $1::date
		WHERE recorded_at >= $2 AND business_date <> $1::date
	`, date.Format(model.DateLayout), since)
	if err != nil {
		return 0, fmt.Errorf("stamp business date: %w", err)
	}
	return ct.RowsAffected(), nil
}

// StrikeLatest returns, per strike, the most recently inserted option row
// carrying a real last-trade time. Feeds the strike-LTT business-date method.
func (s *Store) StrikeLatest(ctx context.Context) ([]model.QuoteRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (strike) `+quoteColumns+`
		FROM quote_history
		WHERE option_type IN ('CE', 'PE') AND last_trade_time IS NOT NULL
		ORDER BY strike, recorded_at DESC, global_seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("strike latest: %w", err)
	}
	defer rows.Close()

	var out []model.QuoteRecord
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strike latest: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QuotesByBusinessDate returns the history rows for one business date,
// ordered per key by insertion sequence. Read side for reporting/export.
func (s *Store) QuotesByBusinessDate(ctx context.Context, date time.Time) ([]model.QuoteRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quote_history
		WHERE business_date = $1::date
		ORDER BY instrument_token, expiry, day_seq
	`, date.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("quotes by business date: %w", err)
	}
	defer rows.Close()

	var out []model.QuoteRecord
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanQuote(row pgx.Row) (model.QuoteRecord, error) {
	var (
		rec   model.QuoteRecord
		token int64
		otype string
		ltt   *time.Time
	)
	err := row.Scan(
		&token, &rec.TradingSymbol, &rec.Strike, &otype, &rec.Expiry,
		&rec.OHLC.Open, &rec.OHLC.High, &rec.OHLC.Low, &rec.OHLC.Close,
		&rec.LastPrice, &rec.LowerCircuit, &rec.UpperCircuit,
		&ltt, &rec.RecordedAt, &rec.BusinessDate,
		&rec.DaySeq, &rec.GlobalSeq, &rec.CollectionID,
	)
	if err != nil {
		return model.QuoteRecord{}, err
	}
	rec.Token = uint32(token)
	rec.OptionType = model.OptionType(otype)
	if ltt != nil {
		rec.LastTradeTime = *ltt
	}
	return rec, nil
}
