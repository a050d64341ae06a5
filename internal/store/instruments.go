package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tradewatch/circuit-data/internal/model"
)

// ActiveUniverse returns the non-expired option contracts to collect,
// ordered by expiry then strike.
func (s *Store) ActiveUniverse(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.db.Query(ctx, `
		SELECT instrument_token, trading_symbol, underlying, strike, option_type,
		       expiry, first_seen, last_fetched, expired
		FROM instruments
		WHERE NOT expired AND option_type IN ('CE', 'PE')
		ORDER BY expiry, strike, option_type
	`)
	if err != nil {
		return nil, fmt.Errorf("active universe: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// CountActive returns the size of the active universe, for health reporting.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM instruments WHERE NOT expired AND option_type IN ('CE', 'PE')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active instruments: %w", err)
	}
	return n, nil
}

// UpsertInstruments inserts newly observed instruments and refreshes the
// last-fetched stamp on known ones. First-seen survives updates.
func (s *Store) UpsertInstruments(ctx context.Context, insts []model.Instrument) error {
	if len(insts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, i := range insts {
		batch.Queue(`
			INSERT INTO instruments
				(instrument_token, trading_symbol, underlying, strike, option_type,
				 expiry, first_seen, last_fetched, expired)
			VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)
			ON CONFLICT (instrument_token, expiry) DO UPDATE SET
				trading_symbol = EXCLUDED.trading_symbol,
				last_fetched   = EXCLUDED.last_fetched,
				expired        = EXCLUDED.expired
		`,
			int64(i.Token), i.TradingSymbol, i.Underlying, i.Strike, string(i.OptionType),
			i.Expiry.Format(model.DateLayout), i.FirstSeen, i.LastFetched, i.Expired,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range insts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert instrument: %w", err)
		}
	}
	return nil
}

// MarkExpired recomputes the expired flag against a business date and
// returns the number of rows whose flag flipped.
func (s *Store) MarkExpired(ctx context.Context, asOf time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, `
		UPDATE instruments
		SET expired = (expiry < $1::date)
		WHERE option_type IN ('CE', 'PE') AND expired <> (expiry < $1::date)
	`, asOf.Format(model.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("mark expired: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanInstrument(row pgx.Row) (model.Instrument, error) {
	var (
		inst  model.Instrument
		token int64
		otype string
	)
	err := row.Scan(
		&token, &inst.TradingSymbol, &inst.Underlying, &inst.Strike, &otype,
		&inst.Expiry, &inst.FirstSeen, &inst.LastFetched, &inst.Expired,
	)
	if err != nil {
		return model.Instrument{}, err
	}
	inst.Token = uint32(token)
	inst.OptionType = model.OptionType(otype)
	return inst, nil
}
