package store

import (
	"context"
	"fmt"

	"github.com/tradewatch/circuit-data/internal/model"
)

// RecentSpotDays returns up to limit daily spot rows for an index, most
// recent trading date first (ties broken by last update).
func (s *Store) RecentSpotDays(ctx context.Context, index string, limit int) ([]model.SpotDay, error) {
	rows, err := s.db.Query(ctx, `
		SELECT index_name, trading_date, open, high, low, close, last_updated
		FROM spot_history
		WHERE index_name = $1
		ORDER BY trading_date DESC, last_updated DESC
		LIMIT $2
	`, index, limit)
	if err != nil {
		return nil, fmt.Errorf("recent spot days: %w", err)
	}
	defer rows.Close()

	var out []model.SpotDay
	for rows.Next() {
		var d model.SpotDay
		if err := rows.Scan(&d.Index, &d.TradingDate,
			&d.OHLC.Open, &d.OHLC.High, &d.OHLC.Low, &d.OHLC.Close,
			&d.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan spot day: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertSpotDay records or refreshes one index trading day.
func (s *Store) UpsertSpotDay(ctx context.Context, d model.SpotDay) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO spot_history (index_name, trading_date, open, high, low, close, last_updated)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		ON CONFLICT (index_name, trading_date) DO UPDATE SET
			open         = EXCLUDED.open,
			high         = EXCLUDED.high,
			low          = EXCLUDED.low,
			close        = EXCLUDED.close,
			last_updated = EXCLUDED.last_updated
	`, d.Index, d.TradingDate.Format(model.DateLayout),
		d.OHLC.Open, d.OHLC.High, d.OHLC.Low, d.OHLC.Close, d.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert spot day: %w", err)
	}
	return nil
}
