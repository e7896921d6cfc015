package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/eqindex/internal/contracts"
)

// SavePrices upserts bars by (ticker, timestamp)
func (s *Store) SavePrices(ctx context.Context, prices []contracts.PricePoint) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	if err := ValidatePrices(prices); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO data.stock_prices (
			ticker, "timestamp", date, open, high, low, close, volume,
			transactions, volume_weighted_avg, is_otc, is_adjusted, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (ticker, "timestamp") DO UPDATE SET
			date = EXCLUDED.date,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			transactions = EXCLUDED.transactions,
			volume_weighted_avg = EXCLUDED.volume_weighted_avg,
			is_otc = EXCLUDED.is_otc,
			is_adjusted = EXCLUDED.is_adjusted,
			updated_at = NOW()
	`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range prices {
			batch.Queue(query,
				p.Ticker, p.Timestamp, contracts.NormalizeDate(p.Date), p.Open, p.High, p.Low, p.Close,
				p.Volume, p.Transactions, p.VolumeWeightedAvg, p.IsOTC, p.IsAdjusted,
			)
		}
		return execBatch(ctx, tx, batch, len(prices))
	})
	if err != nil {
		return 0, fmt.Errorf("save prices: %w", err)
	}

	return len(prices), nil
}

// HasPrices reports whether any bar exists for date
func (s *Store) HasPrices(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM data.stock_prices WHERE date = $1)`,
		contracts.NormalizeDate(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check prices: %w", err)
	}
	return exists, nil
}

// QueryClosePrices returns closes in r, optionally limited to tickers.
// When a ticker has several bars on one date the latest timestamp wins.
func (s *Store) QueryClosePrices(ctx context.Context, r contracts.DateRange, tickers []string) ([]contracts.ClosePrice, error) {
	query := `
		SELECT DISTINCT ON (date, ticker) date, ticker, close
		FROM data.stock_prices
		WHERE date BETWEEN $1 AND $2
		  AND (cardinality($3::text[]) = 0 OR ticker = ANY($3::text[]))
		ORDER BY date, ticker, "timestamp" DESC
	`

	if tickers == nil {
		tickers = []string{}
	}

	rows, err := s.pool.Query(ctx, query, r.Start, r.End, tickers)
	if err != nil {
		return nil, fmt.Errorf("query close prices: %w", err)
	}
	defer rows.Close()

	var out []contracts.ClosePrice
	for rows.Next() {
		var c contracts.ClosePrice
		if err := rows.Scan(&c.Date, &c.Ticker, &c.Close); err != nil {
			return nil, fmt.Errorf("scan close price: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
