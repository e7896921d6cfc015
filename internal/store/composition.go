package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/eqindex/internal/contracts"
)

// QueryCandidates lists tickers with a market cap and a bar on date,
// ordered by market cap desc and ticker asc so ties resolve the same way every run.
func (s *Store) QueryCandidates(ctx context.Context, date time.Time) ([]contracts.Candidate, error) {
	query := `
		SELECT td.ticker, td.market_cap, sp.close
		FROM data.ticker_details td
		JOIN (
			SELECT DISTINCT ON (ticker) ticker, close
			FROM data.stock_prices
			WHERE date = $1
			ORDER BY ticker, "timestamp" DESC
		) sp ON sp.ticker = td.ticker
		WHERE td.market_cap IS NOT NULL
		ORDER BY td.market_cap DESC, td.ticker ASC
	`

	rows, err := s.pool.Query(ctx, query, contracts.NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []contracts.Candidate
	for rows.Next() {
		var c contracts.Candidate
		if err := rows.Scan(&c.Ticker, &c.MarketCap, &c.ClosePrice); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendCompositionVersions inserts one new version set.
// Earlier versions of the same dates are left untouched.
func (s *Store) AppendCompositionVersions(ctx context.Context, rows []contracts.CompositionEntry) (contracts.WriteBatch, error) {
	if len(rows) == 0 {
		return contracts.WriteBatch{}, nil
	}
	if err := ValidateComposition(rows); err != nil {
		return contracts.WriteBatch{}, err
	}

	wb := s.nextBatch(len(rows))
	query := `
		INSERT INTO data.index_composition (date, ticker, close_price, weight, market_cap, write_time, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(query, contracts.NormalizeDate(r.Date), r.Ticker, r.ClosePrice, r.Weight, r.MarketCap, wb.WriteTime, wb.RunID)
		}
		return execBatch(ctx, tx, batch, len(rows))
	})
	if err != nil {
		return contracts.WriteBatch{}, fmt.Errorf("append composition: %w", err)
	}

	return wb, nil
}

// latestCompositionSQL picks, for every date matched by the filter, the rows
// written by the most recent run (max write_time of that date).
const latestCompositionSQL = `
	WITH latest AS (
		SELECT date, MAX(write_time) AS write_time
		FROM data.index_composition
		WHERE %s
		GROUP BY date
		%s
	)
	SELECT c.date, c.ticker, c.close_price, c.weight, c.market_cap, c.write_time, c.run_id
	FROM data.index_composition c
	JOIN latest l ON l.date = c.date AND l.write_time = c.write_time
	ORDER BY c.date, c.ticker
`

// QueryLatestComposition returns the latest version set of every date in r
func (s *Store) QueryLatestComposition(ctx context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error) {
	query := fmt.Sprintf(latestCompositionSQL, "date BETWEEN $1 AND $2", "")
	return s.queryComposition(ctx, query, r.Start, r.End)
}

// QueryLatestCompositionBefore returns the latest version set of the nearest
// populated date strictly before date
func (s *Store) QueryLatestCompositionBefore(ctx context.Context, date time.Time) ([]contracts.CompositionEntry, error) {
	query := fmt.Sprintf(latestCompositionSQL, "date < $1", "ORDER BY date DESC LIMIT 1")
	return s.queryComposition(ctx, query, contracts.NormalizeDate(date))
}

func (s *Store) queryComposition(ctx context.Context, query string, args ...interface{}) ([]contracts.CompositionEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest composition: %w", err)
	}
	defer rows.Close()

	var out []contracts.CompositionEntry
	for rows.Next() {
		var e contracts.CompositionEntry
		if err := rows.Scan(&e.Date, &e.Ticker, &e.ClosePrice, &e.Weight, &e.MarketCap, &e.WriteTime, &e.RunID); err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
