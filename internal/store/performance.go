package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/eqindex/internal/contracts"
)

// AppendPerformanceVersions inserts one new performance version set
func (s *Store) AppendPerformanceVersions(ctx context.Context, rows []contracts.PerformancePoint) (contracts.WriteBatch, error) {
	if len(rows) == 0 {
		return contracts.WriteBatch{}, nil
	}
	if err := ValidatePerformance(rows); err != nil {
		return contracts.WriteBatch{}, err
	}

	wb := s.nextBatch(len(rows))
	query := `
		INSERT INTO data.index_performance (date, index_price, daily_return, write_time, run_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(query, contracts.NormalizeDate(r.Date), r.IndexPrice, r.DailyReturn, wb.WriteTime, wb.RunID)
		}
		return execBatch(ctx, tx, batch, len(rows))
	})
	if err != nil {
		return contracts.WriteBatch{}, fmt.Errorf("append performance: %w", err)
	}

	return wb, nil
}

// QueryLatestPerformance returns, per date in r, the row with the greatest write_time
func (s *Store) QueryLatestPerformance(ctx context.Context, r contracts.DateRange) ([]contracts.PerformancePoint, error) {
	query := `
		SELECT DISTINCT ON (date) date, index_price, daily_return, write_time, run_id
		FROM data.index_performance
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, write_time DESC
	`

	rows, err := s.pool.Query(ctx, query, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query latest performance: %w", err)
	}
	defer rows.Close()

	var out []contracts.PerformancePoint
	for rows.Next() {
		var p contracts.PerformancePoint
		if err := rows.Scan(&p.Date, &p.IndexPrice, &p.DailyReturn, &p.WriteTime, &p.RunID); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
