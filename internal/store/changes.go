package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/eqindex/internal/contracts"
)

// AppendChangeRecords appends rows to the change log. No deduplication happens here.
func (s *Store) AppendChangeRecords(ctx context.Context, rows []contracts.ChangeRecord) (contracts.WriteBatch, error) {
	if len(rows) == 0 {
		return contracts.WriteBatch{}, nil
	}
	if err := ValidateChanges(rows); err != nil {
		return contracts.WriteBatch{}, err
	}

	wb := s.nextBatch(len(rows))
	query := `
		INSERT INTO data.index_composition_changes (date, symbols, prev_date, prev_symbols, write_time, run_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(query, contracts.NormalizeDate(r.Date), r.Symbols, r.PrevDate, r.PrevSymbols, wb.WriteTime, wb.RunID)
		}
		return execBatch(ctx, tx, batch, len(rows))
	})
	if err != nil {
		return contracts.WriteBatch{}, fmt.Errorf("append changes: %w", err)
	}

	return wb, nil
}

// QueryChangeRecords returns every logged change in r, oldest first
func (s *Store) QueryChangeRecords(ctx context.Context, r contracts.DateRange) ([]contracts.ChangeRecord, error) {
	query := `
		SELECT date, symbols, prev_date, prev_symbols, write_time, run_id
		FROM data.index_composition_changes
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, write_time, id
	`

	rows, err := s.pool.Query(ctx, query, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var out []contracts.ChangeRecord
	for rows.Next() {
		var c contracts.ChangeRecord
		if err := rows.Scan(&c.Date, &c.Symbols, &c.PrevDate, &c.PrevSymbols, &c.WriteTime, &c.RunID); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
