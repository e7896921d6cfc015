package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/eqindex/internal/contracts"
)

// Query runs an ad-hoc parameterized statement inside a read-only transaction
// and returns the result as a generic table.
func (s *Store) Query(ctx context.Context, sql string, args ...interface{}) (*contracts.Table, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	table := &contracts.Table{Rows: [][]interface{}{}}
	for _, fd := range rows.FieldDescriptions() {
		table.Columns = append(table.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return table, nil
}

// inTx runs fn in a transaction: commit on success, rollback otherwise
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// execBatch sends batch on tx and checks each of the n queued statements
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, n int) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}
