// Package reporting exports index tables as CSV files for spreadsheets and
// the dashboard.
package reporting

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// Export file names, one per table
const (
	PerformanceFile = "index_performance.csv"
	CompositionFile = "index_composition.csv"
	ChangesFile     = "index_composition_changes.csv"
)

// Store is the read surface the exporter needs
type Store interface {
	QueryLatestComposition(ctx context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error)
	QueryLatestPerformance(ctx context.Context, r contracts.DateRange) ([]contracts.PerformancePoint, error)
	QueryChangeRecords(ctx context.Context, r contracts.DateRange) ([]contracts.ChangeRecord, error)
}

// ExportResult describes one written file
type ExportResult struct {
	Table string `json:"table"`
	Path  string `json:"path,omitempty"` // empty when there was nothing to write
	Rows  int    `json:"rows"`
}

// Exporter writes the latest version of each table to a directory
type Exporter struct {
	store  Store
	dir    string
	logger *logger.Logger
}

// NewExporter creates an exporter writing into dir
func NewExporter(store Store, dir string, log *logger.Logger) *Exporter {
	return &Exporter{store: store, dir: dir, logger: log}
}

// ExportAll writes performance, composition and changes for r.
// Tables without rows are skipped with a warning.
func (e *Exporter) ExportAll(ctx context.Context, r contracts.DateRange) ([]ExportResult, error) {
	exports := []func(context.Context, contracts.DateRange) (ExportResult, error){
		e.ExportPerformance,
		e.ExportComposition,
		e.ExportChanges,
	}

	results := make([]ExportResult, 0, len(exports))
	for _, export := range exports {
		res, err := export(ctx, r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ExportPerformance writes the latest performance series in r
func (e *Exporter) ExportPerformance(ctx context.Context, r contracts.DateRange) (ExportResult, error) {
	points, err := e.store.QueryLatestPerformance(ctx, r)
	if err != nil {
		return ExportResult{Table: "index_performance"}, fmt.Errorf("query performance: %w", err)
	}
	return e.write("index_performance", PerformanceFile, len(points), func(w io.Writer) error {
		return WritePerformance(w, points)
	})
}

// ExportComposition writes the latest composition of every date in r
func (e *Exporter) ExportComposition(ctx context.Context, r contracts.DateRange) (ExportResult, error) {
	rows, err := e.store.QueryLatestComposition(ctx, r)
	if err != nil {
		return ExportResult{Table: "index_composition"}, fmt.Errorf("query composition: %w", err)
	}
	return e.write("index_composition", CompositionFile, len(rows), func(w io.Writer) error {
		return WriteComposition(w, rows)
	})
}

// ExportChanges writes every logged change in r
func (e *Exporter) ExportChanges(ctx context.Context, r contracts.DateRange) (ExportResult, error) {
	records, err := e.store.QueryChangeRecords(ctx, r)
	if err != nil {
		return ExportResult{Table: "index_composition_changes"}, fmt.Errorf("query changes: %w", err)
	}
	return e.write("index_composition_changes", ChangesFile, len(records), func(w io.Writer) error {
		return WriteChanges(w, records)
	})
}

func (e *Exporter) write(table, name string, rows int, fn func(w io.Writer) error) (ExportResult, error) {
	res := ExportResult{Table: table, Rows: rows}
	if rows == 0 {
		e.logger.WithField("table", table).Warn("No data to export")
		return res, nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return res, fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("close %s: %w", path, err)
	}

	res.Path = path
	e.logger.WithFields(map[string]interface{}{
		"table": table,
		"rows":  rows,
		"path":  path,
	}).Info("Data exported")
	return res, nil
}

// WritePerformance writes date,index_price,daily_return,write_time,run_id rows
func WritePerformance(w io.Writer, points []contracts.PerformancePoint) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "index_price", "daily_return", "write_time", "run_id"})
	for _, p := range points {
		_ = cw.Write([]string{
			contracts.FormatDate(p.Date),
			formatFloat(p.IndexPrice),
			formatFloat(p.DailyReturn),
			formatTime(p.WriteTime),
			p.RunID,
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteComposition writes one row per constituent
func WriteComposition(w io.Writer, rows []contracts.CompositionEntry) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "ticker", "close_price", "weight", "market_cap", "write_time", "run_id"})
	for _, r := range rows {
		_ = cw.Write([]string{
			contracts.FormatDate(r.Date),
			r.Ticker,
			formatFloat(r.ClosePrice),
			formatFloat(r.Weight),
			formatFloat(r.MarketCap),
			formatTime(r.WriteTime),
			r.RunID,
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteChanges writes one row per change record; initial records have empty prev columns
func WriteChanges(w io.Writer, records []contracts.ChangeRecord) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "symbols", "prev_date", "prev_symbols", "added", "removed", "write_time", "run_id"})
	for _, c := range records {
		prevDate, prevSymbols := "", ""
		if c.PrevDate != nil {
			prevDate = contracts.FormatDate(*c.PrevDate)
		}
		if c.PrevSymbols != nil {
			prevSymbols = *c.PrevSymbols
		}
		_ = cw.Write([]string{
			contracts.FormatDate(c.Date),
			c.Symbols,
			prevDate,
			prevSymbols,
			contracts.JoinSymbols(c.Added()),
			contracts.JoinSymbols(c.Removed()),
			formatTime(c.WriteTime),
			c.RunID,
		})
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
