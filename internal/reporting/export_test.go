package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/store/memory"
	"github.com/wonny/eqindex/pkg/logger"
)

var (
	day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

type failingStore struct {
	*memory.Store
}

func (failingStore) QueryLatestPerformance(context.Context, contracts.DateRange) ([]contracts.PerformancePoint, error) {
	return nil, errors.New("db down")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New(nil)

	_, err := st.AppendCompositionVersions(ctx, []contracts.CompositionEntry{
		{Date: day1, Ticker: "AAA", ClosePrice: 10, Weight: 0.5, MarketCap: 500},
		{Date: day1, Ticker: "BBB", ClosePrice: 20, Weight: 0.5, MarketCap: 400},
	})
	require.NoError(t, err)
	_, err = st.AppendPerformanceVersions(ctx, []contracts.PerformancePoint{
		{Date: day1, IndexPrice: 15},
		{Date: day2, IndexPrice: 16.5, DailyReturn: 10},
	})
	require.NoError(t, err)
	return st
}

func TestExportAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv")
	var buf bytes.Buffer
	exp := NewExporter(seeded(t), dir, logger.NewWithWriter(&buf, "debug"))

	results, err := exp.ExportAll(context.Background(), contracts.DateRange{Start: day1, End: day2})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 2, results[0].Rows)
	assert.Equal(t, filepath.Join(dir, PerformanceFile), results[0].Path)
	assert.Equal(t, 2, results[1].Rows)
	assert.Equal(t, 0, results[2].Rows)
	assert.Empty(t, results[2].Path)

	perf := readCSV(t, results[0].Path)
	require.Len(t, perf, 3)
	assert.Equal(t, []string{"date", "index_price", "daily_return", "write_time", "run_id"}, perf[0])
	assert.Equal(t, []string{"2024-01-03", "16.5", "10"}, perf[2][:3])
	assert.NotEmpty(t, perf[2][4])

	comp := readCSV(t, results[1].Path)
	require.Len(t, comp, 3)
	assert.Equal(t, []string{"2024-01-02", "AAA", "10", "0.5", "500"}, comp[1][:5])

	_, err = os.Stat(filepath.Join(dir, ChangesFile))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, buf.String(), "No data to export")
}

func TestExportAll_QueryError(t *testing.T) {
	exp := NewExporter(failingStore{memory.New(nil)}, t.TempDir(), logger.Nop())

	results, err := exp.ExportAll(context.Background(), contracts.SingleDay(day1))
	assert.Error(t, err)
	assert.Empty(t, results)
}

func TestWriteChanges(t *testing.T) {
	prev := day1
	prevSymbols := "AAA,BBB"
	records := []contracts.ChangeRecord{
		{Date: day1, Symbols: "AAA,BBB"},
		{Date: day2, Symbols: "AAA,CCC", PrevDate: &prev, PrevSymbols: &prevSymbols},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChanges(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,symbols,prev_date,prev_symbols,added,removed,write_time,run_id", lines[0])
	assert.Equal(t, `2024-01-02,"AAA,BBB",,,"AAA,BBB",,,`, lines[1])
	assert.Equal(t, `2024-01-03,"AAA,CCC",2024-01-02,"AAA,BBB",CCC,BBB,,`, lines[2])
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.3333333333333333", formatFloat(1.0/3))
	assert.Equal(t, "100", formatFloat(100))
	assert.Equal(t, "", formatTime(time.Time{}))
	assert.Equal(t, "2024-01-02T21:00:00.5Z", formatTime(time.Date(2024, 1, 2, 21, 0, 0, 500_000_000, time.UTC)))
}
