package s1_composition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/store/memory"
	"github.com/wonny/eqindex/pkg/logger"
)

var day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	prices []contracts.PricePoint
	err    error
	calls  int
}

func (f *fakeSource) FetchDailyPrices(_ context.Context, _ time.Time) ([]contracts.PricePoint, error) {
	f.calls++
	return f.prices, f.err
}

func (f *fakeSource) FetchTickerAttributes(_ context.Context, _ string) (*contracts.TickerAttributes, error) {
	return nil, nil
}

type failingStore struct {
	*memory.Store
	candidatesErr error
	appendErr     error
}

func (f *failingStore) QueryCandidates(ctx context.Context, date time.Time) ([]contracts.Candidate, error) {
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	return f.Store.QueryCandidates(ctx, date)
}

func (f *failingStore) AppendCompositionVersions(ctx context.Context, rows []contracts.CompositionEntry) (contracts.WriteBatch, error) {
	if f.appendErr != nil {
		return contracts.WriteBatch{}, f.appendErr
	}
	return f.Store.AppendCompositionVersions(ctx, rows)
}

func capPtr(v float64) *float64 { return &v }

func bars(date time.Time, closes map[string]float64) []contracts.PricePoint {
	out := make([]contracts.PricePoint, 0, len(closes))
	for ticker, c := range closes {
		out = append(out, contracts.PricePoint{Ticker: ticker, Date: date, Timestamp: date.UnixMilli(), Close: c})
	}
	return out
}

// seedUniverse stores 5 tickers, 4 with a market cap, all priced on date
func seedUniverse(t *testing.T, st *memory.Store, date time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := st.SaveTickerAttributes(ctx, []contracts.TickerAttributes{
		{Ticker: "AAA", MarketCap: capPtr(500)},
		{Ticker: "BBB", MarketCap: capPtr(400)},
		{Ticker: "CCC", MarketCap: capPtr(400)},
		{Ticker: "DDD", MarketCap: capPtr(100)},
		{Ticker: "NOCAP"},
	})
	require.NoError(t, err)

	_, err = st.SavePrices(ctx, bars(date, map[string]float64{
		"AAA": 10, "BBB": 20, "CCC": 30, "DDD": 40, "NOCAP": 50,
	}))
	require.NoError(t, err)
}

func captureLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewWithWriter(&buf, "debug"), &buf
}

func TestSelectConstituents(t *testing.T) {
	candidates := []contracts.Candidate{
		{Ticker: "DDD", MarketCap: 100, ClosePrice: 40},
		{Ticker: "CCC", MarketCap: 400, ClosePrice: 30},
		{Ticker: "AAA", MarketCap: 500, ClosePrice: 10},
		{Ticker: "BBB", MarketCap: 400, ClosePrice: 20},
	}

	tests := []struct {
		name        string
		topN        int
		wantTickers []string
	}{
		{"top 1", 1, []string{"AAA"}},
		{"tie broken by ticker", 2, []string{"AAA", "BBB"}},
		{"top 3", 3, []string{"AAA", "BBB", "CCC"}},
		{"universe smaller than top_n", 100, []string{"AAA", "BBB", "CCC", "DDD"}},
		{"zero top_n", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := SelectConstituents(day1, candidates, tt.topN)

			tickers := make([]string, 0, len(entries))
			sum := 0.0
			for _, e := range entries {
				tickers = append(tickers, e.Ticker)
				sum += e.Weight
				assert.Equal(t, day1, e.Date)
				assert.InDelta(t, 1.0/float64(len(entries)), e.Weight, 1e-12)
			}
			assert.Equal(t, tt.wantTickers, tickers)
			if len(entries) > 0 {
				assert.InDelta(t, 1.0, sum, 1e-9)
			}
		})
	}

	// input is not reordered
	assert.Equal(t, "DDD", candidates[0].Ticker)
}

func TestSelectConstituents_WeightSumLargeN(t *testing.T) {
	for _, n := range []int{1, 3, 7, 100, 500} {
		candidates := make([]contracts.Candidate, n)
		for i := range candidates {
			candidates[i] = contracts.Candidate{Ticker: fmt.Sprintf("T%03d", i), MarketCap: float64(n - i), ClosePrice: 1}
		}
		entries := SelectConstituents(day1, candidates, n)
		snapshot := contracts.CompositionSnapshot{Entries: entries}
		assert.Len(t, entries, n)
		assert.True(t, snapshot.IsBalanced(), "n=%d sum=%v", n, snapshot.WeightSum())
	}
}

func TestBuild(t *testing.T) {
	st := memory.New(nil)
	seedUniverse(t, st, day1)
	log, buf := captureLogger()
	builder := NewBuilder(st, nil, log)

	snapshot := builder.Build(context.Background(), day1, 3)
	require.NotNil(t, snapshot)
	require.Equal(t, 3, snapshot.Len())

	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, snapshot.Tickers())
	assert.True(t, snapshot.IsBalanced())
	assert.NotEmpty(t, snapshot.RunID)
	assert.False(t, snapshot.WriteTime.IsZero())
	for _, e := range snapshot.Entries {
		assert.Equal(t, snapshot.WriteTime, e.WriteTime)
		assert.Greater(t, e.MarketCap, 0.0)
	}
	assert.InDelta(t, 10.0, snapshot.Entries[0].ClosePrice, 1e-12)

	stored, err := st.QueryLatestComposition(context.Background(), contracts.SingleDay(day1))
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Contains(t, buf.String(), "Composition appended")
}

func TestBuild_AtMostEligible(t *testing.T) {
	for _, topN := range []int{1, 2, 4, 10, 100} {
		st := memory.New(nil)
		seedUniverse(t, st, day1)

		snapshot := NewBuilder(st, nil, logger.Nop()).Build(context.Background(), day1, topN)
		want := int(math.Min(float64(topN), 4))
		assert.Equal(t, want, snapshot.Len(), "top_n=%d", topN)
		assert.NotContains(t, snapshot.Tickers(), "NOCAP")
	}
}

func TestBuild_RepeatedRunsAppendEqualVersions(t *testing.T) {
	st := memory.New(nil)
	seedUniverse(t, st, day1)
	builder := NewBuilder(st, nil, logger.Nop())
	ctx := context.Background()

	first := builder.Build(ctx, day1, 4)
	second := builder.Build(ctx, day1, 4)

	require.Equal(t, first.Len(), second.Len())
	assert.True(t, second.WriteTime.After(first.WriteTime))
	assert.NotEqual(t, first.RunID, second.RunID)
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].Ticker, second.Entries[i].Ticker)
		assert.Equal(t, first.Entries[i].Weight, second.Entries[i].Weight)
		assert.Equal(t, first.Entries[i].ClosePrice, second.Entries[i].ClosePrice)
	}

	assert.Equal(t, 8, st.Counts()["index_composition"])

	latest, err := st.QueryLatestComposition(ctx, contracts.SingleDay(day1))
	require.NoError(t, err)
	require.Len(t, latest, 4)
	for _, e := range latest {
		assert.Equal(t, second.WriteTime, e.WriteTime)
	}
}

func TestBuild_NoEligibleRows(t *testing.T) {
	st := memory.New(nil)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := st.SaveTickerAttributes(ctx, []contracts.TickerAttributes{{Ticker: "AAA"}, {Ticker: "BBB"}})
	require.NoError(t, err)
	_, err = st.SavePrices(ctx, bars(date, map[string]float64{"AAA": 10, "BBB": 20}))
	require.NoError(t, err)

	log, buf := captureLogger()
	snapshot := NewBuilder(st, nil, log).Build(ctx, date, 100)

	require.NotNil(t, snapshot)
	assert.True(t, snapshot.IsEmpty())
	assert.NotNil(t, snapshot.Entries)
	assert.Equal(t, date, snapshot.Date)
	assert.Zero(t, st.Counts()["index_composition"])
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestBuild_NonPositiveTopN(t *testing.T) {
	st := memory.New(nil)
	seedUniverse(t, st, day1)

	snapshot := NewBuilder(st, nil, logger.Nop()).Build(context.Background(), day1, 0)
	assert.True(t, snapshot.IsEmpty())
	assert.Zero(t, st.Counts()["index_composition"])
}

func TestBuild_FetchesMissingPrices(t *testing.T) {
	st := memory.New(nil)
	ctx := context.Background()
	_, err := st.SaveTickerAttributes(ctx, []contracts.TickerAttributes{
		{Ticker: "AAA", MarketCap: capPtr(2)},
		{Ticker: "BBB", MarketCap: capPtr(1)},
	})
	require.NoError(t, err)

	source := &fakeSource{prices: bars(day1, map[string]float64{"AAA": 10, "BBB": 20})}
	builder := NewBuilder(st, source, logger.Nop())

	snapshot := builder.Build(ctx, day1, 10)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, []string{"AAA", "BBB"}, snapshot.Tickers())

	// prices now stored, no second fetch
	builder.Build(ctx, day1, 10)
	assert.Equal(t, 1, source.calls)
}

func TestBuild_FetchFailureIsNotFatal(t *testing.T) {
	st := memory.New(nil)
	seedUniverse(t, st, day1)
	ctx := context.Background()
	day2 := day1.AddDate(0, 0, 1)

	log, buf := captureLogger()
	source := &fakeSource{err: errors.New("connection reset")}
	builder := NewBuilder(st, source, log)

	// stored data for day1 is used without fetching
	assert.Equal(t, 4, builder.Build(ctx, day1, 10).Len())
	assert.Zero(t, source.calls)

	// day2 has no stored data; fetch fails, result is empty
	snapshot := builder.Build(ctx, day2, 10)
	assert.Equal(t, 1, source.calls)
	assert.True(t, snapshot.IsEmpty())
	assert.Contains(t, buf.String(), "connection reset")
}

func TestBuild_StoreFailures(t *testing.T) {
	tests := []struct {
		name  string
		store *failingStore
	}{
		{"candidate query", &failingStore{candidatesErr: errors.New("relation does not exist")}},
		{"append", &failingStore{appendErr: errors.New("tx aborted")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.store.Store = memory.New(nil)
			seedUniverse(t, tt.store.Store, day1)

			log, buf := captureLogger()
			snapshot := NewBuilder(tt.store, nil, log).Build(context.Background(), day1, 3)

			require.NotNil(t, snapshot)
			assert.True(t, snapshot.IsEmpty())
			assert.Zero(t, tt.store.Counts()["index_composition"])
			assert.Contains(t, buf.String(), `"level":"error"`)
		})
	}
}
