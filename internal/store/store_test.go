package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/store"
	"github.com/wonny/eqindex/internal/store/memory"
	"github.com/wonny/eqindex/internal/store/migrations"
)

type storeFactory func(t *testing.T, now func() time.Time) contracts.VersionedStore

func d(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T {
	return &v
}

// steppingClock advances one second per call
func steppingClock() func() time.Time {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestMemoryStore(t *testing.T) {
	runVersionedStoreSuite(t, func(t *testing.T, now func() time.Time) contracts.VersionedStore {
		return memory.New(now)
	})
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	pool := setupTestDB(t)

	runVersionedStoreSuite(t, func(t *testing.T, now func() time.Time) contracts.VersionedStore {
		_, err := pool.Exec(context.Background(), `
			TRUNCATE data.stock_prices, data.ticker_details, data.index_composition,
				data.index_performance, data.index_composition_changes`)
		require.NoError(t, err)
		return store.New(pool, store.WithClock(now))
	})

	t.Run("run ids come from the configured generator", func(t *testing.T) {
		_, err := pool.Exec(context.Background(), `TRUNCATE data.index_composition, data.index_performance`)
		require.NoError(t, err)

		n := 0
		s := store.New(pool, store.WithClock(steppingClock()), store.WithRunIDs(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}))
		ctx := context.Background()
		day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

		for i := 0; i < 2; i++ {
			_, err := s.AppendCompositionVersions(ctx, []contracts.CompositionEntry{
				{Date: day, Ticker: "AAA", ClosePrice: 10, Weight: 1, MarketCap: 100},
			})
			require.NoError(t, err)
		}
		wb, err := s.AppendPerformanceVersions(ctx, []contracts.PerformancePoint{{Date: day, IndexPrice: 10}})
		require.NoError(t, err)
		assert.Equal(t, "run-3", wb.RunID)

		rows, err := s.QueryLatestComposition(ctx, contracts.SingleDay(day))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "run-2", rows[0].RunID)

		points, err := s.QueryLatestPerformance(ctx, contracts.SingleDay(day))
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, "run-3", points[0].RunID)
	})

	t.Run("generic query", func(t *testing.T) {
		s := store.New(pool)
		table, err := s.Query(context.Background(), `SELECT $1::int AS n, 'x' AS label`, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"n", "label"}, table.Columns)
		require.Equal(t, 1, table.Len())
		assert.EqualValues(t, 7, table.Rows[0][0])
	})

	t.Run("generic query is read only", func(t *testing.T) {
		s := store.New(pool)
		_, err := s.Query(context.Background(), `DELETE FROM data.index_composition`)
		assert.Error(t, err)
	})
}

// setupTestDB starts a PostgreSQL container and applies the embedded migrations
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)

	applied, err := migrations.Run(ctx, pool)
	require.NoError(t, err, "failed to run migrations")
	require.NotEmpty(t, applied)

	// second run must be a no-op
	again, err := migrations.Run(ctx, pool)
	require.NoError(t, err)
	require.Empty(t, again)

	return pool
}

func seedMarket(t *testing.T, s contracts.VersionedStore, date time.Time, caps map[string]*float64, closes map[string]float64) {
	t.Helper()
	ctx := context.Background()

	var attrs []contracts.TickerAttributes
	for ticker, mc := range caps {
		attrs = append(attrs, contracts.TickerAttributes{Ticker: ticker, Active: true, MarketCap: mc})
	}
	_, err := s.SaveTickerAttributes(ctx, attrs)
	require.NoError(t, err)

	var prices []contracts.PricePoint
	for ticker, c := range closes {
		prices = append(prices, contracts.PricePoint{
			Ticker: ticker, Date: date, Timestamp: date.UnixMilli(),
			Open: c, High: c, Low: c, Close: c, Volume: 1000, IsAdjusted: true,
		})
	}
	_, err = s.SavePrices(ctx, prices)
	require.NoError(t, err)
}

func runVersionedStoreSuite(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("prices are last write wins", func(t *testing.T) {
		s := newStore(t, steppingClock())
		day := d("2024-01-02")

		seedMarket(t, s, day, nil, map[string]float64{"AAA": 10})
		seedMarket(t, s, day, nil, map[string]float64{"AAA": 12})

		ok, err := s.HasPrices(ctx, day)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.HasPrices(ctx, d("2024-01-03"))
		require.NoError(t, err)
		assert.False(t, ok)

		closes, err := s.QueryClosePrices(ctx, contracts.SingleDay(day), nil)
		require.NoError(t, err)
		require.Len(t, closes, 1)
		assert.Equal(t, 12.0, closes[0].Close)
	})

	t.Run("close prices filter by ticker", func(t *testing.T) {
		s := newStore(t, steppingClock())
		seedMarket(t, s, d("2024-01-02"), nil, map[string]float64{"AAA": 10, "BBB": 20})
		seedMarket(t, s, d("2024-01-03"), nil, map[string]float64{"AAA": 11, "BBB": 21})

		r, _ := contracts.ParseDateRange("2024-01-01", "2024-01-31")
		closes, err := s.QueryClosePrices(ctx, r, []string{"BBB"})
		require.NoError(t, err)
		require.Len(t, closes, 2)
		assert.Equal(t, "BBB", closes[0].Ticker)
		assert.Equal(t, d("2024-01-02"), closes[0].Date.UTC())
		assert.Equal(t, 21.0, closes[1].Close)
	})

	t.Run("ticker attributes round trip", func(t *testing.T) {
		s := newStore(t, steppingClock())
		attrs := contracts.TickerAttributes{
			Ticker: "AAPL", Active: true, Name: "Apple Inc.", Market: "stocks",
			PrimaryExchange: "XNAS", MarketCap: ptr(3.0e12), TotalEmployees: ptr(int64(161000)),
			SICCode: "3571", City: "Cupertino", WeightedSharesOutstanding: ptr(1.5e10),
		}
		_, err := s.SaveTickerAttributes(ctx, []contracts.TickerAttributes{attrs})
		require.NoError(t, err)

		got, err := s.GetTickerAttributes(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, attrs, *got)

		attrs.MarketCap = ptr(3.1e12)
		_, err = s.SaveTickerAttributes(ctx, []contracts.TickerAttributes{attrs})
		require.NoError(t, err)

		got, err = s.GetTickerAttributes(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 3.1e12, *got.MarketCap)

		_, err = s.GetTickerAttributes(ctx, "NOPE")
		assert.ErrorIs(t, err, store.ErrNotFound)

		tickers, err := s.ListTickers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL"}, tickers)
	})

	t.Run("candidates need market cap and price", func(t *testing.T) {
		s := newStore(t, steppingClock())
		day := d("2024-01-02")
		seedMarket(t, s, day,
			map[string]*float64{"AAA": ptr(300.0), "BBB": ptr(300.0), "CCC": ptr(900.0), "NOCAP": nil, "NOPRICE": ptr(1000.0)},
			map[string]float64{"AAA": 10, "BBB": 20, "CCC": 30, "NOCAP": 40},
		)

		cands, err := s.QueryCandidates(ctx, day)
		require.NoError(t, err)

		var tickers []string
		for _, c := range cands {
			tickers = append(tickers, c.Ticker)
		}
		// market cap desc, ticker asc on ties
		assert.Equal(t, []string{"CCC", "AAA", "BBB"}, tickers)
		assert.Equal(t, 30.0, cands[0].ClosePrice)
	})

	t.Run("latest composition is the most recent run per date", func(t *testing.T) {
		s := newStore(t, steppingClock())
		day := d("2024-01-02")

		first, err := s.AppendCompositionVersions(ctx, []contracts.CompositionEntry{
			{Date: day, Ticker: "AAA", ClosePrice: 10, Weight: 0.5, MarketCap: 100},
			{Date: day, Ticker: "BBB", ClosePrice: 20, Weight: 0.5, MarketCap: 90},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, first.Rows)
		assert.NotEmpty(t, first.RunID)

		second, err := s.AppendCompositionVersions(ctx, []contracts.CompositionEntry{
			{Date: day, Ticker: "AAA", ClosePrice: 10, Weight: 1.0 / 3, MarketCap: 100},
			{Date: day, Ticker: "CCC", ClosePrice: 30, Weight: 1.0 / 3, MarketCap: 95},
			{Date: day, Ticker: "DDD", ClosePrice: 40, Weight: 1.0 / 3, MarketCap: 92},
		})
		require.NoError(t, err)
		assert.True(t, second.WriteTime.After(first.WriteTime))
		assert.NotEqual(t, first.RunID, second.RunID)

		rows, err := s.QueryLatestComposition(ctx, contracts.SingleDay(day))
		require.NoError(t, err)
		require.Len(t, rows, 3)

		snap := contracts.CompositionSnapshot{Entries: rows}
		assert.Equal(t, "AAA,CCC,DDD", snap.Symbols())
		assert.True(t, snap.IsBalanced())
		for _, r := range rows {
			assert.Equal(t, second.RunID, r.RunID)
			assert.True(t, second.WriteTime.Equal(r.WriteTime))
		}
	})

	t.Run("composition before returns nearest earlier populated date", func(t *testing.T) {
		s := newStore(t, steppingClock())

		for _, entry := range []contracts.CompositionEntry{
			{Date: d("2024-01-02"), Ticker: "AAA", ClosePrice: 1, Weight: 1, MarketCap: 1},
			{Date: d("2024-01-04"), Ticker: "BBB", ClosePrice: 1, Weight: 1, MarketCap: 1},
			{Date: d("2024-01-08"), Ticker: "CCC", ClosePrice: 1, Weight: 1, MarketCap: 1},
		} {
			_, err := s.AppendCompositionVersions(ctx, []contracts.CompositionEntry{entry})
			require.NoError(t, err)
		}

		rows, err := s.QueryLatestCompositionBefore(ctx, d("2024-01-08"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "BBB", rows[0].Ticker)

		rows, err = s.QueryLatestCompositionBefore(ctx, d("2024-01-02"))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("invalid composition is rejected without writing", func(t *testing.T) {
		s := newStore(t, steppingClock())
		day := d("2024-01-02")

		_, err := s.AppendCompositionVersions(ctx, []contracts.CompositionEntry{
			{Date: day, Ticker: "AAA", Weight: 0.5},
			{Date: day, Ticker: "AAA", Weight: 0.5},
		})
		assert.ErrorIs(t, err, store.ErrInvalidInput)

		rows, err := s.QueryLatestComposition(ctx, contracts.SingleDay(day))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("latest performance per date", func(t *testing.T) {
		s := newStore(t, steppingClock())

		_, err := s.AppendPerformanceVersions(ctx, []contracts.PerformancePoint{
			{Date: d("2024-01-02"), IndexPrice: 10, DailyReturn: 0},
			{Date: d("2024-01-03"), IndexPrice: 11, DailyReturn: 10},
		})
		require.NoError(t, err)

		_, err = s.AppendPerformanceVersions(ctx, []contracts.PerformancePoint{
			{Date: d("2024-01-03"), IndexPrice: 12, DailyReturn: 0},
		})
		require.NoError(t, err)

		r, _ := contracts.ParseDateRange("2024-01-01", "2024-01-31")
		points, err := s.QueryLatestPerformance(ctx, r)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 10.0, points[0].IndexPrice)
		assert.Equal(t, 12.0, points[1].IndexPrice)
		assert.Equal(t, 0.0, points[1].DailyReturn)
	})

	t.Run("change log keeps duplicates", func(t *testing.T) {
		s := newStore(t, steppingClock())
		rec := contracts.ChangeRecord{
			Date:        d("2024-01-03"),
			Symbols:     "AAA,CCC",
			PrevDate:    ptr(d("2024-01-02")),
			PrevSymbols: ptr("AAA,BBB"),
		}

		for i := 0; i < 2; i++ {
			wb, err := s.AppendChangeRecords(ctx, []contracts.ChangeRecord{rec, {Date: d("2024-01-02"), Symbols: "AAA,BBB"}})
			require.NoError(t, err)
			assert.Equal(t, 2, wb.Rows)
		}

		r, _ := contracts.ParseDateRange("2024-01-01", "2024-01-31")
		logged, err := s.QueryChangeRecords(ctx, r)
		require.NoError(t, err)
		require.Len(t, logged, 4)

		assert.Equal(t, d("2024-01-02"), logged[0].Date.UTC())
		assert.True(t, logged[0].IsInitial())
		assert.Equal(t, rec.Key(), logged[3].Key())
	})

	t.Run("empty appends are no-ops", func(t *testing.T) {
		s := newStore(t, steppingClock())

		wb, err := s.AppendCompositionVersions(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, wb.Rows)

		wb, err = s.AppendPerformanceVersions(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, wb.Rows)

		wb, err = s.AppendChangeRecords(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, wb.Rows)
	})
}
