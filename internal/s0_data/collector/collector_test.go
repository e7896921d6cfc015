package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/store/memory"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/redis"
)

type fakeSource struct {
	mu         sync.Mutex
	priceCalls map[string]int
	failDates  map[string]bool
	caps       map[string]float64
	failTicker string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		priceCalls: make(map[string]int),
		failDates:  make(map[string]bool),
		caps:       map[string]float64{"AAPL": 3e12, "MSFT": 2.8e12},
	}
}

func (f *fakeSource) FetchDailyPrices(_ context.Context, date time.Time) ([]contracts.PricePoint, error) {
	day := contracts.FormatDate(date)
	f.mu.Lock()
	f.priceCalls[day]++
	f.mu.Unlock()

	if f.failDates[day] {
		return nil, errors.New("upstream timeout")
	}
	return []contracts.PricePoint{
		{Ticker: "AAPL", Date: date, Timestamp: date.UnixMilli(), Close: 190},
		{Ticker: "MSFT", Date: date, Timestamp: date.UnixMilli(), Close: 370},
	}, nil
}

func (f *fakeSource) FetchTickerAttributes(_ context.Context, ticker string) (*contracts.TickerAttributes, error) {
	if ticker == f.failTicker {
		return nil, errors.New("upstream 500")
	}
	mc, ok := f.caps[ticker]
	if !ok {
		return nil, nil
	}
	return &contracts.TickerAttributes{Ticker: ticker, Active: true, MarketCap: &mc}, nil
}

func newTestCollector(t *testing.T, source contracts.MarketDataSource) (*Collector, *memory.Store) {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	st := memory.New(nil)
	return NewCollector(source, st, redis.NewCache(client, "test"), logger.Nop()), st
}

func TestBackfillPrices(t *testing.T) {
	source := newFakeSource()
	source.failDates["2024-01-03"] = true
	c, st := newTestCollector(t, source)
	ctx := context.Background()

	// Tue 2024-01-02 .. Mon 2024-01-08
	r, err := contracts.ParseDateRange("2024-01-02", "2024-01-08")
	require.NoError(t, err)

	results, err := c.BackfillPrices(ctx, r, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, results, 5) // weekdays only

	s := Summarize(results)
	assert.Equal(t, 4, s.Success)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 8, s.Rows)

	has, err := st.HasPrices(ctx, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, has)

	// second run skips stored dates and retries the failed one
	source.failDates["2024-01-03"] = false
	results, err = c.BackfillPrices(ctx, r, DefaultConfig())
	require.NoError(t, err)
	s = Summarize(results)
	assert.Equal(t, 4, s.Skipped)
	assert.Equal(t, 1, s.Success)
	assert.Equal(t, 1, source.priceCalls["2024-01-02"])
	assert.Equal(t, 2, source.priceCalls["2024-01-03"])

	// force refetches everything
	_, err = c.BackfillPrices(ctx, r, Config{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, source.priceCalls["2024-01-02"])
}

func TestBackfillPrices_Canceled(t *testing.T) {
	c, _ := newTestCollector(t, newFakeSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := contracts.ParseDateRange("2024-01-02", "2024-01-03")
	require.NoError(t, err)
	_, err = c.BackfillPrices(ctx, r, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshTickers(t *testing.T) {
	source := newFakeSource()
	source.failTicker = "FAIL"
	c, st := newTestCollector(t, source)
	ctx := context.Background()

	results, err := c.RefreshTickers(ctx, []string{"AAPL", "MSFT", "ZZZZ", "FAIL"}, Config{Workers: 2})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "AAPL", results[0].Ticker)
	assert.Equal(t, 1, results[0].Rows)
	assert.True(t, results[2].Skipped)
	assert.Error(t, results[3].Error)

	s := Summarize(results)
	assert.Equal(t, 2, s.Success)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)

	tickers, err := st.ListTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)

	attrs, err := st.GetTickerAttributes(ctx, "MSFT")
	require.NoError(t, err)
	require.True(t, attrs.HasMarketCap())
	assert.InDelta(t, 2.8e12, *attrs.MarketCap, 1)
}

func TestRefreshTickers_Empty(t *testing.T) {
	c, st := newTestCollector(t, newFakeSource())

	results, err := c.RefreshTickers(context.Background(), nil, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, results)

	tickers, err := st.ListTickers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tickers)
}

type stubLister struct {
	tickers []string
	err     error
	limit   int
}

func (s *stubLister) ListTickers(_ context.Context, limit int) ([]string, error) {
	s.limit = limit
	return s.tickers, s.err
}

func TestStaticUniverse(t *testing.T) {
	tickers, err := StaticUniverse{"msft", " AAPL ", "", "MSFT", "brk.b"}.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK.B", "MSFT"}, tickers)
}

func TestListedUniverse(t *testing.T) {
	lister := &stubLister{tickers: []string{"AAPL", "MSFT"}}
	tickers, err := ListedUniverse{Lister: lister, Limit: 50}.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
	assert.Equal(t, 50, lister.limit)

	_, err = ListedUniverse{Lister: &stubLister{err: errors.New("502")}}.Tickers(context.Background())
	assert.Error(t, err)
}
