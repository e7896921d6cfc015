package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/redis"
)

// Store is the persistence the collector writes to
type Store interface {
	contracts.PriceStore
	contracts.TickerStore
}

// Collector fills the price and ticker tables from a market data source
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	source contracts.MarketDataSource
	store  Store
	cache  *redis.Cache
	logger *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int  // concurrent ticker detail fetches
	Force   bool // refetch dates that already have prices, bypass the details cache
}

// DefaultConfig returns the default collector configuration
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// FetchResult represents the result of one fetch unit (a date or a ticker)
type FetchResult struct {
	Date    time.Time
	Ticker  string
	Rows    int
	Skipped bool
	Error   error
}

// Summary counts results by outcome
type Summary struct {
	Success int
	Skipped int
	Failed  int
	Rows    int
}

// Summarize folds results into a Summary
func Summarize(results []FetchResult) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Error != nil:
			s.Failed++
		case r.Skipped:
			s.Skipped++
		default:
			s.Success++
		}
		s.Rows += r.Rows
	}
	return s
}

// NewCollector creates a new Collector instance.
// cache may wrap a disabled redis client.
func NewCollector(source contracts.MarketDataSource, store Store, cache *redis.Cache, log *logger.Logger) *Collector {
	return &Collector{
		source: source,
		store:  store,
		cache:  cache,
		logger: log.WithField("module", "collector"),
	}
}

// BackfillPrices fetches grouped daily bars for every weekday in r.
// A failing date is recorded in its FetchResult and the backfill continues;
// only context cancellation aborts it.
func (c *Collector) BackfillPrices(ctx context.Context, r contracts.DateRange, cfg Config) ([]FetchResult, error) {
	days := r.Weekdays()

	c.logger.WithRange(r.Start, r.End).WithFields(map[string]interface{}{
		"dates": len(days),
		"force": cfg.Force,
	}).Info("Starting price backfill")

	results := make([]FetchResult, 0, len(days))
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, c.fetchDate(ctx, day, cfg.Force))
	}

	s := Summarize(results)
	c.logger.WithFields(map[string]interface{}{
		"success": s.Success,
		"skipped": s.Skipped,
		"failed":  s.Failed,
		"rows":    s.Rows,
	}).Info("Price backfill completed")

	return results, nil
}

func (c *Collector) fetchDate(ctx context.Context, day time.Time, force bool) FetchResult {
	result := FetchResult{Date: day}
	log := c.logger.WithDate(day)

	if !force {
		has, err := c.store.HasPrices(ctx, day)
		if err != nil {
			log.WithError(err).Error("Failed to check stored prices")
			result.Error = err
			return result
		}
		if has {
			result.Skipped = true
			return result
		}
	}

	prices, err := c.source.FetchDailyPrices(ctx, day)
	if err != nil {
		log.WithError(err).Error("Failed to fetch prices")
		result.Error = err
		return result
	}
	if len(prices) == 0 {
		// 휴장일
		log.Debug("No bars returned")
		return result
	}

	n, err := c.store.SavePrices(ctx, prices)
	if err != nil {
		log.WithError(err).Error("Failed to save prices")
		result.Error = err
		return result
	}

	result.Rows = n
	log.WithField("rows", n).Debug("Saved prices")
	return result
}

// RefreshTickers fetches reference data for tickers with a bounded worker
// pool and upserts everything fetched in one call. Details are cached in
// redis for a day; unknown tickers are skipped.
func (c *Collector) RefreshTickers(ctx context.Context, tickers []string, cfg Config) ([]FetchResult, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultConfig().Workers
	}

	c.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"workers": workers,
	}).Info("Starting ticker refresh")

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var mu sync.Mutex
	results := make([]FetchResult, len(tickers))
	fetched := make([]contracts.TickerAttributes, 0, len(tickers))

	for i, ticker := range tickers {
		i, ticker := i, ticker
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				results[i] = FetchResult{Ticker: ticker, Error: err}
				return
			}

			attrs, err := c.tickerDetails(groupCtx, ticker, cfg.Force)
			results[i] = FetchResult{Ticker: ticker, Error: err, Skipped: err == nil && attrs == nil}
			if err != nil {
				c.logger.WithError(err).WithField("ticker", ticker).Error("Failed to fetch ticker details")
				return
			}
			if attrs == nil {
				c.logger.WithField("ticker", ticker).Warn("Unknown ticker")
				return
			}

			mu.Lock()
			fetched = append(fetched, *attrs)
			mu.Unlock()
		})
	}

	if err := group.Wait(); err != nil {
		return results, fmt.Errorf("ticker refresh: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	if len(fetched) > 0 {
		n, err := c.store.SaveTickerAttributes(ctx, fetched)
		if err != nil {
			return results, fmt.Errorf("save ticker attributes: %w", err)
		}
		for i := range results {
			if results[i].Error == nil && !results[i].Skipped {
				results[i].Rows = 1
			}
		}
		c.logger.WithField("rows", n).Debug("Saved ticker attributes")
	}

	s := Summarize(results)
	c.logger.WithFields(map[string]interface{}{
		"success": s.Success,
		"skipped": s.Skipped,
		"failed":  s.Failed,
	}).Info("Ticker refresh completed")

	return results, nil
}

func (c *Collector) tickerDetails(ctx context.Context, ticker string, force bool) (*contracts.TickerAttributes, error) {
	key := redis.TickerDetailsKey(ticker)
	if force {
		_ = c.cache.Delete(ctx, key)
	}

	var attrs *contracts.TickerAttributes
	err := c.cache.GetOrSet(ctx, key, &attrs, redis.TTLDaily, func() (interface{}, error) {
		return c.source.FetchTickerAttributes(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}
