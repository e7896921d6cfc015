package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/eqindex/internal/s0_data/collector"
	"github.com/wonny/eqindex/pkg/logger"
)

// TickerRefresher updates reference data; *collector.Collector satisfies it
type TickerRefresher interface {
	RefreshTickers(ctx context.Context, tickers []string, cfg collector.Config) ([]collector.FetchResult, error)
}

// TickerRefreshJob refreshes market caps of the universe so the next build ranks on current data
type TickerRefreshJob struct {
	universe  collector.Universe
	refresher TickerRefresher
	schedule  string
	config    collector.Config
	logger    *logger.Logger
}

// NewTickerRefreshJob creates a ticker refresh job
func NewTickerRefreshJob(universe collector.Universe, refresher TickerRefresher, schedule string, log *logger.Logger) *TickerRefreshJob {
	return &TickerRefreshJob{
		universe:  universe,
		refresher: refresher,
		schedule:  schedule,
		config:    collector.DefaultConfig(),
		logger:    log.WithField("job", "ticker_refresh"),
	}
}

// Name returns the job name
func (j *TickerRefreshJob) Name() string {
	return "ticker_refresh"
}

// Schedule returns the cron schedule
func (j *TickerRefreshJob) Schedule() string {
	return j.schedule
}

// Run lists the universe and refreshes every ticker.
// It fails only when nothing could be refreshed.
func (j *TickerRefreshJob) Run(ctx context.Context) error {
	tickers, err := j.universe.Tickers(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("universe is empty")
	}

	results, err := j.refresher.RefreshTickers(ctx, tickers, j.config)
	if err != nil {
		return fmt.Errorf("refresh tickers: %w", err)
	}

	s := collector.Summarize(results)
	if s.Failed == len(results) {
		return fmt.Errorf("all %d ticker fetches failed", s.Failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"success": s.Success,
		"skipped": s.Skipped,
		"failed":  s.Failed,
	}).Info("Ticker refresh job completed")
	return nil
}
