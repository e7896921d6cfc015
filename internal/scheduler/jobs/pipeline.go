package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/pipeline"
	"github.com/wonny/eqindex/internal/s0_data/collector"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/logger"
)

// PriceBackfiller fills missing price dates; *collector.Collector satisfies it
type PriceBackfiller interface {
	BackfillPrices(ctx context.Context, r contracts.DateRange, cfg collector.Config) ([]collector.FetchResult, error)
}

// PipelineRunner runs one pipeline date; *pipeline.Runner satisfies it
type PipelineRunner interface {
	Run(ctx context.Context, cfg pipeline.RunConfig) (*pipeline.RunResult, error)
}

// DailyPipelineJob backfills the lookback window and rebuilds the index after the US close
// ⭐ SSOT: 일일 지수 갱신 스케줄은 이 Job에서만
type DailyPipelineJob struct {
	collector PriceBackfiller
	runner    PipelineRunner
	index     config.IndexConfig
	schedule  string
	location  *time.Location
	now       func() time.Time
	logger    *logger.Logger
}

// NewDailyPipelineJob creates a daily pipeline job; loc decides which calendar day "today" is
func NewDailyPipelineJob(col PriceBackfiller, runner PipelineRunner, idx config.IndexConfig, schedule string, loc *time.Location, log *logger.Logger) *DailyPipelineJob {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyPipelineJob{
		collector: col,
		runner:    runner,
		index:     idx,
		schedule:  schedule,
		location:  loc,
		now:       time.Now,
		logger:    log.WithField("job", "daily_pipeline"),
	}
}

// Name returns the job name
func (j *DailyPipelineJob) Name() string {
	return "daily_pipeline"
}

// Schedule returns the cron schedule
func (j *DailyPipelineJob) Schedule() string {
	return j.schedule
}

// Run executes backfill then the pipeline for today
func (j *DailyPipelineJob) Run(ctx context.Context) error {
	date := contracts.NormalizeDate(j.now().In(j.location))
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		j.logger.WithDate(date).Info("Weekend, skipping")
		return nil
	}

	window := contracts.TrailingRange(date, j.index.LookbackDays)
	results, err := j.collector.BackfillPrices(ctx, window, collector.DefaultConfig())
	if err != nil {
		return fmt.Errorf("backfill prices: %w", err)
	}
	if s := collector.Summarize(results); s.Failed > 0 {
		// 빠진 날짜가 있어도 지수는 계산, 다음 실행에서 다시 채움
		j.logger.WithField("failed", s.Failed).Warn("Some price dates failed to load")
	}

	res, err := j.runner.Run(ctx, pipeline.RunConfig{
		Date:         date,
		TopN:         j.index.TopN,
		LookbackDays: j.index.LookbackDays,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	if !res.Success {
		// 휴장일: 가격이 없으면 구성 종목도 없음
		j.logger.WithDate(date).Warn("No composition built, market holiday or missing data")
	}
	return nil
}
