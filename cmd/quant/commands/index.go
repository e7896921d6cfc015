package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/pipeline"
	"github.com/wonny/eqindex/internal/s0_data/collector"
)

var (
	indexDate        string
	indexFrom        string
	indexTo          string
	indexTopN        int
	indexSkipQuality bool
	indexBackfill    bool
)

// buildCmd runs the composition builder for one date
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "S1: 지수 구성 종목 생성",
	Long: `하루치 지수 구성 종목을 만들고 버전 저장소에 추가합니다.

- 해당 날짜에 가격이 없으면 먼저 수집
- 시가총액 상위 N 종목, 동일 가중치 (1/N)
- 같은 날짜를 다시 실행하면 새 버전이 추가되고 조회는 최신 버전 기준

Example:
  go run ./cmd/quant build --date 2024-01-31
  go run ./cmd/quant build --date 2024-01-31 --top-n 50`,
	RunE: runBuild,
}

// trackCmd runs the performance tracker over a range
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "S2: 지수 성과 계산",
	Long: `구간 내 최신 구성 종목으로 일별 지수 가격과 수익률을 계산합니다.

--from 생략 시 --to 기준 LOOKBACK 일 구간.

Example:
  go run ./cmd/quant track --from 2024-01-02 --to 2024-01-31`,
	RunE: runTrack,
}

// detectCmd runs the change detector over a range
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "S3: 구성 종목 변경 감지",
	Long: `날짜별 구성 종목 집합을 직전 날짜와 비교해 변경 기록을 추가합니다.

INDEX_CHANGE_LOG_MODE=dedup 이면 이미 기록된 변경은 건너뜁니다.

Example:
  go run ./cmd/quant detect --from 2024-01-02 --to 2024-01-31`,
	RunE: runDetect,
}

// runCmd runs the full pipeline for one date
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "S0→S3 전체 파이프라인 실행",
	Long: `품질 점검 → 구성 → 성과 → 변경 감지를 한 번에 실행합니다.

--backfill 이면 먼저 LOOKBACK 구간의 빠진 가격을 수집합니다.

Example:
  go run ./cmd/quant run --date 2024-01-31
  go run ./cmd/quant run --backfill`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(buildCmd, trackCmd, detectCmd, runCmd)

	for _, cmd := range []*cobra.Command{buildCmd, runCmd} {
		cmd.Flags().StringVar(&indexDate, "date", "", "date (YYYY-MM-DD, default today)")
		cmd.Flags().IntVar(&indexTopN, "top-n", 0, "number of constituents (default INDEX_TOP_N)")
	}
	for _, cmd := range []*cobra.Command{trackCmd, detectCmd} {
		cmd.Flags().StringVar(&indexFrom, "from", "", "start date (YYYY-MM-DD)")
		cmd.Flags().StringVar(&indexTo, "to", "", "end date (YYYY-MM-DD, default today)")
	}
	runCmd.Flags().BoolVar(&indexSkipQuality, "skip-quality", false, "skip the S0 quality check")
	runCmd.Flags().BoolVar(&indexBackfill, "backfill", false, "fetch missing prices of the lookback window first")
}

func (a *app) topN() int {
	if indexTopN > 0 {
		return indexTopN
	}
	return a.cfg.Index.TopN
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	date, err := a.date(indexDate)
	if err != nil {
		return err
	}

	start := time.Now()
	PrintHeader(CommandHeader{Title: "S1: Composition", Date: &date, Detail: fmt.Sprintf("top %d", a.topN())})

	snapshot := a.builder.Build(ctx, date, a.topN())
	a.publish(ctx, pipeline.CompositionEvent(snapshot))

	PrintComposition(snapshot)
	PrintCompletion(start)
	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.parseRangeFlags(indexFrom, indexTo)
	if err != nil {
		return err
	}

	start := time.Now()
	PrintHeader(CommandHeader{Title: "S2: Performance", Period: &r})

	series := a.tracker.Track(ctx, r)
	a.publish(ctx, pipeline.PerformanceEvent(series))

	PrintPerformance(series)
	PrintCompletion(start)
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.parseRangeFlags(indexFrom, indexTo)
	if err != nil {
		return err
	}

	start := time.Now()
	PrintHeader(CommandHeader{Title: "S3: Composition Changes", Period: &r, Detail: "mode " + a.cfg.Index.ChangeLogMode})

	changes := a.detector.Detect(ctx, r)
	a.publish(ctx, pipeline.ChangesEvent(changes))

	PrintChanges(changes)
	PrintCompletion(start)
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	date, err := a.date(indexDate)
	if err != nil {
		return err
	}

	start := time.Now()
	PrintHeader(CommandHeader{
		Title:  "Pipeline: S0 → S1 → S2 → S3",
		Date:   &date,
		Detail: fmt.Sprintf("top %d, lookback %dd", a.topN(), a.cfg.Index.LookbackDays),
	})

	if indexBackfill {
		window := contracts.TrailingRange(date, a.cfg.Index.LookbackDays)
		results, err := a.collector.BackfillPrices(ctx, window, collector.DefaultConfig())
		if err != nil {
			return fmt.Errorf("backfill prices: %w", err)
		}
		printFetchSummary("Backfill", collector.Summarize(results))
	}

	result, err := a.runner.Run(ctx, pipeline.RunConfig{
		Date:         date,
		TopN:         a.topN(),
		LookbackDays: a.cfg.Index.LookbackDays,
		SkipQuality:  indexSkipQuality,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	if q := result.QualitySnapshot; q != nil {
		fmt.Println()
		fmt.Printf("[S0] quality %.2f, %d/%d candidates (passed=%v)\n", q.QualityScore, q.Candidates, q.TotalTickers, q.Passed)
	}
	fmt.Println()
	fmt.Println("[S1] Composition")
	PrintComposition(result.Composition)
	fmt.Println()
	fmt.Println("[S2] Performance")
	PrintPerformance(result.Performance)
	fmt.Println()
	fmt.Println("[S3] Changes")
	PrintChanges(result.Changes)

	if !result.Success {
		PrintWarning("No composition built, market holiday or missing data")
	}
	PrintCompletion(start)
	return nil
}

// publish sends a stage event; failures only warn
func (a *app) publish(ctx context.Context, event *contracts.IndexEvent) {
	if event == nil {
		return
	}
	if err := a.publisher.Publish(ctx, *event); err != nil {
		a.logger.WithError(err).WithField("type", event.Type).Warn("Failed to publish index event")
	}
}
