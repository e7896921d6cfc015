// Package pipeline runs the daily index pipeline: quality check, build,
// then track and detect over the trailing window.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/s0_data/quality"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

// Stage names recorded in RunResult.CompletedStages
const (
	StageQuality     = "S0:Quality"
	StageComposition = "S1:Composition"
	StagePerformance = "S2:Performance"
	StageChanges     = "S3:Changes"
)

// Gate checks input data before a build; *quality.QualityGate satisfies it
type Gate interface {
	Check(ctx context.Context, date time.Time) (*contracts.DataQualitySnapshot, error)
}

var _ Gate = (*quality.QualityGate)(nil)

// Runner coordinates the index stages
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Runner struct {
	gate      Gate // optional
	builder   contracts.CompositionBuilder
	tracker   contracts.PerformanceTracker
	detector  contracts.ChangeDetector
	publisher contracts.EventPublisher // optional
	logger    *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Date         time.Time
	TopN         int
	LookbackDays int
	SkipQuality  bool
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	Date            time.Time                      `json:"date"`
	Range           contracts.DateRange            `json:"range"`
	Success         bool                           `json:"success"`
	CompletedStages []string                       `json:"completed_stages"`
	QualitySnapshot *contracts.DataQualitySnapshot `json:"quality,omitempty"`
	Composition     *contracts.CompositionSnapshot `json:"composition"`
	Performance     *contracts.PerformanceSeries   `json:"performance"`
	Changes         *contracts.ChangeSeries        `json:"changes"`
	Events          int                            `json:"events"`
	Duration        time.Duration                  `json:"duration"`
}

// NewRunner creates a runner; gate and publisher may be nil
func NewRunner(
	gate Gate,
	builder contracts.CompositionBuilder,
	tracker contracts.PerformanceTracker,
	detector contracts.ChangeDetector,
	publisher contracts.EventPublisher,
	log *logger.Logger,
) *Runner {
	return &Runner{
		gate:      gate,
		builder:   builder,
		tracker:   tracker,
		detector:  detector,
		publisher: publisher,
		logger:    log,
	}
}

// Run executes S0 → S1 → S2 → S3 for one date.
// Stage failures are logged by the stages themselves; Run only fails on
// invalid input or a cancelled context.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := time.Now()

	if cfg.Date.IsZero() {
		return nil, fmt.Errorf("run date is required")
	}
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("top n must be positive, got %d", cfg.TopN)
	}
	if cfg.LookbackDays <= 0 {
		return nil, fmt.Errorf("lookback days must be positive, got %d", cfg.LookbackDays)
	}

	date := contracts.NormalizeDate(cfg.Date)
	result := &RunResult{
		Date:            date,
		Range:           contracts.TrailingRange(date, cfg.LookbackDays),
		CompletedStages: make([]string, 0, 4),
	}

	log := r.logger.WithDate(date).WithFields(map[string]interface{}{
		"top_n":    cfg.TopN,
		"lookback": cfg.LookbackDays,
	})
	log.Info("Starting pipeline run")

	// S0: 데이터 품질 (경고만, 빌드는 계속)
	if r.gate != nil && !cfg.SkipQuality {
		snapshot, err := r.gate.Check(ctx, date)
		switch {
		case err != nil:
			log.WithError(err).Warn("Quality check failed, continuing")
		case snapshot != nil && !snapshot.Passed:
			log.WithField("quality_score", snapshot.QualityScore).Warn("Quality gate not passed, continuing")
		}
		result.QualitySnapshot = snapshot
		result.CompletedStages = append(result.CompletedStages, StageQuality)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// S1: 구성 종목
	result.Composition = r.builder.Build(ctx, date, cfg.TopN)
	result.CompletedStages = append(result.CompletedStages, StageComposition)
	r.publish(ctx, &result.Events, CompositionEvent(result.Composition))

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// S2: 성과
	result.Performance = r.tracker.Track(ctx, result.Range)
	result.CompletedStages = append(result.CompletedStages, StagePerformance)
	r.publish(ctx, &result.Events, PerformanceEvent(result.Performance))

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// S3: 구성 변경
	result.Changes = r.detector.Detect(ctx, result.Range)
	result.CompletedStages = append(result.CompletedStages, StageChanges)
	r.publish(ctx, &result.Events, ChangesEvent(result.Changes))

	result.Success = !result.Composition.IsEmpty()
	result.Duration = time.Since(start)

	outcome := metrics.OutcomeOK
	if !result.Success {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveStage("pipeline", start, outcome)

	log.WithFields(map[string]interface{}{
		"constituents": result.Composition.Len(),
		"points":       result.Performance.Len(),
		"changes":      result.Changes.Len(),
		"events":       result.Events,
		"duration":     result.Duration.Seconds(),
	}).Info("Pipeline run completed")

	return result, nil
}

func (r *Runner) publish(ctx context.Context, count *int, event *contracts.IndexEvent) {
	if r.publisher == nil || event == nil {
		return
	}
	if err := r.publisher.Publish(ctx, *event); err != nil {
		r.logger.WithError(err).WithField("type", event.Type).Warn("Failed to publish index event")
		return
	}
	*count++
}
