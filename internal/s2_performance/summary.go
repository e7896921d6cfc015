package s2_performance

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

const (
	tradingDaysPerYear = 252
	riskFreeRate       = 0.03 // 3% 무위험 수익률
)

// Summary holds headline statistics of a performance series.
// Return figures are percentages, like PerformancePoint.DailyReturn.
type Summary struct {
	Range        contracts.DateRange `json:"range"`
	Days         int                 `json:"days"`
	StartLevel   float64             `json:"start_level"`
	EndLevel     float64             `json:"end_level"`
	Constituents int                 `json:"constituents"` // on the last date

	// 수익률
	TotalReturn      float64 `json:"total_return"` // sum of daily returns
	CompoundedReturn float64 `json:"compounded_return"`
	AnnualReturn     float64 `json:"annual_return"`
	MeanReturn       float64 `json:"mean_return"`

	// 리스크 지표
	StdDev      float64 `json:"std_dev"`
	Volatility  float64 `json:"volatility"` // annualized
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// SummaryStore is the read surface the analyzer needs
type SummaryStore interface {
	QueryLatestPerformance(ctx context.Context, r contracts.DateRange) ([]contracts.PerformancePoint, error)
	QueryLatestComposition(ctx context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error)
}

// Analyzer summarizes stored performance history
type Analyzer struct {
	store  SummaryStore
	logger *logger.Logger
}

// NewAnalyzer creates a new Analyzer
func NewAnalyzer(store SummaryStore, log *logger.Logger) *Analyzer {
	return &Analyzer{store: store, logger: log}
}

// Analyze summarizes the latest performance versions in r
func (a *Analyzer) Analyze(ctx context.Context, r contracts.DateRange) (*Summary, error) {
	points, err := a.store.QueryLatestPerformance(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance: %w", err)
	}

	summary := Summarize(r, points)
	if len(points) == 0 {
		return &summary, nil
	}

	last := points[len(points)-1].Date
	composition, err := a.store.QueryLatestComposition(ctx, contracts.SingleDay(last))
	if err != nil {
		return nil, fmt.Errorf("failed to get composition: %w", err)
	}
	summary.Constituents = len(composition)

	a.logger.WithFields(map[string]interface{}{
		"range":        r.String(),
		"days":         summary.Days,
		"total_return": summary.TotalReturn,
		"max_drawdown": summary.MaxDrawdown,
	}).Debug("Performance summary computed")

	return &summary, nil
}

// Summarize computes statistics of a date-ordered series.
// Returns are taken from consecutive levels, not from the stored daily_return:
// every tracking run zeroes the return of its first date, so stored returns
// lose the move into each re-tracked window start.
func Summarize(r contracts.DateRange, points []contracts.PerformancePoint) Summary {
	s := Summary{Range: r, Days: len(points)}
	if len(points) == 0 {
		return s
	}

	s.StartLevel = points[0].IndexPrice
	s.EndLevel = points[len(points)-1].IndexPrice

	returns := levelReturns(points)

	s.TotalReturn = sum(returns)
	s.MeanReturn = s.TotalReturn / float64(len(returns))
	s.CompoundedReturn = compound(returns)
	s.AnnualReturn = annualize(s.CompoundedReturn, len(points)-1)
	s.StdDev = stdDev(returns)
	s.Volatility = s.StdDev * math.Sqrt(tradingDaysPerYear)
	if s.Volatility != 0 {
		s.Sharpe = (s.AnnualReturn/100 - riskFreeRate) / (s.Volatility / 100)
	}
	s.MaxDrawdown = maxDrawdown(points)

	return s
}

// levelReturns is the percent change of each level from the previous point;
// the first point and any point after a zero level are 0
func levelReturns(points []contracts.PerformancePoint) []float64 {
	returns := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		if prev := points[i-1].IndexPrice; prev != 0 {
			returns[i] = (points[i].IndexPrice/prev - 1) * 100
		}
	}
	return returns
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// compound chains percent returns
func compound(returns []float64) float64 {
	cum := 1.0
	for _, r := range returns {
		cum *= 1.0 + r/100
	}
	return (cum - 1.0) * 100
}

// annualize converts a percent return over n trading days
func annualize(totalReturn float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return (math.Pow(1.0+totalReturn/100, tradingDaysPerYear/float64(n)) - 1.0) * 100
}

// stdDev is the sample standard deviation
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := sum(values) / float64(len(values))
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// maxDrawdown is the deepest peak-to-trough fall of the index level, in percent (<= 0)
func maxDrawdown(points []contracts.PerformancePoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range points {
		if p.IndexPrice > peak {
			peak = p.IndexPrice
		}
		if peak == 0 {
			continue
		}
		if dd := (p.IndexPrice - peak) / peak * 100; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
