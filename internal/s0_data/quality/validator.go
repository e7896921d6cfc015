package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
)

// Store is the read surface the gate inspects
type Store interface {
	ListTickers(ctx context.Context) ([]string, error)
	QueryClosePrices(ctx context.Context, r contracts.DateRange, tickers []string) ([]contracts.ClosePrice, error)
	QueryCandidates(ctx context.Context, date time.Time) ([]contracts.Candidate, error)
}

// QualityGate checks that a build date has enough input data
type QualityGate struct {
	store  Store
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage     float64 `yaml:"min_price_coverage"`     // known tickers with a bar on the date
	MinCandidateCoverage float64 `yaml:"min_candidate_coverage"` // known tickers that are rankable
	MinCandidates        int     `yaml:"min_candidates"`
}

// DefaultConfig returns permissive thresholds
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:     0.5,
		MinCandidateCoverage: 0.5,
		MinCandidates:        1,
	}
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(store Store, config Config) *QualityGate {
	return &QualityGate{store: store, config: config}
}

// Check computes coverage for a given date
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(ctx context.Context, date time.Time) (*contracts.DataQualitySnapshot, error) {
	date = contracts.NormalizeDate(date)
	snapshot := &contracts.DataQualitySnapshot{
		Date:     date,
		Coverage: make(map[string]float64),
	}

	// 1. 전체 종목 수
	tickers, err := g.store.ListTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	snapshot.TotalTickers = len(tickers)

	// 2. 가격 커버리지
	closes, err := g.store.QueryClosePrices(ctx, contracts.SingleDay(date), nil)
	if err != nil {
		return nil, fmt.Errorf("query close prices: %w", err)
	}
	snapshot.PricedBars = len(closes)

	known := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		known[t] = true
	}
	priced := 0
	for _, c := range closes {
		if known[c.Ticker] {
			priced++
		}
	}

	// 3. 후보 종목
	candidates, err := g.store.QueryCandidates(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	snapshot.Candidates = len(candidates)

	snapshot.Coverage["price"] = ratio(priced, len(tickers))
	snapshot.Coverage["candidate"] = ratio(len(candidates), len(tickers))
	snapshot.QualityScore = snapshot.CoverageRate()
	snapshot.Passed = g.passed(snapshot)

	return snapshot, nil
}

func (g *QualityGate) passed(s *contracts.DataQualitySnapshot) bool {
	return s.Coverage["price"] >= g.config.MinPriceCoverage &&
		s.Coverage["candidate"] >= g.config.MinCandidateCoverage &&
		s.Candidates >= g.config.MinCandidates
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
