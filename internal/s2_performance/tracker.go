// Package s2_performance computes the index level series from the latest
// composition versions and stored closes.
package s2_performance

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

const stage = "performance"

// DefaultLookbackDays is the trailing window used when no range is given
const DefaultLookbackDays = 30

// Store is the persistence the tracker reads and appends to
type Store interface {
	QueryLatestComposition(ctx context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error)
	QueryClosePrices(ctx context.Context, r contracts.DateRange, tickers []string) ([]contracts.ClosePrice, error)
	AppendPerformanceVersions(ctx context.Context, rows []contracts.PerformancePoint) (contracts.WriteBatch, error)
}

// Tracker computes and appends performance series
type Tracker struct {
	store    Store
	logger   *logger.Logger
	now      func() time.Time
	lookback int
}

var _ contracts.PerformanceTracker = (*Tracker)(nil)

// Option configures a Tracker
type Option func(*Tracker)

// WithClock sets the source of "today" for the default range
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLookback sets the default range length in days
func WithLookback(days int) Option {
	return func(t *Tracker) {
		if days > 0 {
			t.lookback = days
		}
	}
}

// NewTracker creates a new performance Tracker
func NewTracker(store Store, log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		logger:   log.WithField("stage", stage),
		now:      time.Now,
		lookback: DefaultLookbackDays,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DefaultRange returns the trailing lookback window ending today
func (t *Tracker) DefaultRange() contracts.DateRange {
	return contracts.TrailingRange(t.now(), t.lookback)
}

// Track computes the index level for every date in r that has a latest
// composition and matching closes, and appends the series as one batch.
// A zero r means the trailing lookback window. The result is never nil.
// ⭐ SSOT: S2 지수 성과 계산
func (t *Tracker) Track(ctx context.Context, r contracts.DateRange) *contracts.PerformanceSeries {
	start := time.Now()
	if r.IsZero() {
		r = t.DefaultRange()
	}
	log := t.logger.WithRange(r.Start, r.End)

	composition, err := t.store.QueryLatestComposition(ctx, r)
	if err != nil {
		log.WithError(err).Error("Failed to query latest composition")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyPerformance(r)
	}
	if len(composition) == 0 {
		log.Warn("No composition in range")
		metrics.ObserveStage(stage, start, metrics.OutcomeEmpty)
		return contracts.EmptyPerformance(r)
	}

	closes, err := t.store.QueryClosePrices(ctx, r, constituentTickers(composition))
	if err != nil {
		log.WithError(err).Error("Failed to query close prices")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyPerformance(r)
	}

	points := ComputeSeries(composition, closes)
	if len(points) == 0 {
		log.Warn("No priced constituents in range")
		metrics.ObserveStage(stage, start, metrics.OutcomeEmpty)
		return contracts.EmptyPerformance(r)
	}

	wb, err := t.store.AppendPerformanceVersions(ctx, points)
	if err != nil {
		log.WithError(err).Error("Failed to append performance")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyPerformance(r)
	}

	for i := range points {
		points[i].WriteTime = wb.WriteTime
		points[i].RunID = wb.RunID
	}

	metrics.RowsAppended.WithLabelValues("index_performance").Add(float64(len(points)))
	metrics.ObserveStage(stage, start, metrics.OutcomeOK)

	log.WithBatch(wb.RunID, wb.WriteTime, len(points)).Info("Performance appended")

	return &contracts.PerformanceSeries{
		Range:     r,
		RunID:     wb.RunID,
		WriteTime: wb.WriteTime,
		Points:    points,
	}
}

// ComputeSeries joins composition weights to closes on (ticker, date):
// index_price(d) = Σ weight × close. Dates without any priced constituent are
// skipped. daily_return is the percent change from the previous point of this
// series; the first point is 0, as is any point after a zero level.
func ComputeSeries(composition []contracts.CompositionEntry, closes []contracts.ClosePrice) []contracts.PerformancePoint {
	closeOf := make(map[string]float64, len(closes))
	for _, c := range closes {
		closeOf[priceKey(c.Date, c.Ticker)] = c.Close
	}

	levels := make(map[time.Time]float64)
	for _, e := range composition {
		date := contracts.NormalizeDate(e.Date)
		px, ok := closeOf[priceKey(date, e.Ticker)]
		if !ok {
			continue
		}
		levels[date] += e.Weight * px
	}

	dates := make([]time.Time, 0, len(levels))
	for d := range levels {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]contracts.PerformancePoint, 0, len(dates))
	for i, d := range dates {
		p := contracts.PerformancePoint{Date: d, IndexPrice: levels[d]}
		if i > 0 {
			if prev := levels[dates[i-1]]; prev != 0 {
				p.DailyReturn = (p.IndexPrice/prev - 1) * 100
			}
		}
		points = append(points, p)
	}
	return points
}

func priceKey(date time.Time, ticker string) string {
	return contracts.FormatDate(date) + "|" + ticker
}

func constituentTickers(composition []contracts.CompositionEntry) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, e := range composition {
		if !seen[e.Ticker] {
			seen[e.Ticker] = true
			tickers = append(tickers, e.Ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}
