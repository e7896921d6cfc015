// Package s1_composition selects and equal-weights index constituents.
package s1_composition

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

const stage = "composition"

// Store is the persistence the builder reads and appends to
type Store interface {
	HasPrices(ctx context.Context, date time.Time) (bool, error)
	SavePrices(ctx context.Context, prices []contracts.PricePoint) (int, error)
	QueryCandidates(ctx context.Context, date time.Time) ([]contracts.Candidate, error)
	AppendCompositionVersions(ctx context.Context, rows []contracts.CompositionEntry) (contracts.WriteBatch, error)
}

// Builder constructs equal-weighted composition snapshots
type Builder struct {
	store  Store
	source contracts.MarketDataSource
	logger *logger.Logger
}

var _ contracts.CompositionBuilder = (*Builder)(nil)

// NewBuilder creates a new composition Builder.
// source may be nil, in which case missing prices are never fetched.
func NewBuilder(store Store, source contracts.MarketDataSource, log *logger.Logger) *Builder {
	return &Builder{
		store:  store,
		source: source,
		logger: log.WithField("stage", stage),
	}
}

// Build selects the topN tickers by market cap on date, weights them 1/N and
// appends the result as one new version set.
// Failures are logged; the returned snapshot is never nil.
// ⭐ SSOT: S1 구성 종목 생성
func (b *Builder) Build(ctx context.Context, date time.Time, topN int) *contracts.CompositionSnapshot {
	start := time.Now()
	date = contracts.NormalizeDate(date)
	log := b.logger.WithDate(date).WithField("top_n", topN)

	if topN <= 0 {
		log.Warn("Non-positive top_n, nothing to select")
		metrics.ObserveStage(stage, start, metrics.OutcomeEmpty)
		return contracts.EmptyComposition(date)
	}

	b.ensurePrices(ctx, date, log)

	candidates, err := b.store.QueryCandidates(ctx, date)
	if err != nil {
		log.WithError(err).Error("Failed to query candidates")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyComposition(date)
	}

	entries := SelectConstituents(date, candidates, topN)
	if len(entries) == 0 {
		log.Warn("No eligible candidates, composition not written")
		metrics.ObserveStage(stage, start, metrics.OutcomeEmpty)
		return contracts.EmptyComposition(date)
	}

	wb, err := b.store.AppendCompositionVersions(ctx, entries)
	if err != nil {
		log.WithError(err).Error("Failed to append composition")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyComposition(date)
	}

	for i := range entries {
		entries[i].WriteTime = wb.WriteTime
		entries[i].RunID = wb.RunID
	}

	metrics.RowsAppended.WithLabelValues("index_composition").Add(float64(len(entries)))
	metrics.Constituents.Set(float64(len(entries)))
	metrics.ObserveStage(stage, start, metrics.OutcomeOK)

	log.WithBatch(wb.RunID, wb.WriteTime, len(entries)).
		WithField("candidates", len(candidates)).
		Info("Composition appended")

	return &contracts.CompositionSnapshot{
		Date:      date,
		RunID:     wb.RunID,
		WriteTime: wb.WriteTime,
		Entries:   entries,
	}
}

// ensurePrices fetches and stores bars for date when none are stored.
// A failed fetch only means no new data.
func (b *Builder) ensurePrices(ctx context.Context, date time.Time, log *logger.Logger) {
	if b.source == nil {
		return
	}

	has, err := b.store.HasPrices(ctx, date)
	if err != nil {
		log.WithError(err).Error("Failed to check stored prices")
		return
	}
	if has {
		return
	}

	prices, err := b.source.FetchDailyPrices(ctx, date)
	if err != nil {
		log.WithError(err).Error("Price fetch failed, using stored data")
		return
	}
	if len(prices) == 0 {
		log.Warn("Market data source returned no bars")
		return
	}

	n, err := b.store.SavePrices(ctx, prices)
	if err != nil {
		log.WithError(err).Error("Failed to save fetched prices")
		return
	}
	log.WithField("rows", n).Info("Fetched missing prices")
}

// SelectConstituents ranks candidates by market cap (desc, ticker asc on
// ties), keeps at most topN and assigns each weight 1/N.
func SelectConstituents(date time.Time, candidates []contracts.Candidate, topN int) []contracts.CompositionEntry {
	if topN <= 0 || len(candidates) == 0 {
		return []contracts.CompositionEntry{}
	}

	ranked := append([]contracts.Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MarketCap != ranked[j].MarketCap {
			return ranked[i].MarketCap > ranked[j].MarketCap
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	date = contracts.NormalizeDate(date)
	weight := 1.0 / float64(len(ranked))
	entries := make([]contracts.CompositionEntry, 0, len(ranked))
	for _, c := range ranked {
		entries = append(entries, contracts.CompositionEntry{
			Date:       date,
			Ticker:     c.Ticker,
			ClosePrice: c.ClosePrice,
			Weight:     weight,
			MarketCap:  c.MarketCap,
		})
	}
	return entries
}
