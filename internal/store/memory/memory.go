// Package memory is an in-memory versioned store with the same read semantics
// as the postgres store. It backs component tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/store"
)

type priceKey struct {
	ticker    string
	timestamp int64
}

// Store is an in-memory implementation of contracts.VersionedStore
type Store struct {
	mu       sync.RWMutex
	clock    *store.VersionClock
	newRunID func() string

	prices      map[priceKey]contracts.PricePoint
	tickers     map[string]contracts.TickerAttributes
	composition []contracts.CompositionEntry
	performance []contracts.PerformancePoint
	changes     []contracts.ChangeRecord
}

var _ contracts.VersionedStore = (*Store)(nil)

// New creates an empty store; now feeds write-times (nil means time.Now)
func New(now func() time.Time) *Store {
	return &Store{
		clock:    store.NewVersionClock(now),
		newRunID: uuid.NewString,
		prices:   make(map[priceKey]contracts.PricePoint),
		tickers:  make(map[string]contracts.TickerAttributes),
	}
}

func (s *Store) nextBatch(rows int) contracts.WriteBatch {
	return contracts.WriteBatch{RunID: s.newRunID(), WriteTime: s.clock.Next(), Rows: rows}
}

// SavePrices upserts bars by (ticker, timestamp)
func (s *Store) SavePrices(_ context.Context, prices []contracts.PricePoint) (int, error) {
	if err := store.ValidatePrices(prices); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range prices {
		p.Date = contracts.NormalizeDate(p.Date)
		s.prices[priceKey{p.Ticker, p.Timestamp}] = p
	}
	return len(prices), nil
}

// HasPrices reports whether any bar exists for date
func (s *Store) HasPrices(_ context.Context, date time.Time) (bool, error) {
	date = contracts.NormalizeDate(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.prices {
		if p.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

// closes returns the latest-timestamp bar per (date, ticker); caller holds the lock
func (s *Store) closes(match func(p contracts.PricePoint) bool) map[string]contracts.PricePoint {
	out := make(map[string]contracts.PricePoint)
	for _, p := range s.prices {
		if !match(p) {
			continue
		}
		key := contracts.FormatDate(p.Date) + "|" + p.Ticker
		if cur, ok := out[key]; !ok || p.Timestamp > cur.Timestamp {
			out[key] = p
		}
	}
	return out
}

// QueryClosePrices returns closes in r, optionally limited to tickers
func (s *Store) QueryClosePrices(_ context.Context, r contracts.DateRange, tickers []string) ([]contracts.ClosePrice, error) {
	want := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		want[t] = struct{}{}
	}

	s.mu.RLock()
	bars := s.closes(func(p contracts.PricePoint) bool {
		if !r.Contains(p.Date) {
			return false
		}
		_, ok := want[p.Ticker]
		return len(want) == 0 || ok
	})
	s.mu.RUnlock()

	out := make([]contracts.ClosePrice, 0, len(bars))
	for _, p := range bars {
		out = append(out, contracts.ClosePrice{Date: p.Date, Ticker: p.Ticker, Close: p.Close})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

// SaveTickerAttributes upserts reference data by ticker
func (s *Store) SaveTickerAttributes(_ context.Context, attrs []contracts.TickerAttributes) (int, error) {
	if err := store.ValidateTickers(attrs); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range attrs {
		s.tickers[a.Ticker] = a
	}
	return len(attrs), nil
}

// GetTickerAttributes returns a copy of one ticker's reference data
func (s *Store) GetTickerAttributes(_ context.Context, ticker string) (*contracts.TickerAttributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.tickers[ticker]
	if !ok {
		return nil, fmt.Errorf("ticker %s: %w", ticker, store.ErrNotFound)
	}
	return &a, nil
}

// ListTickers returns all known tickers in sorted order
func (s *Store) ListTickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tickers))
	for t := range s.tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// QueryCandidates lists eligible tickers for date, market cap desc then ticker asc
func (s *Store) QueryCandidates(_ context.Context, date time.Time) ([]contracts.Candidate, error) {
	date = contracts.NormalizeDate(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.closes(func(p contracts.PricePoint) bool { return p.Date.Equal(date) })

	var out []contracts.Candidate
	for _, p := range bars {
		a, ok := s.tickers[p.Ticker]
		if !ok || a.MarketCap == nil {
			continue
		}
		out = append(out, contracts.Candidate{Ticker: p.Ticker, MarketCap: *a.MarketCap, ClosePrice: p.Close})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketCap != out[j].MarketCap {
			return out[i].MarketCap > out[j].MarketCap
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

// AppendCompositionVersions appends one version set
func (s *Store) AppendCompositionVersions(_ context.Context, rows []contracts.CompositionEntry) (contracts.WriteBatch, error) {
	if len(rows) == 0 {
		return contracts.WriteBatch{}, nil
	}
	if err := store.ValidateComposition(rows); err != nil {
		return contracts.WriteBatch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wb := s.nextBatch(len(rows))
	for _, r := range rows {
		r.Date = contracts.NormalizeDate(r.Date)
		r.WriteTime, r.RunID = wb.WriteTime, wb.RunID
		s.composition = append(s.composition, r)
	}
	return wb, nil
}

// latestComposition returns the rows of the latest write per date accepted by
// match; caller holds the lock
func (s *Store) latestComposition(match func(d time.Time) bool) []contracts.CompositionEntry {
	latest := make(map[time.Time]time.Time)
	for _, e := range s.composition {
		if !match(e.Date) {
			continue
		}
		if wt, ok := latest[e.Date]; !ok || e.WriteTime.After(wt) {
			latest[e.Date] = e.WriteTime
		}
	}

	var out []contracts.CompositionEntry
	for _, e := range s.composition {
		if wt, ok := latest[e.Date]; ok && e.WriteTime.Equal(wt) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// QueryLatestComposition returns the latest version set of every date in r
func (s *Store) QueryLatestComposition(_ context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestComposition(r.Contains), nil
}

// QueryLatestCompositionBefore returns the latest version set of the nearest
// populated date strictly before date
func (s *Store) QueryLatestCompositionBefore(_ context.Context, date time.Time) ([]contracts.CompositionEntry, error) {
	date = contracts.NormalizeDate(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var prev time.Time
	for _, e := range s.composition {
		if e.Date.Before(date) && e.Date.After(prev) {
			prev = e.Date
		}
	}
	if prev.IsZero() {
		return nil, nil
	}
	return s.latestComposition(func(d time.Time) bool { return d.Equal(prev) }), nil
}

// AppendPerformanceVersions appends one performance version set
func (s *Store) AppendPerformanceVersions(_ context.Context, rows []contracts.PerformancePoint) (contracts.WriteBatch, error) {
	if len(rows) == 0 {
		return contracts.WriteBatch{}, nil
	}
	if err := store.ValidatePerformance(rows); err != nil {
		return contracts.WriteBatch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wb := s.nextBatch(len(rows))
	for _, r := range rows {
		r.Date = contracts.NormalizeDate(r.Date)
		r.WriteTime, r.RunID = wb.WriteTime, wb.RunID
		s.performance = append(s.performance, r)
	}
	return wb, nil
}

// QueryLatestPerformance returns, per date in r, the row with the greatest write-time
func (s *Store) QueryLatestPerformance(_ context.Context, r contracts.DateRange) ([]contracts.PerformancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[time.Time]contracts.PerformancePoint)
	for _, p := range s.performance {
		if !r.Contains(p.Date) {
			continue
		}
		if cur, ok := latest[p.Date]; !ok || p.WriteTime.After(cur.WriteTime) {
			latest[p.Date] = p
		}
	}

	out := make([]contracts.PerformancePoint, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// AppendChangeRecords appends rows to the change log
func (s *Store) AppendChangeRecords(_ context.Context, rows []contracts.ChangeRecord) (contracts.WriteBatch, error) {
	if len(rows) == 0 {
		return contracts.WriteBatch{}, nil
	}
	if err := store.ValidateChanges(rows); err != nil {
		return contracts.WriteBatch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wb := s.nextBatch(len(rows))
	for _, r := range rows {
		r.Date = contracts.NormalizeDate(r.Date)
		r.WriteTime, r.RunID = wb.WriteTime, wb.RunID
		s.changes = append(s.changes, r)
	}
	return wb, nil
}

// QueryChangeRecords returns every logged change in r, oldest first
func (s *Store) QueryChangeRecords(_ context.Context, r contracts.DateRange) ([]contracts.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contracts.ChangeRecord
	for _, c := range s.changes {
		if r.Contains(c.Date) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].WriteTime.Before(out[j].WriteTime)
	})
	return out, nil
}

// Counts reports the number of stored rows per table, for tests and status output
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"stock_prices":              len(s.prices),
		"ticker_details":            len(s.tickers),
		"index_composition":         len(s.composition),
		"index_performance":         len(s.performance),
		"index_composition_changes": len(s.changes),
	}
}
