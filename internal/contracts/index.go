package contracts

import (
	"math"
	"sort"
	"strings"
	"time"
)

// SymbolSeparator joins tickers in a serialized constituent set
const SymbolSeparator = ","

// WeightTolerance is the allowed drift of a snapshot's weight sum from 1.0
const WeightTolerance = 1e-9

// CompositionEntry is one constituent row of a composition snapshot version
// ⭐ SSOT: S1 → S2/S3 구성 종목 전달
type CompositionEntry struct {
	Date       time.Time `json:"date"`
	Ticker     string    `json:"ticker"`
	ClosePrice float64   `json:"close_price"`
	Weight     float64   `json:"weight"`
	MarketCap  float64   `json:"market_cap"`
	WriteTime  time.Time `json:"write_time,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
}

// CompositionSnapshot is the result of one builder run for a date
type CompositionSnapshot struct {
	Date      time.Time          `json:"date"`
	RunID     string             `json:"run_id,omitempty"`
	WriteTime time.Time          `json:"write_time,omitempty"`
	Entries   []CompositionEntry `json:"entries"`
}

// EmptyComposition returns an explicitly empty snapshot for date
func EmptyComposition(date time.Time) *CompositionSnapshot {
	return &CompositionSnapshot{Date: NormalizeDate(date), Entries: []CompositionEntry{}}
}

// IsEmpty reports whether no constituent was selected
func (s *CompositionSnapshot) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Len returns the number of constituents
func (s *CompositionSnapshot) Len() int {
	return len(s.Entries)
}

// WeightSum returns the sum of all constituent weights
func (s *CompositionSnapshot) WeightSum() float64 {
	sum := 0.0
	for _, e := range s.Entries {
		sum += e.Weight
	}
	return sum
}

// IsBalanced reports whether weights sum to 1.0 within WeightTolerance.
// An empty snapshot is balanced.
func (s *CompositionSnapshot) IsBalanced() bool {
	if s.IsEmpty() {
		return true
	}
	return math.Abs(s.WeightSum()-1.0) <= WeightTolerance
}

// Tickers returns the constituent tickers in sorted order
func (s *CompositionSnapshot) Tickers() []string {
	tickers := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		tickers = append(tickers, e.Ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Symbols returns the serialized constituent set
func (s *CompositionSnapshot) Symbols() string {
	return JoinSymbols(s.Tickers())
}

// JoinSymbols serializes a constituent set deterministically: sorted, comma separated
func JoinSymbols(tickers []string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return strings.Join(sorted, SymbolSeparator)
}

// SplitSymbols is the inverse of JoinSymbols
func SplitSymbols(symbols string) []string {
	if symbols == "" {
		return nil
	}
	return strings.Split(symbols, SymbolSeparator)
}

// PerformancePoint is the index level of one date
type PerformancePoint struct {
	Date        time.Time `json:"date"`
	IndexPrice  float64   `json:"index_price"`
	DailyReturn float64   `json:"daily_return"` // percent vs previous point of the same series
	WriteTime   time.Time `json:"write_time,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
}

// PerformanceSeries is a date-ordered index level series
type PerformanceSeries struct {
	Range     DateRange          `json:"range"`
	RunID     string             `json:"run_id,omitempty"`
	WriteTime time.Time          `json:"write_time,omitempty"`
	Points    []PerformancePoint `json:"points"`
}

// EmptyPerformance returns an explicitly empty series for r
func EmptyPerformance(r DateRange) *PerformanceSeries {
	return &PerformanceSeries{Range: r, Points: []PerformancePoint{}}
}

// IsEmpty reports whether the series has no points
func (s *PerformanceSeries) IsEmpty() bool {
	return len(s.Points) == 0
}

// Len returns the number of points
func (s *PerformanceSeries) Len() int {
	return len(s.Points)
}

// Returns returns the daily return column
func (s *PerformanceSeries) Returns() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.DailyReturn
	}
	return out
}

// ChangeRecord describes a date whose constituent set differs from the
// nearest earlier date with composition data
type ChangeRecord struct {
	Date        time.Time  `json:"date"`
	Symbols     string     `json:"symbols"`
	PrevDate    *time.Time `json:"prev_date"`
	PrevSymbols *string    `json:"prev_symbols"`
	WriteTime   time.Time  `json:"write_time,omitempty"`
	RunID       string     `json:"run_id,omitempty"`
}

// IsInitial reports whether the record has no predecessor
func (c ChangeRecord) IsInitial() bool {
	return c.PrevSymbols == nil
}

// Key identifies a change independent of when it was recorded
func (c ChangeRecord) Key() string {
	prevDate, prevSymbols := "", ""
	if c.PrevDate != nil {
		prevDate = FormatDate(*c.PrevDate)
	}
	if c.PrevSymbols != nil {
		prevSymbols = *c.PrevSymbols
	}
	return strings.Join([]string{FormatDate(c.Date), c.Symbols, prevDate, prevSymbols}, "|")
}

// Added returns tickers present now but not in the previous set
func (c ChangeRecord) Added() []string {
	var prev []string
	if c.PrevSymbols != nil {
		prev = SplitSymbols(*c.PrevSymbols)
	}
	return difference(SplitSymbols(c.Symbols), prev)
}

// Removed returns tickers present in the previous set but not now
func (c ChangeRecord) Removed() []string {
	if c.PrevSymbols == nil {
		return nil
	}
	return difference(SplitSymbols(*c.PrevSymbols), SplitSymbols(c.Symbols))
}

// difference returns a - b, sorted
func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		seen[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := seen[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// ChangeSeries holds the changes detected by one detector run
type ChangeSeries struct {
	Range     DateRange      `json:"range"`
	RunID     string         `json:"run_id,omitempty"`
	WriteTime time.Time      `json:"write_time,omitempty"`
	Records   []ChangeRecord `json:"records"`
	Appended  int            `json:"appended"` // rows written; lower than len(Records) in dedup mode
}

// EmptyChanges returns an explicitly empty change series for r
func EmptyChanges(r DateRange) *ChangeSeries {
	return &ChangeSeries{Range: r, Records: []ChangeRecord{}}
}

// IsEmpty reports whether no change was detected
func (s *ChangeSeries) IsEmpty() bool {
	return len(s.Records) == 0
}

// Len returns the number of detected changes
func (s *ChangeSeries) Len() int {
	return len(s.Records)
}

// WriteBatch describes one append to the versioned store.
// All rows of a batch share WriteTime and RunID.
type WriteBatch struct {
	RunID     string    `json:"run_id"`
	WriteTime time.Time `json:"write_time"`
	Rows      int       `json:"rows"`
}
