// Package s3_changes detects dates on which the constituent set changes.
package s3_changes

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/metrics"
)

const stage = "changes"

// DefaultLookbackDays is the trailing window used when no range is given
const DefaultLookbackDays = 30

// Store is the persistence the detector reads and appends to
type Store interface {
	QueryLatestComposition(ctx context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error)
	QueryLatestCompositionBefore(ctx context.Context, date time.Time) ([]contracts.CompositionEntry, error)
	AppendChangeRecords(ctx context.Context, rows []contracts.ChangeRecord) (contracts.WriteBatch, error)
	QueryChangeRecords(ctx context.Context, r contracts.DateRange) ([]contracts.ChangeRecord, error)
}

// DaySymbols is the serialized constituent set of one date
type DaySymbols struct {
	Date    time.Time
	Symbols string
}

// Detector compares each date's constituent set with its nearest earlier
// populated date and appends the differences to the change log
type Detector struct {
	store    Store
	logger   *logger.Logger
	mode     string
	now      func() time.Time
	lookback int
}

var _ contracts.ChangeDetector = (*Detector)(nil)

// Option configures a Detector
type Option func(*Detector)

// WithClock sets the source of "today" for the default range
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithLookback sets the default range length in days
func WithLookback(days int) Option {
	return func(d *Detector) {
		if days > 0 {
			d.lookback = days
		}
	}
}

// NewDetector creates a new Detector.
// mode is config.ChangeLogAppend (every run appends all detected records) or
// config.ChangeLogDedup (records already in the log are not appended again).
func NewDetector(store Store, log *logger.Logger, mode string, opts ...Option) *Detector {
	if !config.ValidChangeLogMode(mode) {
		mode = config.ChangeLogAppend
	}
	d := &Detector{
		store:    store,
		logger:   log.WithFields(map[string]interface{}{"stage": stage, "mode": mode}),
		mode:     mode,
		now:      time.Now,
		lookback: DefaultLookbackDays,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DefaultRange returns the trailing lookback window ending today
func (d *Detector) DefaultRange() contracts.DateRange {
	return contracts.TrailingRange(d.now(), d.lookback)
}

// Mode returns the change-log mode
func (d *Detector) Mode() string {
	return d.mode
}

// Detect reports every date in r whose constituent set differs from its
// predecessor, the first populated date without a predecessor included.
// The predecessor of the first date in r is looked up before r.
// A zero r means the trailing lookback window. The result is never nil.
// ⭐ SSOT: S3 구성 변경 감지
func (d *Detector) Detect(ctx context.Context, r contracts.DateRange) *contracts.ChangeSeries {
	start := time.Now()
	if r.IsZero() {
		r = d.DefaultRange()
	}
	log := d.logger.WithRange(r.Start, r.End)

	composition, err := d.store.QueryLatestComposition(ctx, r)
	if err != nil {
		log.WithError(err).Error("Failed to query latest composition")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyChanges(r)
	}
	if len(composition) == 0 {
		log.Warn("No composition in range")
		metrics.ObserveStage(stage, start, metrics.OutcomeEmpty)
		return contracts.EmptyChanges(r)
	}

	before, err := d.store.QueryLatestCompositionBefore(ctx, r.Start)
	if err != nil {
		log.WithError(err).Error("Failed to query preceding composition")
		metrics.ObserveStage(stage, start, metrics.OutcomeError)
		return contracts.EmptyChanges(r)
	}

	var seed *DaySymbols
	if days := GroupByDate(before); len(days) > 0 {
		seed = &days[len(days)-1]
	}

	records := DetectChanges(seed, GroupByDate(composition))
	if len(records) == 0 {
		log.Info("No constituent changes")
		metrics.ObserveStage(stage, start, metrics.OutcomeEmpty)
		return contracts.EmptyChanges(r)
	}

	pending := records
	if d.mode == config.ChangeLogDedup {
		existing, err := d.store.QueryChangeRecords(ctx, r)
		if err != nil {
			log.WithError(err).Error("Failed to query change log")
			metrics.ObserveStage(stage, start, metrics.OutcomeError)
			return contracts.EmptyChanges(r)
		}
		pending = unseen(records, existing)
	}

	series := &contracts.ChangeSeries{Range: r, Records: records}
	if len(pending) > 0 {
		wb, err := d.store.AppendChangeRecords(ctx, pending)
		if err != nil {
			log.WithError(err).Error("Failed to append change records")
			metrics.ObserveStage(stage, start, metrics.OutcomeError)
			return contracts.EmptyChanges(r)
		}
		stamp(records, pending, wb)
		series.RunID = wb.RunID
		series.WriteTime = wb.WriteTime
		series.Appended = len(pending)
		metrics.RowsAppended.WithLabelValues("index_composition_changes").Add(float64(len(pending)))
	}
	metrics.ObserveStage(stage, start, metrics.OutcomeOK)

	log.WithBatch(series.RunID, series.WriteTime, series.Appended).
		WithField("detected", len(records)).
		Info("Changes detected")

	return series
}

// GroupByDate folds composition rows into one sorted symbol string per date, oldest first
func GroupByDate(rows []contracts.CompositionEntry) []DaySymbols {
	byDate := make(map[time.Time][]string)
	for _, e := range rows {
		date := contracts.NormalizeDate(e.Date)
		byDate[date] = append(byDate[date], e.Ticker)
	}

	days := make([]DaySymbols, 0, len(byDate))
	for date, tickers := range byDate {
		days = append(days, DaySymbols{Date: date, Symbols: contracts.JoinSymbols(tickers)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// DetectChanges walks days in order. Each day is compared with the previous
// populated day (seed for the first one); a record is emitted when the symbol
// sets differ or when there is no previous day at all.
func DetectChanges(seed *DaySymbols, days []DaySymbols) []contracts.ChangeRecord {
	records := make([]contracts.ChangeRecord, 0)
	prev := seed

	for i := range days {
		cur := days[i]
		switch {
		case prev == nil:
			records = append(records, contracts.ChangeRecord{Date: cur.Date, Symbols: cur.Symbols})
		case prev.Symbols != cur.Symbols:
			prevDate, prevSymbols := prev.Date, prev.Symbols
			records = append(records, contracts.ChangeRecord{
				Date:        cur.Date,
				Symbols:     cur.Symbols,
				PrevDate:    &prevDate,
				PrevSymbols: &prevSymbols,
			})
		}
		prev = &days[i]
	}
	return records
}

// unseen drops records whose key is already in the log
func unseen(records, existing []contracts.ChangeRecord) []contracts.ChangeRecord {
	logged := make(map[string]bool, len(existing))
	for _, e := range existing {
		logged[e.Key()] = true
	}

	out := make([]contracts.ChangeRecord, 0, len(records))
	for _, r := range records {
		if !logged[r.Key()] {
			out = append(out, r)
		}
	}
	return out
}

// stamp copies the batch write-time onto the records that were appended
func stamp(records, appended []contracts.ChangeRecord, wb contracts.WriteBatch) {
	written := make(map[string]bool, len(appended))
	for _, a := range appended {
		written[a.Key()] = true
	}
	for i := range records {
		if written[records[i].Key()] {
			records[i].WriteTime = wb.WriteTime
			records[i].RunID = wb.RunID
		}
	}
}
