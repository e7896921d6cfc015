package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Versioned Store 인터페이스 정의는 여기서만

// PriceStore manages daily price bars (last-write-wins by natural key)
type PriceStore interface {
	SavePrices(ctx context.Context, prices []PricePoint) (int, error)
	HasPrices(ctx context.Context, date time.Time) (bool, error)
	QueryClosePrices(ctx context.Context, r DateRange, tickers []string) ([]ClosePrice, error)
}

// TickerStore manages ticker reference data (last-write-wins by ticker)
type TickerStore interface {
	SaveTickerAttributes(ctx context.Context, attrs []TickerAttributes) (int, error)
	GetTickerAttributes(ctx context.Context, ticker string) (*TickerAttributes, error)
	ListTickers(ctx context.Context) ([]string, error)
}

// CompositionStore manages append-only composition snapshot versions
type CompositionStore interface {
	// QueryCandidates lists eligible tickers for date, market cap desc then ticker asc
	QueryCandidates(ctx context.Context, date time.Time) ([]Candidate, error)
	AppendCompositionVersions(ctx context.Context, rows []CompositionEntry) (WriteBatch, error)
	// QueryLatestComposition returns, per date in r, the rows of the latest version set
	QueryLatestComposition(ctx context.Context, r DateRange) ([]CompositionEntry, error)
	// QueryLatestCompositionBefore returns the latest version set of the nearest
	// populated date strictly before date; empty when there is none
	QueryLatestCompositionBefore(ctx context.Context, date time.Time) ([]CompositionEntry, error)
}

// PerformanceStore manages append-only performance snapshot versions
type PerformanceStore interface {
	AppendPerformanceVersions(ctx context.Context, rows []PerformancePoint) (WriteBatch, error)
	QueryLatestPerformance(ctx context.Context, r DateRange) ([]PerformancePoint, error)
}

// ChangeStore manages the append-only change log
type ChangeStore interface {
	AppendChangeRecords(ctx context.Context, rows []ChangeRecord) (WriteBatch, error)
	QueryChangeRecords(ctx context.Context, r DateRange) ([]ChangeRecord, error)
}

// VersionedStore is the full persistence surface of the index engine
type VersionedStore interface {
	PriceStore
	TickerStore
	CompositionStore
	PerformanceStore
	ChangeStore
}

// QueryRunner executes ad-hoc parameterized read queries
type QueryRunner interface {
	Query(ctx context.Context, sql string, args ...interface{}) (*Table, error)
}
