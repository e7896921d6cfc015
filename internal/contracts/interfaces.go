package contracts

import (
	"context"
	"time"
)

// MarketDataSource supplies raw market data (external collaborator)
// ⭐ SSOT: 외부 시세 소스 인터페이스
type MarketDataSource interface {
	// FetchDailyPrices returns every bar of the given trading date
	FetchDailyPrices(ctx context.Context, date time.Time) ([]PricePoint, error)
	// FetchTickerAttributes returns reference data; (nil, nil) when unknown
	FetchTickerAttributes(ctx context.Context, ticker string) (*TickerAttributes, error)
}

// The three index stages never return errors: failures are logged and an
// explicitly empty result is returned instead.

// CompositionBuilder selects and weights constituents (S1)
// ⭐ SSOT: S1 구성 종목 선정 인터페이스
type CompositionBuilder interface {
	Build(ctx context.Context, date time.Time, topN int) *CompositionSnapshot
}

// PerformanceTracker computes the index level series (S2)
// ⭐ SSOT: S2 성과 추적 인터페이스
type PerformanceTracker interface {
	Track(ctx context.Context, r DateRange) *PerformanceSeries
}

// ChangeDetector finds constituent set changes (S3)
// ⭐ SSOT: S3 구성 변경 감지 인터페이스
type ChangeDetector interface {
	Detect(ctx context.Context, r DateRange) *ChangeSeries
}

// EventPublisher notifies readers about appended version sets
type EventPublisher interface {
	Publish(ctx context.Context, event IndexEvent) error
}
