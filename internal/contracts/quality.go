package contracts

import "time"

// DataQualitySnapshot describes input coverage for one build date
// ⭐ SSOT: S0 → S1 데이터 품질 정보 전달
type DataQualitySnapshot struct {
	Date         time.Time          `json:"date"`
	TotalTickers int                `json:"total_tickers"`
	PricedBars   int                `json:"priced_bars"`
	Candidates   int                `json:"candidates"`
	Coverage     map[string]float64 `json:"coverage"`      // 데이터별 커버리지
	QualityScore float64            `json:"quality_score"` // 0.0 ~ 1.0
	Passed       bool               `json:"passed"`
}

// CoverageRate returns the average coverage rate across all data types
func (d *DataQualitySnapshot) CoverageRate() float64 {
	if len(d.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range d.Coverage {
		total += rate
	}
	return total / float64(len(d.Coverage))
}
