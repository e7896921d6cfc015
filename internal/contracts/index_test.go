package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string { return &s }

func TestCompositionSnapshot_Weights(t *testing.T) {
	tests := []struct {
		name     string
		weights  []float64
		balanced bool
	}{
		{"empty", nil, true},
		{"single", []float64{1.0}, true},
		{"thirds", []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, true},
		{"over", []float64{0.5, 0.6}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := EmptyComposition(day("2024-01-02"))
			for i, w := range tt.weights {
				s.Entries = append(s.Entries, CompositionEntry{Ticker: string(rune('A' + i)), Weight: w})
			}
			assert.Equal(t, tt.balanced, s.IsBalanced())
			assert.Equal(t, len(tt.weights), s.Len())
		})
	}
}

func TestCompositionSnapshot_Symbols(t *testing.T) {
	s := &CompositionSnapshot{Entries: []CompositionEntry{
		{Ticker: "CCC"}, {Ticker: "AAA"}, {Ticker: "BBB"},
	}}

	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, s.Tickers())
	assert.Equal(t, "AAA,BBB,CCC", s.Symbols())
	// entries keep their order
	assert.Equal(t, "CCC", s.Entries[0].Ticker)
}

func TestJoinSplitSymbols(t *testing.T) {
	assert.Equal(t, "AAA,BBB", JoinSymbols([]string{"BBB", "AAA"}))
	assert.Equal(t, "", JoinSymbols(nil))
	assert.Equal(t, []string{"AAA", "BBB"}, SplitSymbols("AAA,BBB"))
	assert.Nil(t, SplitSymbols(""))
}

func TestChangeRecord_Diff(t *testing.T) {
	prev := day("2024-01-02")
	rec := ChangeRecord{
		Date:        day("2024-01-03"),
		Symbols:     "AAA,CCC",
		PrevDate:    &prev,
		PrevSymbols: strPtr("AAA,BBB"),
	}

	assert.False(t, rec.IsInitial())
	assert.Equal(t, []string{"CCC"}, rec.Added())
	assert.Equal(t, []string{"BBB"}, rec.Removed())
	assert.Equal(t, "2024-01-03|AAA,CCC|2024-01-02|AAA,BBB", rec.Key())

	initial := ChangeRecord{Date: day("2024-01-02"), Symbols: "AAA,BBB"}
	assert.True(t, initial.IsInitial())
	assert.Equal(t, []string{"AAA", "BBB"}, initial.Added())
	assert.Nil(t, initial.Removed())
	assert.Equal(t, "2024-01-02|AAA,BBB||", initial.Key())
}

func TestEmptyResults(t *testing.T) {
	r := SingleDay(day("2024-01-02"))

	perf := EmptyPerformance(r)
	assert.True(t, perf.IsEmpty())
	assert.NotNil(t, perf.Points)

	changes := EmptyChanges(r)
	assert.True(t, changes.IsEmpty())
	assert.NotNil(t, changes.Records)

	comp := EmptyComposition(day("2024-01-02"))
	assert.True(t, comp.IsEmpty())
	assert.NotNil(t, comp.Entries)
}

func TestPerformanceSeries_Returns(t *testing.T) {
	s := &PerformanceSeries{Points: []PerformancePoint{
		{DailyReturn: 0}, {DailyReturn: 10}, {DailyReturn: -5},
	}}
	assert.Equal(t, []float64{0, 10, -5}, s.Returns())
	assert.Equal(t, 3, s.Len())
}
