package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/pipeline"
	"github.com/wonny/eqindex/internal/s1_composition"
	"github.com/wonny/eqindex/internal/s2_performance"
	"github.com/wonny/eqindex/internal/s3_changes"
	"github.com/wonny/eqindex/internal/store/memory"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/logger"
)

var (
	day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []contracts.IndexEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e contracts.IndexEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type brokenReader struct{}

func (brokenReader) QueryLatestComposition(context.Context, contracts.DateRange) ([]contracts.CompositionEntry, error) {
	return nil, errors.New("db down")
}

func (brokenReader) QueryLatestPerformance(context.Context, contracts.DateRange) ([]contracts.PerformancePoint, error) {
	return nil, errors.New("db down")
}

func (brokenReader) QueryChangeRecords(context.Context, contracts.DateRange) ([]contracts.ChangeRecord, error) {
	return nil, errors.New("db down")
}

func capPtr(v float64) *float64 { return &v }

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New(nil)

	_, err := st.SaveTickerAttributes(ctx, []contracts.TickerAttributes{
		{Ticker: "AAA", MarketCap: capPtr(500)},
		{Ticker: "BBB", MarketCap: capPtr(400)},
		{Ticker: "CCC", MarketCap: capPtr(300)},
	})
	require.NoError(t, err)

	var prices []contracts.PricePoint
	for _, d := range []time.Time{day1, day2} {
		for ticker, c := range map[string]float64{"AAA": 10, "BBB": 20, "CCC": 30} {
			prices = append(prices, contracts.PricePoint{Ticker: ticker, Date: d, Timestamp: d.UnixMilli(), Close: c})
		}
	}
	_, err = st.SavePrices(ctx, prices)
	require.NoError(t, err)
	return st
}

func newHandler(t *testing.T, reader IndexReader, st *memory.Store, pub contracts.EventPublisher) *IndexHandler {
	t.Helper()
	log := logger.Nop()

	builder := s1_composition.NewBuilder(st, nil, log)
	tracker := s2_performance.NewTracker(st, log)
	detector := s3_changes.NewDetector(st, log, config.ChangeLogDedup)

	return NewIndexHandler(IndexDeps{
		Reader:    reader,
		Builder:   builder,
		Tracker:   tracker,
		Detector:  detector,
		Runner:    pipeline.NewRunner(nil, builder, tracker, detector, pub, log),
		Analyzer:  s2_performance.NewAnalyzer(st, log),
		Publisher: pub,
		Index:     config.IndexConfig{TopN: 2, LookbackDays: 5, ChangeLogMode: config.ChangeLogDedup},
		Now:       func() time.Time { return day2.Add(20 * time.Hour) },
	}, log)
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestIndexHandler_BuildThenRead(t *testing.T) {
	st := seedStore(t)
	pub := &recordingPublisher{}
	h := newHandler(t, st, st, pub)

	rec := do(h.Build, http.MethodPost, "/api/index/build", `{"date":"2024-01-02","top_n":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap contracts.CompositionSnapshot
	decode(t, rec, &snap)
	assert.Len(t, snap.Entries, 3)
	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, 1, pub.Len())

	rec = do(h.GetComposition, http.MethodGet, "/api/index/composition?from=2024-01-02&to=2024-01-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int                          `json:"count"`
		Rows  []contracts.CompositionEntry `json:"rows"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 3, resp.Count)
	assert.InDelta(t, 1.0/3, resp.Rows[0].Weight, 1e-12)
}

func TestIndexHandler_BuildDefaults(t *testing.T) {
	st := seedStore(t)
	h := newHandler(t, st, st, nil)

	// 빈 본문: 오늘 날짜와 기본 top_n 사용
	rec := do(h.Build, http.MethodPost, "/api/index/build", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap contracts.CompositionSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, []string{"AAA", "BBB"}, snap.Tickers())
	assert.True(t, snap.Date.Equal(day2))
}

func TestIndexHandler_BadRequests(t *testing.T) {
	st := seedStore(t)
	h := newHandler(t, st, st, nil)

	tests := []struct {
		name   string
		fn     http.HandlerFunc
		method string
		target string
		body   string
	}{
		{"build bad date", h.Build, http.MethodPost, "/api/index/build", `{"date":"01/02/2024"}`},
		{"build bad body", h.Build, http.MethodPost, "/api/index/build", `{"date":`},
		{"track inverted range", h.Track, http.MethodPost, "/api/index/track", `{"from":"2024-01-05","to":"2024-01-01"}`},
		{"detect bad date", h.Detect, http.MethodPost, "/api/index/detect", `{"from":"yesterday"}`},
		{"run bad date", h.Run, http.MethodPost, "/api/index/run", `{"date":"2024-13-01"}`},
		{"composition bad from", h.GetComposition, http.MethodGet, "/api/index/composition?from=x", ""},
		{"performance bad to", h.GetPerformance, http.MethodGet, "/api/index/performance?to=x", ""},
		{"changes inverted", h.GetChanges, http.MethodGet, "/api/index/changes?from=2024-02-01&to=2024-01-01", ""},
		{"summary bad from", h.GetPerformanceSummary, http.MethodGet, "/api/index/performance/summary?from=x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(tt.fn, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestIndexHandler_ReadErrors(t *testing.T) {
	st := seedStore(t)
	h := newHandler(t, brokenReader{}, st, nil)

	for _, fn := range []http.HandlerFunc{h.GetComposition, h.GetPerformance, h.GetChanges} {
		rec := do(fn, http.MethodGet, "/api/index/x", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestIndexHandler_EmptyReadsAreArrays(t *testing.T) {
	st := memory.New(nil)
	h := newHandler(t, st, st, nil)

	for _, fn := range []http.HandlerFunc{h.GetComposition, h.GetPerformance, h.GetChanges} {
		rec := do(fn, http.MethodGet, "/api/index/x", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"rows":[]`)
	}
}

func TestIndexHandler_RunTrackDetectSummary(t *testing.T) {
	st := seedStore(t)
	pub := &recordingPublisher{}
	h := newHandler(t, st, st, pub)

	rec := do(h.Run, http.MethodPost, "/api/index/run", `{"date":"2024-01-02"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Success         bool     `json:"success"`
		CompletedStages []string `json:"completed_stages"`
	}
	decode(t, rec, &result)
	assert.True(t, result.Success)
	assert.Len(t, result.CompletedStages, 3)
	assert.Equal(t, 3, pub.Len())

	rec = do(h.Build, http.MethodPost, "/api/index/build", `{"date":"2024-01-03"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h.Track, http.MethodPost, "/api/index/track", `{"from":"2024-01-02","to":"2024-01-03"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var series contracts.PerformanceSeries
	decode(t, rec, &series)
	require.Len(t, series.Points, 2)
	assert.InDelta(t, 15.0, series.Points[1].IndexPrice, 1e-9)
	assert.InDelta(t, 0.0, series.Points[1].DailyReturn, 1e-9)

	// 같은 구성이라 새 변경 없음 (dedup 모드)
	rec = do(h.Detect, http.MethodPost, "/api/index/detect", `{"from":"2024-01-02","to":"2024-01-03"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var changes contracts.ChangeSeries
	decode(t, rec, &changes)
	assert.Len(t, changes.Records, 1)
	assert.Equal(t, 0, changes.Appended)

	rec = do(h.GetPerformanceSummary, http.MethodGet, "/api/index/performance/summary?from=2024-01-02&to=2024-01-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary s2_performance.Summary
	decode(t, rec, &summary)
	assert.Equal(t, 2, summary.Days)
	assert.Equal(t, 2, summary.Constituents)

	rec = do(h.GetChanges, http.MethodGet, "/api/index/changes?from=2024-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
}
