package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/pipeline"
	"github.com/wonny/eqindex/internal/s2_performance"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/logger"
)

// IndexReader is the read surface behind the GET endpoints
type IndexReader interface {
	QueryLatestComposition(ctx context.Context, r contracts.DateRange) ([]contracts.CompositionEntry, error)
	QueryLatestPerformance(ctx context.Context, r contracts.DateRange) ([]contracts.PerformancePoint, error)
	QueryChangeRecords(ctx context.Context, r contracts.DateRange) ([]contracts.ChangeRecord, error)
}

// Summarizer computes performance statistics; *s2_performance.Analyzer satisfies it
type Summarizer interface {
	Analyze(ctx context.Context, r contracts.DateRange) (*s2_performance.Summary, error)
}

// Runner runs the full pipeline; *pipeline.Runner satisfies it
type Runner interface {
	Run(ctx context.Context, cfg pipeline.RunConfig) (*pipeline.RunResult, error)
}

// IndexHandler serves the dashboard data and triggers index stages
// ⭐ SSOT: 지수 API 핸들러는 이 구조체에서만
type IndexHandler struct {
	reader    IndexReader
	builder   contracts.CompositionBuilder
	tracker   contracts.PerformanceTracker
	detector  contracts.ChangeDetector
	runner    Runner
	analyzer  Summarizer
	publisher contracts.EventPublisher // optional
	index     config.IndexConfig
	now       func() time.Time
	logger    *logger.Logger
}

// IndexDeps groups the collaborators of IndexHandler
type IndexDeps struct {
	Reader    IndexReader
	Builder   contracts.CompositionBuilder
	Tracker   contracts.PerformanceTracker
	Detector  contracts.ChangeDetector
	Runner    Runner
	Analyzer  Summarizer
	Publisher contracts.EventPublisher
	Index     config.IndexConfig
	Now       func() time.Time
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(deps IndexDeps, log *logger.Logger) *IndexHandler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &IndexHandler{
		reader:    deps.Reader,
		builder:   deps.Builder,
		tracker:   deps.Tracker,
		detector:  deps.Detector,
		runner:    deps.Runner,
		analyzer:  deps.Analyzer,
		publisher: deps.Publisher,
		index:     deps.Index,
		now:       now,
		logger:    log,
	}
}

// RangeResponse wraps rows read for a date range
type RangeResponse struct {
	Range contracts.DateRange `json:"range"`
	Count int                 `json:"count"`
	Rows  interface{}         `json:"rows"`
}

// GetComposition returns the latest composition of every date in range
// GET /api/index/composition?from=&to=
func (h *IndexHandler) GetComposition(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.queryRange(w, r)
	if !ok {
		return
	}

	rows, err := h.reader.QueryLatestComposition(r.Context(), rng)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get composition")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve composition")
		return
	}
	if rows == nil {
		rows = []contracts.CompositionEntry{}
	}

	respondJSON(w, http.StatusOK, RangeResponse{Range: rng, Count: len(rows), Rows: rows})
}

// GetPerformance returns the latest performance series
// GET /api/index/performance?from=&to=
func (h *IndexHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.queryRange(w, r)
	if !ok {
		return
	}

	points, err := h.reader.QueryLatestPerformance(r.Context(), rng)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get performance")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve performance")
		return
	}
	if points == nil {
		points = []contracts.PerformancePoint{}
	}

	respondJSON(w, http.StatusOK, RangeResponse{Range: rng, Count: len(points), Rows: points})
}

// GetPerformanceSummary returns headline statistics
// GET /api/index/performance/summary?from=&to=
func (h *IndexHandler) GetPerformanceSummary(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.queryRange(w, r)
	if !ok {
		return
	}

	summary, err := h.analyzer.Analyze(r.Context(), rng)
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize performance")
		respondError(w, http.StatusInternalServerError, "Failed to summarize performance")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetChanges returns the logged constituent changes
// GET /api/index/changes?from=&to=
func (h *IndexHandler) GetChanges(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.queryRange(w, r)
	if !ok {
		return
	}

	records, err := h.reader.QueryChangeRecords(r.Context(), rng)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get changes")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve changes")
		return
	}
	if records == nil {
		records = []contracts.ChangeRecord{}
	}

	respondJSON(w, http.StatusOK, RangeResponse{Range: rng, Count: len(records), Rows: records})
}

// StageRequest is the body of the POST endpoints; every field is optional
type StageRequest struct {
	Date         string `json:"date"` // build, run (default today)
	From         string `json:"from"` // track, detect
	To           string `json:"to"`
	TopN         int    `json:"top_n"`
	LookbackDays int    `json:"lookback_days"`
	SkipQuality  bool   `json:"skip_quality"`
}

// Build builds the composition for a date
// POST /api/index/build
func (h *IndexHandler) Build(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStage(w, r)
	if !ok {
		return
	}
	date, err := h.date(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot := h.builder.Build(r.Context(), date, h.topN(req.TopN))
	h.publish(r.Context(), pipeline.CompositionEvent(snapshot))

	respondJSON(w, http.StatusOK, snapshot)
}

// Track recomputes the performance series over a range
// POST /api/index/track
func (h *IndexHandler) Track(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStage(w, r)
	if !ok {
		return
	}
	rng, err := rangeFrom(req.From, req.To, contracts.TrailingRange(h.now(), h.lookback(req.LookbackDays)))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	series := h.tracker.Track(r.Context(), rng)
	h.publish(r.Context(), pipeline.PerformanceEvent(series))

	respondJSON(w, http.StatusOK, series)
}

// Detect detects constituent changes over a range
// POST /api/index/detect
func (h *IndexHandler) Detect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStage(w, r)
	if !ok {
		return
	}
	rng, err := rangeFrom(req.From, req.To, contracts.TrailingRange(h.now(), h.lookback(req.LookbackDays)))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	changes := h.detector.Detect(r.Context(), rng)
	h.publish(r.Context(), pipeline.ChangesEvent(changes))

	respondJSON(w, http.StatusOK, changes)
}

// Run executes build, track and detect for a date
// POST /api/index/run
func (h *IndexHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStage(w, r)
	if !ok {
		return
	}
	date, err := h.date(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithDate(date).Info("Pipeline run triggered")

	result, err := h.runner.Run(r.Context(), pipeline.RunConfig{
		Date:         date,
		TopN:         h.topN(req.TopN),
		LookbackDays: h.lookback(req.LookbackDays),
		SkipQuality:  req.SkipQuality,
	})
	if err != nil {
		h.logger.WithError(err).Error("Pipeline run failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *IndexHandler) queryRange(w http.ResponseWriter, r *http.Request) (contracts.DateRange, bool) {
	rng, err := parseRange(r, h.now(), h.index.LookbackDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return contracts.DateRange{}, false
	}
	return rng, true
}

func (h *IndexHandler) date(s string) (time.Time, error) {
	if s == "" {
		return contracts.NormalizeDate(h.now()), nil
	}
	return contracts.ParseDate(s)
}

func (h *IndexHandler) topN(n int) int {
	if n > 0 {
		return n
	}
	return h.index.TopN
}

func (h *IndexHandler) lookback(days int) int {
	if days > 0 {
		return days
	}
	return h.index.LookbackDays
}

func (h *IndexHandler) publish(ctx context.Context, event *contracts.IndexEvent) {
	if h.publisher == nil || event == nil {
		return
	}
	if err := h.publisher.Publish(ctx, *event); err != nil {
		h.logger.WithError(err).WithField("type", event.Type).Warn("Failed to publish index event")
	}
}

// decodeStage reads an optional JSON body; an empty body means all defaults
func decodeStage(w http.ResponseWriter, r *http.Request) (StageRequest, bool) {
	var req StageRequest
	if r.Body == nil {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}
