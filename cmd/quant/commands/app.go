package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/events"
	"github.com/wonny/eqindex/internal/external/polygon"
	"github.com/wonny/eqindex/internal/external/sp500"
	"github.com/wonny/eqindex/internal/indexconfig"
	"github.com/wonny/eqindex/internal/pipeline"
	"github.com/wonny/eqindex/internal/s0_data/collector"
	"github.com/wonny/eqindex/internal/s0_data/quality"
	"github.com/wonny/eqindex/internal/s1_composition"
	"github.com/wonny/eqindex/internal/s2_performance"
	"github.com/wonny/eqindex/internal/s3_changes"
	"github.com/wonny/eqindex/internal/store"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/database"
	"github.com/wonny/eqindex/pkg/httputil"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/redis"
)

// app holds the wired components shared by every command
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg        *config.Config
	definition *indexconfig.Config
	location   *time.Location
	logger     *logger.Logger
	db         *database.DB
	redis      *redis.Client
	store      *store.Store

	polygon   *polygon.Client
	sp500     *sp500.Client
	collector *collector.Collector
	gate      *quality.QualityGate
	builder   *s1_composition.Builder
	tracker   *s2_performance.Tracker
	detector  *s3_changes.Detector
	analyzer  *s2_performance.Analyzer
	publisher *events.Publisher
	runner    *pipeline.Runner
}

// newApp loads configuration and wires the index components.
// The caller must call close.
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if definitionPath != "" {
		cfg.Index.DefinitionPath = definitionPath
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Index definition (file overrides env defaults)
	def := indexconfig.Default(cfg.Index)
	if cfg.Index.DefinitionPath != "" {
		def, _, err = indexconfig.Load(cfg.Index.DefinitionPath)
		if err != nil {
			return nil, fmt.Errorf("load index definition %s: %w", cfg.Index.DefinitionPath, err)
		}
		def.Apply(&cfg.Index)
	}
	loc, err := def.Meta.Location()
	if err != nil {
		return nil, fmt.Errorf("index timezone: %w", err)
	}
	for _, w := range indexconfig.Warn(def) {
		log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}

	// 4. Connect to database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// 5. Connect to Redis (optional)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache and events")
		rc = redis.Wrap(nil)
	}

	// 6. External clients
	httpClient := httputil.New(log)
	if rc.Enabled() {
		// 여러 프로세스가 같은 API 키를 쓰므로 Redis에서 한도를 공유
		httpClient = httpClient.WithRateLimiter(
			redis.NewRateLimiter(rc, "eqindex"),
			redis.PolygonRateLimit(cfg.Polygon.RequestsPerMinute),
		)
	}
	poly := polygon.NewClient(httpClient, log, cfg.Polygon)
	spx := sp500.NewClient(httputil.New(log), log, sp500.DefaultURL)

	// 7. Index components
	st := store.New(db.Pool)
	gate := quality.NewQualityGate(st, def.Quality)
	builder := s1_composition.NewBuilder(st, poly, log)
	now := func() time.Time { return time.Now().In(loc) }
	tracker := s2_performance.NewTracker(st, log,
		s2_performance.WithClock(now), s2_performance.WithLookback(cfg.Index.LookbackDays))
	detector := s3_changes.NewDetector(st, log, cfg.Index.ChangeLogMode,
		s3_changes.WithClock(now), s3_changes.WithLookback(cfg.Index.LookbackDays))
	publisher := events.NewPublisher(rc, log)

	return &app{
		cfg:        cfg,
		definition: def,
		location:   loc,
		logger:     log,
		db:         db,
		redis:      rc,
		store:      st,
		polygon:    poly,
		sp500:      spx,
		collector:  collector.NewCollector(poly, st, redis.NewCache(rc, "eqindex"), log),
		gate:       gate,
		builder:    builder,
		tracker:    tracker,
		detector:   detector,
		analyzer:   s2_performance.NewAnalyzer(st, log),
		publisher:  publisher,
		runner:     pipeline.NewRunner(gate, builder, tracker, detector, publisher, log),
	}, nil
}

// close releases connections
func (a *app) close() {
	if err := a.redis.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}

// universe returns the ticker universe named by the index definition
func (a *app) universe() collector.Universe {
	u := a.definition.Universe
	switch u.Source {
	case indexconfig.UniverseStatic:
		return collector.StaticUniverse(u.Tickers)
	case indexconfig.UniversePolygon:
		return collector.ListedUniverse{Lister: a.polygon, Limit: u.Limit}
	default:
		return a.sp500
	}
}

// parseRangeFlags turns --from/--to into a range; empty flags default to the trailing lookback
func (a *app) parseRangeFlags(from, to string) (contracts.DateRange, error) {
	end, err := a.date(to)
	if err != nil {
		return contracts.DateRange{}, fmt.Errorf("--to: %w", err)
	}
	if from == "" {
		return contracts.TrailingRange(end, a.cfg.Index.LookbackDays), nil
	}
	return contracts.ParseDateRange(from, contracts.FormatDate(end))
}

// date parses YYYY-MM-DD; empty means today in the index time zone
func (a *app) date(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return contracts.NormalizeDate(time.Now().In(a.location)), nil
	}
	return contracts.ParseDate(s)
}
