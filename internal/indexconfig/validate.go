package indexconfig

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wonny/eqindex/pkg/config"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// scheduleParser matches the scheduler's cron.WithSeconds() layout
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.IndexID == "" {
		return ValidationError{"meta.index_id", "required"}
	}
	if _, err := cfg.Meta.Location(); err != nil {
		return ValidationError{"meta.timezone", err.Error()}
	}

	// === Index ===
	if cfg.Index.TopN <= 0 {
		return ValidationError{"index.top_n", "must be > 0"}
	}
	if cfg.Index.LookbackDays <= 0 {
		return ValidationError{"index.lookback_days", "must be > 0"}
	}
	if cfg.Index.ChangeLogMode == "" {
		cfg.Index.ChangeLogMode = config.ChangeLogAppend
	}
	if !config.ValidChangeLogMode(cfg.Index.ChangeLogMode) {
		return ValidationError{"index.change_log_mode", fmt.Sprintf("must be %s or %s", config.ChangeLogAppend, config.ChangeLogDedup)}
	}

	// === Universe ===
	switch cfg.Universe.Source {
	case UniverseSP500, UniversePolygon:
	case UniverseStatic:
		if len(cfg.Universe.Tickers) == 0 {
			return ValidationError{"universe.tickers", "required for static universe"}
		}
		for i, t := range cfg.Universe.Tickers {
			if strings.TrimSpace(t) == "" {
				return ValidationError{fmt.Sprintf("universe.tickers[%d]", i), "empty ticker"}
			}
		}
	default:
		return ValidationError{"universe.source", fmt.Sprintf("must be one of %s, %s, %s", UniverseSP500, UniversePolygon, UniverseStatic)}
	}
	if cfg.Universe.Limit < 0 {
		return ValidationError{"universe.limit", "must be >= 0"}
	}

	// === Schedules ===
	for field, expr := range map[string]string{
		"schedules.daily_pipeline": cfg.Schedules.DailyPipeline,
		"schedules.ticker_refresh": cfg.Schedules.TickerRefresh,
		"schedules.health_check":   cfg.Schedules.HealthCheck,
	} {
		if expr == "" {
			continue
		}
		if _, err := scheduleParser.Parse(expr); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	// === Quality ===
	q := cfg.Quality
	if err := validatePctRange(q.MinPriceCoverage, "quality.min_price_coverage"); err != nil {
		return err
	}
	if err := validatePctRange(q.MinCandidateCoverage, "quality.min_candidate_coverage"); err != nil {
		return err
	}
	if q.MinCandidates < 0 {
		return ValidationError{"quality.min_candidates", "must be >= 0"}
	}

	return nil
}

// Warn reports recommended-but-not-required violations
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Quality.MinCandidates > 0 && cfg.Quality.MinCandidates < cfg.Index.TopN {
		warnings = append(warnings, Warning{
			Code:    "QUALITY_BELOW_TOP_N",
			Message: fmt.Sprintf("min_candidates=%d is below top_n=%d; thin days build a smaller index", cfg.Quality.MinCandidates, cfg.Index.TopN),
		})
	}

	if cfg.Index.ChangeLogMode == config.ChangeLogAppend {
		warnings = append(warnings, Warning{
			Code:    "CHANGE_LOG_APPEND",
			Message: "re-running detect over the same dates appends duplicate change records",
		})
	}

	if cfg.Universe.Source == UniverseStatic && len(cfg.Universe.Tickers) < cfg.Index.TopN {
		warnings = append(warnings, Warning{
			Code:    "STATIC_UNIVERSE_SMALL",
			Message: fmt.Sprintf("static universe has %d tickers, fewer than top_n=%d", len(cfg.Universe.Tickers), cfg.Index.TopN),
		})
	}

	if cfg.Schedules.DailyPipeline == "" {
		warnings = append(warnings, Warning{
			Code:    "NO_DAILY_SCHEDULE",
			Message: "daily_pipeline is empty; the index is only rebuilt on demand",
		})
	}

	return warnings
}

func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, fmt.Sprintf("must be in [0, 1], got %v", pct)}
	}
	return nil
}
