// Package indexconfig loads the YAML definition of an equal-weighted index.
// ⭐ SSOT: 지수 정의는 YAML 하나로만 관리
package indexconfig

import (
	"time"
	_ "time/tzdata" // meta.timezone must resolve on minimal images

	"github.com/wonny/eqindex/internal/s0_data/quality"
)

// Universe sources
const (
	UniverseSP500   = "sp500"   // Wikipedia S&P 500 constituent table
	UniversePolygon = "polygon" // Polygon reference tickers, sorted by market
	UniverseStatic  = "static"  // tickers listed in the definition
)

// Config is one index definition
type Config struct {
	Meta      Meta           `yaml:"meta" json:"meta"`
	Index     Index          `yaml:"index" json:"index"`
	Universe  Universe       `yaml:"universe" json:"universe"`
	Schedules Schedules      `yaml:"schedules" json:"schedules"`
	Quality   quality.Config `yaml:"quality" json:"quality"`
}

// Meta identifies the definition
type Meta struct {
	IndexID     string `yaml:"index_id" json:"index_id"`
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Timezone    string `yaml:"timezone" json:"timezone"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Location resolves Timezone; an empty value means UTC
func (m Meta) Location() (*time.Location, error) {
	if m.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(m.Timezone)
}

// Index holds the construction parameters
type Index struct {
	TopN          int    `yaml:"top_n" json:"top_n"`
	LookbackDays  int    `yaml:"lookback_days" json:"lookback_days"`
	ChangeLogMode string `yaml:"change_log_mode" json:"change_log_mode"`
}

// Universe describes where the ticker list comes from
type Universe struct {
	Source  string   `yaml:"source" json:"source"`
	Tickers []string `yaml:"tickers,omitempty" json:"tickers,omitempty"`
	Limit   int      `yaml:"limit,omitempty" json:"limit,omitempty"` // polygon only, 0 = all pages
}

// Schedules holds cron expressions (with seconds) for the scheduler jobs.
// An empty expression disables the job.
type Schedules struct {
	DailyPipeline string `yaml:"daily_pipeline" json:"daily_pipeline"`
	TickerRefresh string `yaml:"ticker_refresh" json:"ticker_refresh"`
	HealthCheck   string `yaml:"health_check" json:"health_check"`
}
