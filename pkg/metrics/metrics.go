// Package metrics exposes Prometheus collectors for the index engine.
//
// ⭐ SSOT: 모든 메트릭은 여기서만 정의한다
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eqindex"

// Stage outcomes
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

var (
	// StageRuns counts component runs by stage (composition, performance, changes) and outcome.
	StageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stage",
		Name:      "runs_total",
		Help:      "Total number of stage runs by outcome",
	}, []string{"stage", "outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stage",
		Name:      "duration_seconds",
		Help:      "Stage run duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// RowsAppended counts rows written to append-only tables.
	RowsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "rows_appended_total",
		Help:      "Total number of rows appended by table",
	}, []string{"table"})

	ExternalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "external",
		Name:      "requests_total",
		Help:      "Total number of external API requests",
	}, []string{"source", "endpoint", "status"})

	// Constituents is the size of the most recently built composition.
	Constituents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "constituents",
		Help:      "Number of constituents in the last built composition",
	})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Total number of scheduled job runs",
	}, []string{"job", "outcome"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Status maps an error to a request status label.
func Status(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// ObserveStage records one stage run
func ObserveStage(stage string, start time.Time, outcome string) {
	StageRuns.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
