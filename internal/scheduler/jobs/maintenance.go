package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/eqindex/pkg/database"
	"github.com/wonny/eqindex/pkg/logger"
)

// HealthChecker reports database health; *database.DB satisfies it
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// StoreHealthJob pings the versioned store and logs pool statistics
type StoreHealthJob struct {
	db       HealthChecker
	schedule string
	logger   *logger.Logger
}

// NewStoreHealthJob creates a store health job
func NewStoreHealthJob(db HealthChecker, schedule string, log *logger.Logger) *StoreHealthJob {
	return &StoreHealthJob{
		db:       db,
		schedule: schedule,
		logger:   log.WithField("job", "store_health"),
	}
}

// Name returns the job name
func (j *StoreHealthJob) Name() string {
	return "store_health"
}

// Schedule returns the cron schedule
func (j *StoreHealthJob) Schedule() string {
	return j.schedule
}

// Run executes the health check
func (j *StoreHealthJob) Run(ctx context.Context) error {
	status, err := j.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("store unhealthy: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"response_time": status.ResponseTime.String(),
		"total_conns":   status.Stats.TotalConns,
		"idle_conns":    status.Stats.IdleConns,
	}).Debug("Store healthy")
	return nil
}
