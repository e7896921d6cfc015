package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/scheduler"
	"github.com/wonny/eqindex/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `지수 정의의 schedules 섹션에 따라 작업을 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run daily_pipeline`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업 (시간대: meta.timezone):
- daily_pipeline: 장 마감 후 가격 수집 + S0→S3
- ticker_refresh: 유니버스 시가총액 갱신
- store_health:   저장소 상태 점검

빈 스케줄은 등록하지 않습니다. Ctrl+C로 종료할 수 있습니다.

--run-now 로 지정한 작업은 시작 직후 백그라운드에서 한 번 실행됩니다.

Example:
  go run ./cmd/quant scheduler start --run-now ticker_refresh`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

var schedulerRunNow []string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerStartCmd.Flags().StringSliceVar(&schedulerRunNow, "run-now", nil, "jobs to run once right after start")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Printf("=== %s Scheduler ===\n\n", a.definition.Meta.Name)

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	// Catch-up runs share the scheduler context and stop with it
	for _, name := range schedulerRunNow {
		if err := sched.RunJob(name); err != nil {
			sched.Stop()
			return fmt.Errorf("run %s: %w", name, err)
		}
		fmt.Printf("Triggered %s\n", name)
	}

	fmt.Println("\n✅ Scheduler started successfully")
	printJobStats(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobStats(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunNow(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration))
	return nil
}

// newScheduler registers every job that has a schedule in the index definition
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.logger, scheduler.WithLocation(a.location))
	s := a.definition.Schedules

	var toAdd []scheduler.Job
	if s.DailyPipeline != "" {
		toAdd = append(toAdd, jobs.NewDailyPipelineJob(a.collector, a.runner, a.cfg.Index, s.DailyPipeline, a.location, a.logger))
	}
	if s.TickerRefresh != "" {
		toAdd = append(toAdd, jobs.NewTickerRefreshJob(a.universe(), a.collector, s.TickerRefresh, a.logger))
	}
	if s.HealthCheck != "" {
		toAdd = append(toAdd, jobs.NewStoreHealthJob(a.db, s.HealthCheck, a.logger))
	}

	for _, job := range toAdd {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Registered jobs:")
	for _, name := range names {
		st := stats[name]
		line := fmt.Sprintf("  - %-16s %s", name, st.Schedule)
		if st.NextRun != nil {
			line += fmt.Sprintf("  (next %s)", st.NextRun.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Println(line)
	}
}
