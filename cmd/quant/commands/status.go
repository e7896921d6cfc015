package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/indexconfig"
)

// statusTables are the tables reported by the status command
var statusTables = []string{
	"data.stock_prices",
	"data.ticker_details",
	"data.index_composition",
	"data.index_performance",
	"data.index_composition_changes",
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "저장소 및 지수 상태 조회",
	Long: `데이터베이스 연결, 커넥션 풀, 테이블별 행 수, 지수 정의를 출력합니다.

표시 정보:
- DB 응답 시간과 풀 통계
- 테이블별 행 수 (버전 포함 전체)
- 최신 성과 날짜
- 지수 정의 (ID, 해시, 경고)

Example:
  go run ./cmd/quant status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	def := a.definition
	hash, err := indexconfig.Hash(def)
	if err != nil {
		return fmt.Errorf("hash index definition: %w", err)
	}

	PrintDoubleSeparator()
	fmt.Printf("  %s (%s v%s)\n", def.Meta.Name, def.Meta.IndexID, def.Meta.Version)
	PrintSeparator()
	PrintKeyValue("Hash", hash[:12], 14)
	PrintKeyValue("Universe", def.Universe.Source, 14)
	PrintKeyValue("Top N", fmt.Sprint(a.cfg.Index.TopN), 14)
	PrintKeyValue("Lookback", fmt.Sprintf("%dd", a.cfg.Index.LookbackDays), 14)
	PrintKeyValue("Change log", a.cfg.Index.ChangeLogMode, 14)
	PrintKeyValue("Timezone", a.location.String(), 14)
	PrintKeyValue("Redis", fmt.Sprint(a.redis.Enabled()), 14)
	for _, w := range indexconfig.Warn(def) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}

	// Database
	fmt.Println()
	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("Database unhealthy: %v", err))
		return err
	}
	PrintSuccess(fmt.Sprintf("Database healthy (%s)", health.ResponseTime))
	PrintKeyValue("Connections", fmt.Sprintf("%d total, %d idle, %d max", health.Stats.TotalConns, health.Stats.IdleConns, health.Stats.MaxConns), 14)

	// Tables
	fmt.Println()
	widths := []int{34, 10}
	PrintTableHeader([]string{"Table", "Rows"}, widths)
	for _, table := range statusTables {
		count := "missing"
		t, err := a.store.Query(ctx, "SELECT count(*) FROM "+table)
		if err == nil && t.Len() == 1 {
			count = fmt.Sprint(t.Rows[0][0])
		}
		PrintTableRow([]string{table, count}, widths)
	}

	// Latest level
	fmt.Println()
	today, _ := a.date("")
	points, err := a.store.QueryLatestPerformance(ctx, contracts.TrailingRange(today, a.cfg.Index.LookbackDays))
	switch {
	case err != nil:
		PrintError(fmt.Sprintf("Read performance: %v", err))
	case len(points) == 0:
		PrintInfo("No performance in the lookback window")
	default:
		last := points[len(points)-1]
		PrintKeyValue("Latest level", fmt.Sprintf("%s  %.6f (%+.4f%%)", contracts.FormatDate(last.Date), last.IndexPrice, last.DailyReturn), 14)
	}

	return nil
}
